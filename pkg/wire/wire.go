// Copyright (C) 2026 The DSTC Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package wire implements the DSTC argument codec: a type-directed,
// tag-free serializer for the fixed set of argument kinds a call can
// carry (scalars, fixed arrays, length-prefixed blobs and callback
// references). Encoding is positional — there is no per-argument type
// tag on the wire, so a decoder must be handed the same Shape the
// encoder used.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// CallbackHandleWidth is the wire width, in bytes, of a callback
// reference. The source implementation reused a pointer-sized
// integer; Go has no portable pointer width, so callback handles are
// always serialized as a fixed 8-byte unsigned integer regardless of
// platform.
const CallbackHandleWidth = 8

// CallbackHandle is an opaque, process-local handle minted by a
// registry and embedded verbatim in outgoing call records. Equality
// comparison is the only operation a receiver may perform on a
// handle it did not mint itself.
type CallbackHandle uint64

// ArgKind identifies the wire shape of one declared argument.
type ArgKind int

const (
	// Scalar is a fixed-width value encoded as its raw byte image.
	Scalar ArgKind = iota
	// Array is N consecutive scalars of the same width.
	Array
	// Blob is a 16-bit length prefix followed by that many bytes.
	Blob
	// Callback is an 8-byte opaque handle.
	Callback
)

func (k ArgKind) String() string {
	switch k {
	case Scalar:
		return "scalar"
	case Array:
		return "array"
	case Blob:
		return "blob"
	case Callback:
		return "callback"
	default:
		return "unknown"
	}
}

// ArgSpec declares the wire shape of one argument position. Width is
// the byte width of a single element (ignored for Blob and Callback).
// Count is the number of elements for Array (ignored otherwise).
type ArgSpec struct {
	Kind  ArgKind
	Width int
	Count int
}

// size returns the number of wire bytes ArgSpec s occupies, or -1 if
// s is a Blob (whose size is only known from the encoded argument
// itself, see Arg.Size).
func (s ArgSpec) size() int {
	switch s.Kind {
	case Scalar:
		return s.Width
	case Array:
		return s.Width * s.Count
	case Callback:
		return CallbackHandleWidth
	case Blob:
		return -1
	default:
		return -1
	}
}

// Shape is the declared, ordered argument list of a registered
// client or server function. Both sides of a call must agree on it;
// a mismatch is undetectable on the wire (§4.1 of the protocol
// design) and is a programming error, not a runtime one.
type Shape []ArgSpec

// Arg is one already-encoded argument ready to be concatenated into a
// call record payload. Values are produced with the constructors
// below (Uint32, BlobArg, CallbackRef, ...) so that callers never build
// the byte image by hand.
type Arg struct {
	Kind ArgKind
	data []byte
}

// Size returns the number of bytes Arg a will occupy on the wire.
func (a Arg) Size() int { return len(a.data) }

// Bytes returns the raw wire-encoded form of a, including the length
// prefix for Blob arguments.
func (a Arg) Bytes() []byte { return a.data }

var (
	// ErrShapeMismatch is returned when a decoded value cannot be
	// interpreted as the kind the caller asked for.
	ErrShapeMismatch = errors.New("wire: argument kind mismatch")
	// ErrTruncated is returned when a payload ends before the
	// declared Shape has been fully consumed.
	ErrTruncated = errors.New("wire: payload truncated")
)

// --- scalar constructors -----------------------------------------------

// Uint8 encodes a single byte scalar.
func Uint8(v uint8) Arg { return Arg{Kind: Scalar, data: []byte{v}} }

// Int8 encodes a single signed byte scalar.
func Int8(v int8) Arg { return Uint8(uint8(v)) }

// Bool encodes a one-byte boolean scalar (0 or 1).
func Bool(v bool) Arg {
	if v {
		return Uint8(1)
	}
	return Uint8(0)
}

// Uint16 encodes a 2-byte host-endian scalar.
func Uint16(v uint16) Arg {
	b := make([]byte, 2)
	binary.NativeEndian.PutUint16(b, v)
	return Arg{Kind: Scalar, data: b}
}

// Int16 encodes a 2-byte host-endian signed scalar.
func Int16(v int16) Arg { return Uint16(uint16(v)) }

// Uint32 encodes a 4-byte host-endian scalar.
func Uint32(v uint32) Arg {
	b := make([]byte, 4)
	binary.NativeEndian.PutUint32(b, v)
	return Arg{Kind: Scalar, data: b}
}

// Int32 encodes a 4-byte host-endian signed scalar.
func Int32(v int32) Arg { return Uint32(uint32(v)) }

// Uint64 encodes an 8-byte host-endian scalar.
func Uint64(v uint64) Arg {
	b := make([]byte, 8)
	binary.NativeEndian.PutUint64(b, v)
	return Arg{Kind: Scalar, data: b}
}

// Int64 encodes an 8-byte host-endian signed scalar.
func Int64(v int64) Arg { return Uint64(uint64(v)) }

// Float32 encodes a 4-byte host-endian IEEE-754 scalar.
func Float32(v float32) Arg { return Uint32(math.Float32bits(v)) }

// Float64 encodes an 8-byte host-endian IEEE-754 scalar.
func Float64(v float64) Arg { return Uint64(math.Float64bits(v)) }

// --- fixed array constructors -------------------------------------------

// Uint8Array encodes N consecutive single-byte scalars.
func Uint8Array(vs []uint8) Arg {
	b := make([]byte, len(vs))
	copy(b, vs)
	return Arg{Kind: Array, data: b}
}

// Uint32Array encodes N consecutive 4-byte host-endian scalars.
func Uint32Array(vs []uint32) Arg {
	b := make([]byte, 4*len(vs))
	for i, v := range vs {
		binary.NativeEndian.PutUint32(b[i*4:], v)
	}
	return Arg{Kind: Array, data: b}
}

// Uint64Array encodes N consecutive 8-byte host-endian scalars.
func Uint64Array(vs []uint64) Arg {
	b := make([]byte, 8*len(vs))
	for i, v := range vs {
		binary.NativeEndian.PutUint64(b[i*8:], v)
	}
	return Arg{Kind: Array, data: b}
}

// --- dynamic blob constructors -------------------------------------------

// maxBlobLen is the largest length a Dynamic Blob's 16-bit length
// prefix can express.
const maxBlobLen = 1<<16 - 1

// BlobArg encodes a length-prefixed byte sequence. L is the number of
// bytes that follow, matching len(data) exactly.
func BlobArg(data []byte) (Arg, error) {
	if len(data) > maxBlobLen {
		return Arg{}, fmt.Errorf("wire: blob of %d bytes exceeds max length %d", len(data), maxBlobLen)
	}
	b := make([]byte, 2+len(data))
	binary.NativeEndian.PutUint16(b, uint16(len(data)))
	copy(b[2:], data)
	return Arg{Kind: Blob, data: b}, nil
}

// StringArg encodes a null-terminated string as a Dynamic Blob whose
// length includes the trailing null, per §3 of the protocol design.
func StringArg(s string) (Arg, error) {
	return BlobArg(append([]byte(s), 0))
}

// CallbackRef encodes a callback handle as an 8-byte opaque value.
func CallbackRef(h CallbackHandle) Arg {
	b := make([]byte, CallbackHandleWidth)
	binary.NativeEndian.PutUint64(b, uint64(h))
	return Arg{Kind: Callback, data: b}
}

// --- encode/decode --------------------------------------------------------

// EncodedSize returns the total wire size of args concatenated in
// order, as the batcher needs to know before deciding whether a call
// record fits the current datagram.
func EncodedSize(args []Arg) int {
	n := 0
	for _, a := range args {
		n += len(a.data)
	}
	return n
}

// Encode concatenates args, in order, into dst and returns the number
// of bytes written. dst must be at least EncodedSize(args) long.
func Encode(dst []byte, args []Arg) int {
	n := 0
	for _, a := range args {
		n += copy(dst[n:], a.data)
	}
	return n
}

// Decoded is one argument recovered from an inbound payload. Blob and
// String data point directly into the caller-supplied payload slice
// (no copy) and are only valid until the dispatch that produced them
// returns — the inbound datagram buffer is reclaimed by the transport
// afterwards.
type Decoded struct {
	Kind ArgKind
	raw  []byte
}

// Uint8 interprets the decoded argument as a single byte scalar.
func (d Decoded) Uint8() (uint8, error) {
	if d.Kind != Scalar || len(d.raw) != 1 {
		return 0, ErrShapeMismatch
	}
	return d.raw[0], nil
}

// Uint16 interprets the decoded argument as a 2-byte host-endian scalar.
func (d Decoded) Uint16() (uint16, error) {
	if d.Kind != Scalar || len(d.raw) != 2 {
		return 0, ErrShapeMismatch
	}
	return binary.NativeEndian.Uint16(d.raw), nil
}

// Uint32 interprets the decoded argument as a 4-byte host-endian scalar.
func (d Decoded) Uint32() (uint32, error) {
	if d.Kind != Scalar || len(d.raw) != 4 {
		return 0, ErrShapeMismatch
	}
	return binary.NativeEndian.Uint32(d.raw), nil
}

// Int32 interprets the decoded argument as a 4-byte host-endian signed scalar.
func (d Decoded) Int32() (int32, error) {
	v, err := d.Uint32()
	return int32(v), err
}

// Uint64 interprets the decoded argument as an 8-byte host-endian scalar.
func (d Decoded) Uint64() (uint64, error) {
	if d.Kind != Scalar || len(d.raw) != 8 {
		return 0, ErrShapeMismatch
	}
	return binary.NativeEndian.Uint64(d.raw), nil
}

// Int64 interprets the decoded argument as an 8-byte host-endian signed scalar.
func (d Decoded) Int64() (int64, error) {
	v, err := d.Uint64()
	return int64(v), err
}

// Float32 interprets the decoded argument as a 4-byte IEEE-754 scalar.
func (d Decoded) Float32() (float32, error) {
	v, err := d.Uint32()
	return math.Float32frombits(v), err
}

// Float64 interprets the decoded argument as an 8-byte IEEE-754 scalar.
func (d Decoded) Float64() (float64, error) {
	v, err := d.Uint64()
	return math.Float64frombits(v), err
}

// Bytes returns the raw element bytes of a Scalar, Array, or Blob
// argument (for Blob, the payload only, without the length prefix).
func (d Decoded) Bytes() ([]byte, error) {
	if d.Kind != Scalar && d.Kind != Array && d.Kind != Blob {
		return nil, ErrShapeMismatch
	}
	return d.raw, nil
}

// String decodes a Blob argument as a null-terminated string,
// stripping the trailing null written by StringArg.
func (d Decoded) String() (string, error) {
	if d.Kind != Blob {
		return "", ErrShapeMismatch
	}
	if len(d.raw) > 0 && d.raw[len(d.raw)-1] == 0 {
		return string(d.raw[:len(d.raw)-1]), nil
	}
	return string(d.raw), nil
}

// Callback decodes a Callback argument as an opaque handle.
func (d Decoded) Callback() (CallbackHandle, error) {
	if d.Kind != Callback || len(d.raw) != CallbackHandleWidth {
		return 0, ErrShapeMismatch
	}
	return CallbackHandle(binary.NativeEndian.Uint64(d.raw)), nil
}

// Decode walks payload according to shape and returns one Decoded
// value per declared argument. It does not copy: Blob/Array/Scalar
// Decoded values reference sub-slices of payload directly.
func Decode(shape Shape, payload []byte) ([]Decoded, error) {
	out := make([]Decoded, 0, len(shape))
	off := 0
	for _, spec := range shape {
		switch spec.Kind {
		case Blob:
			if off+2 > len(payload) {
				return nil, ErrTruncated
			}
			l := int(binary.NativeEndian.Uint16(payload[off : off+2]))
			off += 2
			if off+l > len(payload) {
				return nil, ErrTruncated
			}
			out = append(out, Decoded{Kind: Blob, raw: payload[off : off+l]})
			off += l
		default:
			n := spec.size()
			if n < 0 || off+n > len(payload) {
				return nil, ErrTruncated
			}
			out = append(out, Decoded{Kind: spec.Kind, raw: payload[off : off+n]})
			off += n
		}
	}
	return out, nil
}
