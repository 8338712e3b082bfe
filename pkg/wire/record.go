// Copyright (C) 2026 The DSTC Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// CallbackSentinel is the reserved function name that marks a Call
// Record as a callback invocation rather than a server call. It is a
// single byte chosen so it can never collide with a user-registered
// name, which must be printable ASCII and therefore nonzero and
// distinct from this value.
const CallbackSentinel = "\x01"

// DatagramHeaderSize is the width, in bytes, of the origin node id
// prefix every datagram carries. The source transport learned a call's
// origin from the multicast socket address; a transport adapter that
// does not expose sender identity out of band (NATS subjects do not)
// must carry it in the datagram itself, so every call and announcement
// datagram here begins with the sending node's id.
const DatagramHeaderSize = 4

// EncodeDatagramHeader prepends the sending node's id to a datagram
// body (a concatenation of Call Records, or an announcement's
// null-terminated names).
func EncodeDatagramHeader(nodeID uint32, body []byte) []byte {
	out := make([]byte, DatagramHeaderSize+len(body))
	binary.NativeEndian.PutUint32(out, nodeID)
	copy(out[DatagramHeaderSize:], body)
	return out
}

// ParseDatagramHeader splits a raw datagram into the origin node id
// and the remaining body.
func ParseDatagramHeader(datagram []byte) (nodeID uint32, body []byte, err error) {
	if len(datagram) < DatagramHeaderSize {
		return 0, nil, ErrRecordTruncated
	}
	return binary.NativeEndian.Uint32(datagram), datagram[DatagramHeaderSize:], nil
}

var (
	// ErrNameTooLong is returned when a function name contains an
	// embedded null byte, which would end the name early on the wire.
	ErrNameTooLong = errors.New("wire: function name contains a null byte")
	// ErrPayloadTooLarge is returned when a record's payload exceeds
	// the 16-bit length prefix the record format can express.
	ErrPayloadTooLarge = errors.New("wire: payload exceeds 65535 bytes")
	// ErrRecordTruncated is returned when a datagram ends before a
	// complete record (name, length prefix, or payload) is present.
	ErrRecordTruncated = errors.New("wire: record truncated")
	// ErrNameUnterminated is returned when a datagram ends before the
	// null terminator of a function name is found.
	ErrNameUnterminated = errors.New("wire: name missing null terminator")
)

const maxPayloadLen = 1<<16 - 1

// RecordSize returns the number of wire bytes a Call Record for name
// with the given payload length occupies: name, null terminator,
// 16-bit length prefix, and the payload itself.
func RecordSize(name string, payloadLen int) int {
	return len(name) + 1 + 2 + payloadLen
}

// EncodeRecord appends one Call Record — name ‖ 0x00 ‖ payload_length(u16)
// ‖ payload — to dst and returns the extended slice. name must not
// contain an embedded null byte.
func EncodeRecord(dst []byte, name string, payload []byte) ([]byte, error) {
	if len(payload) > maxPayloadLen {
		return nil, fmt.Errorf("%w: record %q has %d-byte payload", ErrPayloadTooLarge, name, len(payload))
	}
	for i := 0; i < len(name); i++ {
		if name[i] == 0 {
			return nil, fmt.Errorf("%w: %q", ErrNameTooLong, name)
		}
	}
	dst = append(dst, name...)
	dst = append(dst, 0)
	var lenBuf [2]byte
	binary.NativeEndian.PutUint16(lenBuf[:], uint16(len(payload)))
	dst = append(dst, lenBuf[:]...)
	dst = append(dst, payload...)
	return dst, nil
}

// EncodeCallbackRecord appends a callback Call Record: the reserved
// sentinel name, followed by a payload whose first CallbackHandleWidth
// bytes are the handle and the remainder is the callback's own encoded
// argument list.
func EncodeCallbackRecord(dst []byte, handle CallbackHandle, args []Arg) ([]byte, error) {
	payload := make([]byte, CallbackHandleWidth+EncodedSize(args))
	binary.NativeEndian.PutUint64(payload, uint64(handle))
	Encode(payload[CallbackHandleWidth:], args)
	return EncodeRecord(dst, CallbackSentinel, payload)
}

// Record is one Call Record recovered from an inbound datagram. Name
// and Payload reference sub-slices of the datagram buffer directly;
// like Decoded values, they are only valid until the dispatch that
// produced them returns.
type Record struct {
	Name    string
	Payload []byte
}

// IsCallback reports whether r is a callback invocation rather than a
// server call, per the reserved sentinel name.
func (r Record) IsCallback() bool { return r.Name == CallbackSentinel }

// SplitCallbackPayload separates a callback record's payload into the
// target handle and the remaining argument bytes. It is an error to
// call this on a record that is not a callback record.
func (r Record) SplitCallbackPayload() (CallbackHandle, []byte, error) {
	if !r.IsCallback() {
		return 0, nil, fmt.Errorf("wire: record %q is not a callback record", r.Name)
	}
	if len(r.Payload) < CallbackHandleWidth {
		return 0, nil, ErrRecordTruncated
	}
	h := CallbackHandle(binary.NativeEndian.Uint64(r.Payload[:CallbackHandleWidth]))
	return h, r.Payload[CallbackHandleWidth:], nil
}

// ParseRecord reads one Call Record from the front of datagram and
// returns it along with the remaining, unconsumed bytes.
func ParseRecord(datagram []byte) (Record, []byte, error) {
	nul := -1
	for i, b := range datagram {
		if b == 0 {
			nul = i
			break
		}
	}
	if nul < 0 {
		return Record{}, nil, ErrNameUnterminated
	}
	name := string(datagram[:nul])
	rest := datagram[nul+1:]
	if len(rest) < 2 {
		return Record{}, nil, ErrRecordTruncated
	}
	payloadLen := int(binary.NativeEndian.Uint16(rest[:2]))
	rest = rest[2:]
	if len(rest) < payloadLen {
		return Record{}, nil, ErrRecordTruncated
	}
	return Record{Name: name, Payload: rest[:payloadLen]}, rest[payloadLen:], nil
}

// ParseDatagram walks datagram record by record until it is exhausted,
// returning every well-formed Record in append order. It stops and
// returns the records recovered so far, plus the error, if a
// malformed trailing record is encountered — mirroring the dispatcher
// rule that a record either fully parses or the datagram is corrupt.
func ParseDatagram(datagram []byte) ([]Record, error) {
	var records []Record
	for len(datagram) > 0 {
		rec, rest, err := ParseRecord(datagram)
		if err != nil {
			return records, err
		}
		records = append(records, rec)
		datagram = rest
	}
	return records, nil
}

// EncodeAnnouncement serializes a list of registered server-function
// names as a sequence of null-terminated names, per the announcement
// datagram format.
func EncodeAnnouncement(names []string) ([]byte, error) {
	var out []byte
	for _, n := range names {
		for i := 0; i < len(n); i++ {
			if n[i] == 0 {
				return nil, fmt.Errorf("%w: %q", ErrNameTooLong, n)
			}
		}
		out = append(out, n...)
		out = append(out, 0)
	}
	return out, nil
}

// ParseAnnouncement splits an announcement datagram into its
// null-terminated function names.
func ParseAnnouncement(datagram []byte) ([]string, error) {
	var names []string
	for len(datagram) > 0 {
		nul := -1
		for i, b := range datagram {
			if b == 0 {
				nul = i
				break
			}
		}
		if nul < 0 {
			return names, ErrNameUnterminated
		}
		names = append(names, string(datagram[:nul]))
		datagram = datagram[nul+1:]
	}
	return names, nil
}
