// Copyright (C) 2026 The DSTC Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package batcher

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dstc-go/dstc/pkg/wire"
)

func recordFor(t *testing.T, name string, i int32) []byte {
	t.Helper()
	arg := wire.Int32(i)
	payload := make([]byte, wire.EncodedSize([]wire.Arg{arg}))
	wire.Encode(payload, []wire.Arg{arg})
	rec, err := wire.EncodeRecord(nil, name, payload)
	require.NoError(t, err)
	return rec
}

func TestImmediateModeSendsEachRecordAlone(t *testing.T) {
	var sent [][]byte
	b := New(func(_ context.Context, datagram []byte) error {
		sent = append(sent, append([]byte(nil), datagram...))
		return nil
	}, nil)

	require.NoError(t, b.AppendRecord(context.Background(), recordFor(t, "ping", 1)))
	require.NoError(t, b.AppendRecord(context.Background(), recordFor(t, "ping", 2)))

	require.Len(t, sent, 2)
	assert.Equal(t, 0, b.Pending())
}

func TestBufferedModeAccumulatesUntilFlush(t *testing.T) {
	var sent [][]byte
	b := New(func(_ context.Context, datagram []byte) error {
		sent = append(sent, append([]byte(nil), datagram...))
		return nil
	}, nil)

	b.BufferClientCalls()
	var want []byte
	for i := int32(0); i < 100; i++ {
		rec := recordFor(t, "send_int", i)
		want = append(want, rec...)
		require.NoError(t, b.AppendRecord(context.Background(), rec))
	}
	assert.Empty(t, sent, "buffered mode must not send before flush")

	require.NoError(t, b.FlushClientCalls(context.Background()))
	require.Len(t, sent, 1)
	assert.True(t, bytes.Equal(want, sent[0]))
	assert.Equal(t, 0, b.Pending())
	assert.Equal(t, Buffered, b.State())
}

func TestFlushWithNothingPendingIsNoop(t *testing.T) {
	calls := 0
	b := New(func(context.Context, []byte) error {
		calls++
		return nil
	}, nil)
	b.BufferClientCalls()
	require.NoError(t, b.FlushClientCalls(context.Background()))
	assert.Equal(t, 0, calls)
}

func TestUnbufferFlushesThenReturnsToImmediate(t *testing.T) {
	var sent int
	b := New(func(context.Context, []byte) error {
		sent++
		return nil
	}, nil)
	b.BufferClientCalls()
	require.NoError(t, b.AppendRecord(context.Background(), recordFor(t, "ping", 1)))
	require.NoError(t, b.UnbufferClientCalls(context.Background()))
	assert.Equal(t, 1, sent)
	assert.Equal(t, Immediate, b.State())

	require.NoError(t, b.AppendRecord(context.Background(), recordFor(t, "ping", 2)))
	assert.Equal(t, 2, sent)
}

func TestAppendRecordFlushesWhenCapacityWouldOverflow(t *testing.T) {
	var sent [][]byte
	b := New(func(_ context.Context, datagram []byte) error {
		sent = append(sent, append([]byte(nil), datagram...))
		return nil
	}, nil)
	b.BufferClientCalls()

	big := bytes.Repeat([]byte{0xAB}, Capacity-20)
	rec1, err := wire.EncodeRecord(nil, "send_blob", big)
	require.NoError(t, err)
	require.NoError(t, b.AppendRecord(context.Background(), rec1))

	rec2 := recordFor(t, "ping", 1)
	require.NoError(t, b.AppendRecord(context.Background(), rec2))

	require.Len(t, sent, 1, "appending the second record should have forced a flush of the first")
	assert.True(t, bytes.Equal(rec1, sent[0]))
	assert.Equal(t, len(rec2), b.Pending())
}

func TestAppendRecordRejectsOversizedSingleRecord(t *testing.T) {
	b := New(func(context.Context, []byte) error { return nil }, nil)
	huge := bytes.Repeat([]byte{0x01}, Capacity+1)
	err := b.AppendRecord(context.Background(), huge)
	assert.ErrorIs(t, err, ErrEncodeOverflow)
}
