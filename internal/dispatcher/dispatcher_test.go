// Copyright (C) 2026 The DSTC Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package dispatcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dstc-go/dstc/internal/registry"
	"github.com/dstc-go/dstc/pkg/transport"
	"github.com/dstc-go/dstc/pkg/wire"
)

func intRecord(t *testing.T, name string, v int32) []byte {
	t.Helper()
	arg := wire.Int32(v)
	payload := make([]byte, wire.EncodedSize([]wire.Arg{arg}))
	wire.Encode(payload, []wire.Arg{arg})
	rec, err := wire.EncodeRecord(nil, name, payload)
	require.NoError(t, err)
	return rec
}

func TestDispatchDatagramInvokesServerHandler(t *testing.T) {
	reg := registry.New(0)
	got := 0
	require.NoError(t, reg.RegisterServer("ping", func(transport.NodeID, []byte) error {
		got++
		return nil
	}))

	d := New(reg, transport.NodeID(1), Metrics{})
	datagram := wire.EncodeDatagramHeader(2, intRecord(t, "ping", 0))
	d.DispatchDatagram(datagram)

	assert.Equal(t, 1, got)
}

func TestDispatchDatagramSuppressesSelfOrigin(t *testing.T) {
	reg := registry.New(0)
	called := false
	require.NoError(t, reg.RegisterServer("ping", func(transport.NodeID, []byte) error {
		called = true
		return nil
	}))

	selfLoops := 0
	d := New(reg, transport.NodeID(1), Metrics{DatagramSelfLoop: func() { selfLoops++ }})
	datagram := wire.EncodeDatagramHeader(1, intRecord(t, "ping", 0))
	d.DispatchDatagram(datagram)

	assert.False(t, called)
	assert.Equal(t, 1, selfLoops)
}

func TestDispatchDatagramSkipsUnknownNameButContinues(t *testing.T) {
	reg := registry.New(0)
	var seen []int32
	require.NoError(t, reg.RegisterServer("send_int", func(_ transport.NodeID, payload []byte) error {
		decoded, err := wire.Decode(wire.Shape{{Kind: wire.Scalar, Width: 4}}, payload)
		require.NoError(t, err)
		v, err := decoded[0].Int32()
		require.NoError(t, err)
		seen = append(seen, v)
		return nil
	}))

	var skipped []string
	d := New(reg, transport.NodeID(1), Metrics{RecordSkipped: func(name string) { skipped = append(skipped, name) }})

	var body []byte
	body = append(body, intRecord(t, "send_int", 1)...)
	body = append(body, intRecord(t, "unregistered", 2)...)
	body = append(body, intRecord(t, "send_int", 3)...)

	d.DispatchDatagram(wire.EncodeDatagramHeader(2, body))

	assert.Equal(t, []int32{1, 3}, seen)
	assert.Equal(t, []string{"unregistered"}, skipped)
}

func TestDispatchCallbackRoutesThroughCallbackRegistry(t *testing.T) {
	reg := registry.New(0)
	var got int32
	handle := reg.ActivateCallback(func(_ transport.NodeID, payload []byte) error {
		decoded, err := wire.Decode(wire.Shape{{Kind: wire.Scalar, Width: 4}}, payload)
		require.NoError(t, err)
		v, err := decoded[0].Int32()
		require.NoError(t, err)
		got = v
		return nil
	})

	d := New(reg, transport.NodeID(1), Metrics{})
	rec, err := wire.EncodeCallbackRecord(nil, handle, []wire.Arg{wire.Int32(14)})
	require.NoError(t, err)
	d.DispatchDatagram(wire.EncodeDatagramHeader(2, rec))

	assert.Equal(t, int32(14), got)
}

func TestDispatchCallbackDropsUnknownHandle(t *testing.T) {
	reg := registry.New(0)
	var dropped []wire.CallbackHandle
	d := New(reg, transport.NodeID(1), Metrics{CallbackDropped: func(h wire.CallbackHandle) { dropped = append(dropped, h) }})

	rec, err := wire.EncodeCallbackRecord(nil, wire.CallbackHandle(99), []wire.Arg{wire.Int32(1)})
	require.NoError(t, err)
	d.DispatchDatagram(wire.EncodeDatagramHeader(2, rec))

	assert.Equal(t, []wire.CallbackHandle{99}, dropped)
}

func TestDispatchAnnouncementUpdatesPeerView(t *testing.T) {
	reg := registry.New(0)
	d := New(reg, transport.NodeID(1), Metrics{})

	body, err := wire.EncodeAnnouncement([]string{"ping", "send_int"})
	require.NoError(t, err)
	d.DispatchAnnouncement(wire.EncodeDatagramHeader(7, body))

	assert.True(t, reg.RemoteFunctionAvailable("ping"))
	assert.True(t, reg.RemoteFunctionAvailable("send_int"))
	assert.Equal(t, []transport.NodeID{7}, reg.Peers())
}

func TestDispatchAnnouncementIgnoresSelfOrigin(t *testing.T) {
	reg := registry.New(0)
	d := New(reg, transport.NodeID(1), Metrics{})

	body, err := wire.EncodeAnnouncement([]string{"ping"})
	require.NoError(t, err)
	d.DispatchAnnouncement(wire.EncodeDatagramHeader(1, body))

	assert.Empty(t, reg.Peers())
}
