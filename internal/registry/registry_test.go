// Copyright (C) 2026 The DSTC Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dstc-go/dstc/pkg/transport"
)

func TestRegisterClientRejectsDuplicate(t *testing.T) {
	r := New(0)
	require.NoError(t, r.RegisterClient("ping"))
	err := r.RegisterClient("ping")
	assert.ErrorIs(t, err, ErrRegistrationConflict)
}

func TestRegisterServerRejectsDuplicate(t *testing.T) {
	r := New(0)
	handler := func(transport.NodeID, []byte) error { return nil }
	require.NoError(t, r.RegisterServer("ping", handler))
	err := r.RegisterServer("ping", handler)
	assert.ErrorIs(t, err, ErrRegistrationConflict)
}

func TestLookupServerAbsent(t *testing.T) {
	r := New(0)
	_, ok := r.LookupServer("nope")
	assert.False(t, ok)
}

func TestActivateAndCancelCallback(t *testing.T) {
	r := New(0)
	called := false
	handle := r.ActivateCallback(func(transport.NodeID, []byte) error {
		called = true
		return nil
	})

	handler, ok := r.LookupCallback(handle)
	require.True(t, ok)
	require.NoError(t, handler(1, nil))
	assert.True(t, called)

	r.CancelCallback(handle)
	_, ok = r.LookupCallback(handle)
	assert.False(t, ok)
}

func TestActivateCallbackHandlesAreDistinct(t *testing.T) {
	r := New(0)
	noop := func(transport.NodeID, []byte) error { return nil }
	h1 := r.ActivateCallback(noop)
	h2 := r.ActivateCallback(noop)
	assert.NotEqual(t, h1, h2)
}

func TestRemoteFunctionAvailableReflectsAnnouncements(t *testing.T) {
	r := New(0)
	assert.False(t, r.RemoteFunctionAvailable("ping"))

	ok := r.ApplyAnnouncement(transport.NodeID(2), []string{"ping", "send_int"})
	require.True(t, ok)
	assert.True(t, r.RemoteFunctionAvailable("ping"))
	assert.True(t, r.RemoteFunctionAvailable("send_int"))
	assert.False(t, r.RemoteFunctionAvailable("send_blob"))
}

func TestApplyAnnouncementReplacesPeerNames(t *testing.T) {
	r := New(0)
	r.ApplyAnnouncement(transport.NodeID(2), []string{"ping"})
	r.ApplyAnnouncement(transport.NodeID(2), []string{"send_int"})
	assert.False(t, r.RemoteFunctionAvailable("ping"))
	assert.True(t, r.RemoteFunctionAvailable("send_int"))
}

func TestApplyAnnouncementRespectsMaxConnections(t *testing.T) {
	r := New(1)
	ok := r.ApplyAnnouncement(transport.NodeID(1), []string{"ping"})
	require.True(t, ok)
	ok = r.ApplyAnnouncement(transport.NodeID(2), []string{"ping"})
	assert.False(t, ok)
	assert.Equal(t, []transport.NodeID{1}, r.Peers())
}

func TestForgetPeerRemovesFromView(t *testing.T) {
	r := New(0)
	r.ApplyAnnouncement(transport.NodeID(5), []string{"ping"})
	require.True(t, r.RemoteFunctionAvailable("ping"))
	r.ForgetPeer(5)
	assert.False(t, r.RemoteFunctionAvailable("ping"))
	assert.Empty(t, r.Peers())
}

func TestPruneStaleForgetsOnlyPeersOutsideWindow(t *testing.T) {
	r := New(0)
	r.ApplyAnnouncement(transport.NodeID(1), []string{"ping"})
	time.Sleep(20 * time.Millisecond)
	r.ApplyAnnouncement(transport.NodeID(2), []string{"ping"})

	stale := r.PruneStale(10 * time.Millisecond)
	assert.Equal(t, []transport.NodeID{1}, stale)
	assert.Equal(t, []transport.NodeID{2}, r.Peers())
}

func TestServerNames(t *testing.T) {
	r := New(0)
	handler := func(transport.NodeID, []byte) error { return nil }
	require.NoError(t, r.RegisterServer("ping", handler))
	require.NoError(t, r.RegisterServer("send_int", handler))
	assert.ElementsMatch(t, []string{"ping", "send_int"}, r.ServerNames())
}
