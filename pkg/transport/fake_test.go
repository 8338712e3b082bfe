// Copyright (C) 2026 The DSTC Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeNetworkBroadcastsToAllPeers(t *testing.T) {
	net := NewFakeNetwork()
	a := net.Join(1)
	b := net.Join(2)
	c := net.Join(3)

	require.NoError(t, a.SendDatagram(context.Background(), []byte("hello")))

	for _, peer := range []*Fake{a, b, c} {
		select {
		case got := <-peer.Datagrams():
			assert.Equal(t, []byte("hello"), got)
		case <-time.After(time.Second):
			t.Fatalf("peer %d never received datagram", peer.NodeID())
		}
	}
}

func TestFakeNetworkAnnouncementsUseSeparateChannel(t *testing.T) {
	net := NewFakeNetwork()
	a := net.Join(1)
	b := net.Join(2)

	require.NoError(t, a.SendAnnouncement(context.Background(), []byte("ping\x00")))

	select {
	case got := <-b.Announcements():
		assert.Equal(t, []byte("ping\x00"), got)
	case <-time.After(time.Second):
		t.Fatal("peer never received announcement")
	}

	select {
	case <-b.Datagrams():
		t.Fatal("announcement leaked onto the call datagram channel")
	default:
	}
}

func TestFakeJoinAssignsDistinctNodeIDs(t *testing.T) {
	net := NewFakeNetwork()
	a := net.Join(0)
	b := net.Join(0)
	assert.NotEqual(t, a.NodeID(), b.NodeID())
}

func TestFakeCloseRejectsSend(t *testing.T) {
	net := NewFakeNetwork()
	a := net.Join(1)
	require.NoError(t, a.Close())
	err := a.SendDatagram(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestConfigSubjectsScopedByGroup(t *testing.T) {
	cfg := Config{Group: "lab-cluster"}
	assert.Equal(t, "dstc.lab-cluster.calls", cfg.callsSubject())
	assert.Equal(t, "dstc.lab-cluster.announce", cfg.announceSubject())
}
