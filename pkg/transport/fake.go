// Copyright (C) 2026 The DSTC Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"context"
	"sync"
)

// Fake is an in-process Transport with no network I/O, used to drive
// dispatcher and context tests end-to-end without a real NATS server.
// Peers sharing the same Group are linked through a FakeNetwork.
type Fake struct {
	nodeID NodeID
	net    *FakeNetwork

	datagrams     chan []byte
	announcements chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

// FakeNetwork fans datagrams out to every Fake transport that joined
// it, the in-process stand-in for a multicast group's one-to-many
// delivery. A peer whose inbound channel (256 datagrams) is full
// misses the datagram; nothing is retried.
type FakeNetwork struct {
	mu    sync.Mutex
	peers []*Fake
}

// NewFakeNetwork returns an empty fake network.
func NewFakeNetwork() *FakeNetwork {
	return &FakeNetwork{}
}

// Join creates a new Fake transport attached to net with the given
// node id (0 picks the next unused small id, deterministic within a
// test run rather than random).
func (net *FakeNetwork) Join(nodeID NodeID) *Fake {
	net.mu.Lock()
	defer net.mu.Unlock()
	if nodeID == 0 {
		used := make(map[NodeID]bool, len(net.peers))
		for _, p := range net.peers {
			used[p.nodeID] = true
		}
		for nodeID = 1; used[nodeID]; nodeID++ {
		}
	}
	t := &Fake{
		nodeID:        nodeID,
		net:           net,
		datagrams:     make(chan []byte, 256),
		announcements: make(chan []byte, 256),
		closed:        make(chan struct{}),
	}
	net.peers = append(net.peers, t)
	return t
}

func (net *FakeNetwork) broadcast(from *Fake, datagram []byte, announce bool) {
	net.mu.Lock()
	peers := append([]*Fake(nil), net.peers...)
	net.mu.Unlock()
	for _, p := range peers {
		ch := p.datagrams
		if announce {
			ch = p.announcements
		}
		select {
		case <-p.closed:
			continue
		default:
		}
		select {
		case ch <- datagram:
		default:
		}
	}
}

// NodeID implements Transport.
func (t *Fake) NodeID() NodeID { return t.nodeID }

// SendDatagram implements Transport.
func (t *Fake) SendDatagram(ctx context.Context, datagram []byte) error {
	select {
	case <-t.closed:
		return ErrClosed
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	t.net.broadcast(t, datagram, false)
	return nil
}

// SendAnnouncement implements Transport.
func (t *Fake) SendAnnouncement(ctx context.Context, datagram []byte) error {
	select {
	case <-t.closed:
		return ErrClosed
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	t.net.broadcast(t, datagram, true)
	return nil
}

// Datagrams implements Transport.
func (t *Fake) Datagrams() <-chan []byte { return t.datagrams }

// Announcements implements Transport.
func (t *Fake) Announcements() <-chan []byte { return t.announcements }

// Close implements Transport: later sends return ErrClosed and the
// network stops delivering to t. The Datagrams and Announcements
// channels are left open, not closed.
func (t *Fake) Close() error {
	t.closeOnce.Do(func() {
		close(t.closed)
	})
	return nil
}
