// Copyright (C) 2026 The DSTC Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package transport defines the facade the call plane uses to reach
// the reliable multicast group: send a datagram, receive a datagram,
// and learn the local node id. The call plane never imports a
// messaging library directly; it only depends on the Transport
// interface below, so the codec, registry, batcher and dispatcher are
// exercised the same way against any conforming implementation.
package transport

import (
	"context"
	"errors"
)

// NodeID identifies a process within the call plane. It is the return
// address embedded in callback invocations and the value compared
// against an inbound record's origin for self-call suppression.
type NodeID uint32

// ErrClosed is returned by Send* once the transport has been closed.
var ErrClosed = errors.New("transport: closed")

// Transport abstracts the reliable-multicast group down to four
// operations: send a call datagram, send an announcement, receive
// each as a channel, and report the local node id. The call plane
// (batcher, dispatcher, context) is written entirely against this
// interface, never against a specific messaging library.
type Transport interface {
	// NodeID returns the node id assigned to this process, either
	// supplied at construction or picked at random.
	NodeID() NodeID

	// SendDatagram publishes a call datagram to every peer in the
	// group. Datagrams are fire-and-forget; a nil error only means
	// the local send path accepted the datagram, not that any peer
	// received it.
	SendDatagram(ctx context.Context, datagram []byte) error

	// SendAnnouncement publishes an announcement datagram on the
	// group's out-of-band announcement channel.
	SendAnnouncement(ctx context.Context, datagram []byte) error

	// Datagrams returns the channel of inbound call datagrams. The
	// channel is closed when the transport is closed.
	Datagrams() <-chan []byte

	// Announcements returns the channel of inbound announcement
	// datagrams. The channel is closed when the transport is closed.
	Announcements() <-chan []byte

	// Close releases the transport's resources. Subsequent sends
	// return ErrClosed.
	Close() error
}
