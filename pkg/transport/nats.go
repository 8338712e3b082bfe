// Copyright (C) 2026 The DSTC Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/dstc-go/dstc/pkg/log"
)

// Config configures a NATS-backed Transport: an explicit or random
// node id, a group name from which the underlying subjects are
// derived, plus the NATS endpoint and credentials.
type Config struct {
	// NodeID is the explicit node id, or 0 to assign one at random.
	NodeID NodeID
	// Group names the multicast group this node joins; it is used to
	// derive the NATS subjects carrying call and announcement
	// datagrams, so every process that configures the same Group
	// name is in the same call plane.
	Group string
	// Address is the NATS server address, e.g. "nats://localhost:4222".
	Address string
	// Username/Password authenticate via NATS user/password auth.
	Username string
	Password string
	// CredsFilePath authenticates via a NATS credentials file.
	CredsFilePath string
	// InboxSize bounds the inbound datagram channels; a slow consumer
	// drops datagrams once its channel is full rather than blocking
	// the NATS dispatch goroutine. Defaults to 256 if zero.
	InboxSize int
}

func (c Config) callsSubject() string {
	return fmt.Sprintf("dstc.%s.calls", c.Group)
}

func (c Config) announceSubject() string {
	return fmt.Sprintf("dstc.%s.announce", c.Group)
}

// NATSTransport is a Transport backed by NATS publish/subscribe
// subjects. A NATS subject is not IP multicast, but it gives every
// subscriber the same at-least-once, one-to-many fan-out the call
// plane depends on.
type NATSTransport struct {
	conn   *nats.Conn
	nodeID NodeID

	callsSubject     string
	announceSubject  string
	callSub          *nats.Subscription
	announceSub      *nats.Subscription

	datagrams     chan []byte
	announcements chan []byte

	closeOnce sync.Once
}

// Dial connects to the NATS server described by cfg, subscribes to
// the group's call and announcement subjects, and returns a ready
// Transport. The caller is responsible for calling Close.
func Dial(cfg Config) (*NATSTransport, error) {
	if cfg.Group == "" {
		return nil, fmt.Errorf("transport: Config.Group must not be empty")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("transport: Config.Address must not be empty")
	}
	inboxSize := cfg.InboxSize
	if inboxSize <= 0 {
		inboxSize = 256
	}

	var opts []nats.Option
	if cfg.Username != "" && cfg.Password != "" {
		opts = append(opts, nats.UserInfo(cfg.Username, cfg.Password))
	}
	if cfg.CredsFilePath != "" {
		opts = append(opts, nats.UserCredentials(cfg.CredsFilePath))
	}
	opts = append(opts, nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
		if err != nil {
			log.Warnf("transport: NATS disconnected: %v", err)
		}
	}))
	opts = append(opts, nats.ReconnectHandler(func(nc *nats.Conn) {
		log.Infof("transport: NATS reconnected to %s", nc.ConnectedUrl())
	}))
	opts = append(opts, nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
		log.Errorf("transport: NATS error: %v", err)
	}))

	conn, err := nats.Connect(cfg.Address, opts...)
	if err != nil {
		return nil, fmt.Errorf("transport: NATS connect failed: %w", err)
	}

	nodeID := cfg.NodeID
	if nodeID == 0 {
		nodeID = NodeID(rand.Uint32())
	}

	t := &NATSTransport{
		conn:            conn,
		nodeID:          nodeID,
		callsSubject:    cfg.callsSubject(),
		announceSubject: cfg.announceSubject(),
		datagrams:       make(chan []byte, inboxSize),
		announcements:   make(chan []byte, inboxSize),
	}

	t.callSub, err = conn.Subscribe(t.callsSubject, func(msg *nats.Msg) {
		select {
		case t.datagrams <- msg.Data:
		default:
			log.Warnf("transport: dropping call datagram, inbox full (subject %s)", t.callsSubject)
		}
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("transport: subscribe to %q failed: %w", t.callsSubject, err)
	}

	t.announceSub, err = conn.Subscribe(t.announceSubject, func(msg *nats.Msg) {
		select {
		case t.announcements <- msg.Data:
		default:
			log.Warnf("transport: dropping announcement, inbox full (subject %s)", t.announceSubject)
		}
	})
	if err != nil {
		t.callSub.Unsubscribe()
		conn.Close()
		return nil, fmt.Errorf("transport: subscribe to %q failed: %w", t.announceSubject, err)
	}

	log.Infof("transport: node %d joined group %q via %s", nodeID, cfg.Group, cfg.Address)
	return t, nil
}

// NodeID implements Transport.
func (t *NATSTransport) NodeID() NodeID { return t.nodeID }

// SendDatagram implements Transport.
func (t *NATSTransport) SendDatagram(ctx context.Context, datagram []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.conn.IsClosed() {
		return ErrClosed
	}
	if err := t.conn.Publish(t.callsSubject, datagram); err != nil {
		return fmt.Errorf("transport: publish to %q failed: %w", t.callsSubject, err)
	}
	return nil
}

// SendAnnouncement implements Transport.
func (t *NATSTransport) SendAnnouncement(ctx context.Context, datagram []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.conn.IsClosed() {
		return ErrClosed
	}
	if err := t.conn.Publish(t.announceSubject, datagram); err != nil {
		return fmt.Errorf("transport: publish to %q failed: %w", t.announceSubject, err)
	}
	return nil
}

// Datagrams implements Transport.
func (t *NATSTransport) Datagrams() <-chan []byte { return t.datagrams }

// Announcements implements Transport.
func (t *NATSTransport) Announcements() <-chan []byte { return t.announcements }

// Close implements Transport.
func (t *NATSTransport) Close() error {
	t.closeOnce.Do(func() {
		if t.callSub != nil {
			t.callSub.Unsubscribe()
		}
		if t.announceSub != nil {
			t.announceSub.Unsubscribe()
		}
		t.conn.Close()
		close(t.datagrams)
		close(t.announcements)
		log.Info("transport: closed")
	})
	return nil
}
