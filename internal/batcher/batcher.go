// Copyright (C) 2026 The DSTC Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package batcher implements the DSTC Call Batcher: the output-side
// accumulator that packs encoded Call Records into multicast
// datagrams, with immediate and buffered flush semantics.
package batcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// Capacity is the largest datagram the batcher will build, chosen so
// one datagram fits one IP-fragmented multicast packet budget.
const Capacity = 63 * 1024

// ErrEncodeOverflow is returned when a single Call Record's encoded
// size exceeds Capacity on its own; no datagram is emitted for it.
var ErrEncodeOverflow = errors.New("batcher: record exceeds datagram capacity")

// State is one of the batcher's two output modes.
type State int

const (
	// Immediate flushes every appended record as its own datagram.
	// This is the default state.
	Immediate State = iota
	// Buffered accumulates records into a pending datagram until
	// FlushClientCalls or UnbufferClientCalls is called.
	Buffered
)

// SendFunc hands a complete datagram to the transport.
type SendFunc func(ctx context.Context, datagram []byte) error

// Batcher is the call plane's output-side buffer. The zero value is
// not usable; construct with New.
type Batcher struct {
	send    SendFunc
	limiter *rate.Limiter

	mu      sync.Mutex
	state   State
	pending []byte
}

// New returns a Batcher in the Immediate state that hands completed
// datagrams to send. limiter, if non-nil, is waited on before every
// datagram send so a host that flushes aggressively cannot saturate
// the transport; pass nil to send unthrottled.
func New(send SendFunc, limiter *rate.Limiter) *Batcher {
	return &Batcher{send: send, limiter: limiter}
}

// State returns the batcher's current mode.
func (b *Batcher) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Pending returns the number of bytes currently buffered, awaiting a
// flush. Always 0 in the Immediate state.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// BufferClientCalls transitions Immediate -> Buffered. Subsequent
// appended records accumulate instead of being sent one at a time.
func (b *Batcher) BufferClientCalls() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Buffered
}

// UnbufferClientCalls flushes any pending datagram and transitions
// Buffered -> Immediate.
func (b *Batcher) UnbufferClientCalls(ctx context.Context) error {
	if err := b.FlushClientCalls(ctx); err != nil {
		return err
	}
	b.mu.Lock()
	b.state = Immediate
	b.mu.Unlock()
	return nil
}

// FlushClientCalls emits the current pending datagram, if any, and
// leaves the batcher in Buffered with an empty pending datagram. It
// is a no-op in the Immediate state, where nothing ever accumulates.
func (b *Batcher) FlushClientCalls(ctx context.Context) error {
	b.mu.Lock()
	if len(b.pending) == 0 {
		b.mu.Unlock()
		return nil
	}
	datagram := b.pending
	b.pending = nil
	b.mu.Unlock()

	return b.emit(ctx, datagram)
}

// AppendRecord queues one already-framed Call Record (built with
// wire.EncodeRecord or wire.EncodeCallbackRecord). In Immediate state
// the record is sent as its own one-record datagram right away; in
// Buffered state it accumulates, flushing the current pending
// datagram first if record would not fit.
func (b *Batcher) AppendRecord(ctx context.Context, record []byte) error {
	if len(record) > Capacity {
		return fmt.Errorf("%w: %d bytes > %d byte capacity", ErrEncodeOverflow, len(record), Capacity)
	}

	b.mu.Lock()
	if b.state == Immediate {
		b.mu.Unlock()
		return b.emit(ctx, record)
	}

	if len(b.pending)+len(record) > Capacity {
		datagram := b.pending
		b.pending = nil
		b.mu.Unlock()
		if len(datagram) > 0 {
			if err := b.emit(ctx, datagram); err != nil {
				return err
			}
		}
		b.mu.Lock()
	}
	b.pending = append(b.pending, record...)
	b.mu.Unlock()
	return nil
}

func (b *Batcher) emit(ctx context.Context, datagram []byte) error {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("batcher: rate limit wait failed: %w", err)
		}
	}
	return b.send(ctx, datagram)
}
