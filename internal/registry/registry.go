// Copyright (C) 2026 The DSTC Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package registry implements the DSTC Function Registry: the
// outbound (client) and inbound (server) name-to-handler mappings, the
// callback registry, and the best-effort peer view built from
// announcement datagrams.
package registry

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dstc-go/dstc/pkg/transport"
	"github.com/dstc-go/dstc/pkg/wire"
)

// ErrRegistrationConflict is returned when a name is registered twice
// on the same side (client or server) of a process. This is meant to
// be fatal at startup; callers decide how to react.
var ErrRegistrationConflict = errors.New("registry: duplicate registration")

// ServerHandler decodes and acts on one inbound call's payload. origin
// is the sending node's id, useful for handlers that need to address
// a reply back (e.g. by activating a callback and including the
// handle in a subsequent client call).
type ServerHandler func(origin transport.NodeID, payload []byte) error

// CallbackHandler decodes and acts on one inbound callback
// invocation's argument payload (the handle itself has already been
// stripped by the dispatcher).
type CallbackHandler func(origin transport.NodeID, payload []byte) error

// Registry holds the process-wide client/server/callback mappings and
// the peer view. The zero value is not usable; construct with New.
type Registry struct {
	maxConnections int

	mu         sync.Mutex
	clients    map[string]struct{}
	servers    map[string]ServerHandler
	callbacks  map[wire.CallbackHandle]CallbackHandler
	peers      map[transport.NodeID]map[string]struct{}
	peerOrder  []transport.NodeID
	lastSeen   map[transport.NodeID]time.Time

	nextHandle atomic.Uint64
}

// New returns an empty Registry. maxConnections bounds the number of
// distinct peers tracked in the peer view; 0 means unbounded.
func New(maxConnections int) *Registry {
	return &Registry{
		maxConnections: maxConnections,
		clients:        make(map[string]struct{}),
		servers:        make(map[string]ServerHandler),
		callbacks:      make(map[wire.CallbackHandle]CallbackHandler),
		peers:          make(map[transport.NodeID]map[string]struct{}),
		lastSeen:       make(map[transport.NodeID]time.Time),
	}
}

// RegisterClient installs name as an outbound call the process is
// allowed to make. Registration is rejected once a name has already
// been registered on the client side.
func (r *Registry) RegisterClient(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.clients[name]; exists {
		return fmt.Errorf("%w: client %q already registered", ErrRegistrationConflict, name)
	}
	r.clients[name] = struct{}{}
	return nil
}

// RegisterServer installs handler as the decoder+dispatcher for
// inbound calls named name.
func (r *Registry) RegisterServer(name string, handler ServerHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.servers[name]; exists {
		return fmt.Errorf("%w: server %q already registered", ErrRegistrationConflict, name)
	}
	r.servers[name] = handler
	return nil
}

// ActivateCallback allocates a fresh opaque handle bound to handler
// and returns it for embedding in an outgoing call's Callback
// Reference argument. Handles are monotonically increasing counters,
// never raw memory addresses — a remote peer only ever sees the
// integer, so there is nothing for it to dereference.
func (r *Registry) ActivateCallback(handler CallbackHandler) wire.CallbackHandle {
	h := wire.CallbackHandle(r.nextHandle.Add(1))
	r.mu.Lock()
	r.callbacks[h] = handler
	r.mu.Unlock()
	return h
}

// CancelCallback removes a previously activated callback. Inbound
// records naming a cancelled handle are dropped exactly like records
// naming a handle that was never registered.
func (r *Registry) CancelCallback(handle wire.CallbackHandle) {
	r.mu.Lock()
	delete(r.callbacks, handle)
	r.mu.Unlock()
}

// LookupServer returns the handler registered for name, if any.
func (r *Registry) LookupServer(name string) (ServerHandler, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.servers[name]
	return h, ok
}

// LookupCallback returns the handler registered for handle, if any.
func (r *Registry) LookupCallback(handle wire.CallbackHandle) (CallbackHandler, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.callbacks[handle]
	return h, ok
}

// ServerNames returns the names registered on the server side, for
// use building this process's own announcement datagram.
func (r *Registry) ServerNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.servers))
	for name := range r.servers {
		names = append(names, name)
	}
	return names
}

// ApplyAnnouncement records that origin has announced it serves
// names, updating the peer view used by RemoteFunctionAvailable. If
// maxConnections is reached and origin is not already known, the
// announcement is dropped and logged by the caller.
func (r *Registry) ApplyAnnouncement(origin transport.NodeID, names []string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, known := r.peers[origin]
	if !known {
		if r.maxConnections > 0 && len(r.peers) >= r.maxConnections {
			return false
		}
		set = make(map[string]struct{}, len(names))
		r.peers[origin] = set
		r.peerOrder = append(r.peerOrder, origin)
	} else {
		for k := range set {
			delete(set, k)
		}
	}
	for _, n := range names {
		set[n] = struct{}{}
	}
	r.lastSeen[origin] = time.Now()
	return true
}

// ForgetPeer removes origin from the peer view, e.g. after a
// liveness sweep decides it has gone stale.
func (r *Registry) ForgetPeer(origin transport.NodeID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.peers[origin]; !ok {
		return
	}
	delete(r.peers, origin)
	delete(r.lastSeen, origin)
	for i, id := range r.peerOrder {
		if id == origin {
			r.peerOrder = append(r.peerOrder[:i], r.peerOrder[i+1:]...)
			break
		}
	}
}

// PruneStale forgets every peer whose last announcement is older than
// window and returns the node ids it removed, so a caller (the
// periodic liveness sweep in internal/dstc) can log what it dropped.
func (r *Registry) PruneStale(window time.Duration) []transport.NodeID {
	cutoff := time.Now().Add(-window)
	r.mu.Lock()
	var stale []transport.NodeID
	for id, seen := range r.lastSeen {
		if seen.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	r.mu.Unlock()
	for _, id := range stale {
		r.ForgetPeer(id)
	}
	return stale
}

// Peers returns the currently tracked peer node ids, in the order
// they were first announced.
func (r *Registry) Peers() []transport.NodeID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]transport.NodeID, len(r.peerOrder))
	copy(out, r.peerOrder)
	return out
}

// RemoteFunctionAvailable reports whether at least one tracked peer
// has announced name. This is a best-effort liveness query, not a
// guarantee: a peer that just went silent stays "available" until the
// next stale-peer sweep catches up.
func (r *Registry) RemoteFunctionAvailable(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, set := range r.peers {
		if _, ok := set[name]; ok {
			return true
		}
	}
	return false
}
