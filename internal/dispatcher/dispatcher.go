// Copyright (C) 2026 The DSTC Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package dispatcher implements the DSTC Dispatcher: the inbound-side
// demultiplexer that splits a datagram into Call Records and routes
// each to a registered server function or callback.
package dispatcher

import (
	"context"
	"sync"

	"github.com/dstc-go/dstc/internal/registry"
	"github.com/dstc-go/dstc/pkg/log"
	"github.com/dstc-go/dstc/pkg/transport"
	"github.com/dstc-go/dstc/pkg/wire"
)

// Metrics lets a caller observe dispatch outcomes without the
// dispatcher importing a metrics library directly; internal/dstc
// wires these hooks to Prometheus counters. A nil hook is ignored.
type Metrics struct {
	RecordSkipped    func(name string)
	CallbackDropped  func(handle wire.CallbackHandle)
	RecordDispatched func()
	DatagramSelfLoop func()
}

// Dispatcher routes inbound datagrams to the local functions
// registered in reg. The zero value is not usable; construct with New.
type Dispatcher struct {
	reg       *registry.Registry
	localNode transport.NodeID
	metrics   Metrics
}

// New returns a Dispatcher that routes into reg, suppressing records
// whose origin is localNode.
func New(reg *registry.Registry, localNode transport.NodeID, metrics Metrics) *Dispatcher {
	return &Dispatcher{reg: reg, localNode: localNode, metrics: metrics}
}

// Run reads datagrams from in until it is closed or ctx is cancelled,
// fanning dispatch work out across workers goroutines. Call datagrams
// from independent senders may be processed out of order relative to
// each other; records within one datagram are always processed in
// append order.
func (d *Dispatcher) Run(ctx context.Context, in <-chan []byte, workers int) {
	if workers < 1 {
		workers = 1
	}
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case datagram, ok := <-in:
					if !ok {
						return
					}
					d.DispatchDatagram(datagram)
				}
			}
		}()
	}
	wg.Wait()
}

// DispatchDatagram processes one inbound call datagram synchronously:
// it strips the origin node id header, suppresses self-originated
// datagrams (multicast loopback), then walks every Call Record and
// routes it to a registered server function or callback. A record
// naming an unregistered function is logged and skipped; the
// remaining records in the datagram are still processed.
func (d *Dispatcher) DispatchDatagram(datagram []byte) {
	origin, body, err := wire.ParseDatagramHeader(datagram)
	if err != nil {
		log.Warnf("dispatcher: dropping malformed datagram: %v", err)
		return
	}
	originNode := transport.NodeID(origin)
	if originNode == d.localNode {
		if d.metrics.DatagramSelfLoop != nil {
			d.metrics.DatagramSelfLoop()
		}
		return
	}

	records, err := wire.ParseDatagram(body)
	if err != nil {
		log.Warnf("dispatcher: datagram from node %d ended with a malformed record: %v", originNode, err)
	}
	for _, rec := range records {
		d.dispatchRecord(originNode, rec)
	}
}

func (d *Dispatcher) dispatchRecord(origin transport.NodeID, rec wire.Record) {
	if rec.IsCallback() {
		handle, payload, err := rec.SplitCallbackPayload()
		if err != nil {
			log.Warnf("dispatcher: malformed callback record from node %d: %v", origin, err)
			return
		}
		handler, ok := d.reg.LookupCallback(handle)
		if !ok {
			log.Debugf("dispatcher: callback handle %d from node %d has no registered dispatcher", handle, origin)
			if d.metrics.CallbackDropped != nil {
				d.metrics.CallbackDropped(handle)
			}
			return
		}
		if err := handler(origin, payload); err != nil {
			log.Errorf("dispatcher: callback handle %d handler returned error: %v", handle, err)
		}
		if d.metrics.RecordDispatched != nil {
			d.metrics.RecordDispatched()
		}
		return
	}

	handler, ok := d.reg.LookupServer(rec.Name)
	if !ok {
		log.Debugf("dispatcher: record names unregistered server function %q, skipping", rec.Name)
		if d.metrics.RecordSkipped != nil {
			d.metrics.RecordSkipped(rec.Name)
		}
		return
	}
	if err := handler(origin, rec.Payload); err != nil {
		log.Errorf("dispatcher: server function %q handler returned error: %v", rec.Name, err)
	}
	if d.metrics.RecordDispatched != nil {
		d.metrics.RecordDispatched()
	}
}

// DispatchAnnouncement applies an inbound announcement datagram to
// the registry's peer view.
func (d *Dispatcher) DispatchAnnouncement(datagram []byte) {
	origin, body, err := wire.ParseDatagramHeader(datagram)
	if err != nil {
		log.Warnf("dispatcher: dropping malformed announcement: %v", err)
		return
	}
	originNode := transport.NodeID(origin)
	if originNode == d.localNode {
		return
	}
	names, err := wire.ParseAnnouncement(body)
	if err != nil {
		log.Warnf("dispatcher: announcement from node %d ended malformed: %v", originNode, err)
	}
	if !d.reg.ApplyAnnouncement(originNode, names) {
		log.Warnf("dispatcher: dropping announcement from node %d, peer view at capacity", originNode)
	}
}

// RunAnnouncements reads announcement datagrams from in until it is
// closed or ctx is cancelled.
func (d *Dispatcher) RunAnnouncements(ctx context.Context, in <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case datagram, ok := <-in:
			if !ok {
				return
			}
			d.DispatchAnnouncement(datagram)
		}
	}
}
