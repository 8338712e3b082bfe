// Copyright (C) 2026 The DSTC Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package dstc

import "github.com/prometheus/client_golang/prometheus"

// metrics holds the Prometheus collectors the call plane exposes for
// an operator to observe it: a handful of counters and a gauge,
// registered once at Setup and updated from the dispatcher's hooks.
type metrics struct {
	callsSent        prometheus.Counter
	callsReceived    prometheus.Counter
	recordsSkipped   *prometheus.CounterVec
	callbacksDropped prometheus.Counter
	selfLoops        prometheus.Counter
	peerCount        prometheus.Gauge
}

// newMetrics builds the collectors and, if reg is non-nil, registers
// them. Passing a nil registry is useful in tests that construct a
// Context without wanting to pollute the default Prometheus registry.
func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		callsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dstc",
			Name:      "calls_sent_total",
			Help:      "Total number of Call Records appended to an outgoing datagram.",
		}),
		callsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dstc",
			Name:      "calls_received_total",
			Help:      "Total number of Call Records dispatched to a local function.",
		}),
		recordsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dstc",
			Name:      "records_skipped_total",
			Help:      "Inbound records naming an unregistered server function, by name.",
		}, []string{"name"}),
		callbacksDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dstc",
			Name:      "callbacks_dropped_total",
			Help:      "Inbound callback records naming an unregistered or cancelled handle.",
		}),
		selfLoops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dstc",
			Name:      "self_loops_total",
			Help:      "Datagrams suppressed because their origin is this process's own node id.",
		}),
		peerCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dstc",
			Name:      "peers",
			Help:      "Number of remote node ids currently tracked in the peer view.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.callsSent, m.callsReceived, m.recordsSkipped, m.callbacksDropped, m.selfLoops, m.peerCount)
	}
	return m
}
