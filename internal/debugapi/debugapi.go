// Copyright (C) 2026 The DSTC Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package debugapi exposes a small read-only HTTP surface over a DSTC
// Context's registries and peer view, for operators: the current
// node id and registered server names, the tracked peer list, a
// remote-availability lookup, and a Prometheus /metrics endpoint.
package debugapi

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dstc-go/dstc/pkg/log"
	"github.com/dstc-go/dstc/pkg/transport"
)

// Source is the subset of *dstc.Context the debug surface reads from.
// Defined as an interface here, rather than importing internal/dstc
// directly, so internal/dstc does not need to import internal/debugapi
// back (debugapi is a leaf consumer of the context, not a dependency
// of it).
type Source interface {
	NodeID() transport.NodeID
	Peers() []transport.NodeID
	ServerNames() []string
	RemoteFunctionAvailable(name string) bool
	MetricsRegistry() *prometheus.Registry
}

// registryInfo is the JSON body of GET /debug/registry.
type registryInfo struct {
	NodeID  uint32   `json:"node_id"`
	Servers []string `json:"servers"`
}

// peersInfo is the JSON body of GET /debug/peers.
type peersInfo struct {
	Peers []uint32 `json:"peers"`
}

// NewRouter builds the debug HTTP handler for src, wrapped with
// response compression, panic recovery, and access logging.
func NewRouter(src Source) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/debug/registry", func(rw http.ResponseWriter, req *http.Request) {
		writeJSON(rw, registryInfo{
			NodeID:  uint32(src.NodeID()),
			Servers: src.ServerNames(),
		})
	}).Methods(http.MethodGet)

	r.HandleFunc("/debug/peers", func(rw http.ResponseWriter, req *http.Request) {
		ids := src.Peers()
		out := make([]uint32, len(ids))
		for i, id := range ids {
			out[i] = uint32(id)
		}
		writeJSON(rw, peersInfo{Peers: out})
	}).Methods(http.MethodGet)

	r.HandleFunc("/debug/available", func(rw http.ResponseWriter, req *http.Request) {
		name := req.URL.Query().Get("name")
		if name == "" {
			http.Error(rw, "'name' query parameter missing", http.StatusBadRequest)
			return
		}
		writeJSON(rw, map[string]bool{"available": src.RemoteFunctionAvailable(name)})
	}).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.HandlerFor(src.MetricsRegistry(), promhttp.HandlerOpts{})).Methods(http.MethodGet)

	r.Use(handlers.CompressHandler)
	r.Use(handlers.RecoveryHandler(handlers.PrintRecoveryStack(true)))
	return handlers.CustomLoggingHandler(io.Discard, r, func(_ io.Writer, params handlers.LogFormatterParams) {
		log.Debugf("%s %s (%d, %dms)",
			params.Request.Method, params.URL.RequestURI(),
			params.StatusCode, time.Since(params.TimeStamp).Milliseconds())
	})
}

func writeJSON(rw http.ResponseWriter, v interface{}) {
	rw.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(rw).Encode(v); err != nil {
		log.Errorf("debugapi: encoding response failed: %v", err)
	}
}
