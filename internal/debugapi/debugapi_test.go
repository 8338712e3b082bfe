// Copyright (C) 2026 The DSTC Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package debugapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dstc-go/dstc/pkg/transport"
)

type fakeSource struct {
	nodeID  transport.NodeID
	peers   []transport.NodeID
	servers []string
	avail   map[string]bool
	reg     *prometheus.Registry
}

func (f *fakeSource) NodeID() transport.NodeID                { return f.nodeID }
func (f *fakeSource) Peers() []transport.NodeID                { return f.peers }
func (f *fakeSource) ServerNames() []string                    { return f.servers }
func (f *fakeSource) RemoteFunctionAvailable(name string) bool { return f.avail[name] }
func (f *fakeSource) MetricsRegistry() *prometheus.Registry     { return f.reg }

func newFakeSource() *fakeSource {
	return &fakeSource{
		nodeID:  7,
		peers:   []transport.NodeID{2, 3},
		servers: []string{"ping", "send_int"},
		avail:   map[string]bool{"ping": true},
		reg:     prometheus.NewRegistry(),
	}
}

func TestDebugRegistryReportsNodeAndServers(t *testing.T) {
	router := NewRouter(newFakeSource())
	rw := httptest.NewRecorder()
	router.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/debug/registry", nil))

	require.Equal(t, http.StatusOK, rw.Code)
	var body registryInfo
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &body))
	assert.Equal(t, uint32(7), body.NodeID)
	assert.ElementsMatch(t, []string{"ping", "send_int"}, body.Servers)
}

func TestDebugPeersReportsTrackedNodes(t *testing.T) {
	router := NewRouter(newFakeSource())
	rw := httptest.NewRecorder()
	router.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/debug/peers", nil))

	require.Equal(t, http.StatusOK, rw.Code)
	var body peersInfo
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &body))
	assert.ElementsMatch(t, []uint32{2, 3}, body.Peers)
}

func TestDebugAvailableRequiresNameParam(t *testing.T) {
	router := NewRouter(newFakeSource())
	rw := httptest.NewRecorder()
	router.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/debug/available", nil))
	assert.Equal(t, http.StatusBadRequest, rw.Code)
}

func TestDebugAvailableReflectsSource(t *testing.T) {
	router := NewRouter(newFakeSource())
	rw := httptest.NewRecorder()
	router.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/debug/available?name=ping", nil))

	require.Equal(t, http.StatusOK, rw.Code)
	var body map[string]bool
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &body))
	assert.True(t, body["available"])
}

func TestMetricsEndpointServesRegistry(t *testing.T) {
	router := NewRouter(newFakeSource())
	rw := httptest.NewRecorder()
	router.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rw.Code)
}
