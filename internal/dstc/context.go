// Copyright (C) 2026 The DSTC Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package dstc wires the codec, registry, batcher, dispatcher and
// transport together into a single running call plane: it owns the
// peer-liveness sweep and periodic re-announcement, and exposes the
// setup/teardown and event-integration surface a host process drives.
package dstc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/dstc-go/dstc/internal/batcher"
	"github.com/dstc-go/dstc/internal/config"
	"github.com/dstc-go/dstc/internal/dispatcher"
	"github.com/dstc-go/dstc/internal/registry"
	"github.com/dstc-go/dstc/pkg/log"
	"github.com/dstc-go/dstc/pkg/transport"
	"github.com/dstc-go/dstc/pkg/wire"
)

// DefaultAnnounceInterval is how often a node re-announces its
// registered server-function names; Setup and Setup2 always use this
// interval. A peer that already knows this node's names does
// not need the repeat, but re-announcement keeps newcomers and
// restarted peers in sync without any request on their part.
const DefaultAnnounceInterval = 30 * time.Second

// DefaultLivenessWindow is how long a peer may go without
// re-announcing before the stale-peer sweep forgets it.
const DefaultLivenessWindow = 90 * time.Second

// Context is process-wide DSTC state: the registries, the batcher,
// the dispatcher, the transport handle and the peer-availability
// view. Construct with Setup or Setup2; tear down with Close.
type Context struct {
	cfg       config.Config
	transport transport.Transport
	reg       *registry.Registry
	batch     *batcher.Batcher
	disp      *dispatcher.Dispatcher
	metrics   *metrics
	promReg   *prometheus.Registry
	sched     gocron.Scheduler

	livenessWindow time.Duration

	ready chan struct{}

	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Setup initializes the transport described by cfg, assigns or
// accepts a node id, and starts serving inbound calls. It is the entry
// point a host process calls once at startup. Registration stays open
// afterwards: RegisterClient and RegisterServer may still be called on
// the returned Context.
func Setup(cfg config.Config) (*Context, error) {
	t, err := transport.Dial(transport.Config{
		NodeID:        transport.NodeID(cfg.NodeID),
		Group:         cfg.MulticastGroup,
		Address:       cfg.NATS.Address,
		Username:      cfg.NATS.Username,
		Password:      cfg.NATS.Password,
		CredsFilePath: cfg.NATS.CredsFilePath,
	})
	if err != nil {
		return nil, fmt.Errorf("dstc: setup failed: %w", err)
	}
	ctx, err := Setup2(cfg, t)
	if err != nil {
		t.Close()
		return nil, err
	}
	return ctx, nil
}

// Setup2 is Setup with a caller-supplied Transport, for hosts that
// already own a connection (or tests driving a fake in-process
// network) instead of letting DSTC dial one itself.
func Setup2(cfg config.Config, t transport.Transport) (*Context, error) {
	if t == nil {
		return nil, fmt.Errorf("dstc: setup2 requires a non-nil transport")
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("dstc: creating scheduler failed: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	promReg := prometheus.NewRegistry()

	c := &Context{
		cfg:            cfg,
		transport:      t,
		reg:            registry.New(cfg.MaxConnections),
		metrics:        newMetrics(promReg),
		promReg:        promReg,
		sched:          sched,
		livenessWindow: DefaultLivenessWindow,
		ready:          make(chan struct{}, 1),
		runCtx:         runCtx,
		cancel:         cancel,
	}

	// Cap outgoing datagrams at 200/s with a small burst so a host that
	// flushes aggressively (e.g. in a tight loop) cannot saturate the
	// transport; buffered mode naturally stays under this by batching.
	limiter := rate.NewLimiter(rate.Limit(200), 20)
	c.batch = batcher.New(c.sendDatagram, limiter)
	c.disp = dispatcher.New(c.reg, t.NodeID(), dispatcher.Metrics{
		RecordSkipped:    func(name string) { c.metrics.recordsSkipped.WithLabelValues(name).Inc() },
		CallbackDropped:  func(wire.CallbackHandle) { c.metrics.callbacksDropped.Inc() },
		RecordDispatched: func() { c.metrics.callsReceived.Inc() },
		DatagramSelfLoop: func() { c.metrics.selfLoops.Inc() },
	})

	log.SetNodeID(uint32(t.NodeID()))

	c.wg.Add(2)
	go c.pumpDatagrams()
	go c.pumpAnnouncements()

	if _, err := sched.NewJob(
		gocron.DurationJob(DefaultAnnounceInterval),
		gocron.NewTask(c.announce),
	); err != nil {
		cancel()
		return nil, fmt.Errorf("dstc: scheduling announcement job failed: %w", err)
	}
	if _, err := sched.NewJob(
		gocron.DurationJob(c.livenessWindow/3),
		gocron.NewTask(c.sweepStalePeers),
	); err != nil {
		cancel()
		return nil, fmt.Errorf("dstc: scheduling liveness sweep failed: %w", err)
	}
	sched.Start()

	c.announce()
	log.Infof("dstc: node %d joined group %q", t.NodeID(), cfg.MulticastGroup)
	return c, nil
}

// NodeID returns the node id this process was assigned.
func (c *Context) NodeID() transport.NodeID { return c.transport.NodeID() }

// MetricsRegistry returns the Prometheus registry holding this
// Context's counters and gauges, for a host to expose on its own
// /metrics endpoint (see internal/debugapi).
func (c *Context) MetricsRegistry() *prometheus.Registry { return c.promReg }

// Peers returns the currently tracked peer node ids.
func (c *Context) Peers() []transport.NodeID { return c.reg.Peers() }

// ServerNames returns the names registered on the server side.
func (c *Context) ServerNames() []string { return c.reg.ServerNames() }

// Ready returns a channel that receives a value whenever the
// dispatcher has processed at least one inbound datagram or
// announcement since it was last drained. A host integrating DSTC
// into its own event loop can select on this instead of polling.
func (c *Context) Ready() <-chan struct{} { return c.ready }

// NextTimeout reports how long the host may safely block before DSTC
// next wants attention: the shorter of the announcement interval and
// the liveness sweep period, so a host driving its own select loop
// never sleeps past the point where a scheduled job needs to run.
func (c *Context) NextTimeout() time.Duration {
	sweep := c.livenessWindow / 3
	if sweep < DefaultAnnounceInterval {
		return sweep
	}
	return DefaultAnnounceInterval
}

// ProcessEvents blocks until either a dispatch happens or timeout
// elapses, whichever is first (timeout <= 0 means wait indefinitely).
// It exists for hosts that prefer a single polling call over reading
// Ready() directly.
func (c *Context) ProcessEvents(timeout time.Duration) error {
	if timeout <= 0 {
		select {
		case <-c.ready:
		case <-c.runCtx.Done():
			return c.runCtx.Err()
		}
		return nil
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-c.ready:
	case <-timer.C:
	case <-c.runCtx.Done():
		return c.runCtx.Err()
	}
	return nil
}

// RegisterClient installs name as an outbound call this process may
// make. It must be called before the first Call with that name.
func (c *Context) RegisterClient(name string) error {
	return c.reg.RegisterClient(name)
}

// RegisterServer installs handler as the decoder+dispatcher for
// inbound calls named name.
func (c *Context) RegisterServer(name string, handler registry.ServerHandler) error {
	return c.reg.RegisterServer(name, handler)
}

// ActivateCallback allocates a fresh callback handle bound to handler,
// for embedding in an outgoing call via CallbackRef.
func (c *Context) ActivateCallback(handler registry.CallbackHandler) wire.CallbackHandle {
	return c.reg.ActivateCallback(handler)
}

// CancelCallback unregisters a previously activated callback.
func (c *Context) CancelCallback(handle wire.CallbackHandle) {
	c.reg.CancelCallback(handle)
}

// RemoteFunctionAvailable reports whether some tracked peer has
// announced it serves name.
func (c *Context) RemoteFunctionAvailable(name string) bool {
	return c.reg.RemoteFunctionAvailable(name)
}

// BufferClientCalls switches the batcher from Immediate to Buffered.
func (c *Context) BufferClientCalls() { c.batch.BufferClientCalls() }

// FlushClientCalls emits the current pending datagram, if any.
func (c *Context) FlushClientCalls() error {
	return c.batch.FlushClientCalls(c.runCtx)
}

// UnbufferClientCalls flushes and switches back to Immediate.
func (c *Context) UnbufferClientCalls() error {
	return c.batch.UnbufferClientCalls(c.runCtx)
}

// Call encodes args in order and hands the resulting Call Record
// named name to the batcher. A single call whose encoded size exceeds
// the datagram capacity returns ErrEncodeOverflow without emitting
// anything.
func (c *Context) Call(name string, args ...wire.Arg) error {
	size := wire.EncodedSize(args)
	if n := wire.RecordSize(name, size); n > batcher.Capacity {
		return fmt.Errorf("%w: call %q needs %d bytes > %d byte capacity", batcher.ErrEncodeOverflow, name, n, batcher.Capacity)
	}
	payload := make([]byte, size)
	wire.Encode(payload, args)
	record, err := wire.EncodeRecord(nil, name, payload)
	if err != nil {
		return fmt.Errorf("dstc: encoding call %q: %w", name, err)
	}
	if err := c.batch.AppendRecord(c.runCtx, record); err != nil {
		return err
	}
	c.metrics.callsSent.Inc()
	return nil
}

// CallCallback invokes a callback previously activated by a peer,
// addressed by the handle that peer embedded in an earlier call.
func (c *Context) CallCallback(handle wire.CallbackHandle, args ...wire.Arg) error {
	record, err := wire.EncodeCallbackRecord(nil, handle, args)
	if err != nil {
		return fmt.Errorf("dstc: encoding callback %d: %w", handle, err)
	}
	if err := c.batch.AppendRecord(c.runCtx, record); err != nil {
		return err
	}
	c.metrics.callsSent.Inc()
	return nil
}

// Announce immediately (re-)broadcasts this process's registered
// server-function names. Setup2 calls this once automatically; a host
// may call it again after registering additional server functions at
// runtime instead of waiting for the periodic re-announcement job.
func (c *Context) Announce() { c.announce() }

// Close flushes the batcher, stops the scheduler, cancels the
// dispatch pumps and closes the transport. Calling it is not required
// for correctness of peers: an unresponsive node is simply pruned by
// their own stale-peer sweep once its liveness window elapses.
func (c *Context) Close() error {
	var errs []error
	if err := c.batch.FlushClientCalls(context.Background()); err != nil {
		errs = append(errs, err)
	}
	if err := c.sched.Shutdown(); err != nil {
		errs = append(errs, err)
	}
	c.cancel()
	c.wg.Wait()
	if err := c.transport.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("dstc: close: %v", errs)
	}
	return nil
}

func (c *Context) sendDatagram(ctx context.Context, datagram []byte) error {
	return c.transport.SendDatagram(ctx, wire.EncodeDatagramHeader(uint32(c.transport.NodeID()), datagram))
}

func (c *Context) announce() {
	body, err := wire.EncodeAnnouncement(c.reg.ServerNames())
	if err != nil {
		log.Errorf("dstc: encoding announcement failed: %v", err)
		return
	}
	datagram := wire.EncodeDatagramHeader(uint32(c.transport.NodeID()), body)
	if err := c.transport.SendAnnouncement(c.runCtx, datagram); err != nil {
		log.Warnf("dstc: sending announcement failed: %v", err)
	}
}

func (c *Context) sweepStalePeers() {
	stale := c.reg.PruneStale(c.livenessWindow)
	for _, id := range stale {
		log.Debugf("dstc: peer %d pruned, no announcement within %s", id, c.livenessWindow)
	}
	c.metrics.peerCount.Set(float64(len(c.reg.Peers())))
}

func (c *Context) signalReady() {
	select {
	case c.ready <- struct{}{}:
	default:
	}
}

func (c *Context) pumpDatagrams() {
	defer c.wg.Done()
	in := c.transport.Datagrams()
	for {
		select {
		case <-c.runCtx.Done():
			return
		case datagram, ok := <-in:
			if !ok {
				return
			}
			c.disp.DispatchDatagram(datagram)
			c.signalReady()
		}
	}
}

func (c *Context) pumpAnnouncements() {
	defer c.wg.Done()
	in := c.transport.Announcements()
	for {
		select {
		case <-c.runCtx.Done():
			return
		case datagram, ok := <-in:
			if !ok {
				return
			}
			c.disp.DispatchAnnouncement(datagram)
			c.metrics.peerCount.Set(float64(len(c.reg.Peers())))
			c.signalReady()
		}
	}
}
