// Package dispatch implements the per-connection dispatcher state machine of
// spec §4.4/§4.5: the core of the system. A Dispatcher owns one transport and
// drives two concurrent directions — a read loop demultiplexing inbound
// frames into head messages and body chunks, and a write loop draining
// outbound messages and interleaving their body streams — coordinated
// through a pluggable Component that is either a user Handler (server side)
// or a client's pending-request table (client side), exactly as spec §6's
// "Dispatch trait" describes.
//
// Go has no poll-based futures, so the single tick function of the original
// design (flush → read → write → flush → shutdown-test, re-entered whenever
// a future becomes ready) is expressed as two goroutines blocking on channel
// operations instead of one function re-polling non-blocking calls — the
// same "coroutine-style control flow" spec §9 calls for, built from
// goroutines rather than a hand-rolled state machine. This mirrors how the
// teacher's transport.MsgStream runs a dedicated sendLoop goroutine reading
// from a work queue (transport/sendmsg.go) alongside a background collector
// goroutine (transport/collect.go) rather than polling manually.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package dispatch

import (
	"context"
	"time"

	"github.com/netproto/dispatch/frame"
	"github.com/netproto/dispatch/metrics"
)

// Handler maps one request message to a response message, the "user-supplied
// request handler" of spec §1. Implementations must be safe for concurrent
// use: a server dispatcher may invoke Call for several in-flight requests at
// once (bounded to 32 concurrently for multiplex, per spec §3/§5).
type Handler interface {
	Call(ctx context.Context, req frame.Message) (frame.Message, error)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, req frame.Message) (frame.Message, error)

func (f HandlerFunc) Call(ctx context.Context, req frame.Message) (frame.Message, error) {
	return f(ctx, req)
}

// PipelineComponent is the pipeline half of spec §6's Dispatch trait: the
// sub-component the pipeline dispatcher hands inbound items to and polls
// outbound items from. A server's component wraps a Handler and an ordered
// in-flight queue; a client's component wraps a proxy.Proxy and matches
// responses to requests strictly in arrival order.
type PipelineComponent interface {
	// Dispatch hands one inbound item to the sub-component: a request (server)
	// or a response (client), or — when msgErr != nil — a protocol Error
	// frame completing the currently open head. A non-nil return is fatal
	// and terminates the connection (spec §7 item 2).
	Dispatch(ctx context.Context, msg frame.Message, msgErr error) error

	// Next returns the next outbound item: a response (server) or a request
	// (client). ok == false means the sub-component is exhausted and will
	// never produce another item — the shutdown trigger of spec §9
	// "Sub-component exhaustion". A non-nil err aborts the connection.
	Next(ctx context.Context) (msg frame.Message, msgErr error, ok bool, err error)

	// HasInFlight reports whether the in-flight table is non-empty, one of
	// the three conditions gating normal dispatcher termination (spec §3
	// Lifecycle).
	HasInFlight() bool

	// InFlightCount reports the in-flight table's current size, fed to the
	// in_flight_requests gauge (metrics.Set.InFlight) after every table
	// mutation.
	InFlightCount() int

	// NoMoreInbound is called exactly once, when the read direction observes
	// the remote side's Done frame or end-of-stream — letting a server
	// component know no further requests will ever arrive so it can report
	// Next exhaustion once its queue drains.
	NoMoreInbound()

	// Close fails every entry still in the in-flight table with err (spec
	// §3 Lifecycle: "pending requesters are failed with a broken-pipe
	// error"; spec boundary scenario 6).
	Close(err error)
}

// MultiplexComponent is the multiplex counterpart of PipelineComponent.
// Responses may be produced out of order; Next must return the first
// in-flight entry found ready, breaking ties by insertion order (spec §4.5
// point 4).
type MultiplexComponent interface {
	Dispatch(ctx context.Context, id uint64, solo bool, msg frame.Message, msgErr error) error
	Next(ctx context.Context) (id uint64, msg frame.Message, msgErr error, ok bool, err error)

	// PollReady blocks until the component can accept another non-solo
	// request (the multiplex server's 32-slot cap, spec §4.5 point 5) or ctx
	// is done. A client component's PollReady always returns immediately
	// (spec §5: "no cap yet" on the client in-flight map).
	PollReady(ctx context.Context) error

	// Cancel is currently a no-op (spec §6, §9 "Cancellation on the wire"):
	// the source never transmits cancellation, and this runtime does not
	// invent a wire message for it.
	Cancel(id uint64)

	HasInFlight() bool
	InFlightCount() int
	NoMoreInbound()
	Close(err error)
}

// Options configures a PipelineDispatcher or MultiplexDispatcher. The zero
// value is usable; set individual fields to override the defaults.
type Options struct {
	// SessionID labels log lines and metrics for this connection; defaults
	// to a generated id if empty (see dispatch.NewSessionID).
	SessionID string

	// BodyBufferCapacity bounds how many chunks a streaming body buffers
	// before the producing side of body.Pair blocks. Defaults to 0
	// (rendezvous).
	BodyBufferCapacity int

	// MultiplexCap is the server's concurrent in-flight cap (spec §3/§5).
	// Defaults to 32 if zero.
	MultiplexCap int64

	// StarvationTimeout is the multiplex frame-buffer starvation guard's
	// timeout (spec §4.5/§9). Defaults to watchdog.DefaultTimeout; a
	// negative value disables the guard.
	StarvationTimeout time.Duration

	// Metrics, if non-nil, receives per-connection instrumentation.
	Metrics *metrics.Set
}

func (o Options) multiplexCap() int64 {
	if o.MultiplexCap <= 0 {
		return 32
	}
	return o.MultiplexCap
}
