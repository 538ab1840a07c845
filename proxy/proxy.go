// Package proxy implements the client-side façade of spec §4.3: a
// handler-shaped object the user application holds, whose Call enqueues a
// request onto an in-process queue shared with exactly one dispatcher and
// returns a channel the eventual response arrives on.
//
// Grounded on the teacher's transport.Stream.Send (transport/api.go): enqueue
// onto a buffered work channel and return, with the dispatcher's own
// goroutine the only consumer. original_source/src/util/client_proxy.rs adds
// the detail that a full queue fails synchronously while a dispatcher that
// has already exited fails asynchronously through the response channel —
// both paths are preserved below as ErrQueueFull and xerr.ErrBrokenPipe
// respectively.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package proxy

import (
	"context"
	"sync"

	"github.com/netproto/dispatch/frame"
	"github.com/netproto/dispatch/internal/xerr"
)

// Result is what a Call eventually resolves to.
type Result struct {
	Response frame.Message
	Err      error
}

// Call is one enqueued request, handed to the bound dispatcher's client
// component through Dequeue and resolved exactly once through Fulfill.
type Call struct {
	Request frame.Message
	result  chan Result
	once    sync.Once
}

// Fulfill resolves the call. Safe to call at most meaningfully once; later
// calls are no-ops so a racing Close and response delivery cannot panic.
func (c *Call) Fulfill(resp frame.Message, err error) {
	c.once.Do(func() {
		c.result <- Result{Response: resp, Err: err}
		close(c.result)
	})
}

// Proxy is the handler-shaped façade of spec §4.3. The zero value is not
// usable; build one with New.
type Proxy struct {
	queue chan *Call

	closeOnce sync.Once
	closed    chan struct{}
}

// New builds a Proxy backed by a queue of the given capacity — the proxy's
// own back-pressure primitive (spec §4.3: "If the queue is currently full
// the proxy fails the call").
func New(capacity int) *Proxy {
	return &Proxy{queue: make(chan *Call, capacity), closed: make(chan struct{})}
}

// Call enqueues (request, completer) and returns a channel the response will
// arrive on exactly once. Returns xerr.ErrQueueFull synchronously if the
// queue has no room; if the bound dispatcher has already exited, the
// returned channel instead resolves to xerr.ErrBrokenPipe once the
// dispatcher's shutdown path fails every still-pending call.
func (p *Proxy) Call(ctx context.Context, req frame.Message) (<-chan Result, error) {
	call := &Call{Request: req, result: make(chan Result, 1)}
	select {
	case <-p.closed:
		call.Fulfill(frame.Message{}, xerr.ErrBrokenPipe)
		return call.result, nil
	default:
	}
	select {
	case p.queue <- call:
		return call.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
		return nil, xerr.ErrQueueFull
	}
}

// Close drops the proxy's interest in the connection (spec §4.8: "dropping
// the proxy closes the request queue, which drains naturally through the
// inbound exhausted path"). Safe to call more than once.
func (p *Proxy) Close() {
	p.closeOnce.Do(func() {
		close(p.closed)
		close(p.queue)
	})
}

// Dequeue is consumed by the bound dispatcher's client component only: it
// blocks for the next enqueued Call, returning ok == false once the proxy has
// been closed and the queue fully drained (spec §9 "sub-component
// exhaustion" from the client side).
func (p *Proxy) Dequeue(ctx context.Context) (*Call, bool) {
	select {
	case call, ok := <-p.queue:
		return call, ok
	case <-ctx.Done():
		return nil, false
	}
}
