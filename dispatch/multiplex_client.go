/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package dispatch

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/netproto/dispatch/frame"
	"github.com/netproto/dispatch/internal/xerr"
	"github.com/netproto/dispatch/proxy"
)

// multiplexClientComponent is the client half of the multiplexing
// discipline: every call assigns the next RequestId at the moment it is
// actually dequeued for sending (spec §4.5 point 1, "each call assigns the
// next RequestId... and sends the head"), not when proxy.Call was invoked,
// so ids stay dense even if requests are enqueued faster than they drain.
type multiplexClientComponent struct {
	px     *proxy.Proxy
	nextID atomic.Uint64

	mu      sync.Mutex
	pending map[uint64]*proxy.Call
}

// NewMultiplexClient builds a MultiplexComponent bound to px.
func NewMultiplexClient(px *proxy.Proxy) MultiplexComponent {
	return &multiplexClientComponent{px: px, pending: make(map[uint64]*proxy.Call)}
}

func (c *multiplexClientComponent) Next(ctx context.Context) (uint64, frame.Message, error, bool, error) {
	call, ok := c.px.Dequeue(ctx)
	if !ok {
		if err := ctx.Err(); err != nil {
			return 0, frame.Message{}, nil, false, err
		}
		return 0, frame.Message{}, nil, false, nil
	}
	id := c.nextID.Add(1) - 1
	c.mu.Lock()
	c.pending[id] = call
	c.mu.Unlock()
	return id, call.Request, nil, true, nil
}

func (c *multiplexClientComponent) Dispatch(ctx context.Context, id uint64, solo bool, msg frame.Message, msgErr error) error {
	if solo {
		return xerr.Wrap(xerr.ErrProtocol, "multiplex client: unexpected solo frame from server")
	}
	c.mu.Lock()
	call, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()
	if !ok {
		return xerr.Wrapf(xerr.ErrMismatch, "multiplex client: response id=%d has no pending request", id)
	}
	call.Fulfill(msg, msgErr)
	return nil
}

// PollReady never blocks on the client: spec §5 gives the client no
// in-flight cap.
func (c *multiplexClientComponent) PollReady(ctx context.Context) error { return nil }

func (c *multiplexClientComponent) Cancel(id uint64) {}

func (c *multiplexClientComponent) HasInFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending) > 0
}

func (c *multiplexClientComponent) InFlightCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *multiplexClientComponent) NoMoreInbound() {}

func (c *multiplexClientComponent) Close(err error) {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[uint64]*proxy.Call)
	c.mu.Unlock()
	for _, call := range pending {
		call.Fulfill(frame.Message{}, err)
	}
}
