/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package dispatch

import (
	"context"
	"sync"

	"github.com/netproto/dispatch/frame"
	"github.com/netproto/dispatch/internal/xerr"
	"github.com/netproto/dispatch/proxy"
)

// pipelineClientComponent is the client half of the pipelining discipline: it
// has no RequestId to key on, so it matches responses to requests strictly in
// the order requests were sent (spec §4.4(a)).
type pipelineClientComponent struct {
	px *proxy.Proxy

	mu      sync.Mutex
	pending []*proxy.Call
}

// NewPipelineClient builds a PipelineComponent bound to px: every request
// proxy.Call enqueues is sent, in order, and its response resolved in the
// order replies arrive.
func NewPipelineClient(px *proxy.Proxy) PipelineComponent {
	return &pipelineClientComponent{px: px}
}

func (c *pipelineClientComponent) Next(ctx context.Context) (frame.Message, error, bool, error) {
	call, ok := c.px.Dequeue(ctx)
	if !ok {
		if err := ctx.Err(); err != nil {
			return frame.Message{}, nil, false, err
		}
		return frame.Message{}, nil, false, nil
	}
	c.mu.Lock()
	c.pending = append(c.pending, call)
	c.mu.Unlock()
	return call.Request, nil, true, nil
}

func (c *pipelineClientComponent) Dispatch(ctx context.Context, msg frame.Message, msgErr error) error {
	c.mu.Lock()
	if len(c.pending) == 0 {
		c.mu.Unlock()
		return xerr.Wrap(xerr.ErrProtocol, "pipeline client: response with no pending request")
	}
	call := c.pending[0]
	c.pending = c.pending[1:]
	c.mu.Unlock()
	call.Fulfill(msg, msgErr)
	return nil
}

func (c *pipelineClientComponent) HasInFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending) > 0
}

func (c *pipelineClientComponent) InFlightCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// NoMoreInbound has nothing for the client side to react to: exhaustion here
// is driven entirely by the proxy's own queue draining (spec §4.8).
func (c *pipelineClientComponent) NoMoreInbound() {}

func (c *pipelineClientComponent) Close(err error) {
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()
	for _, call := range pending {
		call.Fulfill(frame.Message{}, err)
	}
}
