/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package dispatch

import (
	"context"
	"sync"

	"github.com/netproto/dispatch/frame"
	"github.com/netproto/dispatch/internal/xerr"
)

// pendingCall is one in-flight request/response pairing shared by the
// pipeline and multiplex server components. finish is idempotent so a
// Close racing with the handler goroutine's natural completion can never
// double-close done.
type pendingCall struct {
	done chan struct{}
	resp frame.Message
	err  error
	once sync.Once
}

func newPendingCall() *pendingCall { return &pendingCall{done: make(chan struct{})} }

func (pc *pendingCall) finish(resp frame.Message, err error) {
	pc.once.Do(func() {
		pc.resp, pc.err = resp, err
		close(pc.done)
	})
}

// pipelineServerComponent is the server half of spec §6's Dispatch trait
// under the pipelining discipline: it owns the FIFO in-flight queue and
// invokes a Handler asynchronously for each request, but releases responses
// to Next strictly in arrival order (spec §4.4(a): "head not released until
// its future resolves", even when a later request's handler finishes
// first).
//
// Grounded on the teacher's transport pattern of one goroutine per unit of
// work feeding a result back through a channel (transport/sendmsg.go's
// sendLoop), generalized here to one goroutine per request instead of one
// goroutine per connection.
type pipelineServerComponent struct {
	handler Handler

	mu     sync.Mutex
	queue  []*pendingCall
	noMore bool
	wake   chan struct{}
}

// NewPipelineServer builds a PipelineComponent that dispatches every
// request to h, exactly once, as soon as it arrives.
func NewPipelineServer(h Handler) PipelineComponent {
	return &pipelineServerComponent{handler: h, wake: make(chan struct{}, 1)}
}

func (c *pipelineServerComponent) Dispatch(ctx context.Context, msg frame.Message, msgErr error) error {
	if msgErr != nil {
		return xerr.Wrap(xerr.ErrProtocol, "pipeline server: request frame replaced by error frame")
	}
	pc := newPendingCall()
	c.mu.Lock()
	c.queue = append(c.queue, pc)
	c.mu.Unlock()

	go func() {
		resp, err := c.handler.Call(ctx, msg)
		if msg.HasBody() {
			// A handler is not required to read a request body to
			// completion; drain whatever it left so the read loop's
			// Sender.Send never blocks on a reader that already moved on.
			msg.Body.Drain()
		}
		pc.finish(resp, err)
		c.signal()
	}()
	return nil
}

func (c *pipelineServerComponent) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *pipelineServerComponent) Next(ctx context.Context) (frame.Message, error, bool, error) {
	for {
		c.mu.Lock()
		if len(c.queue) > 0 {
			head := c.queue[0]
			c.mu.Unlock()
			select {
			case <-head.done:
				c.mu.Lock()
				c.queue = c.queue[1:]
				c.mu.Unlock()
				return head.resp, head.err, true, nil
			case <-ctx.Done():
				return frame.Message{}, nil, false, ctx.Err()
			}
		}
		noMore := c.noMore
		c.mu.Unlock()
		if noMore {
			return frame.Message{}, nil, false, nil
		}
		select {
		case <-c.wake:
		case <-ctx.Done():
			return frame.Message{}, nil, false, ctx.Err()
		}
	}
}

func (c *pipelineServerComponent) HasInFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue) > 0
}

func (c *pipelineServerComponent) InFlightCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

func (c *pipelineServerComponent) NoMoreInbound() {
	c.mu.Lock()
	c.noMore = true
	c.mu.Unlock()
	c.signal()
}

func (c *pipelineServerComponent) Close(err error) {
	c.mu.Lock()
	queue := c.queue
	c.queue = nil
	c.mu.Unlock()
	for _, pc := range queue {
		pc.finish(frame.Message{}, err)
	}
}
