/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package dispatch

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/netproto/dispatch/frame"
	"github.com/netproto/dispatch/internal/xerr"
)

// multiplexServerComponent is the server half of spec §6 under the
// multiplexing discipline: requests are dispatched to a Handler as they
// arrive, up to a concurrency cap (spec §3/§5, default 32), and responses
// are released in whatever order their handlers finish, ties broken by
// insertion order (spec §4.5 point 4).
//
// The cap is acquired in PollReady — called by the dispatcher's read loop
// before it will consume another non-solo request frame, so a full table
// back-pressures the transport instead of queuing unboundedly — and
// released by the handler goroutine the instant Call returns, not when the
// response is flushed to the wire (spec boundary scenario 2).
type multiplexServerComponent struct {
	handler Handler
	sem     *semaphore.Weighted

	mu     sync.Mutex
	calls  map[uint64]*pendingCall
	order  []uint64
	noMore bool
	wake   chan struct{}
}

// NewMultiplexServer builds a MultiplexComponent dispatching to h, capping
// concurrent in-flight requests at cap (0 defaults to 32, per Options).
func NewMultiplexServer(h Handler, cap int64) MultiplexComponent {
	if cap <= 0 {
		cap = 32
	}
	return &multiplexServerComponent{
		handler: h,
		sem:     semaphore.NewWeighted(cap),
		calls:   make(map[uint64]*pendingCall),
		wake:    make(chan struct{}, 1),
	}
}

func (c *multiplexServerComponent) PollReady(ctx context.Context) error {
	return c.sem.Acquire(ctx, 1)
}

func (c *multiplexServerComponent) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *multiplexServerComponent) Dispatch(ctx context.Context, id uint64, solo bool, msg frame.Message, msgErr error) error {
	if solo {
		go func() {
			_, _ = c.handler.Call(ctx, msg)
			if msg.HasBody() {
				msg.Body.Drain()
			}
		}()
		return nil
	}
	if msgErr != nil {
		return xerr.Wrap(xerr.ErrProtocol, "multiplex server: request frame replaced by error frame")
	}

	pc := newPendingCall()
	c.mu.Lock()
	c.calls[id] = pc
	c.order = append(c.order, id)
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
		c.sem.Release(1)
		c.signal()
	}()
	return nil
}

func (c *multiplexServerComponent) Next(ctx context.Context) (uint64, frame.Message, error, bool, error) {
	for {
		c.mu.Lock()
		for i, id := range c.order {
			pc := c.calls[id]
			select {
			case <-pc.done:
				c.order = append(c.order[:i:i], c.order[i+1:]...)
				delete(c.calls, id)
				c.mu.Unlock()
				return id, pc.resp, pc.err, true, nil
			default:
			}
		}
		exhausted := c.noMore && len(c.order) == 0
		c.mu.Unlock()
		if exhausted {
			return 0, frame.Message{}, nil, false, nil
		}
		select {
		case <-c.wake:
		case <-ctx.Done():
			return 0, frame.Message{}, nil, false, ctx.Err()
		}
	}
}

// Cancel is a no-op: this runtime never invents a wire message for
// cancellation (spec §6, §9 "Cancellation on the wire").
func (c *multiplexServerComponent) Cancel(id uint64) {}

func (c *multiplexServerComponent) HasInFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls) > 0
}

func (c *multiplexServerComponent) InFlightCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func (c *multiplexServerComponent) NoMoreInbound() {
	c.mu.Lock()
	c.noMore = true
	c.mu.Unlock()
	c.signal()
}

func (c *multiplexServerComponent) Close(err error) {
	c.mu.Lock()
	calls := c.calls
	c.calls = make(map[uint64]*pendingCall)
	c.order = nil
	c.mu.Unlock()
	for _, pc := range calls {
		pc.finish(frame.Message{}, err)
	}
}
