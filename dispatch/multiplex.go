/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package dispatch

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/netproto/dispatch/body"
	"github.com/netproto/dispatch/frame"
	"github.com/netproto/dispatch/internal/nlog"
	"github.com/netproto/dispatch/internal/watchdog"
	"github.com/netproto/dispatch/internal/xerr"
	"github.com/netproto/dispatch/transport"
)

// MultiplexDispatcher drives one connection under the multiplexing
// discipline (spec §4.5): requests carry an id, responses may return in any
// order and are matched back to the originating request by that id.
type MultiplexDispatcher struct {
	t    transport.MultiplexTransport
	comp MultiplexComponent
	opts Options
	sess *metricsSession
	wd   *watchdog.Guard

	mu      sync.Mutex
	cancel  context.CancelFunc
	starved bool
}

func NewMultiplex(t transport.MultiplexTransport, comp MultiplexComponent, opts Options) *MultiplexDispatcher {
	if opts.SessionID == "" {
		opts.SessionID = NewSessionID()
	}
	d := &MultiplexDispatcher{t: t, comp: comp, opts: opts, sess: newMetricsSession(opts, "multiplex")}
	timeout := opts.StarvationTimeout
	if timeout == 0 {
		timeout = watchdog.DefaultTimeout
	}
	d.wd = watchdog.New(timeout, d.onStarved)
	return d
}

// onStarved fires when the frame-buffer watchdog expires with no progress
// (spec §4.5, §9 "Frame-buffer timeout"): it cancels the dispatcher's
// run context, which unblocks both loops out of their transport calls and
// drives Run to fail every in-flight request with xerr.ErrStarvation.
func (d *MultiplexDispatcher) onStarved() {
	nlog.Errorf("multiplex[%s]: frame buffer starved, killing connection", d.opts.SessionID)
	d.sess.Starved()

	d.mu.Lock()
	d.starved = true
	cancel := d.cancel
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (d *MultiplexDispatcher) Run(ctx context.Context) error {
	defer d.sess.Close()
	defer d.wd.Stop()

	runCtx, cancel := context.WithCancel(ctx)
	d.mu.Lock()
	d.cancel = cancel
	d.mu.Unlock()
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return d.readLoop(gctx) })
	g.Go(func() error { return d.writeLoop(gctx) })
	err := g.Wait()

	d.mu.Lock()
	starved := d.starved
	d.mu.Unlock()
	if starved {
		err = xerr.ErrStarvation
	}

	if d.comp.HasInFlight() {
		cause := err
		if cause == nil {
			cause = xerr.ErrBrokenPipe
		} else if starved {
			cause = xerr.ErrStarvation
		} else {
			cause = xerr.Wrap(xerr.ErrBrokenPipe, cause.Error())
		}
		d.comp.Close(cause)
	}
	return err
}

func (d *MultiplexDispatcher) readLoop(ctx context.Context) error {
	const (
		bodyNone = iota
		bodyOpen
		bodyDropped
	)
	senders := map[uint64]*body.Sender{}
	states := map[uint64]int{}

	for {
		f, err := d.t.ReadFrame(ctx)
		if err != nil {
			if err == transport.ErrClosed {
				d.comp.NoMoreInbound()
				return nil
			}
			return err
		}
		d.sess.FrameRead()
		d.wd.Kick()

		switch f.Kind {
		case frame.KindMessage:
			if f.Solo {
				if err := d.comp.Dispatch(ctx, f.ID, true, frame.WithoutBody(f.Head), nil); err != nil {
					return err
				}
				continue
			}
			// spec §4.5 point 5: the server's 32-slot cap backs off by
			// not consuming further request frames once full; a client
			// component's PollReady is a no-op and returns immediately.
			if err := d.comp.PollReady(ctx); err != nil {
				return err
			}
			if f.HasBody {
				sender, b := body.Pair(d.opts.BodyBufferCapacity)
				senders[f.ID] = sender
				states[f.ID] = bodyOpen
				if err := d.comp.Dispatch(ctx, f.ID, false, frame.WithBody(f.Head, b), nil); err != nil {
					return err
				}
				d.sess.InFlightSet(float64(d.comp.InFlightCount()))
			} else {
				if err := d.comp.Dispatch(ctx, f.ID, false, frame.WithoutBody(f.Head), nil); err != nil {
					return err
				}
				d.sess.InFlightSet(float64(d.comp.InFlightCount()))
			}

		case frame.KindBody:
			switch states[f.ID] {
			case bodyNone:
				return xerr.Wrapf(xerr.ErrProtocol, "multiplex: body chunk for id=%d with no open head", f.ID)
			case bodyDropped:
				if f.Chunk == nil {
					delete(states, f.ID)
				}
			case bodyOpen:
				sender := senders[f.ID]
				if f.Chunk == nil {
					sender.End()
					delete(senders, f.ID)
					delete(states, f.ID)
					continue
				}
				d.sess.BodyChunk("in")
				if sendErr := sender.Send(ctx, f.Chunk); sendErr != nil {
					if sendErr == body.ErrCanceled {
						delete(senders, f.ID)
						states[f.ID] = bodyDropped
						continue
					}
					return sendErr
				}
			}

		case frame.KindError:
			if sender, ok := senders[f.ID]; ok {
				_ = sender.Fail(ctx, f.Err)
				delete(senders, f.ID)
			}
			delete(states, f.ID)
			if err := d.comp.Dispatch(ctx, f.ID, false, frame.Message{}, f.Err); err != nil {
				return err
			}
			d.sess.InFlightSet(float64(d.comp.InFlightCount()))

		case frame.KindDone:
			d.comp.NoMoreInbound()
			return nil
		}
	}
}

func (d *MultiplexDispatcher) writeLoop(ctx context.Context) error {
	for {
		id, msg, msgErr, ok, err := d.comp.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			if err := d.t.WriteFrame(ctx, frame.MultiplexDone()); err != nil {
				return err
			}
			return d.t.Flush(ctx)
		}
		d.wd.Kick()
		d.sess.InFlightSet(float64(d.comp.InFlightCount()))

		if msgErr != nil {
			if err := d.t.WriteFrame(ctx, frame.MultiplexError(id, msgErr)); err != nil {
				return err
			}
			continue
		}

		if err := d.t.WriteFrame(ctx, frame.MultiplexMessage(id, false, msg.Head, msg.HasBody())); err != nil {
			return err
		}
		d.sess.FrameWrite()

		if msg.HasBody() {
			if err := d.drainBody(ctx, id, msg.Body); err != nil {
				return err
			}
		}

		if err := d.t.Flush(ctx); err != nil {
			return err
		}
	}
}

func (d *MultiplexDispatcher) drainBody(ctx context.Context, id uint64, b *body.Body) error {
	for {
		val, ok, err := b.Next(ctx)
		if err != nil {
			nlog.Warningf("multiplex: outbound body id=%d errored, closing: %v", id, err)
			return d.t.WriteFrame(ctx, frame.MultiplexError(id, err))
		}
		if !ok {
			return d.t.WriteFrame(ctx, frame.MultiplexEndBody(id))
		}
		if err := d.t.WriteFrame(ctx, frame.MultiplexChunk(id, val)); err != nil {
			return err
		}
		d.sess.FrameWrite()
		d.sess.BodyChunk("out")
	}
}
