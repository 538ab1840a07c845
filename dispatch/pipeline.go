/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package dispatch

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/netproto/dispatch/body"
	"github.com/netproto/dispatch/frame"
	"github.com/netproto/dispatch/internal/nlog"
	"github.com/netproto/dispatch/internal/xerr"
	"github.com/netproto/dispatch/transport"
)

// PipelineDispatcher drives one connection under the pipelining discipline
// (spec §4.4): requests and responses stay in arrival order, bodies are
// delivered contiguously between their head and the next head.
type PipelineDispatcher struct {
	t    transport.PipelineTransport
	comp PipelineComponent
	opts Options
	sess *metricsSession
}

func NewPipeline(t transport.PipelineTransport, comp PipelineComponent, opts Options) *PipelineDispatcher {
	if opts.SessionID == "" {
		opts.SessionID = NewSessionID()
	}
	return &PipelineDispatcher{t: t, comp: comp, opts: opts, sess: newMetricsSession(opts, "pipeline")}
}

// Run drives the connection until both directions finish normally, ctx is
// canceled, or an unrecoverable error occurs. If the component's in-flight
// table is not empty when the loops finish, every entry is failed with
// xerr.ErrBrokenPipe, wrapped with the returned error's text when there is
// one (spec §3 Lifecycle, §7 item 1).
func (d *PipelineDispatcher) Run(ctx context.Context) error {
	defer d.sess.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.readLoop(gctx) })
	g.Go(func() error { return d.writeLoop(gctx) })
	err := g.Wait()

	if d.comp.HasInFlight() {
		cause := err
		if cause == nil {
			cause = xerr.ErrBrokenPipe
		} else {
			cause = xerr.Wrap(xerr.ErrBrokenPipe, cause.Error())
		}
		d.comp.Close(cause)
	}
	return err
}

// readLoop is spec §4.4(b): demultiplex frames flowing out of the transport
// into head messages and body chunks, handing completed items to the
// component.
func (d *PipelineDispatcher) readLoop(ctx context.Context) error {
	const (
		bodyNone = iota
		bodyOpen
		bodyDropped
	)
	state := bodyNone
	var sender *body.Sender

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

		switch f.Kind {
		case frame.KindMessage:
			if state == bodyOpen {
				sender.End()
			}
			state = bodyNone
			if f.HasBody {
				var b *body.Body
				sender, b = body.Pair(d.opts.BodyBufferCapacity)
				state = bodyOpen
				if err := d.comp.Dispatch(ctx, frame.WithBody(f.Head, b), nil); err != nil {
					return err
				}
				d.sess.InFlightSet(float64(d.comp.InFlightCount()))
			} else {
				sender = nil
				if err := d.comp.Dispatch(ctx, frame.WithoutBody(f.Head), nil); err != nil {
					return err
				}
				d.sess.InFlightSet(float64(d.comp.InFlightCount()))
			}

		case frame.KindBody:
			switch state {
			case bodyNone:
				return xerr.Wrap(xerr.ErrProtocol, "pipeline: body chunk with no open head")
			case bodyDropped:
				if f.Chunk == nil {
					state = bodyNone
				}
				// silently discard (spec boundary scenario 4)
			case bodyOpen:
				if f.Chunk == nil {
					sender.End()
					sender, state = nil, bodyNone
					continue
				}
				d.sess.BodyChunk("in")
				if sendErr := sender.Send(ctx, f.Chunk); sendErr != nil {
					if sendErr == body.ErrCanceled {
						sender, state = nil, bodyDropped
						continue
					}
					return sendErr
				}
			}

		case frame.KindError:
			if state == bodyOpen {
				_ = sender.Fail(ctx, f.Err)
			}
			sender, state = nil, bodyNone
			if err := d.comp.Dispatch(ctx, frame.Message{}, f.Err); err != nil {
				return err
			}
			d.sess.InFlightSet(float64(d.comp.InFlightCount()))

		case frame.KindDone:
			d.comp.NoMoreInbound()
			return nil
		}
	}
}

// writeLoop is spec §4.4(c): poll the component for the next outbound item,
// write its head, then drain its body contiguously before asking for the
// next item.
func (d *PipelineDispatcher) writeLoop(ctx context.Context) error {
	for {
		msg, msgErr, ok, err := d.comp.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			if err := d.t.WriteFrame(ctx, frame.PipelineDone()); err != nil {
				return err
			}
			return d.t.Flush(ctx)
		}
		d.sess.InFlightSet(float64(d.comp.InFlightCount()))

		if msgErr != nil {
			if err := d.t.WriteFrame(ctx, frame.PipelineError(msgErr)); err != nil {
				return err
			}
			continue
		}

		if err := d.t.WriteFrame(ctx, frame.PipelineMessage(msg.Head, msg.HasBody())); err != nil {
			return err
		}
		d.sess.FrameWrite()

		if msg.HasBody() {
			if err := d.drainBody(ctx, msg.Body); err != nil {
				return err
			}
		}

		if err := d.t.Flush(ctx); err != nil {
			return err
		}
	}
}

func (d *PipelineDispatcher) drainBody(ctx context.Context, b *body.Body) error {
	for {
		val, ok, err := b.Next(ctx)
		if err != nil {
			// spec §7 item 4 / §9 "body-error handling": emit a protocol
			// Error on the wire and close the body, rather than aborting.
			nlog.Warningf("pipeline: outbound body errored, closing: %v", err)
			return d.t.WriteFrame(ctx, frame.PipelineError(err))
		}
		if !ok {
			return d.t.WriteFrame(ctx, frame.PipelineEndBody())
		}
		if err := d.t.WriteFrame(ctx, frame.PipelineChunk(val)); err != nil {
			return err
		}
		d.sess.FrameWrite()
		d.sess.BodyChunk("out")
	}
}
