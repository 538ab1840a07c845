// Package rpc implements spec §4.6's RPC adapters: a thin, no-body façade
// over package dispatch for callers who never need streaming bodies.
// Grounded on original_source/src/streaming/pipeline/advanced.rs and
// original_source/src/rpc/{pipeline,multiplex}/client.rs: the non-streaming
// RPC variants are not a separate engine, they are the streaming dispatcher
// wrapped by a component that rejects any frame carrying a body — "one
// dispatcher engine, two façades" (SPEC_FULL §5).
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package rpc

import (
	"context"

	"github.com/netproto/dispatch/dispatch"
	"github.com/netproto/dispatch/frame"
	"github.com/netproto/dispatch/internal/xerr"
)

// Handler answers one request with one response, both bodiless (spec §4.6).
// Adapted from dispatch.Handler: same shape, but the component wrapped
// around it never lets a body cross in either direction.
type Handler = dispatch.Handler

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc = dispatch.HandlerFunc

// noBodyPipeline wraps a dispatch.PipelineComponent so a streaming frame
// crossing the no-body boundary in either direction becomes the non-nil
// error Dispatch/Next document as fatal (spec §4.6: "causes a fatal error
// 'no support for streaming'"; §7 item 2 "mapped to io-error of kind
// other"), instead of a Handler-level error a dispatcher would merely log
// as a recoverable PipelineError and keep running past (spec §7 item 3).
// Grounded on original_source/src/rpc/pipeline/mod.rs, which rejects a
// streaming frame directly out of the sink/stream rather than inside the
// user's service function.
type noBodyPipeline struct {
	inner dispatch.PipelineComponent
}

func wrapPipeline(inner dispatch.PipelineComponent) dispatch.PipelineComponent {
	return &noBodyPipeline{inner: inner}
}

func (c *noBodyPipeline) Dispatch(ctx context.Context, msg frame.Message, msgErr error) error {
	if msgErr == nil && msg.HasBody() {
		msg.Body.Close()
		return xerr.Wrap(xerr.ErrNoStreaming, "rpc: request carried a body")
	}
	return c.inner.Dispatch(ctx, msg, msgErr)
}

func (c *noBodyPipeline) Next(ctx context.Context) (frame.Message, error, bool, error) {
	msg, msgErr, ok, err := c.inner.Next(ctx)
	if err != nil || !ok {
		return msg, msgErr, ok, err
	}
	if msgErr == nil && msg.HasBody() {
		return frame.Message{}, nil, false, xerr.Wrap(xerr.ErrNoStreaming, "rpc: handler returned a body")
	}
	return msg, msgErr, ok, nil
}

func (c *noBodyPipeline) HasInFlight() bool  { return c.inner.HasInFlight() }
func (c *noBodyPipeline) InFlightCount() int { return c.inner.InFlightCount() }
func (c *noBodyPipeline) NoMoreInbound()     { c.inner.NoMoreInbound() }
func (c *noBodyPipeline) Close(err error)    { c.inner.Close(err) }

// noBodyMultiplex is noBodyPipeline's multiplexing counterpart.
type noBodyMultiplex struct {
	inner dispatch.MultiplexComponent
}

func wrapMultiplex(inner dispatch.MultiplexComponent) dispatch.MultiplexComponent {
	return &noBodyMultiplex{inner: inner}
}

func (c *noBodyMultiplex) Dispatch(ctx context.Context, id uint64, solo bool, msg frame.Message, msgErr error) error {
	if msgErr == nil && msg.HasBody() {
		msg.Body.Close()
		return xerr.Wrap(xerr.ErrNoStreaming, "rpc: request carried a body")
	}
	return c.inner.Dispatch(ctx, id, solo, msg, msgErr)
}

func (c *noBodyMultiplex) Next(ctx context.Context) (uint64, frame.Message, error, bool, error) {
	id, msg, msgErr, ok, err := c.inner.Next(ctx)
	if err != nil || !ok {
		return id, msg, msgErr, ok, err
	}
	if msgErr == nil && msg.HasBody() {
		return 0, frame.Message{}, nil, false, xerr.Wrap(xerr.ErrNoStreaming, "rpc: handler returned a body")
	}
	return id, msg, msgErr, ok, nil
}

func (c *noBodyMultiplex) PollReady(ctx context.Context) error { return c.inner.PollReady(ctx) }
func (c *noBodyMultiplex) Cancel(id uint64)                    { c.inner.Cancel(id) }
func (c *noBodyMultiplex) HasInFlight() bool                   { return c.inner.HasInFlight() }
func (c *noBodyMultiplex) InFlightCount() int                  { return c.inner.InFlightCount() }
func (c *noBodyMultiplex) NoMoreInbound()                      { c.inner.NoMoreInbound() }
func (c *noBodyMultiplex) Close(err error)                     { c.inner.Close(err) }
