// Package transport defines the contract a framed, full-duplex byte transport
// must satisfy to be driven by package dispatch (spec §4.1), plus a reference
// in-process implementation used by this module's own tests.
//
// Adapted from the teacher's transport package: transport.NewMsgStream pairs a
// burst-buffered channel (the "send queue") with a background send loop, and
// transport.HandleMsgStream registers the receive side by name — the same
// send/receive pairing this package's PipeTransport provides, collapsed to an
// in-process pipe since the real wire transport (TCP, TLS, a reactor) is
// explicitly an external collaborator per spec §1.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package transport

import (
	"context"
	"io"

	"github.com/netproto/dispatch/frame"
)

// PipelineTransport is the contract of spec §4.1 specialized to pipeline
// frames. Go has no poll-based futures, so "NotReady" becomes "this call
// blocks until ready, ctx is done, or the peer is gone": ReadFrame blocks for
// the next frame and returns io.EOF once the remote direction is exhausted;
// WriteFrame blocks until the frame is accepted by the sink (spec's
// start_send "Rejected" retry loop is absorbed into this single blocking
// call); Flush blocks until everything written so far has left the sink.
//
// Per original_source/src/transport/mod.rs, Flush returning is permitted even
// with bytes the sink hasn't handed to the kernel yet, as long as a
// subsequent WriteFrame would not itself block — Go's blocking WriteFrame
// makes that distinction moot from the caller's side.
type PipelineTransport interface {
	ReadFrame(ctx context.Context) (frame.Pipeline, error)
	WriteFrame(ctx context.Context, f frame.Pipeline) error
	Flush(ctx context.Context) error
}

// MultiplexTransport is PipelineTransport's multiplex-frame counterpart.
type MultiplexTransport interface {
	ReadFrame(ctx context.Context) (frame.Multiplex, error)
	WriteFrame(ctx context.Context, f frame.Multiplex) error
	Flush(ctx context.Context) error
}

// ErrClosed is returned by ReadFrame once the peer direction has sent Done
// and no further frames will arrive. PipeTransport's WriteFrame returns an
// error wrapping it once that end has itself written Done; its Flush keeps
// succeeding after Done, which the dispatchers rely on when they write Done
// and then flush. Dispatchers treat io.EOF and ErrClosed identically as
// "inbound exhausted" (spec §9 "Sub-component exhaustion" is about the
// handler side; this is its transport-side analogue).
var ErrClosed = io.EOF
