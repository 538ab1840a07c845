/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package rpc

import (
	"context"

	"github.com/netproto/dispatch/dispatch"
	"github.com/netproto/dispatch/frame"
	"github.com/netproto/dispatch/internal/xerr"
	"github.com/netproto/dispatch/proxy"
	"github.com/netproto/dispatch/transport"
)

// DefaultQueueCapacity bounds how many outstanding calls a Client may have
// enqueued before Call fails synchronously with xerr.ErrQueueFull (spec
// §4.3).
const DefaultQueueCapacity = 64

// Client is the no-body counterpart of proxy.Proxy: callers hold one of
// these and invoke Call; the dispatcher returned alongside it must be run
// (typically `go dispatcher.Run(ctx)`) for calls to ever resolve.
type Client struct {
	px *proxy.Proxy
}

// Call sends req as a bodiless request and blocks for the matching
// response's head. A response carrying a streaming body, which a no-body RPC
// server never legitimately sends, is rejected by the no-body adapter: the
// bound dispatcher stops with xerr.ErrNoStreaming and the call resolves with
// an error wrapping xerr.ErrBrokenPipe.
func (c *Client) Call(ctx context.Context, req any) (any, error) {
	results, err := c.px.Call(ctx, frame.WithoutBody(req))
	if err != nil {
		return nil, err
	}
	select {
	case res := <-results:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Response.HasBody() {
			return nil, xerr.Wrap(xerr.ErrNoStreaming, "rpc: response carried a body")
		}
		return res.Response.Head, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close drops the client's interest in the connection (spec §4.8). Calls
// already enqueued are still sent and resolve with their responses as the
// bound dispatcher drains; a Call made after Close resolves with
// xerr.ErrBrokenPipe, and a call still in flight when the dispatcher's Run
// returns fails with an error wrapping xerr.ErrBrokenPipe.
func (c *Client) Close() { c.px.Close() }

// BindPipelineClient builds a Client and the dispatcher driving it under the
// pipelining discipline. Callers must run the dispatcher (its Run method)
// for the client's calls to ever complete.
func BindPipelineClient(t transport.PipelineTransport, opts dispatch.Options) (*Client, *dispatch.PipelineDispatcher) {
	px := proxy.New(DefaultQueueCapacity)
	comp := wrapPipeline(dispatch.NewPipelineClient(px))
	return &Client{px: px}, dispatch.NewPipeline(t, comp, opts)
}

// BindMultiplexClient is BindPipelineClient's multiplexing counterpart.
func BindMultiplexClient(t transport.MultiplexTransport, opts dispatch.Options) (*Client, *dispatch.MultiplexDispatcher) {
	px := proxy.New(DefaultQueueCapacity)
	comp := wrapMultiplex(dispatch.NewMultiplexClient(px))
	return &Client{px: px}, dispatch.NewMultiplex(t, comp, opts)
}
