/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package rpc

import (
	"github.com/netproto/dispatch/dispatch"
	"github.com/netproto/dispatch/transport"
)

// BindPipelineServer drives t under the pipelining discipline, answering
// each request with h, rejecting any streaming frame that reaches the
// adapter (spec §4.6, §4.7).
func BindPipelineServer(t transport.PipelineTransport, h Handler, opts dispatch.Options) *dispatch.PipelineDispatcher {
	comp := wrapPipeline(dispatch.NewPipelineServer(h))
	return dispatch.NewPipeline(t, comp, opts)
}

// BindMultiplexServer drives t under the multiplexing discipline, capping
// concurrent in-flight calls at opts.MultiplexCap (defaults to 32).
func BindMultiplexServer(t transport.MultiplexTransport, h Handler, opts dispatch.Options) *dispatch.MultiplexDispatcher {
	comp := wrapMultiplex(dispatch.NewMultiplexServer(h, opts.MultiplexCap))
	return dispatch.NewMultiplex(t, comp, opts)
}
