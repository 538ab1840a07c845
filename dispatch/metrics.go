/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package dispatch

import "github.com/netproto/dispatch/metrics"

// metricsSession wraps a *metrics.Session so every call site in the
// dispatcher can fire-and-forget instrumentation even when the caller did not
// configure a metrics.Set (Options.Metrics == nil).
type metricsSession struct {
	s *metrics.Session
}

func newMetricsSession(opts Options, discipline string) *metricsSession {
	if opts.Metrics == nil {
		return &metricsSession{}
	}
	return &metricsSession{s: opts.Metrics.ForSession(opts.SessionID, discipline)}
}

func (m *metricsSession) FrameRead() {
	if m.s != nil {
		m.s.FrameRead()
	}
}

func (m *metricsSession) FrameWrite() {
	if m.s != nil {
		m.s.FrameWrite()
	}
}

func (m *metricsSession) BodyChunk(direction string) {
	if m.s != nil {
		m.s.BodyChunk(direction)
	}
}

func (m *metricsSession) InFlightSet(n float64) {
	if m.s != nil {
		m.s.InFlightSet(n)
	}
}

func (m *metricsSession) Starved() {
	if m.s != nil {
		m.s.Starved()
	}
}

func (m *metricsSession) Close() {
	if m.s != nil {
		m.s.Close()
	}
}
