// Package metrics exposes per-dispatcher Prometheus instrumentation: frames
// read/written, the in-flight-requests gauge, body chunks moved, and
// starvation-guard kills. One Set is shared by every dispatcher in a process
// (see dispatch.Options.Metrics); each connection reports through its own
// Session, labeled by session id.
//
// The teacher depends directly on github.com/prometheus/client_golang
// (go.mod); the retrieved pack only carries the StatsD-build-tagged half of
// aistore's stats package (stats/common_statsd.go), which documents the shape
// of metric the teacher tracks per endpoint (counters, latencies) for the
// complementary default build. This package fills that shape in with the
// Prometheus client directly, via promauto, the idiomatic registration helper.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Set is the metric vector family shared by every dispatcher in a process,
// labeled per connection by session id.
type Set struct {
	FramesRead    *prometheus.CounterVec
	FramesWritten *prometheus.CounterVec
	BodyChunks    *prometheus.CounterVec
	InFlight      *prometheus.GaugeVec
	Starvations   *prometheus.CounterVec
}

// NewSet registers a fresh Set against reg. Pass prometheus.DefaultRegisterer
// for the common case of one process-wide registry.
func NewSet(reg prometheus.Registerer) *Set {
	factory := promauto.With(reg)
	return &Set{
		FramesRead: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dispatch",
			Name:      "frames_read_total",
			Help:      "Frames read from the transport, by connection and discipline.",
		}, []string{"session", "discipline"}),
		FramesWritten: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dispatch",
			Name:      "frames_written_total",
			Help:      "Frames written to the transport, by connection and discipline.",
		}, []string{"session", "discipline"}),
		BodyChunks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dispatch",
			Name:      "body_chunks_total",
			Help:      "Body chunks moved through a streaming message, by direction.",
		}, []string{"session", "direction"}),
		InFlight: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "dispatch",
			Name:      "in_flight_requests",
			Help:      "Requests currently dispatched to the handler or awaiting a response.",
		}, []string{"session"}),
		Starvations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dispatch",
			Name:      "starvation_kills_total",
			Help:      "Connections killed by the multiplex frame-buffer starvation guard.",
		}, []string{"session"}),
	}
}

// ForSession curries a Set to the label values for one connection, handed to
// a dispatcher so its hot path never repeats label construction.
type Session struct {
	set        *Set
	session    string
	discipline string
}

func (s *Set) ForSession(session, discipline string) *Session {
	return &Session{set: s, session: session, discipline: discipline}
}

func (s *Session) FrameRead()  { s.set.FramesRead.WithLabelValues(s.session, s.discipline).Inc() }
func (s *Session) FrameWrite() { s.set.FramesWritten.WithLabelValues(s.session, s.discipline).Inc() }
func (s *Session) BodyChunk(direction string) {
	s.set.BodyChunks.WithLabelValues(s.session, direction).Inc()
}
func (s *Session) InFlightSet(n float64) { s.set.InFlight.WithLabelValues(s.session).Set(n) }
func (s *Session) Starved()              { s.set.Starvations.WithLabelValues(s.session).Inc() }
func (s *Session) Close()                { s.set.InFlight.DeleteLabelValues(s.session) }
