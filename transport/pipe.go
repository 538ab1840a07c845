/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package transport

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/netproto/dispatch/frame"
)

// wireEnvelope is what actually crosses the in-process "wire": heads and
// chunks are encoded/decoded through a Codec so PipeTransport exercises a
// real marshal boundary, and protocol errors are flattened to strings the way
// any real wire format must (Go errors do not serialize themselves).
type wireEnvelope struct {
	kind    frame.Kind
	id      uint64
	solo    bool
	hasBody bool
	payload []byte // encoded Head (kind==Message) or Chunk (kind==Body; unused for end)
	isEnd   bool   // kind==Body only: marks end-of-body, distinguishing it from a chunk with empty payload
	errMsg  string
}

// pipePipe is one direction of an in-process duplex pipe: a buffered channel
// plus a close-once guard, the same send-queue shape as the teacher's
// transport.MsgStream.workCh (transport/sendmsg.go).
type pipePipe struct {
	ch     chan wireEnvelope
	once   sync.Once
	closed chan struct{}
}

func newPipePipe(capacity int) *pipePipe {
	return &pipePipe{ch: make(chan wireEnvelope, capacity), closed: make(chan struct{})}
}

func (p *pipePipe) send(ctx context.Context, e wireEnvelope) error {
	select {
	case <-p.closed:
		return errors.Wrap(ErrClosed, "pipe: write side closed")
	default:
	}
	select {
	case p.ch <- e:
		return nil
	case <-p.closed:
		return errors.Wrap(ErrClosed, "pipe: write side closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipePipe) closeSend() {
	p.once.Do(func() {
		close(p.closed)
		close(p.ch)
	})
}

func (p *pipePipe) recv(ctx context.Context) (wireEnvelope, error) {
	select {
	case e, ok := <-p.ch:
		if !ok {
			return wireEnvelope{}, ErrClosed
		}
		return e, nil
	case <-ctx.Done():
		return wireEnvelope{}, ctx.Err()
	}
}

// PipeTransport is an in-process, codec-backed implementation of both
// PipelineTransport and MultiplexTransport (the latter through AsMultiplex),
// used by this module's tests. NewPipe returns the two
// ends of one connection; bind one end to a server dispatcher and the other
// to a client.
type PipeTransport struct {
	codec Codec
	out   *pipePipe
	in    *pipePipe
}

// NewPipe builds a connected pair: frames written on one end's WriteFrame
// arrive on the other end's ReadFrame, and vice versa. capacity bounds how
// many frames either direction buffers before WriteFrame blocks — the pipe's
// only back-pressure primitive, matching spec §4.1 ("the transport's own
// buffering is the sole congestion-control primitive").
func NewPipe(capacity int) (a, b *PipeTransport) {
	ab := newPipePipe(capacity)
	ba := newPipePipe(capacity)
	a = &PipeTransport{codec: JSONCodec{}, out: ab, in: ba}
	b = &PipeTransport{codec: JSONCodec{}, out: ba, in: ab}
	return a, b
}

// WithCodec overrides the default JSONCodec, e.g. in a benchmark comparing
// encodings.
func (t *PipeTransport) WithCodec(c Codec) *PipeTransport {
	t.codec = c
	return t
}

func (t *PipeTransport) encode(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return t.codec.Marshal(v)
}

func (t *PipeTransport) decode(b []byte) (any, error) {
	if b == nil {
		return nil, nil
	}
	return t.codec.Unmarshal(b)
}

// --- PipelineTransport ---

func (t *PipeTransport) ReadFrame(ctx context.Context) (frame.Pipeline, error) {
	e, err := t.in.recv(ctx)
	if err != nil {
		return frame.Pipeline{}, err
	}
	return t.decodePipeline(e)
}

func (t *PipeTransport) decodePipeline(e wireEnvelope) (frame.Pipeline, error) {
	switch e.kind {
	case frame.KindMessage:
		head, err := t.decode(e.payload)
		if err != nil {
			return frame.Pipeline{}, errors.Wrap(err, "pipe: decode head")
		}
		return frame.PipelineMessage(head, e.hasBody), nil
	case frame.KindBody:
		if e.isEnd {
			return frame.PipelineEndBody(), nil
		}
		chunk, err := t.decode(e.payload)
		if err != nil {
			return frame.Pipeline{}, errors.Wrap(err, "pipe: decode chunk")
		}
		return frame.PipelineChunk(chunk), nil
	case frame.KindError:
		return frame.PipelineError(errors.New(e.errMsg)), nil
	case frame.KindDone:
		return frame.PipelineDone(), nil
	default:
		return frame.Pipeline{}, errors.Errorf("pipe: unknown frame kind %v", e.kind)
	}
}

func (t *PipeTransport) WriteFrame(ctx context.Context, f frame.Pipeline) error {
	e, err := t.encodePipeline(f)
	if err != nil {
		return err
	}
	if f.Kind == frame.KindDone {
		t.out.closeSend()
		return nil
	}
	return t.out.send(ctx, e)
}

func (t *PipeTransport) encodePipeline(f frame.Pipeline) (wireEnvelope, error) {
	switch f.Kind {
	case frame.KindMessage:
		payload, err := t.encode(f.Head)
		if err != nil {
			return wireEnvelope{}, errors.Wrap(err, "pipe: encode head")
		}
		return wireEnvelope{kind: f.Kind, hasBody: f.HasBody, payload: payload}, nil
	case frame.KindBody:
		if f.Chunk == nil {
			return wireEnvelope{kind: f.Kind, isEnd: true}, nil
		}
		payload, err := t.encode(f.Chunk)
		if err != nil {
			return wireEnvelope{}, errors.Wrap(err, "pipe: encode chunk")
		}
		return wireEnvelope{kind: f.Kind, payload: payload}, nil
	case frame.KindError:
		return wireEnvelope{kind: f.Kind, errMsg: f.Err.Error()}, nil
	case frame.KindDone:
		return wireEnvelope{kind: f.Kind}, nil
	default:
		return wireEnvelope{}, errors.Errorf("pipe: unknown frame kind %v", f.Kind)
	}
}

func (t *PipeTransport) Flush(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// --- MultiplexTransport ---

func (t *PipeTransport) ReadMultiplex(ctx context.Context) (frame.Multiplex, error) {
	e, err := t.in.recv(ctx)
	if err != nil {
		return frame.Multiplex{}, err
	}
	switch e.kind {
	case frame.KindMessage:
		head, err := t.decode(e.payload)
		if err != nil {
			return frame.Multiplex{}, errors.Wrap(err, "pipe: decode head")
		}
		return frame.MultiplexMessage(e.id, e.solo, head, e.hasBody), nil
	case frame.KindBody:
		if e.isEnd {
			return frame.MultiplexEndBody(e.id), nil
		}
		chunk, err := t.decode(e.payload)
		if err != nil {
			return frame.Multiplex{}, errors.Wrap(err, "pipe: decode chunk")
		}
		return frame.MultiplexChunk(e.id, chunk), nil
	case frame.KindError:
		return frame.MultiplexError(e.id, errors.New(e.errMsg)), nil
	case frame.KindDone:
		return frame.MultiplexDone(), nil
	default:
		return frame.Multiplex{}, errors.Errorf("pipe: unknown frame kind %v", e.kind)
	}
}

func (t *PipeTransport) WriteMultiplex(ctx context.Context, f frame.Multiplex) error {
	switch f.Kind {
	case frame.KindMessage:
		payload, err := t.encode(f.Head)
		if err != nil {
			return errors.Wrap(err, "pipe: encode head")
		}
		return t.out.send(ctx, wireEnvelope{kind: f.Kind, id: f.ID, solo: f.Solo, hasBody: f.HasBody, payload: payload})
	case frame.KindBody:
		if f.Chunk == nil {
			return t.out.send(ctx, wireEnvelope{kind: f.Kind, id: f.ID, isEnd: true})
		}
		payload, err := t.encode(f.Chunk)
		if err != nil {
			return errors.Wrap(err, "pipe: encode chunk")
		}
		return t.out.send(ctx, wireEnvelope{kind: f.Kind, id: f.ID, payload: payload})
	case frame.KindError:
		return t.out.send(ctx, wireEnvelope{kind: f.Kind, id: f.ID, errMsg: f.Err.Error()})
	case frame.KindDone:
		t.out.closeSend()
		return nil
	default:
		return errors.Errorf("pipe: unknown frame kind %v", f.Kind)
	}
}

// multiplexAdapter lets the same *PipeTransport value satisfy
// MultiplexTransport without colliding with the pipeline ReadFrame/WriteFrame
// method names above.
type multiplexAdapter struct{ t *PipeTransport }

func (t *PipeTransport) AsMultiplex() MultiplexTransport { return multiplexAdapter{t} }

func (m multiplexAdapter) ReadFrame(ctx context.Context) (frame.Multiplex, error) {
	return m.t.ReadMultiplex(ctx)
}
func (m multiplexAdapter) WriteFrame(ctx context.Context, f frame.Multiplex) error {
	return m.t.WriteMultiplex(ctx, f)
}
func (m multiplexAdapter) Flush(ctx context.Context) error { return m.t.Flush(ctx) }
