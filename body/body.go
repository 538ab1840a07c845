// Package body implements the finite, single-producer/single-consumer chunk
// stream used by both request and response streaming bodies (spec §3 "Body
// stream", §4.2). A Body is created either empty (immediate end) or paired with
// a Sender the dispatcher feeds as chunks arrive off the wire.
//
// The channel-pair-with-drop-signaling shape mirrors the teacher's
// transport.MsgStream send queue (transport/sendmsg.go: a buffered workCh read
// by one goroutine, closed or abandoned to signal the consumer), adapted here to
// a single chunk rather than a whole message stream.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package body

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// ErrCanceled is reported by Sender.Send once the paired Body's receiver side
// has been dropped (spec §4.2 "body drop causes subsequent sender.start_send to
// report cancellation; non-fatal to the dispatcher").
var ErrCanceled = errors.New("body: receiver dropped, send canceled")

// chunk is one item flowing from Sender to Body: either a payload, an error
// terminating the stream in lieu of end, or neither (plain end-of-body).
type chunk struct {
	val any
	err error
}

// Body is the receive half of a chunk stream. Zero value is not usable; build
// one with Empty or Pair.
type Body struct {
	ch     chan chunk
	done   bool  // local to the reader goroutine, not shared
	err    error // terminal error, if the stream ended with one
	cancel func()
}

// Empty returns a Body whose first Next reports end immediately (spec §4.2
// "empty()").
func Empty() *Body {
	b := &Body{ch: make(chan chunk), cancel: func() {}}
	close(b.ch)
	return b
}

// Pair constructs a connected Sender/Body pair (spec §4.2 "pair()"). capacity
// bounds how many chunks the sender may have in flight before Send blocks;
// capacity 0 makes every Send rendezvous with a Next.
func Pair(capacity int) (*Sender, *Body) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan chunk, capacity)
	b := &Body{ch: ch, cancel: cancel}
	s := &Sender{ch: ch, ctx: ctx}
	return s, b
}

// Next blocks until a chunk is available, the stream ends, or ctx is done.
// After end (ok == false, err == nil) or error, every subsequent call returns
// the same terminal result without touching the channel again.
func (b *Body) Next(ctx context.Context) (val any, ok bool, err error) {
	if b.done {
		return nil, false, b.err
	}
	select {
	case c, open := <-b.ch:
		if !open {
			b.done = true
			return nil, false, nil
		}
		if c.err != nil {
			b.done, b.err = true, c.err
			return nil, false, c.err
		}
		if c.val == nil {
			b.done = true
			return nil, false, nil
		}
		return c.val, true, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// Close drops the receiver's interest in the stream. Any Sender.Send racing
// with or following Close observes ErrCanceled. Safe to call more than once
// and safe to call after the stream has already ended.
func (b *Body) Close() {
	if b.cancel != nil {
		b.cancel()
	}
}

// Drain discards every remaining chunk without inspecting it, used when a
// consumer abandons a body mid-stream but the dispatcher must still retire the
// frames already in flight for it (spec boundary scenario 4: "receiver
// dropped... further Body frames must be accepted and silently discarded").
func (b *Body) Drain() {
	for {
		_, ok, err := b.Next(context.Background())
		if !ok || err != nil {
			return
		}
	}
}

// Sender is the send half created by Pair. Exactly one goroutine — the
// dispatcher demultiplexing inbound frames — should call Send/End/Fail for a
// given Sender.
type Sender struct {
	ch     chan chunk
	ctx    context.Context
	mu     sync.Mutex
	closed bool
}

// Send delivers one chunk. It blocks until the receiver (or its buffer) has
// room, the Body is closed, or ctx is done. Returns ErrCanceled if the Body's
// receiver has gone away; this is non-fatal to the caller's dispatcher loop
// (spec §4.4(b).3: "if the sender reports cancellation, drop the sender and
// continue").
func (s *Sender) Send(ctx context.Context, val any) error {
	if val == nil {
		panic("body: Send called with nil value; use End")
	}
	return s.put(ctx, chunk{val: val})
}

// End signals normal end-of-body (spec §4.2 "sender drop yields end"; modeled
// explicitly here rather than relying on garbage collection to close ch).
func (s *Sender) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// Fail terminates the body with an error in lieu of end (spec §7 "Body error").
func (s *Sender) Fail(ctx context.Context, err error) error {
	return s.put(ctx, chunk{err: err})
}

func (s *Sender) put(ctx context.Context, c chunk) error {
	s.mu.Lock()
	if s.closed || s.ctx.Err() != nil {
		s.mu.Unlock()
		return ErrCanceled
	}
	s.mu.Unlock()

	select {
	case s.ch <- c:
		if c.err != nil {
			s.mu.Lock()
			if !s.closed {
				s.closed = true
				close(s.ch)
			}
			s.mu.Unlock()
		}
		return nil
	case <-s.ctx.Done():
		return ErrCanceled
	case <-ctx.Done():
		return ctx.Err()
	}
}
