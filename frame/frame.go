// Package frame defines the wire-adjacent frame model shared by the pipeline and
// multiplex dispatchers: the four variants a transport emits and consumes in each
// direction of a connection (see package dispatch for the state machine that drives
// them, and package transport for the contract a concrete transport must satisfy).
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package frame

import "fmt"

// Kind tags a Frame's variant. The zero value is invalid on purpose so a
// zero-initialized Frame is never mistaken for a Message.
type Kind uint8

const (
	_ Kind = iota
	KindMessage
	KindBody
	KindError
	KindDone
)

func (k Kind) String() string {
	switch k {
	case KindMessage:
		return "message"
	case KindBody:
		return "body"
	case KindError:
		return "error"
	case KindDone:
		return "done"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Pipeline is one frame of the pipeline wire protocol (spec §3 "Frame (pipeline)").
//
// Invariants the sender of a direction must uphold (and the dispatcher assumes
// when reading the other direction):
//  1. Message{HasBody:true} is followed by zero or more Body frames with a
//     non-nil Chunk and then exactly one Body{Chunk:nil} or one Error; after
//     that the next Message may be sent.
//  2. Message{HasBody:false} retires immediately; no Body/Error follows it.
//  3. Only one head is "open for body" at a time, in each direction.
//  4. Done is idempotent and terminates that direction.
type Pipeline struct {
	Kind    Kind
	Head    any   // valid when Kind == KindMessage
	HasBody bool  // valid when Kind == KindMessage
	Chunk   any   // valid when Kind == KindBody; nil means end-of-body
	Err     error // valid when Kind == KindError
}

func PipelineMessage(head any, hasBody bool) Pipeline {
	return Pipeline{Kind: KindMessage, Head: head, HasBody: hasBody}
}

func PipelineChunk(chunk any) Pipeline { return Pipeline{Kind: KindBody, Chunk: chunk} }

func PipelineEndBody() Pipeline { return Pipeline{Kind: KindBody, Chunk: nil} }

func PipelineError(err error) Pipeline { return Pipeline{Kind: KindError, Err: err} }

func PipelineDone() Pipeline { return Pipeline{Kind: KindDone} }

func (f Pipeline) String() string {
	switch f.Kind {
	case KindMessage:
		return fmt.Sprintf("message(has_body=%v)", f.HasBody)
	case KindBody:
		if f.Chunk == nil {
			return "body(end)"
		}
		return "body(chunk)"
	case KindError:
		return fmt.Sprintf("error(%v)", f.Err)
	case KindDone:
		return "done"
	default:
		return f.Kind.String()
	}
}

// Multiplex is one frame of the multiplex wire protocol (spec §3 "Frame
// (multiplex)"). Every variant but Done carries an ID that routes it to the
// in-flight entry it belongs to; Solo marks a Message that expects no response.
type Multiplex struct {
	Kind    Kind
	ID      uint64
	Solo    bool
	Head    any
	HasBody bool
	Chunk   any
	Err     error
}

func MultiplexMessage(id uint64, solo bool, head any, hasBody bool) Multiplex {
	return Multiplex{Kind: KindMessage, ID: id, Solo: solo, Head: head, HasBody: hasBody}
}

func MultiplexChunk(id uint64, chunk any) Multiplex {
	return Multiplex{Kind: KindBody, ID: id, Chunk: chunk}
}

func MultiplexEndBody(id uint64) Multiplex { return Multiplex{Kind: KindBody, ID: id} }

func MultiplexError(id uint64, err error) Multiplex {
	return Multiplex{Kind: KindError, ID: id, Err: err}
}

func MultiplexDone() Multiplex { return Multiplex{Kind: KindDone} }

func (f Multiplex) String() string {
	switch f.Kind {
	case KindMessage:
		return fmt.Sprintf("message(id=%d, solo=%v, has_body=%v)", f.ID, f.Solo, f.HasBody)
	case KindBody:
		if f.Chunk == nil {
			return fmt.Sprintf("body(id=%d, end)", f.ID)
		}
		return fmt.Sprintf("body(id=%d, chunk)", f.ID)
	case KindError:
		return fmt.Sprintf("error(id=%d, %v)", f.ID, f.Err)
	case KindDone:
		return "done"
	default:
		return f.Kind.String()
	}
}
