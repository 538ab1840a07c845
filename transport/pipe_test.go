/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package transport

import (
	"context"
	"testing"

	"github.com/netproto/dispatch/frame"
)

func TestPipeRoundTripPipeline(t *testing.T) {
	a, b := NewPipe(4)
	ctx := context.Background()

	if err := a.WriteFrame(ctx, frame.PipelineMessage("hello", false)); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if err := a.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	got, err := b.ReadFrame(ctx)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if got.Kind != frame.KindMessage || got.Head != "hello" || got.HasBody {
		t.Fatalf("got %+v", got)
	}
}

func TestPipeRoundTripBodyChunksAndEnd(t *testing.T) {
	a, b := NewPipe(4)
	ctx := context.Background()

	_ = a.WriteFrame(ctx, frame.PipelineMessage("h", true))
	_ = a.WriteFrame(ctx, frame.PipelineChunk("c1"))
	_ = a.WriteFrame(ctx, frame.PipelineEndBody())

	head, _ := b.ReadFrame(ctx)
	chunk, _ := b.ReadFrame(ctx)
	end, _ := b.ReadFrame(ctx)

	if !head.HasBody {
		t.Fatal("head should report HasBody")
	}
	if chunk.Kind != frame.KindBody || chunk.Chunk != "c1" {
		t.Fatalf("chunk = %+v", chunk)
	}
	if end.Kind != frame.KindBody || end.Chunk != nil {
		t.Fatalf("end = %+v", end)
	}
}

func TestPipeDoneClosesReadSide(t *testing.T) {
	a, b := NewPipe(1)
	ctx := context.Background()

	if err := a.WriteFrame(ctx, frame.PipelineDone()); err != nil {
		t.Fatalf("WriteFrame(Done): %v", err)
	}
	if _, err := b.ReadFrame(ctx); err != ErrClosed {
		t.Fatalf("ReadFrame after Done = %v, want ErrClosed", err)
	}
}

func TestPipeRoundTripMultiplex(t *testing.T) {
	a, b := NewPipe(4)
	ctx := context.Background()
	am, bm := a.AsMultiplex(), b.AsMultiplex()

	if err := am.WriteFrame(ctx, frame.MultiplexMessage(9, false, "req", false)); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	got, err := bm.ReadFrame(ctx)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if got.ID != 9 || got.Head != "req" || got.Solo {
		t.Fatalf("got %+v", got)
	}
}

func TestPipeErrorFrameCarriesMessage(t *testing.T) {
	a, b := NewPipe(1)
	ctx := context.Background()

	wantMsg := "boom"
	_ = a.WriteFrame(ctx, frame.PipelineError(errWithMessage(wantMsg)))
	got, err := b.ReadFrame(ctx)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if got.Kind != frame.KindError || got.Err.Error() != wantMsg {
		t.Fatalf("got %+v", got)
	}
}

type simpleErr string

func (e simpleErr) Error() string { return string(e) }

func errWithMessage(msg string) error { return simpleErr(msg) }
