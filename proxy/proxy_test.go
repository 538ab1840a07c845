/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package proxy

import (
	"context"
	"testing"

	"github.com/netproto/dispatch/frame"
	"github.com/netproto/dispatch/internal/xerr"
)

func TestCallDequeueFulfillRoundTrip(t *testing.T) {
	px := New(2)
	ctx := context.Background()

	results, err := px.Call(ctx, frame.WithoutBody("req"))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}

	call, ok := px.Dequeue(ctx)
	if !ok {
		t.Fatal("Dequeue: !ok")
	}
	if call.Request.Head != "req" {
		t.Fatalf("Request.Head = %v", call.Request.Head)
	}
	call.Fulfill(frame.WithoutBody("resp"), nil)

	res := <-results
	if res.Err != nil || res.Response.Head != "resp" {
		t.Fatalf("res = %+v", res)
	}
}

func TestCallFailsWhenQueueFull(t *testing.T) {
	px := New(1)
	ctx := context.Background()

	if _, err := px.Call(ctx, frame.WithoutBody("a")); err != nil {
		t.Fatalf("first Call: %v", err)
	}
	if _, err := px.Call(ctx, frame.WithoutBody("b")); err != xerr.ErrQueueFull {
		t.Fatalf("second Call = %v, want ErrQueueFull", err)
	}
}

func TestCallAfterCloseFailsWithBrokenPipe(t *testing.T) {
	px := New(1)
	ctx := context.Background()
	px.Close()

	results, err := px.Call(ctx, frame.WithoutBody("req"))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	res := <-results
	if res.Err != xerr.ErrBrokenPipe {
		t.Fatalf("res.Err = %v, want ErrBrokenPipe", res.Err)
	}
}

func TestFulfillIsIdempotent(t *testing.T) {
	call := &Call{Request: frame.WithoutBody("x"), result: make(chan Result, 1)}
	call.Fulfill(frame.WithoutBody("first"), nil)
	call.Fulfill(frame.WithoutBody("second"), nil) // must not panic or block

	res := <-call.result
	if res.Response.Head != "first" {
		t.Fatalf("Response.Head = %v, want first", res.Response.Head)
	}
}

func TestDequeueAfterCloseDrainsThenReportsDone(t *testing.T) {
	px := New(1)
	ctx := context.Background()

	if _, err := px.Call(ctx, frame.WithoutBody("a")); err != nil {
		t.Fatalf("Call: %v", err)
	}
	px.Close()

	if call, ok := px.Dequeue(ctx); !ok || call.Request.Head != "a" {
		t.Fatalf("first Dequeue = %+v, %v", call, ok)
	}
	if _, ok := px.Dequeue(ctx); ok {
		t.Fatal("Dequeue after drain should report ok=false")
	}
}
