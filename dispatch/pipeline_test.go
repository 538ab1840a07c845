/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/netproto/dispatch/body"
	"github.com/netproto/dispatch/frame"
	"github.com/netproto/dispatch/internal/xerr"
	"github.com/netproto/dispatch/proxy"
	"github.com/netproto/dispatch/transport"
)

func echoHandler(ctx context.Context, req frame.Message) (frame.Message, error) {
	return frame.WithoutBody(fmt.Sprintf("echo:%v", req.Head)), nil
}

func TestPipelineRoundTripThreeRequestsInOrder(t *testing.T) {
	serverT, clientT := transport.NewPipe(4)

	serverComp := NewPipelineServer(HandlerFunc(echoHandler))
	server := NewPipeline(serverT, serverComp, Options{SessionID: "srv"})

	px := proxy.New(8)
	clientComp := NewPipelineClient(px)
	client := NewPipeline(clientT, clientComp, Options{SessionID: "cli"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go server.Run(ctx)
	go client.Run(ctx)

	results := make([]<-chan proxy.Result, 3)
	for i := 0; i < 3; i++ {
		res, err := px.Call(ctx, frame.WithoutBody(fmt.Sprintf("req%d", i)))
		if err != nil {
			t.Fatalf("Call %d: %v", i, err)
		}
		results[i] = res
	}

	for i, res := range results {
		r := <-res
		if r.Err != nil {
			t.Fatalf("response %d error: %v", i, r.Err)
		}
		want := fmt.Sprintf("echo:req%d", i)
		if r.Response.Head != want {
			t.Fatalf("response %d = %v, want %v", i, r.Response.Head, want)
		}
	}
}

func TestPipelineStreamingBodyRoundTrip(t *testing.T) {
	serverT, clientT := transport.NewPipe(4)

	handler := HandlerFunc(func(ctx context.Context, req frame.Message) (frame.Message, error) {
		if !req.HasBody() {
			return frame.Message{}, fmt.Errorf("expected body")
		}
		var sum float64
		for {
			val, ok, err := req.Body.Next(ctx)
			if err != nil {
				return frame.Message{}, err
			}
			if !ok {
				break
			}
			sum += val.(float64)
		}
		return frame.WithoutBody(sum), nil
	})
	server := NewPipeline(serverT, NewPipelineServer(handler), Options{})

	px := proxy.New(4)
	client := NewPipeline(clientT, NewPipelineClient(px), Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go server.Run(ctx)
	go client.Run(ctx)

	sender, b := body.Pair(0)
	results, err := px.Call(ctx, frame.WithBody("sum-request", b))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	go func() {
		for _, v := range []int{1, 2, 3} {
			_ = sender.Send(ctx, v)
		}
		sender.End()
	}()

	res := <-results
	if res.Err != nil {
		t.Fatalf("response error: %v", res.Err)
	}
	if res.Response.Head != float64(6) {
		t.Fatalf("sum = %v, want 6", res.Response.Head)
	}
}

func TestPipelineClosesWithBrokenPipeOnContextCancel(t *testing.T) {
	serverT, clientT := transport.NewPipe(0)
	_ = serverT

	px := proxy.New(1)
	client := NewPipeline(clientT, NewPipelineClient(px), Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- client.Run(ctx) }()

	results, err := px.Call(context.Background(), frame.WithoutBody("never answered"))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}

	cancel()
	<-done

	select {
	case res := <-results:
		if !errors.Is(res.Err, xerr.ErrBrokenPipe) {
			t.Fatalf("res.Err = %v, want an error wrapping xerr.ErrBrokenPipe once the dispatcher gives up on the pending call", res.Err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pending call never resolved after dispatcher shutdown")
	}
}
