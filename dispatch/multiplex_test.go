/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/netproto/dispatch/frame"
	"github.com/netproto/dispatch/proxy"
	"github.com/netproto/dispatch/transport"
)

func TestMultiplexRoundTripOutOfOrderResponses(t *testing.T) {
	serverT, clientT := transport.NewPipe(8)

	// first request to arrive sleeps, so a naive FIFO implementation would
	// serialize behind it; the second must still complete first.
	handler := HandlerFunc(func(ctx context.Context, req frame.Message) (frame.Message, error) {
		if req.Head == "slow" {
			time.Sleep(150 * time.Millisecond)
		}
		return frame.WithoutBody(fmt.Sprintf("done:%v", req.Head)), nil
	})
	server := NewMultiplex(serverT.AsMultiplex(), NewMultiplexServer(handler, 8), Options{})

	px := proxy.New(8)
	client := NewMultiplex(clientT.AsMultiplex(), NewMultiplexClient(px), Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go server.Run(ctx)
	go client.Run(ctx)

	slow, err := px.Call(ctx, frame.WithoutBody("slow"))
	if err != nil {
		t.Fatalf("Call(slow): %v", err)
	}
	fast, err := px.Call(ctx, frame.WithoutBody("fast"))
	if err != nil {
		t.Fatalf("Call(fast): %v", err)
	}

	select {
	case r := <-fast:
		if r.Err != nil || r.Response.Head != "done:fast" {
			t.Fatalf("fast result = %+v", r)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("fast call starved behind slow call")
	}

	r := <-slow
	if r.Err != nil || r.Response.Head != "done:slow" {
		t.Fatalf("slow result = %+v", r)
	}
}

func TestMultiplexServerCapsConcurrentInFlight(t *testing.T) {
	serverT, clientT := transport.NewPipe(64)

	const cap = 2
	var active, maxActive int32
	release := make(chan struct{})
	handler := HandlerFunc(func(ctx context.Context, req frame.Message) (frame.Message, error) {
		n := atomic.AddInt32(&active, 1)
		for {
			old := atomic.LoadInt32(&maxActive)
			if n <= old || atomic.CompareAndSwapInt32(&maxActive, old, n) {
				break
			}
		}
		<-release
		atomic.AddInt32(&active, -1)
		return frame.WithoutBody("ok"), nil
	})
	server := NewMultiplex(serverT.AsMultiplex(), NewMultiplexServer(handler, cap), Options{})

	px := proxy.New(16)
	client := NewMultiplex(clientT.AsMultiplex(), NewMultiplexClient(px), Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go server.Run(ctx)
	go client.Run(ctx)

	const n = 5
	var wg sync.WaitGroup
	results := make([]<-chan proxy.Result, n)
	for i := 0; i < n; i++ {
		res, err := px.Call(ctx, frame.WithoutBody(fmt.Sprintf("req%d", i)))
		if err != nil {
			t.Fatalf("Call %d: %v", i, err)
		}
		results[i] = res
	}

	time.Sleep(200 * time.Millisecond) // let the server fill its cap
	if got := atomic.LoadInt32(&active); got > cap {
		t.Fatalf("active = %d, want <= %d", got, cap)
	}
	close(release)

	for i, res := range results {
		wg.Add(1)
		go func(i int, res <-chan proxy.Result) {
			defer wg.Done()
			r := <-res
			if r.Err != nil || r.Response.Head != "ok" {
				t.Errorf("response %d = %+v", i, r)
			}
		}(i, res)
	}
	wg.Wait()

	if maxActive > cap {
		t.Fatalf("observed maxActive = %d, cap = %d", maxActive, cap)
	}
}

func TestMultiplexClientRejectsSoloResponse(t *testing.T) {
	c := &multiplexClientComponent{pending: make(map[uint64]*proxy.Call)}
	err := c.Dispatch(context.Background(), 1, true, frame.Message{}, nil)
	if err == nil {
		t.Fatal("expected an error for a solo frame arriving at the client")
	}
}
