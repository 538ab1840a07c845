/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package body

import (
	"context"
	"testing"
	"time"
)

func TestEmptyEndsImmediately(t *testing.T) {
	b := Empty()
	ctx := context.Background()
	if val, ok, err := b.Next(ctx); ok || err != nil || val != nil {
		t.Fatalf("Next() = %v, %v, %v; want nil, false, nil", val, ok, err)
	}
	// repeated calls stay terminal
	if _, ok, err := b.Next(ctx); ok || err != nil {
		t.Fatalf("second Next() should stay terminal")
	}
}

func TestPairRoundTrip(t *testing.T) {
	sender, b := Pair(0)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := sender.Send(ctx, "one"); err != nil {
			t.Errorf("Send: %v", err)
		}
		if err := sender.Send(ctx, "two"); err != nil {
			t.Errorf("Send: %v", err)
		}
		sender.End()
	}()

	var got []string
	for {
		val, ok, err := b.Next(ctx)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		got = append(got, val.(string))
	}
	<-done

	if len(got) != 2 || got[0] != "one" || got[1] != "two" {
		t.Fatalf("got %v, want [one two]", got)
	}
}

func TestSenderFailTerminatesWithError(t *testing.T) {
	sender, b := Pair(2)
	ctx := context.Background()
	wantErr := context.DeadlineExceeded

	if err := sender.Send(ctx, "chunk"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := sender.Fail(ctx, wantErr); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	val, ok, err := b.Next(ctx)
	if !ok || err != nil {
		t.Fatalf("first Next should yield the buffered chunk, got %v, %v, %v", val, ok, err)
	}
	_, ok, err = b.Next(ctx)
	if ok || err != wantErr {
		t.Fatalf("Next() = _, %v, %v; want false, %v", ok, err, wantErr)
	}
}

func TestBodyCloseCancelsSender(t *testing.T) {
	sender, b := Pair(0)
	b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := sender.Send(ctx, "too late"); err != ErrCanceled {
		t.Fatalf("Send after Close = %v, want ErrCanceled", err)
	}
}

func TestSenderEndIsIdempotent(t *testing.T) {
	sender, _ := Pair(0)
	sender.End()
	sender.End() // must not panic on double-close
}
