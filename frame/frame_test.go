/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package frame

import (
	"errors"
	"testing"
)

func TestPipelineConstructorsAndString(t *testing.T) {
	cases := []struct {
		name string
		f    Pipeline
		want string
	}{
		{"message no body", PipelineMessage("head", false), "message(has_body=false)"},
		{"message with body", PipelineMessage("head", true), "message(has_body=true)"},
		{"chunk", PipelineChunk(42), "body(chunk)"},
		{"end body", PipelineEndBody(), "body(end)"},
		{"error", PipelineError(errors.New("boom")), "error(boom)"},
		{"done", PipelineDone(), "done"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.f.String(); got != tc.want {
				t.Errorf("String() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestMultiplexConstructorsAndString(t *testing.T) {
	cases := []struct {
		name string
		f    Multiplex
		want string
	}{
		{"message", MultiplexMessage(7, false, "head", true), "message(id=7, solo=false, has_body=true)"},
		{"solo", MultiplexMessage(3, true, "head", false), "message(id=3, solo=true, has_body=false)"},
		{"chunk", MultiplexChunk(7, "x"), "body(id=7, chunk)"},
		{"end", MultiplexEndBody(7), "body(id=7, end)"},
		{"error", MultiplexError(7, errors.New("nope")), "error(id=7, nope)"},
		{"done", MultiplexDone(), "done"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.f.String(); got != tc.want {
				t.Errorf("String() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestKindZeroValueIsInvalid(t *testing.T) {
	var k Kind
	if k == KindMessage || k == KindBody || k == KindError || k == KindDone {
		t.Fatalf("zero Kind must not equal any named variant, got %v", k)
	}
}

func TestMessageHasBody(t *testing.T) {
	if (WithoutBody("h")).HasBody() {
		t.Fatal("WithoutBody message reports HasBody")
	}
}
