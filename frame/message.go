/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package frame

import "github.com/netproto/dispatch/body"

// Message pairs a head with an optional body stream (spec §3 "Message"). A
// WithBody message's Body is consumed at most once by the caller.
type Message struct {
	Head any
	Body *body.Body // nil iff the message has no body
}

func WithoutBody(head any) Message { return Message{Head: head} }

func WithBody(head any, b *body.Body) Message { return Message{Head: head, Body: b} }

func (m Message) HasBody() bool { return m.Body != nil }
