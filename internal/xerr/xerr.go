// Package xerr names the error taxonomy of spec §7: transport/protocol failures
// that are fatal to a dispatcher, versus handler errors and requester drops that
// are not. Follows the teacher's cmn package convention of exporting sentinel
// values and format constants (cmn.FmtErrUnknown and friends) rather than ad hoc
// fmt.Errorf strings scattered through call sites.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package xerr

import "github.com/pkg/errors"

var (
	// ErrBrokenPipe is delivered to every pending requester when the
	// transport fails unrecoverably or the dispatcher is dropped with
	// requests outstanding (spec §3 "Lifecycle", §7 item 1).
	ErrBrokenPipe = errors.New("dispatch: broken pipe")

	// ErrProtocol marks an incoming frame inconsistent with the wire
	// invariants of spec §3 (e.g. a body chunk with no open head in
	// pipeline mode). Fatal to the dispatcher (spec §7 item 2).
	ErrProtocol = errors.New("dispatch: protocol violation")

	// ErrMismatch is ErrProtocol's specific multiplex-client case: a
	// response frame whose id has no matching in-flight request
	// (spec §4.5 point 3, "request/response mismatch").
	ErrMismatch = errors.New("dispatch: request/response mismatch")

	// ErrNoStreaming is returned by the RPC adapters when a message
	// carrying a body (HasBody) crosses a body-less adapter in either
	// direction (spec §4.6). Error frames are passed through to the
	// wrapped component.
	ErrNoStreaming = errors.New("dispatch: no support for streaming")

	// ErrQueueFull is proxy.Call's synchronous failure when the
	// proxy-to-dispatcher queue has no room (spec §4.3, §9 "Back-pressure
	// from handler to client").
	ErrQueueFull = errors.New("dispatch: request queue full")

	// ErrStarvation is the frame-buffer starvation guard's fatal error
	// (spec §4.5, §9 "Frame-buffer timeout").
	ErrStarvation = errors.New("dispatch: frame buffer starvation, no progress before timeout")
)

// Wrap annotates err with msg using pkg/errors, preserving the original for
// errors.Is/As — the teacher's idiom across dsort/ext/dsort (errors.Wrap,
// errors.Errorf) rather than fmt.Errorf("%w", ...).
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, msg)
}

// Wrapf is Wrap with formatting.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, format, args...)
}
