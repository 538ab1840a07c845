// Package nlog is a trimmed leveled logger carrying the public call-site shape
// of the teacher's cmn/nlog (Infof/Warningln/Errorf, severity-gated, a single
// mutex-guarded writer) without its log-rotation/mmap buffering: that machinery
// exists to keep a long-running cluster node's disk logs bounded, and this
// module is a library embedded in an arbitrary host process with no log file of
// its own to rotate.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package nlog

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

type severity int

const (
	sevInfo severity = iota
	sevWarn
	sevErr
)

func (s severity) tag() byte {
	switch s {
	case sevWarn:
		return 'W'
	case sevErr:
		return 'E'
	default:
		return 'I'
	}
}

var (
	mu     sync.Mutex
	out    io.Writer = os.Stderr
	thresh           = sevInfo
)

// SetOutput redirects all log output; tests use this to capture lines.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// SetThreshold suppresses severities below level ("I", "W", "E").
func SetThreshold(level string) {
	mu.Lock()
	defer mu.Unlock()
	switch level {
	case "W":
		thresh = sevWarn
	case "E":
		thresh = sevErr
	default:
		thresh = sevInfo
	}
}

func line(sev severity, format string, args []any) {
	mu.Lock()
	defer mu.Unlock()
	if sev < thresh {
		return
	}
	msg := format
	if format == "" {
		msg = fmt.Sprintln(args...)
	} else {
		msg = fmt.Sprintf(format+"\n", args...)
	}
	fmt.Fprintf(out, "%c%s %s", sev.tag(), time.Now().Format("0102 15:04:05.000000"), msg)
}

func Infof(format string, args ...any)    { line(sevInfo, format, args) }
func Infoln(args ...any)                  { line(sevInfo, "", args) }
func Warningf(format string, args ...any) { line(sevWarn, format, args) }
func Warningln(args ...any)               { line(sevWarn, "", args) }
func Errorf(format string, args ...any)   { line(sevErr, format, args) }
func Errorln(args ...any)                 { line(sevErr, "", args) }
