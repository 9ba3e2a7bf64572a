// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package logging

import (
	"io"
	"sync"
)

// ConsoleWriter is the local echo of every record and routed line. Writes
// are serialized so lines from concurrent producers stay whole. While muted
// it swallows writes and still reports them as complete, so producers never
// see the console as an error.
type ConsoleWriter struct {
	mu    sync.Mutex
	out   io.Writer
	muted bool
}

func NewConsoleWriter(w io.Writer) *ConsoleWriter {
	return &ConsoleWriter{out: w}
}

// Enable resumes echoing to the console.
func (cw *ConsoleWriter) Enable() {
	cw.setMuted(false)
}

// Disable mutes the console. Records still reach the queue.
func (cw *ConsoleWriter) Disable() {
	cw.setMuted(true)
}

func (cw *ConsoleWriter) Enabled() bool {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return !cw.muted
}

func (cw *ConsoleWriter) setMuted(muted bool) {
	cw.mu.Lock()
	cw.muted = muted
	cw.mu.Unlock()
}

func (cw *ConsoleWriter) Write(p []byte) (int, error) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cw.muted {
		return len(p), nil
	}
	return cw.out.Write(p)
}
