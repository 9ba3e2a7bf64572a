// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package logging

import (
	"bytes"
	"fmt"
	"io"
	stdlog "log"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"go.wifilogger.dev/wifilogger/queue"
	"go.wifilogger.dev/wifilogger/record"
)

// Router is installed as the output of the standard loggers. Every line
// written to it goes to the console and, while routing is enabled, is copied
// into a record and offered to the queue. It never blocks on the queue.
type Router struct {
	queue     *queue.Queue
	formatter *record.Formatter
	console   io.Writer

	enabled atomic.Bool
	routed  atomic.Uint64
	dropped atomic.Uint64
}

// NewRouter returns an enabled router. A nil console discards console output.
func NewRouter(q *queue.Queue, f *record.Formatter, console io.Writer) *Router {
	if console == nil {
		console = io.Discard
	}
	r := &Router{queue: q, formatter: f, console: console}
	r.enabled.Store(true)
	return r
}

// Write forwards p to the console, then routes each newline separated line
// of p as its own record. The console byte count is returned.
func (r *Router) Write(p []byte) (int, error) {
	n, err := r.console.Write(p)
	if !r.enabled.Load() {
		return n, err
	}

	for _, line := range bytes.SplitAfter(p, []byte("\n")) {
		rec := r.formatter.Copy(line)
		if rec == nil {
			continue
		}
		if r.queue.Offer(rec) {
			r.routed.Add(1)
		} else {
			r.dropped.Add(1)
		}
	}
	return n, err
}

// Printf renders the message and writes it through the router.
func (r *Router) Printf(format string, args ...interface{}) int {
	n, _ := r.Write([]byte(fmt.Sprintf(format, args...)))
	return n
}

// SetEnabled switches routing on or off. The console keeps receiving
// every line either way.
func (r *Router) SetEnabled(enabled bool) {
	r.enabled.Store(enabled)
}

func (r *Router) Enabled() bool {
	return r.enabled.Load()
}

// Routed returns the number of lines that made it into the queue.
func (r *Router) Routed() uint64 {
	return r.routed.Load()
}

// Dropped returns the number of lines the queue rejected.
func (r *Router) Dropped() uint64 {
	return r.dropped.Load()
}

// Route makes w the output of the standard library logger and of the logrus
// standard logger. The returned function restores the previous outputs.
func Route(w io.Writer) (restore func()) {
	prevStd := stdlog.Writer()
	prevLogrus := log.StandardLogger().Out
	SetOutput(w)
	return func() {
		stdlog.SetOutput(prevStd)
		log.SetOutput(prevLogrus)
	}
}
