// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package logging

import (
	"io"
	"runtime"
	"sync/atomic"

	"go.wifilogger.dev/wifilogger/queue"
	"go.wifilogger.dev/wifilogger/record"
)

// Logger is the producer call surface. Each call renders one record, writes
// it to the console and offers it to the queue; a full queue drops it.
type Logger struct {
	queue     *queue.Queue
	formatter *record.Formatter
	console   io.Writer
	level     atomic.Int32
}

// NewLogger returns a logger emitting every severity. A nil console
// discards console output.
func NewLogger(q *queue.Queue, f *record.Formatter, console io.Writer) *Logger {
	if console == nil {
		console = io.Discard
	}
	l := &Logger{queue: q, formatter: f, console: console}
	l.level.Store(int32(record.SeverityVerbose))
	return l
}

// SetLevel drops every call less severe than sev.
func (l *Logger) SetLevel(sev record.Severity) {
	l.level.Store(int32(sev.Rank()))
}

func (l *Logger) Enabled(sev record.Severity) bool {
	return int32(sev.Rank()) <= l.level.Load()
}

// Emit renders and enqueues one record. It returns queue.ErrQueueFull when
// the record was dropped, after releasing it.
func (l *Logger) Emit(sev record.Severity, tag, file string, line int, function, template string, args ...interface{}) error {
	if !l.Enabled(sev) {
		return nil
	}
	r := l.formatter.Format(sev, tag, file, line, function, template, args...)

	// the record may be reused as soon as the dispatcher is done with it
	out := make([]byte, 0, r.Len()+1)
	out = append(append(out, r.Bytes()...), '\n')
	l.console.Write(out)

	if err := l.queue.TryEnqueue(r); err != nil {
		r.Release()
		return err
	}
	return nil
}

func (l *Logger) Errorf(tag, template string, args ...interface{}) {
	l.emitCaller(record.SeverityError, tag, template, args...)
}

func (l *Logger) Warnf(tag, template string, args ...interface{}) {
	l.emitCaller(record.SeverityWarning, tag, template, args...)
}

func (l *Logger) Infof(tag, template string, args ...interface{}) {
	l.emitCaller(record.SeverityInfo, tag, template, args...)
}

func (l *Logger) Debugf(tag, template string, args ...interface{}) {
	l.emitCaller(record.SeverityDebug, tag, template, args...)
}

func (l *Logger) Verbosef(tag, template string, args ...interface{}) {
	l.emitCaller(record.SeverityVerbose, tag, template, args...)
}

// emitCaller must be called directly from the exported helpers so that the
// call site is three frames up, counting runtime.Callers.
func (l *Logger) emitCaller(sev record.Severity, tag, template string, args ...interface{}) {
	if !l.Enabled(sev) {
		return
	}
	var file, function string
	var line int
	var pcs [1]uintptr
	if runtime.Callers(3, pcs[:]) > 0 {
		frame, _ := runtime.CallersFrames(pcs[:]).Next()
		file, line, function = frame.File, frame.Line, shortFunction(frame.Function)
	}
	l.Emit(sev, tag, file, line, function, template, args...)
}
