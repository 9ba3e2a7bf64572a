// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package record

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"time"
	"unicode/utf8"
)

// DefaultMaxSize is the default upper bound of a rendered record, in bytes.
const DefaultMaxSize = 256

// Formatter renders log calls into records of bounded size, in the same shape
// as the device's console lines:
//
//	I (1234) wifi (connect:87) got ip 192.168.1.20
type Formatter struct {
	// MaxSize bounds every record produced by the formatter.
	MaxSize int
	// Clock returns the monotonic time elapsed since the formatter's epoch.
	Clock func() time.Duration

	alloc Allocator
}

// NewFormatter returns a formatter whose timestamps count from now.
func NewFormatter(maxSize int, alloc Allocator) *Formatter {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if alloc == nil {
		alloc = NewPoolAllocator(maxSize)
	}
	epoch := time.Now()
	return &Formatter{
		MaxSize: maxSize,
		Clock:   func() time.Duration { return time.Since(epoch) },
		alloc:   alloc,
	}
}

// Format renders one log call. The message is always expanded printf-style
// from template and args; already rendered text is passed as "%s".
// Output longer than MaxSize is truncated on a UTF-8 boundary.
func (f *Formatter) Format(sev Severity, tag, sourceFile string, line int, function, template string, args ...interface{}) *Record {
	w := f.newWriter()
	f.stamp(w, sev)

	if function == "" && sourceFile != "" {
		function = filepath.Base(sourceFile)
	}
	w.WriteString(tag)
	w.WriteString(" (")
	w.WriteString(function)
	w.WriteString(":")
	w.WriteString(strconv.Itoa(line))
	w.WriteString(") ")

	fmt.Fprintf(w, template, args...)
	return f.finish(w)
}

// Notice renders a record that did not originate from a source location.
func (f *Formatter) Notice(sev Severity, tag, function, template string, args ...interface{}) *Record {
	return f.Format(sev, tag, "", 0, function, template, args...)
}

// Copy makes a record from text that was already rendered elsewhere, such as
// a line written through the standard logger. Trailing newlines are dropped.
// Returns nil when nothing but whitespace remains.
func (f *Formatter) Copy(text []byte) *Record {
	text = bytes.TrimRight(text, "\r\n")
	if len(bytes.TrimSpace(text)) == 0 {
		return nil
	}
	w := f.newWriter()
	w.Write(text)
	return f.finish(w)
}

func (f *Formatter) stamp(w *boundedWriter, sev Severity) {
	w.WriteString(sev.Letter())
	w.WriteString(" (")
	w.WriteString(strconv.FormatInt(f.Clock().Milliseconds(), 10))
	w.WriteString(") ")
}

func (f *Formatter) newWriter() *boundedWriter {
	return &boundedWriter{buf: f.alloc.Alloc(f.MaxSize), max: f.MaxSize}
}

func (f *Formatter) finish(w *boundedWriter) *Record {
	return newRecord(bytes.TrimRight(w.buf, "\r\n"), f.alloc)
}

// boundedWriter appends into a buffer and silently drops whatever does not
// fit in max bytes. Once truncated it accepts no further bytes.
type boundedWriter struct {
	buf  []byte
	max  int
	full bool
}

var _ io.Writer = (*boundedWriter)(nil)

func (w *boundedWriter) Write(p []byte) (int, error) {
	if w.full {
		return len(p), nil
	}
	room := w.max - len(w.buf)
	if len(p) <= room {
		w.buf = append(w.buf, p...)
		return len(p), nil
	}
	cut := room
	for cut > 0 && !utf8.RuneStart(p[cut]) {
		cut--
	}
	w.buf = append(w.buf, p[:cut]...)
	w.full = true
	return len(p), nil
}

func (w *boundedWriter) WriteString(s string) {
	w.Write([]byte(s))
}

// Truncated reports whether the writer dropped any bytes.
func (w *boundedWriter) Truncated() bool {
	return w.full
}
