// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package collector

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/gzip"

	"go.wifilogger.dev/wifilogger/transport"
)

// Line is one record as received by the collector.
type Line struct {
	Received time.Time
	Kind     transport.Kind
	// Remote is the sender's network address.
	Remote string
	// Device is the id announced on websocket upgrade, empty otherwise.
	Device string
	Text   string
}

// Origin names the sender: the device id when known, the remote address otherwise.
func (l Line) Origin() string {
	if l.Device != "" {
		return l.Device
	}
	return l.Remote
}

// Sink consumes received lines. Consume is called concurrently.
type Sink interface {
	Consume(line Line) error
	Close() error
}

// WriterSink prints lines to w, prefixed with their origin.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Consume(line Line) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.w, "%s %s\n", line.Origin(), line.Text)
	return err
}

func (s *WriterSink) Close() error {
	return nil
}

// ArchiveSink appends lines to a gzip file. Each run adds a gzip member, so
// an archive reopened across restarts stays readable as one stream.
type ArchiveSink struct {
	mu   sync.Mutex
	file *os.File
	gz   *gzip.Writer
}

func NewArchiveSink(path string) (*ArchiveSink, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open archive %s", path)
	}
	gz, err := gzip.NewWriterLevel(file, gzip.BestSpeed)
	if err != nil {
		file.Close()
		return nil, errors.Wrap(err, "could not create gzip writer")
	}
	return &ArchiveSink{file: file, gz: gz}, nil
}

func (s *ArchiveSink) Consume(line Line) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gz == nil {
		return errors.New("archive is closed")
	}
	_, err := fmt.Fprintf(s.gz, "%s %s %s\n", line.Received.UTC().Format(time.RFC3339Nano), line.Origin(), line.Text)
	return err
}

// Flush pushes buffered lines to the file.
func (s *ArchiveSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gz == nil {
		return nil
	}
	return s.gz.Flush()
}

func (s *ArchiveSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gz == nil {
		return nil
	}
	gzErr := s.gz.Close()
	s.gz = nil
	fileErr := s.file.Close()
	if gzErr != nil {
		return errors.Wrap(gzErr, "could not finish archive")
	}
	return fileErr
}

// MultiSink hands every line to each of its sinks.
type MultiSink []Sink

func (m MultiSink) Consume(line Line) error {
	var errs error
	for _, s := range m {
		if err := s.Consume(line); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
	}
	return errs
}

func (m MultiSink) Close() error {
	var errs error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
	}
	return errs
}
