// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package testdata

import (
	"context"
	"sync"

	"go.wifilogger.dev/wifilogger/record"
)

// RecordingTransport keeps a copy of every record it is asked to send.
// Fail, when set, decides the outcome of the n-th send (starting at 0).
type RecordingTransport struct {
	Fail        func(n int) error
	OnReconnect func() error
	// Gate, when set, blocks every send until a value is received from it.
	Gate chan struct{}

	mu         sync.Mutex
	attempts   int
	sent       []string
	reconnects int
	closed     bool
}

func (t *RecordingTransport) Send(ctx context.Context, r *record.Record) (int, error) {
	if t.Gate != nil {
		select {
		case <-t.Gate:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	n := t.attempts
	t.attempts++
	if t.Fail != nil {
		if err := t.Fail(n); err != nil {
			return 0, err
		}
	}
	t.sent = append(t.sent, r.String())
	return r.Len(), nil
}

func (t *RecordingTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// Sent returns the records delivered so far, in order.
func (t *RecordingTransport) Sent() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.sent...)
}

// Attempts returns the number of Send calls, failed ones included.
func (t *RecordingTransport) Attempts() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attempts
}

func (t *RecordingTransport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// ReconnectingTransport is a RecordingTransport that also implements
// transport.Reconnector.
type ReconnectingTransport struct {
	RecordingTransport
}

func (t *ReconnectingTransport) Reconnect(ctx context.Context) error {
	t.mu.Lock()
	t.reconnects++
	fn := t.OnReconnect
	t.mu.Unlock()
	if fn != nil {
		return fn()
	}
	return nil
}

func (t *ReconnectingTransport) Reconnects() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reconnects
}
