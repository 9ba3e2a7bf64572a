// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package queue hands records from any number of producers to the single
// dispatch goroutine. Producers never wait: a full queue rejects.
package queue

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"

	"go.wifilogger.dev/wifilogger/record"
)

// ErrQueueFull is returned by TryEnqueue when the queue is at capacity. The
// rejected record still belongs to the caller, who must release it.
var ErrQueueFull = errors.New("queue full")

// ErrReceiveTimeout is returned by Receive when no record arrived in time.
// No record accompanies it, so there is nothing to release.
var ErrReceiveTimeout = errors.New("receive timed out")

// Stats is a snapshot of the queue counters.
type Stats struct {
	Capacity int    `json:"capacity"`
	Length   int    `json:"length"`
	Enqueued uint64 `json:"enqueued"`
	Rejected uint64 `json:"rejected"`
	Received uint64 `json:"received"`
}

// Queue is a fixed-capacity FIFO of records, safe for concurrent producers
// and one consumer.
type Queue struct {
	records  chan *record.Record
	enqueued atomic.Uint64
	rejected atomic.Uint64
	received atomic.Uint64
}

// New returns a queue holding at most capacity records.
func New(capacity int) (*Queue, error) {
	if capacity <= 0 {
		return nil, errors.Newf("queue capacity must be positive, got %d", capacity)
	}
	return &Queue{records: make(chan *record.Record, capacity)}, nil
}

// TryEnqueue appends r without blocking. On ErrQueueFull ownership of r stays
// with the caller.
func (q *Queue) TryEnqueue(r *record.Record) error {
	if r == nil {
		return errors.New("cannot enqueue a nil record")
	}
	select {
	case q.records <- r:
		q.enqueued.Add(1)
		return nil
	default:
		q.rejected.Add(1)
		return ErrQueueFull
	}
}

// Offer enqueues r and releases it when the queue rejects it. It reports
// whether r was enqueued.
func (q *Queue) Offer(r *record.Record) bool {
	if r == nil {
		return false
	}
	if err := q.TryEnqueue(r); err != nil {
		r.Release()
		return false
	}
	return true
}

// Receive waits up to timeout for the oldest record. A non-positive timeout
// polls. On error the returned record is always nil.
func (q *Queue) Receive(ctx context.Context, timeout time.Duration) (*record.Record, error) {
	select {
	case r := <-q.records:
		q.received.Add(1)
		return r, nil
	default:
	}
	if timeout <= 0 {
		return nil, ErrReceiveTimeout
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-q.records:
		q.received.Add(1)
		return r, nil
	case <-timer.C:
		return nil, ErrReceiveTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *Queue) Len() int {
	return len(q.records)
}

func (q *Queue) Cap() int {
	return cap(q.records)
}

func (q *Queue) Stats() Stats {
	return Stats{
		Capacity: q.Cap(),
		Length:   q.Len(),
		Enqueued: q.enqueued.Load(),
		Rejected: q.rejected.Load(),
		Received: q.received.Load(),
	}
}
