// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.wifilogger.dev/wifilogger/record"
	"go.wifilogger.dev/wifilogger/testdata"
)

func TestNewRejectsNonPositiveCapacity(t *testing.T) {
	_, err := New(0)
	assert.Error(t, err)
}

func TestEnqueueWithinCapacityKeepsOrder(t *testing.T) {
	q, err := New(5)
	require.NoError(t, err)

	for _, s := range []string{"A", "B", "C"} {
		require.NoError(t, q.TryEnqueue(record.FromString(s)))
	}
	assert.Equal(t, 3, q.Len())

	for _, expected := range []string{"A", "B", "C"} {
		r, err := q.Receive(context.Background(), time.Second)
		require.NoError(t, err)
		assert.Equal(t, expected, r.String())
		r.Release()
	}
	assert.Equal(t, 0, q.Len())
}

func TestEnqueueBeyondCapacityIsRejected(t *testing.T) {
	alloc := testdata.NewTrackingAllocator()
	f := record.NewFormatter(64, alloc)
	q, err := New(5)
	require.NoError(t, err)

	for i := 1; i <= 8; i++ {
		r := f.Notice(record.SeverityInfo, "t", "fn", "record %d", i)
		err := q.TryEnqueue(r)
		if i <= 5 {
			require.NoError(t, err)
			continue
		}
		require.True(t, errors.Is(err, ErrQueueFull))
		assert.False(t, r.Released(), "the queue must not release a rejected record")
		r.Release()
	}

	assert.Equal(t, 5, alloc.Live())
	assert.Equal(t, uint64(3), q.Stats().Rejected)

	for i := 1; i <= 5; i++ {
		r, err := q.Receive(context.Background(), time.Second)
		require.NoError(t, err)
		assert.Contains(t, r.String(), fmt.Sprintf("record %d", i))
		r.Release()
	}
	assert.Equal(t, 0, alloc.Live())
	assert.Equal(t, alloc.Allocs(), alloc.Frees())
}

func TestOfferReleasesRejectedRecord(t *testing.T) {
	alloc := testdata.NewTrackingAllocator()
	f := record.NewFormatter(64, alloc)
	q, err := New(1)
	require.NoError(t, err)

	assert.True(t, q.Offer(f.Notice(record.SeverityInfo, "t", "fn", "first")))
	rejected := f.Notice(record.SeverityInfo, "t", "fn", "second")
	assert.False(t, q.Offer(rejected))
	assert.True(t, rejected.Released())
	assert.Equal(t, 1, alloc.Live())
}

func TestReceiveTimesOutOnEmptyQueue(t *testing.T) {
	q, err := New(1)
	require.NoError(t, err)

	start := time.Now()
	r, err := q.Receive(context.Background(), 20*time.Millisecond)
	assert.Nil(t, r)
	assert.True(t, errors.Is(err, ErrReceiveTimeout))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	r, err = q.Receive(context.Background(), 0)
	assert.Nil(t, r)
	assert.True(t, errors.Is(err, ErrReceiveTimeout))
}

func TestReceiveHonoursContext(t *testing.T) {
	q, err := New(1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r, err := q.Receive(ctx, time.Hour)
	assert.Nil(t, r)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestReceiveWakesOnEnqueue(t *testing.T) {
	q, err := New(1)
	require.NoError(t, err)

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = q.TryEnqueue(record.FromString("late"))
	}()

	r, err := q.Receive(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "late", r.String())
}

func TestConcurrentProducersNeverExceedCapacity(t *testing.T) {
	alloc := testdata.NewTrackingAllocator()
	f := record.NewFormatter(64, alloc)
	q, err := New(16)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				q.Offer(f.Notice(record.SeverityInfo, "p", "fn", "%d-%d", p, i))
				assert.LessOrEqual(t, q.Len(), 16)
			}
		}(p)
	}
	wg.Wait()

	stats := q.Stats()
	assert.Equal(t, uint64(800), stats.Enqueued+stats.Rejected)
	assert.Equal(t, 16, alloc.Live())
}
