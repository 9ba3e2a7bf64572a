// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package logging

import (
	"bytes"
	"context"
	stdlog "log"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.wifilogger.dev/wifilogger/queue"
	"go.wifilogger.dev/wifilogger/record"
	"go.wifilogger.dev/wifilogger/testdata"
)

func newQueue(t *testing.T, capacity int) *queue.Queue {
	q, err := queue.New(capacity)
	require.NoError(t, err)
	return q
}

func newFormatter(alloc record.Allocator, maxSize int) *record.Formatter {
	f := record.NewFormatter(maxSize, alloc)
	f.Clock = func() time.Duration { return 42 * time.Millisecond }
	return f
}

// drain returns the queued records as strings, releasing them.
func drain(t *testing.T, q *queue.Queue) []string {
	var out []string
	for {
		r, err := q.Receive(context.Background(), 0)
		if err != nil {
			return out
		}
		out = append(out, r.String())
		r.Release()
	}
}

func TestRouterWriteSplitsLines(t *testing.T) {
	q := newQueue(t, 8)
	console := new(bytes.Buffer)
	router := NewRouter(q, newFormatter(nil, 64), console)

	text := "first line\nsecond line\n\nthird"
	n, err := router.Write([]byte(text))
	require.NoError(t, err)
	assert.Equal(t, len(text), n)
	assert.Equal(t, text, console.String())

	assert.Equal(t, []string{"first line", "second line", "third"}, drain(t, q))
	assert.Equal(t, uint64(3), router.Routed())
}

func TestRouterWriteTruncatesLongLines(t *testing.T) {
	q := newQueue(t, 2)
	router := NewRouter(q, newFormatter(nil, 10), nil)

	router.Write([]byte("0123456789abcdef\n"))
	assert.Equal(t, []string{"0123456789"}, drain(t, q))
}

func TestRouterReleasesRejectedLines(t *testing.T) {
	q := newQueue(t, 2)
	alloc := testdata.NewTrackingAllocator()
	console := new(bytes.Buffer)
	router := NewRouter(q, newFormatter(alloc, 32), console)

	for _, line := range []string{"a\n", "b\n", "c\n", "d\n"} {
		n, err := router.Write([]byte(line))
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	}

	assert.Equal(t, "a\nb\nc\nd\n", console.String())
	assert.Equal(t, uint64(2), router.Routed())
	assert.Equal(t, uint64(2), router.Dropped())
	assert.Equal(t, 2, alloc.Live())

	assert.Equal(t, []string{"a", "b"}, drain(t, q))
	assert.Equal(t, 0, alloc.Live())
}

func TestRouterDisabledOnlyWritesConsole(t *testing.T) {
	q := newQueue(t, 2)
	console := new(bytes.Buffer)
	router := NewRouter(q, newFormatter(nil, 32), console)
	router.SetEnabled(false)

	router.Write([]byte("console only\n"))
	assert.False(t, router.Enabled())
	assert.Equal(t, "console only\n", console.String())
	assert.Equal(t, 0, q.Len())

	router.SetEnabled(true)
	router.Write([]byte("both\n"))
	assert.Equal(t, []string{"both"}, drain(t, q))
}

func TestRouterPrintf(t *testing.T) {
	q := newQueue(t, 2)
	console := new(bytes.Buffer)
	router := NewRouter(q, newFormatter(nil, 64), console)

	n := router.Printf("I (%d) wifi: %s\n", 7, "connected")
	assert.Equal(t, len("I (7) wifi: connected\n"), n)
	assert.Equal(t, []string{"I (7) wifi: connected"}, drain(t, q))
}

func TestRouteInstallsAndRestores(t *testing.T) {
	q := newQueue(t, 4)
	console := new(bytes.Buffer)
	router := NewRouter(q, newFormatter(nil, 128), console)

	before := new(bytes.Buffer)
	SetOutput(before)

	prevFlags := stdlog.Flags()
	stdlog.SetFlags(0)
	defer stdlog.SetFlags(prevFlags)
	prevFormatter := log.StandardLogger().Formatter
	log.SetFormatter(&log.TextFormatter{DisableTimestamp: true})
	defer log.SetFormatter(prevFormatter)

	restore := Route(router)
	stdlog.Print("from the standard logger")
	log.Warn("from logrus")
	restore()
	stdlog.Print("not routed")

	assert.Equal(t, []string{
		"from the standard logger",
		`level=warning msg="from logrus"`,
	}, drain(t, q))
	assert.Contains(t, console.String(), "from the standard logger")
	assert.Equal(t, "not routed\n", before.String())
}
