// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package collector

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.wifilogger.dev/wifilogger/record"
	"go.wifilogger.dev/wifilogger/transport"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

// memorySink keeps every line it consumes.
type memorySink struct {
	mu     sync.Mutex
	lines  []Line
	fail   error
	closed bool
}

func (s *memorySink) Consume(line Line) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.lines = append(s.lines, line)
	return nil
}

func (s *memorySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *memorySink) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Line(nil), s.lines...)
}

func startCollector(t *testing.T, cfg Config, sink Sink) *Collector {
	logger, _ := logtest.NewNullLogger()
	c := New(cfg, sink, logger)
	require.NoError(t, c.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(waitFor):
			t.Error("collector did not stop")
		}
	})
	return c
}

func TestCollectorReceivesFromEveryTransport(t *testing.T) {
	sink := &memorySink{}
	c := startCollector(t, Config{UDP: "127.0.0.1:0", TCP: "127.0.0.1:0", Websocket: "127.0.0.1:0"}, sink)

	tests := []struct {
		kind    transport.Kind
		address string
	}{
		{transport.KindDatagram, c.UDPAddr().String()},
		{transport.KindStream, c.TCPAddr().String()},
		{transport.KindFramed, c.WebsocketAddr().String()},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			tr, err := transport.New(context.Background(), transport.Config{
				Kind:     tt.kind,
				Address:  tt.address,
				DeviceID: "dev-" + tt.kind,
			})
			require.NoError(t, err)
			defer tr.Close()

			for _, msg := range []string{"A " + tt.kind, "B " + tt.kind} {
				_, err := tr.Send(context.Background(), record.FromString(msg))
				require.NoError(t, err)
			}

			assert.Eventually(t, func() bool {
				var got []string
				for _, l := range sink.Lines() {
					if l.Kind == tt.kind {
						got = append(got, l.Text)
					}
				}
				return len(got) == 2 && got[0] == "A "+tt.kind && got[1] == "B "+tt.kind
			}, waitFor, tick)
		})
	}

	assert.Equal(t, uint64(6), c.Received())
	for _, l := range sink.Lines() {
		assert.NotEmpty(t, l.Remote)
		if l.Kind == transport.KindFramed {
			assert.Equal(t, "dev-websocket", l.Device)
			assert.Equal(t, "dev-websocket", l.Origin())
		} else {
			assert.Empty(t, l.Device)
			assert.Equal(t, l.Remote, l.Origin())
		}
	}
}

func TestCollectorCountsSinkFailures(t *testing.T) {
	sink := &memorySink{fail: errors.New("disk full")}
	c := startCollector(t, Config{UDP: "127.0.0.1:0"}, sink)

	tr, err := transport.New(context.Background(), transport.Config{Kind: transport.KindDatagram, Address: c.UDPAddr().String()})
	require.NoError(t, err)
	defer tr.Close()

	_, err = tr.Send(context.Background(), record.FromString("lost"))
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return c.failed.Load() == 1 }, waitFor, tick)
	assert.Equal(t, uint64(0), c.Received())
}

func TestCollectorStopsOpenStreams(t *testing.T) {
	sink := &memorySink{}
	logger, _ := logtest.NewNullLogger()
	c := New(Config{TCP: "127.0.0.1:0"}, sink, logger)
	require.NoError(t, c.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Serve(ctx) }()

	tr, err := transport.New(context.Background(), transport.Config{Kind: transport.KindStream, Address: c.TCPAddr().String()})
	require.NoError(t, err)
	defer tr.Close()
	_, err = tr.Send(context.Background(), record.FromString("hello"))
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return len(sink.Lines()) == 1 }, waitFor, tick)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("collector kept an open stream alive")
	}
}

func TestListenRequiresAListener(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	err := New(Config{}, &memorySink{}, logger).Listen()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no listener configured")
}

func TestListenFailureClosesEarlierListeners(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	c := New(Config{UDP: "127.0.0.1:0", TCP: "not-an-address"}, &memorySink{}, logger)
	err := c.Listen()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not listen on tcp")

	_, _, readErr := c.udp.ReadFrom(make([]byte, 1))
	assert.Error(t, readErr)
}
