// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.wifilogger.dev/wifilogger/record"
	"go.wifilogger.dev/wifilogger/testdata"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		input string
		sev   record.Severity
		tag   string
		msg   string
	}{
		{"E wifi disconnected", record.SeverityError, "wifi", "disconnected"},
		{"w adc  reading   noisy", record.SeverityWarning, "adc", "reading   noisy"},
		{"  I boot ready  ", record.SeverityInfo, "boot", "ready"},
		{"D mqtt payload 42 bytes", record.SeverityDebug, "mqtt", "payload 42 bytes"},
		{"V spi tx", record.SeverityVerbose, "spi", "tx"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			sev, tag, msg, err := parseLine(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.sev, sev)
			assert.Equal(t, tt.tag, tag)
			assert.Equal(t, tt.msg, msg)
		})
	}
}

func TestParseLineErrors(t *testing.T) {
	for _, input := range []string{"X wifi up", "error wifi up", "E", "E wifi", "E wifi   "} {
		t.Run(input, func(t *testing.T) {
			_, _, _, err := parseLine(input)
			assert.Error(t, err)
		})
	}
}

func newTestShell(t *testing.T, tr *testdata.RecordingTransport) (*shell, *bytes.Buffer) {
	p, _ := startTestPipeline(t, 8, tr)
	out := new(bytes.Buffer)
	return &shell{out: out, p: p}, out
}

func TestShellEmitsRecords(t *testing.T) {
	tr := &testdata.RecordingTransport{}
	sh, out := newTestShell(t, tr)

	assert.False(t, sh.handle("W wifi rssi low"))
	assert.False(t, sh.handle(""))
	assert.False(t, sh.handle("E wifi gone"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, sh.p.Drain(ctx))

	sent := tr.Sent()
	require.Len(t, sent, 2)
	assert.Regexp(t, `^W \(\d+\) wifi \(shell:1\) rssi low$`, sent[0])
	assert.Regexp(t, `^E \(\d+\) wifi \(shell:2\) gone$`, sent[1])
	assert.Empty(t, out.String())
}

func TestShellCommands(t *testing.T) {
	tr := &testdata.RecordingTransport{}
	sh, out := newTestShell(t, tr)

	assert.False(t, sh.handle("help"))
	assert.Contains(t, out.String(), "E|W|I|D|V <tag> <message>")

	out.Reset()
	assert.False(t, sh.handle("stats"))
	assert.Contains(t, out.String(), `"transport": "udp"`)

	assert.False(t, sh.handle("route on"))
	assert.True(t, sh.p.Stats().Routing)
	assert.False(t, sh.handle("route off"))
	assert.False(t, sh.p.Stats().Routing)

	out.Reset()
	assert.False(t, sh.handle("route sideways"))
	assert.Contains(t, out.String(), "usage: route on|off")

	out.Reset()
	assert.False(t, sh.handle("bogus input here"))
	assert.Contains(t, out.String(), "unknown command: bogus")

	assert.True(t, sh.handle("quit"))
	assert.True(t, sh.handle("exit"))
}

func TestShellLevel(t *testing.T) {
	tr := &testdata.RecordingTransport{}
	sh, out := newTestShell(t, tr)

	assert.False(t, sh.handle("level warning"))
	assert.False(t, sh.handle("I app filtered"))
	assert.False(t, sh.handle("E app kept"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, sh.p.Drain(ctx))
	require.Len(t, tr.Sent(), 1)
	assert.Contains(t, tr.Sent()[0], "kept")

	assert.False(t, sh.handle("level loud"))
	assert.Contains(t, out.String(), "unknown severity")
}

func TestShellConsoleToggle(t *testing.T) {
	tr := &testdata.RecordingTransport{}
	p, console := startTestPipeline(t, 8, tr)
	sh := &shell{out: new(bytes.Buffer), p: p}

	assert.False(t, sh.handle("console off"))
	assert.False(t, p.Stats().Console)
	assert.False(t, sh.handle("I app quiet"))
	assert.False(t, sh.handle("console on"))
	assert.False(t, sh.handle("I app loud"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, p.Drain(ctx))
	assert.Len(t, tr.Sent(), 2)
	assert.NotContains(t, console.String(), "quiet")
	assert.Contains(t, console.String(), "loud")

	out := sh.out.(*bytes.Buffer)
	assert.False(t, sh.handle("console maybe"))
	assert.Contains(t, out.String(), "usage: console on|off")
}
