// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bufio"
	"context"
	"net"

	"github.com/cockroachdb/errors"

	"go.wifilogger.dev/wifilogger/record"
)

// streamTransport writes newline-terminated records over one TCP connection
// that is dialed once and reused. A failed write leaves the connection broken
// until Reconnect is called.
type streamTransport struct {
	cfg  Config
	conn net.Conn
	w    *bufio.Writer
}

func newStreamTransport(ctx context.Context, cfg Config) (*streamTransport, error) {
	t := &streamTransport{cfg: cfg}
	if err := t.dial(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *streamTransport) dial(ctx context.Context) error {
	dialer := net.Dialer{Timeout: t.cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", t.cfg.Address)
	if err != nil {
		return connectError(err, "could not TCP dial provided address %s", t.cfg.Address)
	}
	t.conn = conn
	t.w = bufio.NewWriter(conn)
	return nil
}

func (t *streamTransport) Send(ctx context.Context, r *record.Record) (int, error) {
	if t.conn == nil {
		return 0, sendError(errors.New("not connected"), "could not write record to %s", t.cfg.Address)
	}
	if err := ctx.Err(); err != nil {
		return 0, sendError(err, "sending record to %s was interrupted", t.cfg.Address)
	}
	if err := t.conn.SetWriteDeadline(writeDeadline(ctx, t.cfg.WriteTimeout)); err != nil {
		return 0, sendError(err, "could not set write deadline")
	}
	if _, err := t.w.Write(r.Bytes()); err != nil {
		return 0, sendError(err, "could not write record")
	}
	if err := t.w.WriteByte('\n'); err != nil {
		return 0, sendError(err, "could not write record")
	}
	if err := t.w.Flush(); err != nil {
		return 0, sendError(err, "could not flush record to %s", t.cfg.Address)
	}
	return r.Len() + 1, nil
}

// Reconnect drops the current connection and dials a new one.
func (t *streamTransport) Reconnect(ctx context.Context) error {
	if t.conn != nil {
		_ = t.conn.Close()
		t.conn = nil
		t.w = nil
	}
	return t.dial(ctx)
}

func (t *streamTransport) Close() error {
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	t.w = nil
	return err
}
