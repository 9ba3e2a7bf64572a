// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"

	"go.wifilogger.dev/wifilogger/record"
)

// DefaultFramedPath is the collector path used when the address has no URL form.
const DefaultFramedPath = "/ws"

// framedTransport sends every record as one websocket text message. The
// upgrade handshake happens once, at construction or on Reconnect.
type framedTransport struct {
	cfg    Config
	url    string
	dialer *websocket.Dialer
	conn   *websocket.Conn
}

func newFramedTransport(ctx context.Context, cfg Config) (*framedTransport, error) {
	t := &framedTransport{
		cfg: cfg,
		url: FramedURL(cfg.Address),
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.DialTimeout,
		},
	}
	if err := t.dial(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

// FramedURL turns host:port into a websocket URL; URLs are returned as is.
func FramedURL(address string) string {
	if strings.Contains(address, "://") {
		return address
	}
	return "ws://" + address + DefaultFramedPath
}

func (t *framedTransport) dial(ctx context.Context) error {
	header := http.Header{}
	if t.cfg.DeviceID != "" {
		header.Set(DeviceHeader, t.cfg.DeviceID)
	}
	conn, resp, err := t.dialer.DialContext(ctx, t.url, header)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
			return connectError(err, "websocket handshake with %s failed with status %s", t.url, resp.Status)
		}
		return connectError(err, "could not dial websocket %s", t.url)
	}
	t.conn = conn
	return nil
}

func (t *framedTransport) Send(ctx context.Context, r *record.Record) (int, error) {
	if t.conn == nil {
		return 0, sendError(errors.New("not connected"), "could not write record to %s", t.url)
	}
	if err := ctx.Err(); err != nil {
		return 0, sendError(err, "sending record to %s was interrupted", t.url)
	}
	if err := t.conn.SetWriteDeadline(writeDeadline(ctx, t.cfg.WriteTimeout)); err != nil {
		return 0, sendError(err, "could not set write deadline")
	}
	if err := t.conn.WriteMessage(websocket.TextMessage, r.Bytes()); err != nil {
		return 0, sendError(err, "could not write websocket message to %s", t.url)
	}
	return r.Len(), nil
}

// Reconnect closes the current connection and performs a new handshake.
func (t *framedTransport) Reconnect(ctx context.Context) error {
	if t.conn != nil {
		_ = t.conn.Close()
		t.conn = nil
	}
	return t.dial(ctx)
}

func (t *framedTransport) Close() error {
	if t.conn == nil {
		return nil
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(t.cfg.WriteTimeout))
	err := t.conn.Close()
	t.conn = nil
	return err
}
