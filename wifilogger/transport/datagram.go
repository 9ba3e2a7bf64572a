// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"net"
	"time"

	"go.wifilogger.dev/wifilogger/record"
)

// datagramTransport sends every record as its own UDP datagram. Sends are
// independent: a failure says nothing about the peer and is never retried.
type datagramTransport struct {
	conn         net.Conn
	address      string
	writeTimeout time.Duration
}

func newDatagramTransport(ctx context.Context, cfg Config) (*datagramTransport, error) {
	dialer := net.Dialer{Timeout: cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "udp", cfg.Address)
	if err != nil {
		return nil, connectError(err, "could not UDP dial provided address %s", cfg.Address)
	}
	return &datagramTransport{
		conn:         conn,
		address:      cfg.Address,
		writeTimeout: cfg.WriteTimeout,
	}, nil
}

func (t *datagramTransport) Send(ctx context.Context, r *record.Record) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, sendError(err, "sending record to %s was interrupted", t.address)
	}
	if err := t.conn.SetWriteDeadline(writeDeadline(ctx, t.writeTimeout)); err != nil {
		return 0, sendError(err, "could not set write deadline")
	}
	n, err := t.conn.Write(r.Bytes())
	if err != nil {
		return n, sendError(err, "could not write datagram to %s", t.address)
	}
	return n, nil
}

func (t *datagramTransport) Close() error {
	return t.conn.Close()
}
