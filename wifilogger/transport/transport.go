// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"go.wifilogger.dev/wifilogger/record"
)

// Transport delivers records to the collector. A transport is owned by a
// single dispatcher and is not safe for concurrent use.
type Transport interface {
	// Send writes one record and returns the number of bytes put on the wire.
	Send(ctx context.Context, r *record.Record) (int, error)
	Close() error
}

// Reconnector is implemented by connection-oriented transports that can
// rebuild their connection when asked to.
type Reconnector interface {
	Reconnect(ctx context.Context) error
}

type Kind = string

const (
	KindDatagram Kind = "udp"
	KindStream   Kind = "tcp"
	KindFramed   Kind = "websocket"
)

// DeviceHeader carries the device id on the websocket upgrade request.
const DeviceHeader = "X-Wifilogger-Device"

const (
	DefaultDialTimeout  = 5 * time.Second
	DefaultWriteTimeout = 2 * time.Second
)

var (
	// ErrConnect marks failures to establish a transport.
	ErrConnect = errors.New("transport connect failure")
	// ErrSend marks failures to deliver a single record.
	ErrSend = errors.New("transport send failure")
)

type Config struct {
	Kind         Kind
	Address      string
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	DeviceID     string
}

// New connects the transport selected by cfg.Kind.
func New(ctx context.Context, cfg Config) (Transport, error) {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Address == "" {
		return nil, errors.Mark(errors.New("transport address is empty"), ErrConnect)
	}

	var (
		t   Transport
		err error
	)
	switch cfg.Kind {
	case KindDatagram:
		t, err = newDatagramTransport(ctx, cfg)
	case KindStream:
		t, err = newStreamTransport(ctx, cfg)
	case KindFramed:
		t, err = newFramedTransport(ctx, cfg)
	default:
		return nil, errors.Mark(
			errors.Newf("unknown transport kind: %s. Only udp, tcp and websocket are supported", cfg.Kind),
			ErrConnect)
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// writeDeadline returns the earlier of the context deadline and now+timeout.
func writeDeadline(ctx context.Context, timeout time.Duration) time.Time {
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		return d
	}
	return deadline
}

func sendError(err error, format string, args ...interface{}) error {
	return errors.Mark(errors.Wrapf(err, format, args...), ErrSend)
}

func connectError(err error, format string, args ...interface{}) error {
	return errors.Mark(errors.Wrapf(err, format, args...), ErrConnect)
}
