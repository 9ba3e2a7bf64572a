// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package pipeline assembles the queue, the transport and the dispatcher
// into a running log pipeline, and hands out the producer surfaces that
// feed it.
package pipeline

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"go.wifilogger.dev/wifilogger/dispatch"
	"go.wifilogger.dev/wifilogger/logging"
	"go.wifilogger.dev/wifilogger/queue"
	"go.wifilogger.dev/wifilogger/record"
	"go.wifilogger.dev/wifilogger/transport"
)

const drainPollInterval = 10 * time.Millisecond

type Stats struct {
	DeviceID     string         `json:"deviceID"`
	Transport    string         `json:"transport"`
	Routing      bool           `json:"routing"`
	Console      bool           `json:"console"`
	Routed       uint64         `json:"routed"`
	RouteDropped uint64         `json:"routeDropped"`
	HookDropped  uint64         `json:"hookDropped"`
	Queue        queue.Stats    `json:"queue"`
	Dispatch     dispatch.Stats `json:"dispatch"`
}

// Pipeline is a started log pipeline. Producers use Logger, Router or Hook;
// the dispatcher goroutine is the only consumer.
type Pipeline struct {
	Queue      *queue.Queue
	Formatter  *record.Formatter
	Logger     *logging.Logger
	Router     *logging.Router
	Hook       *logging.Hook
	Console    *logging.ConsoleWriter
	Dispatcher *dispatch.Dispatcher

	transport transport.Transport
	deviceID  string
	kind      transport.Kind
	log       log.FieldLogger
	restore   []func()
	cancel    context.CancelFunc
	done      chan error

	stopOnce sync.Once
	stopErr  error
}

func (p *Pipeline) Stats() Stats {
	return Stats{
		DeviceID:     p.deviceID,
		Transport:    p.kind,
		Routing:      p.Router.Enabled(),
		Console:      p.Console.Enabled(),
		Routed:       p.Router.Routed(),
		RouteDropped: p.Router.Dropped(),
		HookDropped:  p.Hook.Dropped(),
		Queue:        p.Queue.Stats(),
		Dispatch:     p.Dispatcher.Stats(),
	}
}

// SetRouting switches routing of the standard loggers on or off.
func (p *Pipeline) SetRouting(enabled bool) {
	p.Router.SetEnabled(enabled)
}

// Drain waits until every record taken from the queue has been handled by
// the dispatcher and the queue is empty, or until ctx is done.
func (p *Pipeline) Drain(ctx context.Context) error {
	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()
	for {
		if p.Queue.Len() == 0 && p.Dispatcher.Handled() == p.Queue.Stats().Received {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Stop restores the standard logger outputs and detaches Hook, stops the
// dispatcher, releases whatever is still queued and closes the transport.
// Safe to call more than once.
func (p *Pipeline) Stop() error {
	p.stopOnce.Do(func() {
		for _, restore := range p.restore {
			restore()
		}
		p.cancel()
		<-p.done

		dropped := 0
		for {
			r, err := p.Queue.Receive(context.Background(), 0)
			if err != nil {
				break
			}
			r.Release()
			dropped++
		}
		if dropped > 0 {
			p.log.Warnf("%d queued records dropped on shutdown", dropped)
		}
		p.stopErr = p.transport.Close()
		p.log.Info("wifilogger stopped")
	})
	return p.stopErr
}
