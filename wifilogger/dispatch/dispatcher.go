// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"

	"go.wifilogger.dev/wifilogger/queue"
	"go.wifilogger.dev/wifilogger/record"
	"go.wifilogger.dev/wifilogger/transport"
)

const noticeTag = "wifilogger"

type Config struct {
	// ReceiveTimeout bounds a single wait for the next record.
	ReceiveTimeout time.Duration
	// SendTimeout bounds a single transport send; zero leaves it to the transport.
	SendTimeout time.Duration
	// DegradeAfter is the number of consecutive send failures that enter Degraded.
	DegradeAfter int
	// DegradedCooldown leaves Degraded once elapsed; zero disables it.
	DegradedCooldown time.Duration
	// DegradedSkipLimit leaves Degraded after that many skipped records; zero disables it.
	// With both criteria disabled the default cooldown applies.
	DegradedSkipLimit int
	// IdleNotice sends a notice record to the collector whenever a wait times out.
	IdleNotice bool
}

func DefaultConfig() Config {
	return Config{
		ReceiveTimeout:    24 * time.Hour,
		DegradeAfter:      5,
		DegradedCooldown:  10 * time.Second,
		DegradedSkipLimit: 32,
		IdleNotice:        true,
	}
}

type Stats struct {
	State               string `json:"state"`
	Sent                uint64 `json:"sent"`
	BytesSent           uint64 `json:"bytesSent"`
	SendFailures        uint64 `json:"sendFailures"`
	Skipped             uint64 `json:"skipped"`
	ReceiveTimeouts     uint64 `json:"receiveTimeouts"`
	Reconnects          uint64 `json:"reconnects"`
	ConsecutiveFailures int64  `json:"consecutiveFailures"`
}

// Dispatcher is the only consumer of the queue and the only user of the
// transport. Every record it receives is released exactly once, whether it
// was sent, failed or skipped.
type Dispatcher struct {
	queue     *queue.Queue
	transport transport.Transport
	formatter *record.Formatter
	cfg       Config
	log       logrus.FieldLogger
	now       func() time.Time

	state        atomic.Int32
	streak       atomic.Int64
	sent         atomic.Uint64
	bytesSent    atomic.Uint64
	failures     atomic.Uint64
	skipped      atomic.Uint64
	timeouts     atomic.Uint64
	reconnects   atomic.Uint64
	handled      atomic.Uint64
	degradedAt   time.Time
	skippedSince int
}

// New returns a dispatcher draining q into t. The formatter renders the
// notices the dispatcher itself emits.
func New(q *queue.Queue, t transport.Transport, f *record.Formatter, cfg Config, log logrus.FieldLogger) *Dispatcher {
	if cfg.DegradeAfter <= 0 {
		cfg.DegradeAfter = DefaultConfig().DegradeAfter
	}
	if cfg.ReceiveTimeout <= 0 {
		cfg.ReceiveTimeout = DefaultConfig().ReceiveTimeout
	}
	// Degraded must always have a way out.
	if cfg.DegradedSkipLimit <= 0 && cfg.DegradedCooldown <= 0 {
		cfg.DegradedCooldown = DefaultConfig().DegradedCooldown
	}
	d := &Dispatcher{
		queue:     q,
		transport: t,
		formatter: f,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
	d.state.Store(int32(StateStarting))
	return d
}

// Run drains the queue until ctx is done, which is the only way it returns.
// Records still queued at that point are left for the owner of the queue.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.setState(StateStarting)
	d.log.Debug("dispatcher started")
	d.setState(StateWaiting)

	for {
		if err := ctx.Err(); err != nil {
			d.log.WithError(err).Debug("dispatcher stopped")
			return err
		}
		r, err := d.queue.Receive(ctx, d.cfg.ReceiveTimeout)
		switch {
		case err == nil && ctx.Err() != nil:
			// received while stopping
			r.Release()
			d.handled.Add(1)
			d.log.Debug("record dropped on shutdown")
		case err == nil:
			d.dispatch(ctx, r)
			d.handled.Add(1)
		case errors.Is(err, queue.ErrReceiveTimeout):
			d.idle(ctx)
		default:
			d.log.WithError(err).Debug("dispatcher stopped")
			return err
		}
	}
}

// Handled returns the number of queued records the dispatcher has finished
// with, whether sent, skipped or failed.
func (d *Dispatcher) Handled() uint64 {
	return d.handled.Load()
}

func (d *Dispatcher) State() State {
	return State(d.state.Load())
}

func (d *Dispatcher) Stats() Stats {
	return Stats{
		State:               d.State().String(),
		Sent:                d.sent.Load(),
		BytesSent:           d.bytesSent.Load(),
		SendFailures:        d.failures.Load(),
		Skipped:             d.skipped.Load(),
		ReceiveTimeouts:     d.timeouts.Load(),
		Reconnects:          d.reconnects.Load(),
		ConsecutiveFailures: d.streak.Load(),
	}
}

func (d *Dispatcher) setState(s State) {
	d.state.Store(int32(s))
}

// dispatch owns r from here on.
func (d *Dispatcher) dispatch(ctx context.Context, r *record.Record) {
	defer r.Release()

	if d.State() == StateDegraded {
		if !d.recoverDue() {
			d.skippedSince++
			d.skipped.Add(1)
			return
		}
		d.recover(ctx)
	}

	d.setState(StateSending)
	n, err := d.send(ctx, r)
	switch {
	case err == nil:
		d.streak.Store(0)
		d.sent.Add(1)
		d.bytesSent.Add(uint64(n))
		d.log.Debugf("%d bytes of data sent", n)
	case ctx.Err() != nil:
		// stopping; not a transport failure
		d.log.WithError(err).Debug("send interrupted on shutdown")
	default:
		d.failures.Add(1)
		streak := d.streak.Add(1)
		d.log.WithError(err).WithField("streak", streak).Warn("could not send record")
		if streak >= int64(d.cfg.DegradeAfter) {
			d.degrade()
			return
		}
	}
	d.setState(StateWaiting)
}

func (d *Dispatcher) send(ctx context.Context, r *record.Record) (int, error) {
	if d.cfg.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.SendTimeout)
		defer cancel()
	}
	return d.transport.Send(ctx, r)
}

// idle handles an exhausted wait. Nothing was received, so nothing is released.
func (d *Dispatcher) idle(ctx context.Context) {
	d.timeouts.Add(1)
	d.log.Warnf("no log records received for %s", d.cfg.ReceiveTimeout)

	if d.State() == StateDegraded && d.recoverDue() {
		d.recover(ctx)
	}
	if d.cfg.IdleNotice && d.formatter != nil && d.State() != StateDegraded {
		d.dispatch(ctx, d.formatter.Notice(record.SeverityWarning, noticeTag, "dispatch",
			"no log records received for %s", d.cfg.ReceiveTimeout))
	}
}

func (d *Dispatcher) degrade() {
	d.degradedAt = d.now()
	d.skippedSince = 0
	d.setState(StateDegraded)
	d.log.Errorf("%d consecutive send failures, dropping records until the transport recovers", d.streak.Load())
}

func (d *Dispatcher) recoverDue() bool {
	if d.cfg.DegradedSkipLimit > 0 && d.skippedSince >= d.cfg.DegradedSkipLimit {
		return true
	}
	if d.cfg.DegradedCooldown > 0 && d.now().Sub(d.degradedAt) >= d.cfg.DegradedCooldown {
		return true
	}
	return false
}

// recover leaves Degraded. A failed reconnect is logged; the next failures
// will bring the dispatcher back into Degraded.
func (d *Dispatcher) recover(ctx context.Context) {
	if rc, ok := d.transport.(transport.Reconnector); ok {
		d.reconnects.Add(1)
		if err := rc.Reconnect(ctx); err != nil {
			d.log.WithError(err).Warn("could not reconnect transport")
		} else {
			d.log.Info("transport reconnected")
		}
	}
	d.log.WithField("skipped", d.skippedSince).Info("leaving degraded state")
	d.streak.Store(0)
	d.skippedSince = 0
	d.setState(StateWaiting)
}
