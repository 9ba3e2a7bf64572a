// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"

	"go.wifilogger.dev/wifilogger/config"
	"go.wifilogger.dev/wifilogger/discovery"
	"go.wifilogger.dev/wifilogger/dispatch"
	"go.wifilogger.dev/wifilogger/logging"
	"go.wifilogger.dev/wifilogger/queue"
	"go.wifilogger.dev/wifilogger/record"
	"go.wifilogger.dev/wifilogger/transport"
)

type Builder struct {
	cfg           config.Config
	console       io.Writer
	transport     transport.Transport
	alloc         record.Allocator
	internalLog   *log.Logger
	hookLoggers   []*log.Logger
	shutdownFuncs []context.CancelFunc
	handleSignals bool
	lookup        func(ctx context.Context, kind transport.Kind) (string, error)
	dialTransport func(ctx context.Context, cfg transport.Config) (transport.Transport, error)
}

func NewBuilder(cfg config.Config) *Builder {
	return &Builder{
		cfg:           cfg,
		console:       os.Stdout,
		lookup:        discovery.Lookup,
		dialTransport: transport.New,
	}
}

// SetConsole sets the console sink every line is also written to.
func (b *Builder) SetConsole(w io.Writer) *Builder {
	b.console = w
	return b
}

// SetTransport replaces the transport built from the configuration.
func (b *Builder) SetTransport(t transport.Transport) *Builder {
	b.transport = t
	return b
}

func (b *Builder) SetAllocator(alloc record.Allocator) *Builder {
	b.alloc = alloc
	return b
}

// SetInternalLogger sets the logger the pipeline reports its own state to.
// It must not write into the pipeline.
func (b *Builder) SetInternalLogger(logger *log.Logger) *Builder {
	b.internalLog = logger
	return b
}

// AddHookLogger routes the entries of a logrus logger other than the
// standard one through Pipeline.Hook while the pipeline runs.
func (b *Builder) AddHookLogger(logger *log.Logger) *Builder {
	b.hookLoggers = append(b.hookLoggers, logger)
	return b
}

func (b *Builder) SetRouteStandardLogs(route bool) *Builder {
	b.cfg.Route.StandardLogs = route
	return b
}

// SetSignalHandling traps SIGINT and SIGTERM once started and calls the
// shutdown functions, after stopping the pipeline.
func (b *Builder) SetSignalHandling(enabled bool) *Builder {
	b.handleSignals = enabled
	return b
}

func (b *Builder) AddShutdownFunc(shutdownFunc context.CancelFunc) *Builder {
	b.shutdownFuncs = append(b.shutdownFuncs, shutdownFunc)
	return b
}

// Start creates the queue, connects the transport, optionally routes the
// standard loggers and starts the dispatcher. ctx bounds discovery and the
// transport connect only. Connect failures are marked with
// transport.ErrConnect.
func (b *Builder) Start(ctx context.Context) (*Pipeline, error) {
	cfg := b.cfg
	if err := cfg.ValidatePipeline(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	cfg.EnsureDeviceID()

	internalLog := b.internalLog
	if internalLog == nil {
		level, _ := log.ParseLevel(cfg.LogLevel)
		internalLog = logging.NewInternalLogger(os.Stderr, level)
	}

	q, err := queue.New(cfg.Queue.Capacity)
	if err != nil {
		return nil, err
	}
	formatter := record.NewFormatter(cfg.Record.MaxSize, b.alloc)

	t := b.transport
	if t == nil {
		if t, err = b.connect(ctx, &cfg, internalLog); err != nil {
			return nil, err
		}
	}

	console := logging.NewConsoleWriter(b.console)
	dispatcher := dispatch.New(q, t, formatter, cfg.DispatchConfig(),
		internalLog.WithField(logging.ComponentField, "dispatch"))
	p := &Pipeline{
		Queue:      q,
		Formatter:  formatter,
		Logger:     logging.NewLogger(q, formatter, console),
		Router:     logging.NewRouter(q, formatter, console),
		Hook:       logging.NewHook(q, formatter),
		Console:    console,
		Dispatcher: dispatcher,
		transport:  t,
		deviceID:   cfg.Transport.DeviceID,
		kind:       cfg.Transport.Kind,
		log:        internalLog.WithField(logging.ComponentField, "wifilogger"),
		done:       make(chan error, 1),
	}

	if cfg.Route.StandardLogs {
		p.restore = append(p.restore, logging.Route(p.Router))
	} else {
		p.Router.SetEnabled(false)
	}
	for _, logger := range b.hookLoggers {
		p.restore = append(p.restore, logging.Attach(logger, p.Hook))
	}

	runCtx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	go func() { p.done <- p.Dispatcher.Run(runCtx) }()

	if b.handleSignals {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		shutdownFuncs := append([]context.CancelFunc{func() { p.Stop() }}, b.shutdownFuncs...)
		go signalHandler(sig, shutdownFuncs, p.log)
	}

	p.log.WithFields(log.Fields{
		"transport": cfg.Transport.Kind,
		"address":   cfg.Transport.Address,
		"capacity":  cfg.Queue.Capacity,
		"device":    cfg.Transport.DeviceID,
	}).Info("wifilogger initialised")
	return p, nil
}

func (b *Builder) connect(ctx context.Context, cfg *config.Config, internalLog *log.Logger) (transport.Transport, error) {
	if err := cfg.ValidateTransport(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	if cfg.Transport.Address == "" && cfg.Transport.Discover {
		address, err := b.lookup(ctx, cfg.Transport.Kind)
		if err != nil {
			return nil, errors.Mark(errors.Wrap(err, "could not discover a collector"), transport.ErrConnect)
		}
		internalLog.WithField(logging.ComponentField, "discovery").Infof("found collector at %s", address)
		cfg.Transport.Address = address
	}
	return b.dialTransport(ctx, cfg.TransportConfig())
}

// Trap SIGINT and SIGTERM signals and call shutdown functions
func signalHandler(sig <-chan os.Signal, shutdownFuncs []context.CancelFunc, logger log.FieldLogger) {
	sigReceived, ok := <-sig
	if !ok {
		return
	}
	logger.WithField("signal", sigReceived.String()).Info("Received signal")
	for _, shutdownFunc := range shutdownFuncs {
		shutdownFunc()
	}
}
