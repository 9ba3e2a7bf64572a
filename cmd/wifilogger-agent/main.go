// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"io"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jessevdk/go-flags"

	log "github.com/sirupsen/logrus"

	"go.wifilogger.dev/wifilogger/config"
	"go.wifilogger.dev/wifilogger/logging"
	"go.wifilogger.dev/wifilogger/pipeline"
	"go.wifilogger.dev/wifilogger/queue"
	"go.wifilogger.dev/wifilogger/record"
)

const (
	startTimeout = 10 * time.Second
	drainTimeout = 5 * time.Second
)

type options struct {
	Config        string `long:"config" description:"path to a YAML configuration file"`
	LogLevel      string `long:"log-level" description:"internal log level"`
	Transport     string `long:"transport" description:"transport to the collector: udp, tcp or websocket"`
	Address       string `long:"address" description:"collector address, host:port or a ws:// URL"`
	QueueCapacity int    `long:"queue-capacity" description:"number of records the queue holds"`
	MaxRecordSize int    `long:"max-record-size" description:"longest record in bytes, longer ones are truncated"`
	StatusListen  string `long:"status-listen" description:"address of the status API, disabled when empty"`
	DeviceID      string `long:"device-id" description:"device id sent with every websocket connection"`
	Discover      bool   `long:"discover" description:"find the collector over mDNS when no address is given"`
	NoRoute       bool   `long:"no-route" description:"do not route the standard loggers into the queue"`
	Interactive   bool   `long:"interactive" description:"read records from an interactive shell"`
	Tag           string `long:"tag" default:"stdin" description:"tag of records read from stdin"`
}

func main() {
	opts, _ := getCLIArgs()

	cfg, err := loadConfig(opts)
	if err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}
	if err := logging.SetLogLevel(cfg.LogLevel); err != nil {
		log.WithError(err).Fatal("Invalid log level")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	level, _ := log.ParseLevel(cfg.LogLevel)
	internalLog := logging.NewInternalLogger(os.Stderr, level)

	builder := pipeline.NewBuilder(cfg).
		SetInternalLogger(internalLog).
		SetSignalHandling(true).
		AddShutdownFunc(cancel).
		AddShutdownFunc(context.CancelFunc(func() { os.Exit(0) }))

	// status access logs reach the collector through the pipeline hook
	var statusLog *log.Logger
	if cfg.Status.Listen != "" {
		statusLog = logging.NewInternalLogger(os.Stderr, level)
		builder.AddHookLogger(statusLog)
	}

	var sh *shell
	if opts.Interactive {
		if sh, err = newShell(); err != nil {
			log.WithError(err).Fatal("Failed to start shell")
		}
		builder.SetConsole(sh.Stdout())
	}

	startCtx, startCancel := context.WithTimeout(ctx, startTimeout)
	p, err := builder.Start(startCtx)
	startCancel()
	if err != nil {
		log.WithError(err).Fatal("Failed to start wifilogger")
	}
	defer p.Stop()

	if statusLog != nil {
		go startHTTPServer(ctx, cfg.Status.Listen, p, statusLog.WithField(logging.ComponentField, "status"))
	}

	if sh != nil {
		sh.Run(ctx, p)
	} else {
		pipeStdin(ctx, os.Stdin, p, opts.Tag, internalLog)
	}

	drainCtx, drainCancel := context.WithTimeout(context.Background(), drainTimeout)
	defer drainCancel()
	if err := p.Drain(drainCtx); err != nil {
		internalLog.WithError(err).Warn("queue not drained before shutdown")
	}
}

func getCLIArgs() (options, []string) {
	var opts options
	parser := flags.NewParser(&opts, flags.IgnoreUnknown)
	args, err := parser.ParseArgs(os.Args)

	if err != nil {
		log.WithError(err).Fatal("Failed to parse command line arguments:", os.Args)
	}

	return opts, args
}

// loadConfig reads the configuration file, if any, and applies the command
// line over it.
func loadConfig(opts options) (config.Config, error) {
	cfg := config.Default()
	if opts.Config != "" {
		var err error
		if cfg, err = config.Load(opts.Config); err != nil {
			return cfg, err
		}
	}
	applyFlags(&cfg, opts)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyFlags(cfg *config.Config, opts options) {
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	if opts.Transport != "" {
		cfg.Transport.Kind = opts.Transport
	}
	if opts.Address != "" {
		cfg.Transport.Address = opts.Address
	}
	if opts.QueueCapacity != 0 {
		cfg.Queue.Capacity = opts.QueueCapacity
	}
	if opts.MaxRecordSize != 0 {
		cfg.Record.MaxSize = opts.MaxRecordSize
	}
	if opts.StatusListen != "" {
		cfg.Status.Listen = opts.StatusListen
	}
	if opts.DeviceID != "" {
		cfg.Transport.DeviceID = opts.DeviceID
	}
	if opts.Discover {
		cfg.Transport.Discover = true
	}
	if opts.NoRoute {
		cfg.Route.StandardLogs = false
	}
}

// pipeStdin emits one Info record per line of r until EOF or ctx is done.
// It returns the number of lines dropped because the queue was full.
func pipeStdin(ctx context.Context, r io.Reader, p *pipeline.Pipeline, tag string, logger log.FieldLogger) int {
	dropped := 0
	scanner := bufio.NewScanner(r)
	for n := 1; scanner.Scan(); n++ {
		if ctx.Err() != nil {
			break
		}
		if err := p.Logger.Emit(record.SeverityInfo, tag, "", n, "stdin", "%s", scanner.Text()); err != nil {
			if errors.Is(err, queue.ErrQueueFull) {
				dropped++
				continue
			}
			logger.WithError(err).Warn("could not emit line")
		}
	}
	if err := scanner.Err(); err != nil {
		logger.WithError(err).Warn("stdin read failed")
	}
	if dropped > 0 {
		logger.Warnf("%d stdin lines dropped, queue full", dropped)
	}
	return dropped
}
