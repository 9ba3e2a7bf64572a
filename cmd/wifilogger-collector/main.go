// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"

	log "github.com/sirupsen/logrus"

	"go.wifilogger.dev/wifilogger/collector"
	"go.wifilogger.dev/wifilogger/discovery"
	"go.wifilogger.dev/wifilogger/logging"
	"go.wifilogger.dev/wifilogger/transport"
)

type options struct {
	LogLevel  string `long:"log-level" default:"info" description:"log level"`
	UDP       string `long:"udp" default:":9000" description:"UDP listen address, empty to disable"`
	TCP       string `long:"tcp" description:"TCP listen address"`
	Websocket string `long:"ws" description:"websocket listen address"`
	WsPath    string `long:"ws-path" default:"/ws" description:"websocket upgrade path"`
	Archive   string `long:"archive" description:"gzip file every received line is appended to"`
	Quiet     bool   `long:"quiet" description:"do not print received lines"`
	Advertise bool   `long:"advertise" description:"announce the listeners over mDNS"`
	Instance  string `long:"instance" default:"wifilogger" description:"mDNS instance name"`
}

func main() {
	opts, _ := getCLIArgs()
	if err := logging.SetLogLevel(opts.LogLevel); err != nil {
		log.WithError(err).Fatal("Invalid log level")
	}

	sink, err := buildSink(opts, os.Stdout)
	if err != nil {
		log.WithError(err).Fatal("Failed to open sinks")
	}
	defer sink.Close()

	c := collector.New(collector.Config{
		UDP:           opts.UDP,
		TCP:           opts.TCP,
		Websocket:     opts.Websocket,
		WebsocketPath: opts.WsPath,
	}, sink, log.WithField(logging.ComponentField, "collector"))
	if err := c.Listen(); err != nil {
		log.WithError(err).Fatal("Failed to listen")
	}

	if opts.Advertise {
		adv, err := discovery.Advertise(opts.Instance, services(c, opts.WsPath)...)
		if err != nil {
			log.WithError(err).Fatal("Failed to advertise")
		}
		defer adv.Shutdown()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"udp":       c.UDPAddr(),
		"tcp":       c.TCPAddr(),
		"websocket": c.WebsocketAddr(),
	}).Info("collector listening")
	if err := c.Serve(ctx); err != nil {
		log.WithError(err).Error("collector failed")
	}
	log.Infof("collector stopped after %d lines", c.Received())
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

// buildSink combines the console and the archive as the options ask.
func buildSink(opts options, stdout io.Writer) (collector.Sink, error) {
	var sinks collector.MultiSink
	if !opts.Quiet {
		sinks = append(sinks, collector.NewWriterSink(stdout))
	}
	if opts.Archive != "" {
		archive, err := collector.NewArchiveSink(opts.Archive)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, archive)
	}
	return sinks, nil
}

// services lists the listeners of c that are open, with their bound ports.
func services(c *collector.Collector, wsPath string) []discovery.Service {
	var svcs []discovery.Service
	if addr := c.UDPAddr(); addr != nil {
		svcs = append(svcs, discovery.Service{Kind: transport.KindDatagram, Port: port(addr)})
	}
	if addr := c.TCPAddr(); addr != nil {
		svcs = append(svcs, discovery.Service{Kind: transport.KindStream, Port: port(addr)})
	}
	if addr := c.WebsocketAddr(); addr != nil {
		svcs = append(svcs, discovery.Service{Kind: transport.KindFramed, Port: port(addr), Path: wsPath})
	}
	return svcs
}

func port(addr net.Addr) int {
	switch a := addr.(type) {
	case *net.UDPAddr:
		return a.Port
	case *net.TCPAddr:
		return a.Port
	}
	return 0
}
