// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package config holds the agent configuration, read from a YAML file and
// overridden from the command line.
package config

import (
	"io"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"go.wifilogger.dev/wifilogger/dispatch"
	"go.wifilogger.dev/wifilogger/record"
	"go.wifilogger.dev/wifilogger/transport"
)

type Config struct {
	Queue     QueueConfig     `yaml:"queue"`
	Record    RecordConfig    `yaml:"record"`
	Transport TransportConfig `yaml:"transport"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Route     RouteConfig     `yaml:"route"`
	Status    StatusConfig    `yaml:"status"`
	LogLevel  string          `yaml:"logLevel"`
}

type QueueConfig struct {
	Capacity int `yaml:"capacity"`
}

type RecordConfig struct {
	MaxSize int `yaml:"maxSize"`
}

type TransportConfig struct {
	Kind         string        `yaml:"kind"`
	Address      string        `yaml:"address"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	// Discover looks the collector up over mDNS when Address is empty.
	Discover bool   `yaml:"discover"`
	DeviceID string `yaml:"deviceID"`
}

type DispatchConfig struct {
	ReceiveTimeout    time.Duration `yaml:"receiveTimeout"`
	SendTimeout       time.Duration `yaml:"sendTimeout"`
	DegradeAfter      int           `yaml:"degradeAfter"`
	DegradedCooldown  time.Duration `yaml:"degradedCooldown"`
	DegradedSkipLimit int           `yaml:"degradedSkipLimit"`
	IdleNotice        bool          `yaml:"idleNotice"`
}

type RouteConfig struct {
	// StandardLogs routes the standard library and logrus loggers into the queue.
	StandardLogs bool `yaml:"standardLogs"`
}

type StatusConfig struct {
	// Listen is the address of the status API. Empty disables it.
	Listen string `yaml:"listen"`
}

const DefaultQueueCapacity = 32

func Default() Config {
	d := dispatch.DefaultConfig()
	return Config{
		Queue:  QueueConfig{Capacity: DefaultQueueCapacity},
		Record: RecordConfig{MaxSize: record.DefaultMaxSize},
		Transport: TransportConfig{
			Kind:         transport.KindDatagram,
			DialTimeout:  transport.DefaultDialTimeout,
			WriteTimeout: transport.DefaultWriteTimeout,
		},
		Dispatch: DispatchConfig{
			ReceiveTimeout:    d.ReceiveTimeout,
			SendTimeout:       d.SendTimeout,
			DegradeAfter:      d.DegradeAfter,
			DegradedCooldown:  d.DegradedCooldown,
			DegradedSkipLimit: d.DegradedSkipLimit,
			IdleNotice:        d.IdleNotice,
		},
		Route:    RouteConfig{StandardLogs: true},
		LogLevel: "info",
	}
}

// Load reads the YAML file at path over the defaults. Unknown keys are an error.
func Load(path string) (Config, error) {
	cfg := Default()
	f, err := os.Open(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "could not open config file %s", path)
	}
	defer f.Close()

	if err := Decode(f, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "could not parse config file %s", path)
	}
	return cfg, nil
}

// Decode reads YAML from r over the values already in cfg.
func Decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate reports the first setting the agent cannot run with.
func (c *Config) Validate() error {
	if err := c.ValidatePipeline(); err != nil {
		return err
	}
	return c.ValidateTransport()
}

// ValidatePipeline checks everything but the transport settings.
func (c *Config) ValidatePipeline() error {
	if c.Queue.Capacity <= 0 {
		return errors.Newf("queue.capacity must be positive, got %d", c.Queue.Capacity)
	}
	if c.Record.MaxSize <= 0 {
		return errors.Newf("record.maxSize must be positive, got %d", c.Record.MaxSize)
	}
	if c.Dispatch.DegradeAfter <= 0 {
		return errors.Newf("dispatch.degradeAfter must be positive, got %d", c.Dispatch.DegradeAfter)
	}
	if c.Dispatch.ReceiveTimeout <= 0 {
		return errors.Newf("dispatch.receiveTimeout must be positive, got %s", c.Dispatch.ReceiveTimeout)
	}
	if c.Dispatch.DegradedCooldown < 0 || c.Dispatch.DegradedSkipLimit < 0 || c.Dispatch.SendTimeout < 0 {
		return errors.New("dispatch limits cannot be negative")
	}
	if c.Dispatch.DegradedCooldown == 0 && c.Dispatch.DegradedSkipLimit == 0 {
		return errors.New("dispatch.degradedCooldown and dispatch.degradedSkipLimit cannot both be zero")
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "logLevel")
	}
	return nil
}

func (c *Config) ValidateTransport() error {
	switch c.Transport.Kind {
	case transport.KindDatagram, transport.KindStream, transport.KindFramed:
	default:
		return errors.Newf("transport.kind must be one of udp, tcp or websocket, got %q", c.Transport.Kind)
	}
	if c.Transport.Address == "" && !c.Transport.Discover {
		return errors.New("transport.address is required unless transport.discover is set")
	}
	if c.Transport.DialTimeout < 0 || c.Transport.WriteTimeout < 0 {
		return errors.New("transport timeouts cannot be negative")
	}
	return nil
}

// EnsureDeviceID generates a device id when none is configured and returns it.
func (c *Config) EnsureDeviceID() string {
	if c.Transport.DeviceID == "" {
		c.Transport.DeviceID = uuid.New().String()
	}
	return c.Transport.DeviceID
}

func (c *Config) TransportConfig() transport.Config {
	return transport.Config{
		Kind:         c.Transport.Kind,
		Address:      c.Transport.Address,
		DialTimeout:  c.Transport.DialTimeout,
		WriteTimeout: c.Transport.WriteTimeout,
		DeviceID:     c.Transport.DeviceID,
	}
}

func (c *Config) DispatchConfig() dispatch.Config {
	return dispatch.Config{
		ReceiveTimeout:    c.Dispatch.ReceiveTimeout,
		SendTimeout:       c.Dispatch.SendTimeout,
		DegradeAfter:      c.Dispatch.DegradeAfter,
		DegradedCooldown:  c.Dispatch.DegradedCooldown,
		DegradedSkipLimit: c.Dispatch.DegradedSkipLimit,
		IdleNotice:        c.Dispatch.IdleNotice,
	}
}
