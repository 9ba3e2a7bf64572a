// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package collector receives records sent by agents over UDP, TCP and
// websocket and hands them to a Sink.
package collector

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"go.wifilogger.dev/wifilogger/transport"
)

// DefaultMaxLine bounds a single received record.
const DefaultMaxLine = 4096

type Config struct {
	// UDP, TCP and Websocket are listen addresses; empty disables the listener.
	UDP       string
	TCP       string
	Websocket string
	// WebsocketPath is the upgrade path; defaults to transport.DefaultFramedPath.
	WebsocketPath string
	MaxLine       int
}

type Collector struct {
	cfg  Config
	sink Sink
	log  log.FieldLogger
	now  func() time.Time

	udp net.PacketConn
	tcp net.Listener
	ws  net.Listener

	connsMu sync.Mutex
	conns   map[io.Closer]struct{}
	closed  bool

	received atomic.Uint64
	failed   atomic.Uint64
}

func New(cfg Config, sink Sink, logger log.FieldLogger) *Collector {
	if cfg.MaxLine <= 0 {
		cfg.MaxLine = DefaultMaxLine
	}
	if cfg.WebsocketPath == "" {
		cfg.WebsocketPath = transport.DefaultFramedPath
	}
	return &Collector{
		cfg:   cfg,
		sink:  sink,
		log:   logger,
		now:   time.Now,
		conns: make(map[io.Closer]struct{}),
	}
}

// Listen opens every configured listener. On error nothing stays open.
func (c *Collector) Listen() error {
	var err error
	if c.cfg.UDP != "" {
		if c.udp, err = net.ListenPacket("udp", c.cfg.UDP); err != nil {
			c.closeListeners()
			return errors.Wrapf(err, "could not listen on udp %s", c.cfg.UDP)
		}
	}
	if c.cfg.TCP != "" {
		if c.tcp, err = net.Listen("tcp", c.cfg.TCP); err != nil {
			c.closeListeners()
			return errors.Wrapf(err, "could not listen on tcp %s", c.cfg.TCP)
		}
	}
	if c.cfg.Websocket != "" {
		if c.ws, err = net.Listen("tcp", c.cfg.Websocket); err != nil {
			c.closeListeners()
			return errors.Wrapf(err, "could not listen on websocket %s", c.cfg.Websocket)
		}
	}
	if c.udp == nil && c.tcp == nil && c.ws == nil {
		return errors.New("no listener configured")
	}
	return nil
}

func (c *Collector) UDPAddr() net.Addr {
	if c.udp == nil {
		return nil
	}
	return c.udp.LocalAddr()
}

func (c *Collector) TCPAddr() net.Addr {
	if c.tcp == nil {
		return nil
	}
	return c.tcp.Addr()
}

func (c *Collector) WebsocketAddr() net.Addr {
	if c.ws == nil {
		return nil
	}
	return c.ws.Addr()
}

// Received returns the number of lines handed to the sink.
func (c *Collector) Received() uint64 {
	return c.received.Load()
}

// Serve runs the listeners opened by Listen until ctx is done, then closes
// them and every open connection. It returns nil on a clean shutdown.
func (c *Collector) Serve(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if c.udp != nil {
		g.Go(func() error { return c.serveUDP(ctx) })
	}
	if c.tcp != nil {
		g.Go(func() error { return c.serveTCP(ctx) })
	}
	if c.ws != nil {
		g.Go(func() error { return c.serveWebsocket(ctx) })
	}
	g.Go(func() error {
		<-ctx.Done()
		c.closeListeners()
		c.closeConns()
		return nil
	})
	return g.Wait()
}

func (c *Collector) consume(kind transport.Kind, remote, device string, text []byte) {
	text = bytes.TrimRight(text, "\r\n")
	if len(text) == 0 {
		return
	}
	line := Line{
		Received: c.now(),
		Kind:     kind,
		Remote:   remote,
		Device:   device,
		Text:     string(text),
	}
	if err := c.sink.Consume(line); err != nil {
		c.failed.Add(1)
		c.log.WithError(err).Warn("could not consume line")
		return
	}
	c.received.Add(1)
}

func (c *Collector) serveUDP(ctx context.Context) error {
	buf := make([]byte, c.cfg.MaxLine)
	for {
		n, addr, err := c.udp.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "udp read failed")
		}
		c.consume(transport.KindDatagram, addr.String(), "", buf[:n])
	}
}

func (c *Collector) serveTCP(ctx context.Context) error {
	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		conn, err := c.tcp.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "tcp accept failed")
		}
		c.track(conn)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer c.untrack(conn)
			c.readStream(conn)
		}()
	}
}

func (c *Collector) readStream(conn net.Conn) {
	remote := conn.RemoteAddr().String()
	c.log.WithField("remote", remote).Debug("stream connected")
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 512), c.cfg.MaxLine)
	for scanner.Scan() {
		c.consume(transport.KindStream, remote, "", scanner.Bytes())
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		c.log.WithError(err).WithField("remote", remote).Warn("stream closed")
	}
}

func (c *Collector) serveWebsocket(ctx context.Context) error {
	r := chi.NewRouter()
	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("pong")) })
	r.Get(c.cfg.WebsocketPath, c.websocketHandler)

	srv := &http.Server{Handler: r}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	if err := srv.Serve(c.ws); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		return errors.Wrap(err, "websocket server failed")
	}
	return nil
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (c *Collector) websocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	c.track(conn)
	defer c.untrack(conn)
	conn.SetReadLimit(int64(c.cfg.MaxLine))

	device := r.Header.Get(transport.DeviceHeader)
	c.log.WithField("device", device).Debug("websocket connected")
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) &&
				!errors.Is(err, net.ErrClosed) {
				c.log.WithError(err).WithField("device", device).Debug("websocket closed")
			}
			return
		}
		c.consume(transport.KindFramed, r.RemoteAddr, device, msg)
	}
}

// track registers conn for shutdown. A connection accepted after shutdown
// began is closed at once.
func (c *Collector) track(conn io.Closer) {
	c.connsMu.Lock()
	defer c.connsMu.Unlock()
	if c.closed {
		conn.Close()
		return
	}
	c.conns[conn] = struct{}{}
}

func (c *Collector) untrack(conn io.Closer) {
	c.connsMu.Lock()
	delete(c.conns, conn)
	c.connsMu.Unlock()
	conn.Close()
}

func (c *Collector) closeConns() {
	c.connsMu.Lock()
	defer c.connsMu.Unlock()
	c.closed = true
	for conn := range c.conns {
		conn.Close()
	}
}

func (c *Collector) closeListeners() {
	if c.udp != nil {
		c.udp.Close()
	}
	if c.tcp != nil {
		c.tcp.Close()
	}
	if c.ws != nil {
		c.ws.Close()
	}
}
