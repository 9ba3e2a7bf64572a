// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package discovery finds a collector on the local network over mDNS, and
// lets a collector announce itself.
package discovery

import (
	"context"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/enbility/zeroconf/v3"

	"go.wifilogger.dev/wifilogger/transport"
)

const (
	Domain = "local."

	// DefaultLookupTimeout bounds Lookup when ctx carries no deadline.
	DefaultLookupTimeout = 5 * time.Second

	txtKind = "kind="
	txtPath = "path="
)

// ErrNotFound is returned by Lookup when no collector answered in time.
var ErrNotFound = errors.New("no collector found")

// ServiceType returns the DNS-SD service type a collector advertises for kind.
func ServiceType(kind transport.Kind) string {
	switch kind {
	case transport.KindStream:
		return "_wifilogger-tcp._tcp"
	case transport.KindFramed:
		return "_wifilogger-ws._tcp"
	}
	return "_wifilogger-udp._udp"
}

// Lookup browses for a collector accepting kind and returns the address
// the transport should dial.
func Lookup(ctx context.Context, kind transport.Kind) (string, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultLookupTimeout)
		defer cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)
	browseErr := make(chan error, 1)
	go func() {
		browseErr <- zeroconf.Browse(ctx, ServiceType(kind), Domain, entries, removed)
	}()

	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return "", errors.Wrapf(ErrNotFound, "browsing %s", ServiceType(kind))
			}
			if addr := EntryAddress(kind, entry); addr != "" {
				return addr, nil
			}
		case <-removed:
		case err := <-browseErr:
			if err != nil {
				return "", errors.Wrapf(err, "could not browse %s", ServiceType(kind))
			}
			browseErr = nil
		case <-ctx.Done():
			return "", errors.Wrapf(ErrNotFound, "browsing %s", ServiceType(kind))
		}
	}
}

// EntryAddress turns a browse result into a dialable address, preferring
// IPv4. Returns "" when the entry has no usable address.
func EntryAddress(kind transport.Kind, entry *zeroconf.ServiceEntry) string {
	if entry == nil || entry.Port <= 0 {
		return ""
	}
	var ip net.IP
	switch {
	case len(entry.AddrIPv4) > 0:
		ip = entry.AddrIPv4[0]
	case len(entry.AddrIPv6) > 0:
		ip = entry.AddrIPv6[0]
	default:
		return ""
	}
	hostport := net.JoinHostPort(ip.String(), strconv.Itoa(entry.Port))
	if kind != transport.KindFramed {
		return hostport
	}
	path := transport.DefaultFramedPath
	for _, txt := range entry.Text {
		if strings.HasPrefix(txt, txtPath) {
			path = strings.TrimPrefix(txt, txtPath)
		}
	}
	return "ws://" + hostport + path
}

// Advertisement is a running mDNS announcement.
type Advertisement struct {
	servers []*zeroconf.Server
}

// Service describes one listener a collector announces.
type Service struct {
	Kind transport.Kind
	Port int
	// Path is announced for websocket listeners.
	Path string
}

// Advertise announces every service under the same instance name on all
// interfaces.
func Advertise(instance string, services ...Service) (*Advertisement, error) {
	a := &Advertisement{}
	for _, svc := range services {
		text := []string{txtKind + svc.Kind}
		if svc.Kind == transport.KindFramed {
			path := svc.Path
			if path == "" {
				path = transport.DefaultFramedPath
			}
			text = append(text, txtPath+path)
		}
		server, err := zeroconf.Register(instance, ServiceType(svc.Kind), Domain, svc.Port, text, nil)
		if err != nil {
			a.Shutdown()
			return nil, errors.Wrapf(err, "could not advertise %s on port %d", ServiceType(svc.Kind), svc.Port)
		}
		a.servers = append(a.servers, server)
	}
	return a, nil
}

// Shutdown withdraws every announcement.
func (a *Advertisement) Shutdown() {
	for _, server := range a.servers {
		server.Shutdown()
	}
	a.servers = nil
}
