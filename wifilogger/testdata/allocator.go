// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package testdata

import (
	"sync"
)

// TrackingAllocator counts buffers handed out and taken back, so tests can
// assert that every record was released exactly once.
type TrackingAllocator struct {
	mu     sync.Mutex
	allocs int
	frees  int
	live   map[*byte]struct{}
}

func NewTrackingAllocator() *TrackingAllocator {
	return &TrackingAllocator{live: make(map[*byte]struct{})}
}

func (a *TrackingAllocator) Alloc(size int) []byte {
	if size < 1 {
		size = 1
	}
	buf := make([]byte, 0, size)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.allocs++
	a.live[&buf[:1][0]] = struct{}{}
	return buf
}

// Free panics on a buffer that is not live, which is how double frees and
// frees of foreign memory show up in tests.
func (a *TrackingAllocator) Free(buf []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := &buf[:1][0]
	if _, ok := a.live[key]; !ok {
		panic("free of a buffer that is not live")
	}
	delete(a.live, key)
	a.frees++
}

// Allocs returns the number of buffers handed out so far.
func (a *TrackingAllocator) Allocs() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allocs
}

// Frees returns the number of buffers taken back so far.
func (a *TrackingAllocator) Frees() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.frees
}

// Live returns the number of buffers that were handed out and not freed.
func (a *TrackingAllocator) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.live)
}
