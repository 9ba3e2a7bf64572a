// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package record

import (
	"sync"
	"sync/atomic"
)

// Allocator hands out the buffers records are rendered into.
type Allocator interface {
	// Alloc returns an empty buffer with capacity of at least size bytes.
	Alloc(size int) []byte
	// Free takes back a buffer previously returned by Alloc.
	Free(buf []byte)
}

// PoolAllocator recycles fixed-size record buffers through a sync.Pool.
type PoolAllocator struct {
	size int
	pool sync.Pool
}

// NewPoolAllocator returns an allocator for buffers of the given size.
func NewPoolAllocator(size int) *PoolAllocator {
	a := &PoolAllocator{size: size}
	a.pool.New = func() interface{} {
		b := make([]byte, 0, a.size)
		return &b
	}
	return a
}

func (a *PoolAllocator) Alloc(size int) []byte {
	if size > a.size {
		return make([]byte, 0, size)
	}
	return (*a.pool.Get().(*[]byte))[:0]
}

func (a *PoolAllocator) Free(buf []byte) {
	if cap(buf) != a.size {
		return
	}
	buf = buf[:0]
	a.pool.Put(&buf)
}

// Record is one rendered log line. It owns its buffer until Release is called;
// whoever holds the record last is responsible for releasing it.
type Record struct {
	buf      []byte
	alloc    Allocator
	released atomic.Bool
}

func newRecord(buf []byte, alloc Allocator) *Record {
	return &Record{buf: buf, alloc: alloc}
}

// FromString copies s into a record that is not backed by an allocator.
func FromString(s string) *Record {
	return &Record{buf: []byte(s)}
}

// Bytes returns the rendered line. The slice must not be modified or kept
// after Release.
func (r *Record) Bytes() []byte {
	return r.buf
}

func (r *Record) String() string {
	return string(r.buf)
}

func (r *Record) Len() int {
	return len(r.buf)
}

// Released reports whether Release has been called.
func (r *Record) Released() bool {
	return r.released.Load()
}

// Release hands the buffer back to its allocator. Only the first call has an effect.
func (r *Record) Release() {
	if r == nil || !r.released.CompareAndSwap(false, true) {
		return
	}
	if r.alloc != nil {
		r.alloc.Free(r.buf)
	}
	r.buf = nil
}
