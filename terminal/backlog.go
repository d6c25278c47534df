// Copyright 2026 The Quarterdeck Authors
// SPDX-License-Identifier: Apache-2.0

package terminal

import "sync"

// DefaultBacklogSize is the default backlog capacity in bytes. 256 KB
// holds a comfortable amount of shell scrollback for an interactive
// session without growing with session length.
const DefaultBacklogSize = 256 * 1024

// Backlog is a fixed-size circular buffer over raw session output,
// escape sequences included. It tracks a monotonically increasing
// byte offset so a consumer (scrollback save, transcript flush) can
// ask for "everything since offset N"; writes past capacity overwrite
// the oldest bytes.
//
// All methods are safe for concurrent use.
type Backlog struct {
	mu       sync.Mutex
	data     []byte
	capacity int

	// next is the write position within the circular buffer.
	next int

	// written is the total number of bytes ever written. The retained
	// span runs from written-min(written,capacity) to written.
	written uint64
}

// NewBacklog creates a backlog with the given byte capacity.
func NewBacklog(capacity int) *Backlog {
	return &Backlog{
		data:     make([]byte, capacity),
		capacity: capacity,
	}
}

// Write appends session output, advancing the offset. Never fails;
// it implements io.Writer so it can sit in an io.MultiWriter next to
// the live display.
func (b *Backlog) Write(data []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for offset := 0; offset < len(data); {
		n := copy(b.data[b.next:], data[offset:])
		b.next = (b.next + n) % b.capacity
		offset += n
	}
	b.written += uint64(len(data))
	return len(data), nil
}

// ReadFrom returns everything written since the given offset. An
// offset older than the retained span returns the whole retained
// buffer (the caller missed data); an offset at or past the current
// position returns nil.
func (b *Backlog) ReadFrom(offset uint64) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if offset >= b.written {
		return nil
	}

	retained := b.written
	if retained > uint64(b.capacity) {
		retained = uint64(b.capacity)
	}
	oldest := b.written - retained
	if offset < oldest {
		offset = oldest
	}

	length := int(b.written - offset)
	result := make([]byte, length)

	position := (b.next - int(b.written-offset)) % b.capacity
	if position < 0 {
		position += b.capacity
	}
	for copied := 0; copied < length; {
		n := copy(result[copied:], b.data[position:])
		position = (position + n) % b.capacity
		copied += n
	}
	return result
}

// Offset returns the total bytes written so far: the value a consumer
// stores and later passes to ReadFrom.
func (b *Backlog) Offset() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.written
}
