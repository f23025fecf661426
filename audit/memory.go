// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"context"
	"sync"

	"github.com/concord-chat/concord/lib/clock"
)

// Memory is an in-process Log. It keeps the same hash chain semantics
// as Store without touching disk; tests and short-lived tools use it.
type Memory struct {
	clk clock.Clock

	mu      sync.Mutex
	entries []Entry
}

// NewMemory returns an empty in-memory log stamping entries with clk.
func NewMemory(clk clock.Clock) *Memory {
	return &Memory{clk: clk}
}

// Append assigns the next sequence number, timestamps the entry, and
// links it into the hash chain.
func (m *Memory) Append(_ context.Context, entry Entry) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var previous []byte
	if n := len(m.entries); n > 0 {
		previous = m.entries[n-1].Hash
	}
	entry.Sequence = int64(len(m.entries)) + 1
	entry.Timestamp = m.clk.Now().UnixMilli()
	entry.Hash = chainHash(previous, &entry)
	m.entries = append(m.entries, entry)
	return entry, nil
}

// Entries returns a copy of the log in append order.
func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Len reports the number of appended entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

var _ Log = (*Memory)(nil)
