// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync"
	"time"
)

// FakeClock is a Clock whose time only moves when a test calls
// Advance. Timers and tickers fire synchronously inside Advance, so
// tests observe deterministic ordering without real sleeps.
type FakeClock struct {
	mu      sync.Mutex
	cond    *sync.Cond
	now     time.Time
	waiters []*fakeWaiter
}

// fakeWaiter is a pending After channel or ticker registered with the
// fake clock. period is zero for one-shot waiters.
type fakeWaiter struct {
	deadline time.Time
	period   time.Duration
	ch       chan time.Time
	stopped  bool
}

// NewFake returns a FakeClock starting at a fixed, arbitrary epoch.
// Using a fixed epoch keeps timestamps in test fixtures stable.
func NewFake() *FakeClock {
	f := &FakeClock{
		now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// NewFakeAt returns a FakeClock starting at the given time.
func NewFakeAt(start time.Time) *FakeClock {
	f := &FakeClock{now: start}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Now returns the fake clock's current time.
func (f *FakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// After returns a channel that receives once the fake clock advances
// past d. If d <= 0 the channel receives immediately.
func (f *FakeClock) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- f.now
		return ch
	}
	f.waiters = append(f.waiters, &fakeWaiter{
		deadline: f.now.Add(d),
		ch:       ch,
	})
	f.cond.Broadcast()
	return ch
}

// NewTicker returns a ticker driven by Advance. Panics if d <= 0.
func (f *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: NewTicker interval must be positive")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	waiter := &fakeWaiter{
		deadline: f.now.Add(d),
		period:   d,
		ch:       make(chan time.Time, 1),
	}
	f.waiters = append(f.waiters, waiter)
	f.cond.Broadcast()

	return &Ticker{
		C: waiter.ch,
		stopFunc: func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			waiter.stopped = true
			f.removeStoppedLocked()
		},
	}
}

// Sleep blocks until the fake clock advances past d.
func (f *FakeClock) Sleep(d time.Duration) {
	<-f.After(d)
}

// Advance moves the fake clock forward by d, firing every timer and
// ticker whose deadline falls within the advanced window, in deadline
// order. Ticker ticks that find a full channel are dropped, matching
// time.Ticker behavior.
func (f *FakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	target := f.now.Add(d)
	for {
		next := f.earliestLocked()
		if next == nil || next.deadline.After(target) {
			break
		}
		f.now = next.deadline
		select {
		case next.ch <- f.now:
		default:
			// Consumer fell behind; drop the tick.
		}
		if next.period > 0 {
			next.deadline = next.deadline.Add(next.period)
		} else {
			f.removeLocked(next)
		}
	}
	f.now = target
}

// PendingCount returns the number of unfired timers and live tickers.
func (f *FakeClock) PendingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.waiters)
}

// WaitForTimers blocks until at least n timers or tickers are
// registered. Use this to synchronize with a goroutine that sets up
// its timer after the test calls Advance.
func (f *FakeClock) WaitForTimers(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for len(f.waiters) < n {
		f.cond.Wait()
	}
}

// earliestLocked returns the live waiter with the soonest deadline,
// or nil if none are registered. Caller holds f.mu.
func (f *FakeClock) earliestLocked() *fakeWaiter {
	var earliest *fakeWaiter
	for _, w := range f.waiters {
		if w.stopped {
			continue
		}
		if earliest == nil || w.deadline.Before(earliest.deadline) {
			earliest = w
		}
	}
	return earliest
}

// removeLocked removes the given waiter. Caller holds f.mu.
func (f *FakeClock) removeLocked(target *fakeWaiter) {
	for i, w := range f.waiters {
		if w == target {
			f.waiters = append(f.waiters[:i], f.waiters[i+1:]...)
			return
		}
	}
}

// removeStoppedLocked drops all stopped waiters. Caller holds f.mu.
func (f *FakeClock) removeStoppedLocked() {
	live := f.waiters[:0]
	for _, w := range f.waiters {
		if !w.stopped {
			live = append(live, w)
		}
	}
	f.waiters = live
}
