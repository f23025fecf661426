// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

func TestFakeAfterFiresOnAdvance(t *testing.T) {
	fake := NewFake()
	ch := fake.After(5 * time.Second)

	select {
	case <-ch:
		t.Fatal("timer fired before Advance")
	default:
	}

	fake.Advance(4 * time.Second)
	select {
	case <-ch:
		t.Fatal("timer fired 1s early")
	default:
	}

	fake.Advance(time.Second)
	select {
	case fired := <-ch:
		want := NewFake().Now().Add(5 * time.Second)
		if !fired.Equal(want) {
			t.Errorf("fired at %v, want %v", fired, want)
		}
	default:
		t.Fatal("timer did not fire at deadline")
	}
}

func TestFakeAfterNonPositiveFiresImmediately(t *testing.T) {
	fake := NewFake()
	select {
	case <-fake.After(0):
	default:
		t.Fatal("After(0) did not fire immediately")
	}
}

func TestFakeAdvanceFiresInDeadlineOrder(t *testing.T) {
	fake := NewFake()
	late := fake.After(10 * time.Second)
	early := fake.After(2 * time.Second)

	fake.Advance(15 * time.Second)

	earlyFired := <-early
	lateFired := <-late
	if !earlyFired.Before(lateFired) {
		t.Errorf("early timer fired at %v, late at %v", earlyFired, lateFired)
	}
	if fake.PendingCount() != 0 {
		t.Errorf("PendingCount() = %d after all timers fired", fake.PendingCount())
	}
}

func TestFakeTicker(t *testing.T) {
	fake := NewFake()
	ticker := fake.NewTicker(time.Minute)
	defer ticker.Stop()

	fake.Advance(time.Minute)
	select {
	case <-ticker.C:
	default:
		t.Fatal("no tick after one interval")
	}

	// Two intervals with no consumer: one tick delivered, one dropped.
	fake.Advance(2 * time.Minute)
	select {
	case <-ticker.C:
	default:
		t.Fatal("no tick after two more intervals")
	}
	select {
	case <-ticker.C:
		t.Fatal("dropped tick was queued")
	default:
	}
}

func TestFakeTickerStop(t *testing.T) {
	fake := NewFake()
	ticker := fake.NewTicker(time.Second)
	ticker.Stop()

	fake.Advance(5 * time.Second)
	select {
	case <-ticker.C:
		t.Fatal("stopped ticker delivered a tick")
	default:
	}
	if fake.PendingCount() != 0 {
		t.Errorf("PendingCount() = %d after Stop", fake.PendingCount())
	}
}

func TestFakeWaitForTimers(t *testing.T) {
	fake := NewFake()
	done := make(chan struct{})
	go func() {
		fake.WaitForTimers(1)
		close(done)
	}()

	fake.After(time.Second)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("WaitForTimers did not return after timer registration")
	}
}
