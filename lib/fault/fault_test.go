// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package fault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/concord-chat/concord/lib/clock"
	"github.com/concord-chat/concord/messaging"
)

func TestCodeOf(t *testing.T) {
	base := New(AlreadyInState, "user %s is not banned", "@bob:concord.chat")
	wrapped := fmt.Errorf("moderation: unban failed: %w", base)

	if got := CodeOf(wrapped); got != AlreadyInState {
		t.Errorf("CodeOf(wrapped) = %q, want %q", got, AlreadyInState)
	}
	if got := CodeOf(errors.New("plain")); got != "" {
		t.Errorf("CodeOf(plain) = %q, want empty", got)
	}
	if !Is(wrapped, AlreadyInState) {
		t.Error("Is(wrapped, AlreadyInState) = false")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	wrapped := Wrap(BackendUnavailable, io.EOF, "homeserver unreachable")
	if !errors.Is(wrapped, io.EOF) {
		t.Error("wrapped error lost its cause")
	}
}

func TestFromBackend(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"rate limit", &messaging.MatrixError{Code: messaging.ErrCodeLimitExceeded, StatusCode: 429}, BackendUnavailable},
		{"server error", &messaging.MatrixError{Code: messaging.ErrCodeUnknown, StatusCode: 502}, BackendUnavailable},
		{"forbidden", &messaging.MatrixError{Code: messaging.ErrCodeForbidden, StatusCode: 403}, BackendRejected},
		{"not found", &messaging.MatrixError{Code: messaging.ErrCodeNotFound, StatusCode: 404}, BackendRejected},
		{"connection failure", io.EOF, BackendUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := FromBackend(tt.err)
			if got := CodeOf(classified); got != tt.want {
				t.Errorf("CodeOf(FromBackend(%v)) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestFromBackendPassesThroughCancellation(t *testing.T) {
	classified := FromBackend(context.Canceled)
	if CodeOf(classified) != "" {
		t.Errorf("cancellation was classified as %q", CodeOf(classified))
	}
	if !errors.Is(classified, context.Canceled) {
		t.Error("cancellation identity lost")
	}
	if FromBackend(nil) != nil {
		t.Error("FromBackend(nil) != nil")
	}
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	fake := clock.NewFake()
	attempts := 0
	err := Retry(context.Background(), fake, func(context.Context) error {
		attempts++
		return New(BackendRejected, "forbidden")
	})
	if attempts != 1 {
		t.Errorf("permanent error retried: %d attempts", attempts)
	}
	if !Is(err, BackendRejected) {
		t.Errorf("err = %v, want BackendRejected", err)
	}
}

func TestRetryBacksOffOnTransientError(t *testing.T) {
	fake := clock.NewFake()
	attempts := 0
	done := make(chan error, 1)
	go func() {
		done <- Retry(context.Background(), fake, func(context.Context) error {
			attempts++
			if attempts < 3 {
				return New(BackendUnavailable, "rate limited")
			}
			return nil
		})
	}()

	// First retry waits 1s, second waits 2s.
	fake.WaitForTimers(1)
	fake.Advance(time.Second)
	fake.WaitForTimers(1)
	fake.Advance(2 * time.Second)

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Retry = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Retry did not finish")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	fake := clock.NewFake()
	attempts := 0
	done := make(chan error, 1)
	go func() {
		done <- Retry(context.Background(), fake, func(context.Context) error {
			attempts++
			return New(BackendUnavailable, "still down")
		})
	}()

	fake.WaitForTimers(1)
	fake.Advance(time.Second)
	fake.WaitForTimers(1)
	fake.Advance(2 * time.Second)

	select {
	case err := <-done:
		if !Is(err, BackendUnavailable) {
			t.Errorf("err = %v, want BackendUnavailable", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Retry did not finish")
	}
	if attempts != MaxAttempts {
		t.Errorf("attempts = %d, want %d", attempts, MaxAttempts)
	}
}

func TestRetryHonorsCancellation(t *testing.T) {
	fake := clock.NewFake()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Retry(ctx, fake, func(context.Context) error {
			return New(BackendUnavailable, "down")
		})
	}()

	fake.WaitForTimers(1)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Retry did not observe cancellation")
	}
}
