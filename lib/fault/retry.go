// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package fault

import (
	"context"
	"time"

	"github.com/concord-chat/concord/lib/clock"
)

// MaxAttempts is the number of times Retry tries an operation before
// giving up. Three attempts with exponential backoff (1s, 2s) covers
// brief rate limits and server hiccups without holding a moderation
// call open for long.
const MaxAttempts = 3

// Retry runs op with bounded retry on transient failures. op must
// return errors already classified through FromBackend; Retry backs
// off and re-runs only while Transient reports true. Permanent errors
// and taxonomy refusals return immediately.
//
// The context bounds the total retry time: if it cancels during a
// backoff wait, Retry returns ctx.Err() rather than the last attempt's
// error.
func Retry(ctx context.Context, clk clock.Clock, op func(context.Context) error) error {
	var lastError error
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		if attempt > 0 {
			backoff := backoffDuration(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-clk.After(backoff):
			}
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		lastError = err

		if !Transient(err) {
			return err
		}
	}
	return lastError
}

// backoffDuration returns the wait before the given retry: 1s before
// the second attempt, 2s before the third.
func backoffDuration(attempt int) time.Duration {
	return time.Duration(1<<(attempt-1)) * time.Second
}
