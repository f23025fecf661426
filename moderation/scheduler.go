// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package moderation

import (
	"context"
	"time"
)

// DefaultExpiryInterval is how often the scheduler checks for expired
// timed bans when the configuration does not set an interval.
const DefaultExpiryInterval = time.Minute

// Scheduler periodically lifts expired timed bans through the
// service's system actor.
type Scheduler struct {
	service  *Service
	interval time.Duration
}

// NewScheduler returns a scheduler ticking every interval. A zero or
// negative interval uses DefaultExpiryInterval.
func NewScheduler(service *Service, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultExpiryInterval
	}
	return &Scheduler{service: service, interval: interval}
}

// Run ticks until ctx cancels. Blocking; run in a goroutine.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := s.service.clk.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Fire(ctx)
		}
	}
}

// Fire lifts every ban expired as of now. Each target is independent:
// a failure is logged and left for the next tick, and a tick that
// finds nothing expired does nothing. Safe to call concurrently with
// manual unbans because ExpireBan is idempotent.
func (s *Scheduler) Fire(ctx context.Context) {
	now := s.service.clk.Now()
	for _, target := range s.service.bans.Expired(now) {
		if err := s.service.ExpireBan(ctx, target); err != nil {
			s.service.logger.Warn("ban expiry failed, will retry next tick",
				"target", target, "error", err)
		}
	}
}
