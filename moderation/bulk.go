// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package moderation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/concord-chat/concord/lib/fault"
	"github.com/concord-chat/concord/lib/ref"
)

// BulkAction selects the operation a bulk request applies.
type BulkAction string

const (
	BulkKick BulkAction = "kick"
	BulkBan  BulkAction = "ban"
)

// DefaultBulkConcurrency is the worker count when a request does not
// set one.
const DefaultBulkConcurrency = 4

// BulkStatus is the per-target outcome of a bulk request.
type BulkStatus string

const (
	// BulkSuccess: the action completed and was audited.
	BulkSuccess BulkStatus = "success"
	// BulkFailed: the action was attempted and failed.
	BulkFailed BulkStatus = "failed"
	// BulkCancelled: the request's context cancelled before this
	// target was attempted.
	BulkCancelled BulkStatus = "cancelled"
)

// BulkRequest applies one moderation action to many targets.
type BulkRequest struct {
	Actor   ref.UserID
	Action  BulkAction
	Targets []ref.UserID

	Reason string

	// Duration applies to BulkBan only; zero means permanent.
	Duration time.Duration

	// Concurrency caps parallel backend calls. Defaults to
	// DefaultBulkConcurrency.
	Concurrency int
}

// TargetResult is the outcome for one target of a bulk request.
type TargetResult struct {
	Target  ref.UserID
	Status  BulkStatus
	Code    fault.Code
	Message string
}

// ExecuteBulk applies req.Action to every eligible target through a
// bounded worker pool. Duplicate targets are collapsed keeping first
// position; the actor themselves and targets at or above the actor's
// level are dropped without a result. One TargetResult comes back per
// eligible target, in input order.
//
// Cancelling ctx stops unstarted targets (they report BulkCancelled)
// but lets in-flight backend calls run to completion, so a partially
// applied action is never abandoned mid-call.
func (s *Service) ExecuteBulk(ctx context.Context, req BulkRequest) ([]TargetResult, error) {
	switch req.Action {
	case BulkKick, BulkBan:
	default:
		return nil, fmt.Errorf("moderation: unknown bulk action %q", req.Action)
	}

	targets := s.eligibleTargets(req.Actor, req.Targets)
	if len(targets) == 0 {
		return []TargetResult{}, nil
	}

	concurrency := req.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultBulkConcurrency
	}
	if concurrency > len(targets) {
		concurrency = len(targets)
	}

	results := make([]TargetResult, len(targets))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range jobs {
				results[index] = s.runBulkTarget(ctx, req, targets[index])
			}
		}()
	}

feed:
	for index := range targets {
		select {
		case jobs <- index:
		case <-ctx.Done():
			for ; index < len(targets); index++ {
				// A worker may have grabbed an earlier index already;
				// only unclaimed slots stay cancelled.
				results[index] = TargetResult{
					Target:  targets[index],
					Status:  BulkCancelled,
					Code:    fault.Cancelled,
					Message: "request cancelled before this target started",
				}
			}
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	s.logger.Info("bulk action finished",
		"action", req.Action, "actor", req.Actor,
		"targets", len(targets), "requested", len(req.Targets))
	return results, nil
}

// eligibleTargets dedupes in input order, then silently drops the
// actor and any target the actor does not outrank.
func (s *Service) eligibleTargets(actor ref.UserID, requested []ref.UserID) []ref.UserID {
	actorLevel := s.levels.EffectiveLevel(actor)
	seen := make(map[ref.UserID]bool, len(requested))
	eligible := make([]ref.UserID, 0, len(requested))
	for _, target := range requested {
		if seen[target] {
			continue
		}
		seen[target] = true
		if target == actor {
			continue
		}
		if s.levels.EffectiveLevel(target) >= actorLevel {
			continue
		}
		eligible = append(eligible, target)
	}
	return eligible
}

// runBulkTarget executes one target. Once started, the backend call
// uses a detached context so cancellation cannot strand a half-done
// action.
func (s *Service) runBulkTarget(ctx context.Context, req BulkRequest, target ref.UserID) TargetResult {
	if ctx.Err() != nil {
		return TargetResult{
			Target:  target,
			Status:  BulkCancelled,
			Code:    fault.Cancelled,
			Message: "request cancelled before this target started",
		}
	}

	detached := context.WithoutCancel(ctx)
	var err error
	switch req.Action {
	case BulkKick:
		err = s.Kick(detached, req.Actor, target, req.Reason)
	case BulkBan:
		_, err = s.Ban(detached, req.Actor, target, req.Reason, req.Duration)
	}
	if err != nil {
		return TargetResult{
			Target:  target,
			Status:  BulkFailed,
			Code:    fault.CodeOf(err),
			Message: err.Error(),
		}
	}
	return TargetResult{Target: target, Status: BulkSuccess}
}
