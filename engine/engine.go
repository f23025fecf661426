// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/concord-chat/concord/audit"
	"github.com/concord-chat/concord/lib/clock"
	"github.com/concord-chat/concord/lib/fault"
	"github.com/concord-chat/concord/lib/ref"
	"github.com/concord-chat/concord/lib/schema"
	"github.com/concord-chat/concord/messaging"
	"github.com/concord-chat/concord/moderation"
	"github.com/concord-chat/concord/permission"
)

// Config assembles an Engine. Session, Space, and Audit are required.
type Config struct {
	Session messaging.Session

	// Space is the room whose state holds roles, overrides, member
	// assignments, and ban records.
	Space ref.RoomID

	// SystemActor is recorded on scheduler-initiated audit entries.
	SystemActor ref.UserID

	Audit audit.Log

	// BulkConcurrency caps parallel backend calls during bulk
	// moderation. Defaults to moderation.DefaultBulkConcurrency.
	BulkConcurrency int

	// ExpiryInterval is how often the ban expiry scheduler ticks.
	// Defaults to moderation.DefaultExpiryInterval.
	ExpiryInterval time.Duration

	// Clock defaults to the wall clock.
	Clock clock.Clock

	// Logger defaults to discard.
	Logger *slog.Logger
}

// Engine is the facade over one space. Safe for concurrent use.
type Engine struct {
	session messaging.Session
	space   ref.RoomID

	hierarchy *permission.Hierarchy
	overrides *permission.Overrides
	resolver  *permission.Resolver
	bans      *moderation.BanStore
	moderator *moderation.Service

	auditLog        audit.Log
	clk             clock.Clock
	logger          *slog.Logger
	bulkConcurrency int
	expiryInterval  time.Duration

	// rolesMu serializes role ladder mutations: creation and reorder
	// can renumber neighbors, so concurrent edits must not interleave.
	rolesMu sync.Mutex

	// channelMu serializes override mutations per channel, so two
	// writers cannot race the read-modify-write of one override event.
	channelMu keyedMutex
}

// New validates cfg and returns an Engine with empty stores. Call
// LoadState before serving reads.
func New(cfg Config) (*Engine, error) {
	switch {
	case cfg.Session == nil:
		return nil, fmt.Errorf("engine: Session is required")
	case cfg.Space.IsZero():
		return nil, fmt.Errorf("engine: Space is required")
	case cfg.Audit == nil:
		return nil, fmt.Errorf("engine: Audit is required")
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	hierarchy := permission.NewHierarchy()
	overrides := permission.NewOverrides()
	resolver := permission.NewResolver(hierarchy, overrides, permission.Mapper{})
	bans := moderation.NewBanStore()

	moderator, err := moderation.NewService(moderation.Config{
		Backend:     cfg.Session,
		Levels:      resolver,
		Bans:        bans,
		Audit:       cfg.Audit,
		Space:       cfg.Space,
		SystemActor: cfg.SystemActor,
		Clock:       clk,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	return &Engine{
		session:         cfg.Session,
		space:           cfg.Space,
		hierarchy:       hierarchy,
		overrides:       overrides,
		resolver:        resolver,
		bans:            bans,
		moderator:       moderator,
		auditLog:        cfg.Audit,
		clk:             clk,
		logger:          logger,
		bulkConcurrency: cfg.BulkConcurrency,
		expiryInterval:  cfg.ExpiryInterval,
	}, nil
}

// CheckPermission resolves one permission for one user in one channel
// through the layered model: user override, role overrides, role
// bases, space default.
func (e *Engine) CheckPermission(user ref.UserID, channel ref.RoomID, perm schema.Permission) (permission.Result, error) {
	return e.resolver.Resolve(user, channel, perm)
}

// EffectiveLevel returns a user's effective power level.
func (e *Engine) EffectiveLevel(user ref.UserID) int {
	return e.resolver.EffectiveLevel(user)
}

// Kick removes target from the space.
func (e *Engine) Kick(ctx context.Context, actor, target ref.UserID, reason string) error {
	return e.moderator.Kick(ctx, actor, target, reason)
}

// Ban bans target. Zero duration is permanent.
func (e *Engine) Ban(ctx context.Context, actor, target ref.UserID, reason string, duration time.Duration) (schema.BanContent, error) {
	return e.moderator.Ban(ctx, actor, target, reason, duration)
}

// Unban lifts target's ban.
func (e *Engine) Unban(ctx context.Context, actor, target ref.UserID) error {
	return e.moderator.Unban(ctx, actor, target)
}

// ExecuteBulk applies one moderation action to many targets. The
// engine's configured concurrency applies when the request leaves its
// own unset.
func (e *Engine) ExecuteBulk(ctx context.Context, req moderation.BulkRequest) ([]moderation.TargetResult, error) {
	if req.Concurrency <= 0 {
		req.Concurrency = e.bulkConcurrency
	}
	return e.moderator.ExecuteBulk(ctx, req)
}

// RunBanExpiry runs the timed ban expiry scheduler until ctx cancels.
// Blocking; run in a goroutine.
func (e *Engine) RunBanExpiry(ctx context.Context) {
	moderation.NewScheduler(e.moderator, e.expiryInterval).Run(ctx)
}

// AuditLister is the optional listing surface of an audit log.
// audit.Store implements it; audit.Memory does not.
type AuditLister interface {
	List(ctx context.Context, filter audit.Filter) ([]audit.Entry, error)
}

// ListAuditLog returns matching audit entries when the configured log
// supports listing.
func (e *Engine) ListAuditLog(ctx context.Context, filter audit.Filter) ([]audit.Entry, error) {
	lister, ok := e.auditLog.(AuditLister)
	if !ok {
		return nil, fmt.Errorf("engine: configured audit log does not support listing")
	}
	return lister.List(ctx, filter)
}

// sendState writes one state event to the space with bounded retry.
func (e *Engine) sendState(ctx context.Context, eventType ref.EventType, stateKey string, content any) error {
	err := fault.Retry(ctx, e.clk, func(ctx context.Context) error {
		_, sendErr := e.session.SendStateEvent(ctx, e.space, eventType, stateKey, content)
		return fault.FromBackend(sendErr)
	})
	if err != nil {
		return fmt.Errorf("engine: writing %s %q: %w", eventType, stateKey, err)
	}
	return nil
}

// appendAudit records a completed mutation. Audit failure does not
// undo the mutation.
func (e *Engine) appendAudit(ctx context.Context, entry audit.Entry) {
	if _, err := e.auditLog.Append(ctx, entry); err != nil {
		e.logger.Error("audit append failed",
			"action", entry.Action, "target", entry.Target, "error", err)
	}
}

// keyedMutex hands out one mutex per string key.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// lock acquires the mutex for key and returns its unlock func.
func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	lock, ok := k.locks[key]
	if !ok {
		lock = new(sync.Mutex)
		k.locks[key] = lock
	}
	k.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
