// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package moderation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/concord-chat/concord/audit"
	"github.com/concord-chat/concord/lib/clock"
	"github.com/concord-chat/concord/lib/fault"
	"github.com/concord-chat/concord/lib/ref"
	"github.com/concord-chat/concord/lib/schema"
)

// Backend is the homeserver surface moderation needs. Satisfied by
// messaging.Session.
type Backend interface {
	KickUser(ctx context.Context, roomID ref.RoomID, userID ref.UserID, reason string) error
	BanUser(ctx context.Context, roomID ref.RoomID, userID ref.UserID, reason string) error
	UnbanUser(ctx context.Context, roomID ref.RoomID, userID ref.UserID) error
	SendStateEvent(ctx context.Context, roomID ref.RoomID, eventType ref.EventType, stateKey string, content any) (string, error)
}

// LevelSource resolves a user's effective power level. Satisfied by
// permission.Resolver.
type LevelSource interface {
	EffectiveLevel(user ref.UserID) int
}

// Config assembles a moderation Service. Backend, Levels, Bans,
// Audit, and Space are required.
type Config struct {
	Backend Backend
	Levels  LevelSource
	Bans    *BanStore
	Audit   audit.Log

	// Space is the room all moderation acts on.
	Space ref.RoomID

	// SystemActor is the identity recorded on scheduler-initiated
	// actions (timed ban expiry).
	SystemActor ref.UserID

	// Clock defaults to the wall clock.
	Clock clock.Clock

	// Logger defaults to discard.
	Logger *slog.Logger
}

// Service executes moderation actions against the space.
type Service struct {
	backend     Backend
	levels      LevelSource
	bans        *BanStore
	auditLog    audit.Log
	space       ref.RoomID
	systemActor ref.UserID
	clk         clock.Clock
	logger      *slog.Logger
}

// NewService validates cfg and returns a Service.
func NewService(cfg Config) (*Service, error) {
	switch {
	case cfg.Backend == nil:
		return nil, fmt.Errorf("moderation: Backend is required")
	case cfg.Levels == nil:
		return nil, fmt.Errorf("moderation: Levels is required")
	case cfg.Bans == nil:
		return nil, fmt.Errorf("moderation: Bans is required")
	case cfg.Audit == nil:
		return nil, fmt.Errorf("moderation: Audit is required")
	case cfg.Space.IsZero():
		return nil, fmt.Errorf("moderation: Space is required")
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		backend:     cfg.Backend,
		levels:      cfg.Levels,
		bans:        cfg.Bans,
		auditLog:    cfg.Audit,
		space:       cfg.Space,
		systemActor: cfg.SystemActor,
		clk:         clk,
		logger:      logger,
	}, nil
}

// checkActor enforces the shared preconditions: no self-targeting,
// and the actor's effective level strictly above the target's.
func (s *Service) checkActor(actor, target ref.UserID) error {
	if actor == target {
		return fault.New(fault.SelfTargetForbidden,
			"%s cannot moderate themselves", actor)
	}
	actorLevel := s.levels.EffectiveLevel(actor)
	targetLevel := s.levels.EffectiveLevel(target)
	if actorLevel <= targetLevel {
		return fault.New(fault.InsufficientPrivilege,
			"%s (level %d) is not above %s (level %d)",
			actor, actorLevel, target, targetLevel)
	}
	return nil
}

// Kick removes target from the space. The target can rejoin.
func (s *Service) Kick(ctx context.Context, actor, target ref.UserID, reason string) error {
	if err := s.checkActor(actor, target); err != nil {
		return err
	}

	err := fault.Retry(ctx, s.clk, func(ctx context.Context) error {
		return fault.FromBackend(s.backend.KickUser(ctx, s.space, target, reason))
	})
	if err != nil {
		return fmt.Errorf("moderation: kicking %s: %w", target, err)
	}

	s.appendAudit(ctx, audit.Entry{
		Actor:  actor.String(),
		Action: audit.ActionMemberKick,
		Target: target.String(),
		After:  reasonSnapshot(reason),
	})
	s.logger.Info("user kicked", "actor", actor, "target", target, "reason", reason)
	return nil
}

// Ban bans target from the space. A zero duration is a permanent
// ban; a positive duration schedules expiry. Banning an already
// banned user replaces the existing record.
func (s *Service) Ban(ctx context.Context, actor, target ref.UserID, reason string, duration time.Duration) (schema.BanContent, error) {
	if err := s.checkActor(actor, target); err != nil {
		return schema.BanContent{}, err
	}
	if duration < 0 {
		return schema.BanContent{}, fault.New(fault.InvalidArgument,
			"negative ban duration %v", duration)
	}

	now := s.clk.Now()
	ban := schema.BanContent{
		Reason:    reason,
		Moderator: actor,
		CreatedAt: now.UnixMilli(),
	}
	if duration > 0 {
		ban.ExpiresAt = now.Add(duration).UnixMilli()
	}
	previous, replaced := s.bans.Get(target)

	err := fault.Retry(ctx, s.clk, func(ctx context.Context) error {
		return fault.FromBackend(s.backend.BanUser(ctx, s.space, target, reason))
	})
	if err != nil {
		return schema.BanContent{}, fmt.Errorf("moderation: banning %s: %w", target, err)
	}
	if err := s.writeBanRecord(ctx, target, &ban); err != nil {
		return schema.BanContent{}, err
	}
	s.bans.Put(target, ban)

	entry := audit.Entry{
		Actor:  actor.String(),
		Action: audit.ActionMemberBan,
		Target: target.String(),
		After:  banSnapshot(ban),
	}
	if replaced {
		entry.Before = banSnapshot(previous)
	}
	s.appendAudit(ctx, entry)
	s.logger.Info("user banned",
		"actor", actor, "target", target,
		"permanent", ban.Permanent(), "replaced", replaced)
	return ban, nil
}

// Unban lifts target's ban. Fails with AlreadyInState when no ban
// record exists.
func (s *Service) Unban(ctx context.Context, actor, target ref.UserID) error {
	if err := s.checkActor(actor, target); err != nil {
		return err
	}
	previous, banned := s.bans.Get(target)
	if !banned {
		return fault.New(fault.AlreadyInState, "%s is not banned", target)
	}

	err := fault.Retry(ctx, s.clk, func(ctx context.Context) error {
		return fault.FromBackend(s.backend.UnbanUser(ctx, s.space, target))
	})
	if err != nil {
		return fmt.Errorf("moderation: unbanning %s: %w", target, err)
	}
	if err := s.writeBanRecord(ctx, target, nil); err != nil {
		return err
	}
	s.bans.Delete(target)

	s.appendAudit(ctx, audit.Entry{
		Actor:  actor.String(),
		Action: audit.ActionMemberUnban,
		Target: target.String(),
		Before: banSnapshot(previous),
	})
	s.logger.Info("user unbanned", "actor", actor, "target", target)
	return nil
}

// ExpireBan lifts an expired timed ban on behalf of the system actor.
// Idempotent: a target with no ban record returns nil, so a scheduler
// tick that races a manual unban does nothing. A homeserver that has
// already lifted the ban counts as success; only transient backend
// failure leaves the record in place for the next tick.
func (s *Service) ExpireBan(ctx context.Context, target ref.UserID) error {
	previous, banned := s.bans.Get(target)
	if !banned {
		return nil
	}

	err := fault.Retry(ctx, s.clk, func(ctx context.Context) error {
		return fault.FromBackend(s.backend.UnbanUser(ctx, s.space, target))
	})
	if err != nil {
		if !fault.Is(err, fault.BackendRejected) {
			return fmt.Errorf("moderation: expiring ban on %s: %w", target, err)
		}
		s.logger.Warn("homeserver no longer has the ban, clearing record",
			"target", target, "error", err)
	}
	if err := s.writeBanRecord(ctx, target, nil); err != nil {
		return err
	}
	s.bans.Delete(target)

	s.appendAudit(ctx, audit.Entry{
		Actor:  s.systemActor.String(),
		Action: audit.ActionBanExpired,
		Target: target.String(),
		Before: banSnapshot(previous),
	})
	s.logger.Info("timed ban expired", "target", target)
	return nil
}

// writeBanRecord writes or tombstones the m.concord.ban state event
// for target. A nil ban writes empty content, which loaders treat as
// no active ban.
func (s *Service) writeBanRecord(ctx context.Context, target ref.UserID, ban *schema.BanContent) error {
	var content any = struct{}{}
	if ban != nil {
		content = ban
	}
	err := fault.Retry(ctx, s.clk, func(ctx context.Context) error {
		_, sendErr := s.backend.SendStateEvent(ctx, s.space, schema.EventTypeBan, target.String(), content)
		return fault.FromBackend(sendErr)
	})
	if err != nil {
		return fmt.Errorf("moderation: writing ban record for %s: %w", target, err)
	}
	return nil
}

// appendAudit records a completed action. Audit failure does not
// undo the action; it is logged and the entry is lost.
func (s *Service) appendAudit(ctx context.Context, entry audit.Entry) {
	if _, err := s.auditLog.Append(ctx, entry); err != nil {
		s.logger.Error("audit append failed",
			"action", entry.Action, "target", entry.Target, "error", err)
	}
}

func banSnapshot(ban schema.BanContent) json.RawMessage {
	raw, err := json.Marshal(ban)
	if err != nil {
		return nil
	}
	return raw
}

func reasonSnapshot(reason string) json.RawMessage {
	if reason == "" {
		return nil
	}
	raw, err := json.Marshal(struct {
		Reason string `json:"reason"`
	}{reason})
	if err != nil {
		return nil
	}
	return raw
}
