// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/concord-chat/concord/lib/ref"
	"github.com/concord-chat/concord/lib/schema"
	"github.com/concord-chat/concord/messaging"
	"github.com/concord-chat/concord/permission"
)

// LoadState rebuilds the in-memory stores from the space room's
// current state. One fetch covers roles, member assignments,
// overrides, ban records, and the power levels behind the space
// default layer.
//
// Malformed events are logged and skipped; one bad event never blocks
// a space from loading. Events with empty content are tombstones and
// clear whatever they addressed.
func (e *Engine) LoadState(ctx context.Context) error {
	events, err := e.session.GetRoomState(ctx, e.space)
	if err != nil {
		return fmt.Errorf("engine: fetching state for %s: %w", e.space, err)
	}

	// Roles and power levels first: member restoration drops
	// assignments to roles that do not exist yet.
	for _, event := range events {
		switch event.Type {
		case schema.EventTypeRole:
			e.loadRole(event)
		case schema.MatrixEventTypePowerLevels:
			if event.StateKey == "" {
				e.loadPowerLevels(event)
			}
		}
	}
	for _, event := range events {
		switch event.Type {
		case schema.EventTypeMember:
			e.loadMember(event)
		case schema.EventTypeRoleOverride:
			e.loadOverride(event, true)
		case schema.EventTypeUserOverride:
			e.loadOverride(event, false)
		case schema.EventTypeBan:
			e.loadBan(event)
		}
	}

	e.logger.Info("space state loaded",
		"space", e.space,
		"events", len(events),
		"roles", len(e.hierarchy.List()),
		"bans", e.bans.Len())
	return nil
}

// tombstone reports whether a state event's content is empty, the
// convention for a deleted record.
func tombstone(content json.RawMessage) bool {
	if len(content) == 0 {
		return true
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(content, &probe); err != nil {
		return false
	}
	return len(probe) == 0
}

func (e *Engine) loadRole(event messaging.Event) {
	id, err := ref.ParseRoleID(event.StateKey)
	if err != nil {
		e.logger.Warn("skipping role event with bad state key",
			"state_key", event.StateKey, "error", err)
		return
	}
	if tombstone(event.Content) {
		return
	}
	var content schema.RoleContent
	if err := json.Unmarshal(event.Content, &content); err != nil {
		e.logger.Warn("skipping malformed role event", "role", id, "error", err)
		return
	}
	if err := content.Validate(); err != nil {
		e.logger.Warn("skipping invalid role event", "role", id, "error", err)
		return
	}
	e.hierarchy.Restore(permission.RoleFromContent(id, content))
}

func (e *Engine) loadMember(event messaging.Event) {
	user, err := ref.ParseUserID(event.StateKey)
	if err != nil {
		e.logger.Warn("skipping member event with bad state key",
			"state_key", event.StateKey, "error", err)
		return
	}
	var content schema.MemberContent
	if !tombstone(event.Content) {
		if err := json.Unmarshal(event.Content, &content); err != nil {
			e.logger.Warn("skipping malformed member event", "user", user, "error", err)
			return
		}
		if err := content.Validate(); err != nil {
			e.logger.Warn("skipping invalid member event", "user", user, "error", err)
			return
		}
	}
	e.hierarchy.RestoreMember(user, content.Roles)
}

func (e *Engine) loadOverride(event messaging.Event, roleTarget bool) {
	channel, target, err := schema.SplitOverrideStateKey(event.StateKey)
	if err != nil {
		e.logger.Warn("skipping override event with bad state key",
			"state_key", event.StateKey, "error", err)
		return
	}

	var content schema.OverrideContent
	if !tombstone(event.Content) {
		if err := json.Unmarshal(event.Content, &content); err != nil {
			e.logger.Warn("skipping malformed override event",
				"state_key", event.StateKey, "error", err)
			return
		}
		if err := content.Validate(); err != nil {
			e.logger.Warn("skipping invalid override event",
				"state_key", event.StateKey, "error", err)
			return
		}
		content.Normalize()
	}

	if roleTarget {
		role, err := ref.ParseRoleID(target)
		if err != nil {
			e.logger.Warn("skipping role override with bad target",
				"state_key", event.StateKey, "error", err)
			return
		}
		e.overrides.RestoreRole(channel, role, content.States)
		return
	}
	user, err := ref.ParseUserID(target)
	if err != nil {
		e.logger.Warn("skipping user override with bad target",
			"state_key", event.StateKey, "error", err)
		return
	}
	e.overrides.RestoreUser(channel, user, content.States)
}

func (e *Engine) loadBan(event messaging.Event) {
	target, err := ref.ParseUserID(event.StateKey)
	if err != nil {
		e.logger.Warn("skipping ban event with bad state key",
			"state_key", event.StateKey, "error", err)
		return
	}
	if tombstone(event.Content) {
		e.bans.Delete(target)
		return
	}
	var content schema.BanContent
	if err := json.Unmarshal(event.Content, &content); err != nil {
		e.logger.Warn("skipping malformed ban event", "target", target, "error", err)
		return
	}
	if err := content.Validate(); err != nil {
		e.logger.Warn("skipping invalid ban event", "target", target, "error", err)
		return
	}
	e.bans.Put(target, content)
}

func (e *Engine) loadPowerLevels(event messaging.Event) {
	var content schema.PowerLevels
	if err := json.Unmarshal(event.Content, &content); err != nil {
		e.logger.Warn("skipping malformed power levels event", "error", err)
		return
	}
	e.resolver.SetMapper(permission.NewMapper(&content))
}
