// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"encoding/json"

	"github.com/concord-chat/concord/audit"
	"github.com/concord-chat/concord/lib/fault"
	"github.com/concord-chat/concord/lib/ref"
	"github.com/concord-chat/concord/lib/schema"
	"github.com/concord-chat/concord/permission"
)

// authorizeOverride checks that actor may write an override for perm
// in channel: administrators always may; everyone else needs both
// manage_roles and the permission being set to resolve Allow there —
// an actor cannot hand out a permission they do not themselves hold.
// Clear operations pass manage_roles, gating only on the edit right.
func (e *Engine) authorizeOverride(actor ref.UserID, channel ref.RoomID, perm schema.Permission) error {
	if e.resolver.IsAdministrator(actor) {
		return nil
	}
	result, err := e.resolver.Resolve(actor, channel, schema.PermissionManageRoles)
	if err != nil {
		return err
	}
	if result.Decision != permission.Allow {
		return fault.New(fault.InsufficientPrivilege,
			"%s lacks manage_roles in %s", actor, channel)
	}
	if perm == schema.PermissionManageRoles {
		return nil
	}
	result, err = e.resolver.Resolve(actor, channel, perm)
	if err != nil {
		return err
	}
	if result.Decision != permission.Allow {
		return fault.New(fault.InsufficientPrivilege,
			"%s does not hold %s in %s", actor, perm, channel)
	}
	return nil
}

// SetRoleOverride directly sets one (channel, role, permission) entry.
// Setting Inherit removes the stored entry. Idempotent sets write no
// event and no audit entry.
func (e *Engine) SetRoleOverride(ctx context.Context, actor ref.UserID, channel ref.RoomID, role ref.RoleID, perm schema.Permission, state schema.State) error {
	if !perm.Known() {
		return fault.New(fault.InvalidPermissionName, "unknown permission %q", perm)
	}
	if !state.Valid() {
		return fault.New(fault.InvalidPermissionName, "invalid override state %d", uint8(state))
	}
	if err := e.authorizeOverride(actor, channel, perm); err != nil {
		return err
	}
	if _, ok := e.hierarchy.Get(role); !ok {
		return fault.New(fault.AlreadyInState, "role %q does not exist", role)
	}

	unlock := e.channelMu.lock(channel.String())
	defer unlock()

	previous, changed := e.overrides.SetRole(channel, role, perm, state)
	if !changed {
		return nil
	}
	if err := e.writeRoleOverride(ctx, channel, role); err != nil {
		// Revert so memory matches the server.
		e.overrides.SetRole(channel, role, perm, previous)
		return err
	}

	e.appendAudit(ctx, audit.Entry{
		Actor:   actor.String(),
		Action:  audit.ActionOverrideSet,
		Target:  role.String(),
		Channel: channel.String(),
		Before:  overrideSnapshot(perm, previous),
		After:   overrideSnapshot(perm, state),
	})
	e.logger.Info("role override set",
		"actor", actor, "channel", channel, "role", role,
		"permission", perm, "state", state)
	return nil
}

// SetUserOverride directly sets one (channel, user, permission)
// entry. The target must rank strictly below the actor (self included)
// unless the actor is an administrator, and must be able to access
// the channel.
func (e *Engine) SetUserOverride(ctx context.Context, actor ref.UserID, channel ref.RoomID, target ref.UserID, perm schema.Permission, state schema.State) error {
	if !perm.Known() {
		return fault.New(fault.InvalidPermissionName, "unknown permission %q", perm)
	}
	if !state.Valid() {
		return fault.New(fault.InvalidPermissionName, "invalid override state %d", uint8(state))
	}
	if err := e.authorizeOverride(actor, channel, perm); err != nil {
		return err
	}
	if !e.resolver.IsAdministrator(actor) {
		if e.resolver.EffectiveLevel(target) >= e.resolver.EffectiveLevel(actor) {
			return fault.New(fault.InsufficientPrivilege,
				"%s does not outrank %s", actor, target)
		}
	}
	// A user cannot hold an override in a channel they cannot access.
	// Granting view_channel itself is exempt: that is how access is
	// restored.
	if perm != schema.PermissionViewChannel {
		access, err := e.resolver.Resolve(target, channel, schema.PermissionViewChannel)
		if err != nil {
			return err
		}
		if access.Decision != permission.Allow {
			return fault.New(fault.InsufficientPrivilege,
				"%s cannot access %s", target, channel)
		}
	}

	unlock := e.channelMu.lock(channel.String())
	defer unlock()

	previous, changed := e.overrides.SetUser(channel, target, perm, state)
	if !changed {
		return nil
	}
	if err := e.writeUserOverride(ctx, channel, target); err != nil {
		e.overrides.SetUser(channel, target, perm, previous)
		return err
	}

	e.appendAudit(ctx, audit.Entry{
		Actor:   actor.String(),
		Action:  audit.ActionOverrideSet,
		Target:  target.String(),
		Channel: channel.String(),
		Before:  overrideSnapshot(perm, previous),
		After:   overrideSnapshot(perm, state),
	})
	e.logger.Info("user override set",
		"actor", actor, "channel", channel, "target", target,
		"permission", perm, "state", state)
	return nil
}

// CycleRoleOverride advances one role override entry through
// Inherit → Allow → Deny → Inherit and stores the result directly.
func (e *Engine) CycleRoleOverride(ctx context.Context, actor ref.UserID, channel ref.RoomID, role ref.RoleID, perm schema.Permission) (schema.State, error) {
	next := e.overrides.RoleState(channel, role, perm).Cycle()
	if err := e.SetRoleOverride(ctx, actor, channel, role, perm, next); err != nil {
		return schema.StateInherit, err
	}
	return next, nil
}

// CycleUserOverride advances one user override entry through the
// tri-state cycle.
func (e *Engine) CycleUserOverride(ctx context.Context, actor ref.UserID, channel ref.RoomID, target ref.UserID, perm schema.Permission) (schema.State, error) {
	next := e.overrides.UserState(channel, target, perm).Cycle()
	if err := e.SetUserOverride(ctx, actor, channel, target, perm, next); err != nil {
		return schema.StateInherit, err
	}
	return next, nil
}

// ClearRoleOverride removes a role's whole override map in a channel.
func (e *Engine) ClearRoleOverride(ctx context.Context, actor ref.UserID, channel ref.RoomID, role ref.RoleID) error {
	if err := e.authorizeOverride(actor, channel, schema.PermissionManageRoles); err != nil {
		return err
	}

	unlock := e.channelMu.lock(channel.String())
	defer unlock()

	removed := e.overrides.ClearRole(channel, role)
	if removed == nil {
		return fault.New(fault.AlreadyInState,
			"role %q has no overrides in %s", role, channel)
	}
	if err := e.writeRoleOverride(ctx, channel, role); err != nil {
		e.overrides.RestoreRole(channel, role, removed)
		return err
	}

	e.appendAudit(ctx, audit.Entry{
		Actor:   actor.String(),
		Action:  audit.ActionOverrideClear,
		Target:  role.String(),
		Channel: channel.String(),
		Before:  statesSnapshot(removed),
	})
	return nil
}

// ClearUserOverride removes a user's whole override map in a channel.
func (e *Engine) ClearUserOverride(ctx context.Context, actor ref.UserID, channel ref.RoomID, target ref.UserID) error {
	if err := e.authorizeOverride(actor, channel, schema.PermissionManageRoles); err != nil {
		return err
	}

	unlock := e.channelMu.lock(channel.String())
	defer unlock()

	removed := e.overrides.ClearUser(channel, target)
	if removed == nil {
		return fault.New(fault.AlreadyInState,
			"%s has no overrides in %s", target, channel)
	}
	if err := e.writeUserOverride(ctx, channel, target); err != nil {
		e.overrides.RestoreUser(channel, target, removed)
		return err
	}

	e.appendAudit(ctx, audit.Entry{
		Actor:   actor.String(),
		Action:  audit.ActionOverrideClear,
		Target:  target.String(),
		Channel: channel.String(),
		Before:  statesSnapshot(removed),
	})
	return nil
}

// ListOverrides returns every override in a channel, roles first.
func (e *Engine) ListOverrides(channel ref.RoomID) []permission.OverrideEntry {
	return e.overrides.ListChannel(channel)
}

// writeRoleOverride writes the current (channel, role) override map
// back to its state event, tombstoning when the map is empty.
func (e *Engine) writeRoleOverride(ctx context.Context, channel ref.RoomID, role ref.RoleID) error {
	stateKey := schema.OverrideStateKey(channel, role.String())
	states := e.overrides.RoleMap(channel, role)
	if len(states) == 0 {
		return e.sendState(ctx, schema.EventTypeRoleOverride, stateKey, struct{}{})
	}
	return e.sendState(ctx, schema.EventTypeRoleOverride, stateKey, schema.OverrideContent{States: states})
}

// writeUserOverride writes the current (channel, user) override map
// back to its state event, tombstoning when the map is empty.
func (e *Engine) writeUserOverride(ctx context.Context, channel ref.RoomID, user ref.UserID) error {
	stateKey := schema.OverrideStateKey(channel, user.String())
	states := e.overrides.UserMap(channel, user)
	if len(states) == 0 {
		return e.sendState(ctx, schema.EventTypeUserOverride, stateKey, struct{}{})
	}
	return e.sendState(ctx, schema.EventTypeUserOverride, stateKey, schema.OverrideContent{States: states})
}

// overrideSnapshot captures one entry for an audit record.
func overrideSnapshot(perm schema.Permission, state schema.State) json.RawMessage {
	raw, err := json.Marshal(struct {
		Permission schema.Permission `json:"permission"`
		State      schema.State      `json:"state"`
	}{perm, state})
	if err != nil {
		return nil
	}
	return raw
}

// statesSnapshot captures a whole override map for an audit record.
func statesSnapshot(states map[schema.Permission]schema.State) json.RawMessage {
	if len(states) == 0 {
		return nil
	}
	raw, err := json.Marshal(states)
	if err != nil {
		return nil
	}
	return raw
}
