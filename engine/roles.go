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

// authorizeRoles checks that actor may administer roles space-wide.
func (e *Engine) authorizeRoles(actor ref.UserID) error {
	return e.authorizeOverride(actor, e.space, schema.PermissionManageRoles)
}

// outranksRole checks that actor's level is strictly above the role's
// power level. Administrators bypass.
func (e *Engine) outranksRole(actor ref.UserID, role permission.Role) error {
	if e.resolver.IsAdministrator(actor) {
		return nil
	}
	if e.resolver.EffectiveLevel(actor) <= role.PowerLevel {
		return fault.New(fault.InsufficientPrivilege,
			"%s does not outrank role %q (power %d)", actor, role.ID, role.PowerLevel)
	}
	return nil
}

// CreateRole inserts a new role at the given position (0 = top of the
// non-@everyone ladder; past the end = bottom) and writes it to state.
// Creation squeezed into a full gap renumbers neighboring roles; their
// events are rewritten too.
func (e *Engine) CreateRole(ctx context.Context, actor ref.UserID, id ref.RoleID, name, color string, base map[schema.Permission]bool, position int) (permission.Role, error) {
	if err := e.authorizeRoles(actor); err != nil {
		return permission.Role{}, err
	}

	e.rolesMu.Lock()
	defer e.rolesMu.Unlock()

	levelsBefore := e.roleLevels()
	role, err := e.hierarchy.Create(id, name, color, base, position)
	if err != nil {
		return permission.Role{}, err
	}

	if err := e.writeRoleEvent(ctx, role); err != nil {
		return permission.Role{}, err
	}
	e.writeRenumbered(ctx, levelsBefore, role.ID)

	e.appendAudit(ctx, audit.Entry{
		Actor:  actor.String(),
		Action: audit.ActionRoleCreate,
		Target: role.ID.String(),
		After:  roleSnapshot(role),
	})
	e.logger.Info("role created",
		"actor", actor, "role", role.ID, "power", role.PowerLevel)
	return role, nil
}

// EditRole applies a partial update (name, color, base set) and
// rewrites the role's state event.
func (e *Engine) EditRole(ctx context.Context, actor ref.UserID, id ref.RoleID, edit permission.RoleEdit) (permission.Role, error) {
	if err := e.authorizeRoles(actor); err != nil {
		return permission.Role{}, err
	}
	// @everyone sits at the ladder floor; base edits on it need only
	// the space-wide authorization above.
	if current, ok := e.hierarchy.Get(id); ok && id != ref.EveryoneRoleID {
		if err := e.outranksRole(actor, current); err != nil {
			return permission.Role{}, err
		}
	}

	e.rolesMu.Lock()
	defer e.rolesMu.Unlock()

	before, after, err := e.hierarchy.Edit(id, edit)
	if err != nil {
		return permission.Role{}, err
	}
	if err := e.writeRoleEvent(ctx, after); err != nil {
		return permission.Role{}, err
	}

	e.appendAudit(ctx, audit.Entry{
		Actor:  actor.String(),
		Action: audit.ActionRoleEdit,
		Target: id.String(),
		Before: roleSnapshot(before),
		After:  roleSnapshot(after),
	})
	return after, nil
}

// DeleteRole removes a role and cascades: its override maps disappear
// from every channel, members holding it lose it (falling back to
// @everyone when it was their only role), and every touched state
// event is tombstoned or rewritten.
func (e *Engine) DeleteRole(ctx context.Context, actor ref.UserID, id ref.RoleID) error {
	if err := e.authorizeRoles(actor); err != nil {
		return err
	}
	if current, ok := e.hierarchy.Get(id); ok {
		if err := e.outranksRole(actor, current); err != nil {
			return err
		}
	}

	e.rolesMu.Lock()
	defer e.rolesMu.Unlock()

	removed, affected, err := e.hierarchy.Delete(id)
	if err != nil {
		return err
	}

	if err := e.sendState(ctx, schema.EventTypeRole, id.String(), struct{}{}); err != nil {
		e.logger.Error("role tombstone failed, state will resync on next load",
			"role", id, "error", err)
	}
	for _, channel := range e.overrides.RemoveRoleEverywhere(id) {
		stateKey := schema.OverrideStateKey(channel, id.String())
		if err := e.sendState(ctx, schema.EventTypeRoleOverride, stateKey, struct{}{}); err != nil {
			e.logger.Error("override tombstone failed",
				"role", id, "channel", channel, "error", err)
		}
	}
	for _, user := range affected {
		if err := e.writeMemberEvent(ctx, user); err != nil {
			e.logger.Error("member rewrite failed",
				"user", user, "role", id, "error", err)
		}
	}

	e.appendAudit(ctx, audit.Entry{
		Actor:  actor.String(),
		Action: audit.ActionRoleDelete,
		Target: id.String(),
		Before: roleSnapshot(removed),
	})
	e.logger.Info("role deleted",
		"actor", actor, "role", id, "affected_members", len(affected))
	return nil
}

// ReorderRole moves a role to a new ladder position and rewrites
// every role event whose power level changed.
func (e *Engine) ReorderRole(ctx context.Context, actor ref.UserID, id ref.RoleID, position int) (permission.Role, error) {
	if err := e.authorizeRoles(actor); err != nil {
		return permission.Role{}, err
	}

	e.rolesMu.Lock()
	defer e.rolesMu.Unlock()

	moved, changed, err := e.hierarchy.Reorder(id, position, e.resolver.EffectiveLevel(actor))
	if err != nil {
		return permission.Role{}, err
	}
	for _, role := range changed {
		if err := e.writeRoleEvent(ctx, role); err != nil {
			e.logger.Error("role rewrite failed after reorder",
				"role", role.ID, "error", err)
		}
	}

	e.appendAudit(ctx, audit.Entry{
		Actor:  actor.String(),
		Action: audit.ActionRoleReorder,
		Target: id.String(),
		After:  roleSnapshot(moved),
	})
	return moved, nil
}

// AssignRole adds a role to a user's assignments, rewrites the
// member event, and mirrors the user's new level into the space's
// Matrix power levels.
func (e *Engine) AssignRole(ctx context.Context, actor, user ref.UserID, id ref.RoleID) error {
	if err := e.authorizeRoles(actor); err != nil {
		return err
	}
	role, ok := e.hierarchy.Get(id)
	if !ok {
		return fault.New(fault.AlreadyInState, "role %q does not exist", id)
	}
	if err := e.outranksRole(actor, role); err != nil {
		return err
	}

	changed, err := e.hierarchy.Assign(user, id)
	if err != nil {
		return err
	}
	if !changed {
		return fault.New(fault.AlreadyInState, "%s already holds role %q", user, id)
	}

	if err := e.writeMemberEvent(ctx, user); err != nil {
		e.hierarchy.Unassign(user, id)
		return err
	}
	e.mirrorUserLevel(ctx, user)

	e.appendAudit(ctx, audit.Entry{
		Actor:  actor.String(),
		Action: audit.ActionRoleAssign,
		Target: user.String(),
		After:  assignmentSnapshot(id),
	})
	return nil
}

// UnassignRole removes a role from a user's assignments.
func (e *Engine) UnassignRole(ctx context.Context, actor, user ref.UserID, id ref.RoleID) error {
	if err := e.authorizeRoles(actor); err != nil {
		return err
	}
	if role, ok := e.hierarchy.Get(id); ok {
		if err := e.outranksRole(actor, role); err != nil {
			return err
		}
	}

	changed, err := e.hierarchy.Unassign(user, id)
	if err != nil {
		return err
	}
	if !changed {
		return fault.New(fault.AlreadyInState, "%s does not hold role %q", user, id)
	}

	if err := e.writeMemberEvent(ctx, user); err != nil {
		e.hierarchy.Assign(user, id)
		return err
	}
	e.mirrorUserLevel(ctx, user)

	e.appendAudit(ctx, audit.Entry{
		Actor:  actor.String(),
		Action: audit.ActionRoleUnassign,
		Target: user.String(),
		Before: assignmentSnapshot(id),
	})
	return nil
}

// ListRoles returns all roles in authority order, @everyone last.
func (e *Engine) ListRoles() []permission.Role {
	return e.hierarchy.List()
}

// RolesFor returns a user's roles in authority order.
func (e *Engine) RolesFor(user ref.UserID) []permission.Role {
	return e.hierarchy.RolesFor(user)
}

// writeRoleEvent writes a role's state event.
func (e *Engine) writeRoleEvent(ctx context.Context, role permission.Role) error {
	return e.sendState(ctx, schema.EventTypeRole, role.ID.String(), role.Content())
}

// writeMemberEvent writes a user's current role assignments. An empty
// assignment list writes a tombstone.
func (e *Engine) writeMemberEvent(ctx context.Context, user ref.UserID) error {
	assigned := e.hierarchy.AssignedRoleIDs(user)
	if len(assigned) == 0 {
		return e.sendState(ctx, schema.EventTypeMember, user.String(), struct{}{})
	}
	return e.sendState(ctx, schema.EventTypeMember, user.String(), schema.MemberContent{Roles: assigned})
}

// mirrorUserLevel pushes a user's role-derived power level into the
// space's m.room.power_levels so plain Matrix clients enforce the
// same ranking. Failure is logged, not fatal: Concord's own checks do
// not depend on the mirror.
func (e *Engine) mirrorUserLevel(ctx context.Context, user ref.UserID) {
	level := e.hierarchy.UserLevel(user)
	err := schema.GrantUserLevels(ctx, e.session, e.space, map[ref.UserID]int{user: level})
	if err != nil {
		e.logger.Warn("power level mirror failed", "user", user, "error", err)
	}
}

// roleLevels snapshots every role's power level, for detecting
// renumbering.
func (e *Engine) roleLevels() map[ref.RoleID]int {
	levels := make(map[ref.RoleID]int)
	for _, role := range e.hierarchy.List() {
		levels[role.ID] = role.PowerLevel
	}
	return levels
}

// writeRenumbered rewrites every role whose power level moved since
// the snapshot, excluding the role just written.
func (e *Engine) writeRenumbered(ctx context.Context, before map[ref.RoleID]int, exclude ref.RoleID) {
	for _, role := range e.hierarchy.List() {
		if role.ID == exclude {
			continue
		}
		if previous, ok := before[role.ID]; ok && previous == role.PowerLevel {
			continue
		}
		if err := e.writeRoleEvent(ctx, role); err != nil {
			e.logger.Error("role rewrite failed after renumber",
				"role", role.ID, "error", err)
		}
	}
}

func roleSnapshot(role permission.Role) json.RawMessage {
	raw, err := json.Marshal(role.Content())
	if err != nil {
		return nil
	}
	return raw
}

func assignmentSnapshot(id ref.RoleID) json.RawMessage {
	raw, err := json.Marshal(struct {
		Role ref.RoleID `json:"role"`
	}{id})
	if err != nil {
		return nil
	}
	return raw
}
