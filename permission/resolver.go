// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package permission

import (
	"sync"

	"github.com/concord-chat/concord/lib/fault"
	"github.com/concord-chat/concord/lib/ref"
	"github.com/concord-chat/concord/lib/schema"
)

// Resolver combines the hierarchy, the override store, and the mapper
// into the layered resolution of the permission model. Resolve is
// pure: no I/O, no mutation, safe for unbounded concurrency.
type Resolver struct {
	hierarchy *Hierarchy
	overrides *Overrides

	mapperMu sync.RWMutex
	mapper   Mapper
}

// NewResolver builds a Resolver over the given stores. The mapper may
// be the zero value until space state loads; resolution then denies
// at the space default layer.
func NewResolver(hierarchy *Hierarchy, overrides *Overrides, mapper Mapper) *Resolver {
	return &Resolver{
		hierarchy: hierarchy,
		overrides: overrides,
		mapper:    mapper,
	}
}

// SetMapper swaps the space default thresholds, typically after a
// state (re)load observes a new m.room.power_levels event.
func (r *Resolver) SetMapper(mapper Mapper) {
	r.mapperMu.Lock()
	defer r.mapperMu.Unlock()
	r.mapper = mapper
}

// Mapper returns the current space default thresholds.
func (r *Resolver) Mapper() Mapper {
	r.mapperMu.RLock()
	defer r.mapperMu.RUnlock()
	return r.mapper
}

// Resolve computes the actor's effective decision for one permission
// in one channel. Layer order:
//
//  1. the actor's user override in the channel
//  2. role overrides in the channel, highest role first
//  3. role base permissions, highest role first
//  4. the space default from power level thresholds
//
// The first layer with an opinion decides; if none has one, the
// result is an implicit Deny. Unknown permissions fail fast with
// InvalidPermissionName before any layer is consulted.
func (r *Resolver) Resolve(actor ref.UserID, channel ref.RoomID, permission schema.Permission) (Result, error) {
	if !permission.Known() {
		return Result{}, fault.New(fault.InvalidPermissionName, "unknown permission %q", permission)
	}

	if state := r.overrides.UserState(channel, actor, permission); state != schema.StateInherit {
		return Result{Decision: stateDecision(state), Layer: LayerUserOverride}, nil
	}

	roles := r.hierarchy.RolesFor(actor)
	for _, role := range roles {
		if state := r.overrides.RoleState(channel, role.ID, permission); state != schema.StateInherit {
			return Result{Decision: stateDecision(state), Layer: LayerRoleOverride, Role: role.ID}, nil
		}
	}

	for _, role := range roles {
		if granted, ok := role.Base[permission]; ok {
			decision := Deny
			if granted {
				decision = Allow
			}
			return Result{Decision: decision, Layer: LayerRoleBase, Role: role.ID}, nil
		}
	}

	mapper := r.Mapper()
	if mapper.Loaded() {
		level := r.EffectiveLevel(actor)
		return Result{Decision: mapper.Default(permission, level), Layer: LayerSpaceDefault}, nil
	}

	return Result{Decision: Deny, Layer: LayerImplicitDeny}, nil
}

// IsAdministrator reports whether any of the actor's roles grants the
// administrator permission at base. Administrators bypass override
// validation in the engine; resolution itself is unaffected.
func (r *Resolver) IsAdministrator(actor ref.UserID) bool {
	for _, role := range r.hierarchy.RolesFor(actor) {
		if role.Base[schema.PermissionAdministrator] {
			return true
		}
	}
	return false
}

// EffectiveLevel returns the actor's power level: the higher of the
// role-derived level and any explicit Matrix power level entry. The
// space owner typically has Matrix level 100 without holding a
// Concord role.
func (r *Resolver) EffectiveLevel(actor ref.UserID) int {
	level := r.hierarchy.UserLevel(actor)
	if matrixLevel := r.Mapper().UserLevel(actor); matrixLevel > level {
		level = matrixLevel
	}
	return level
}

// stateDecision converts a non-Inherit override state to a decision.
func stateDecision(state schema.State) Decision {
	if state == schema.StateAllow {
		return Allow
	}
	return Deny
}
