// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package permission

import (
	"sort"
	"sync"

	"github.com/concord-chat/concord/lib/ref"
	"github.com/concord-chat/concord/lib/schema"
)

// Overrides holds every channel's tri-state override maps: one map
// per (channel, role) and one per (channel, user). Setting an entry
// to Inherit deletes it — absence and Inherit are the same thing, so
// there is nothing to cycle through on disk.
//
// All methods are safe for concurrent use. Sets are idempotent:
// writing the value already stored reports no change.
type Overrides struct {
	mu    sync.RWMutex
	roles map[ref.RoomID]map[ref.RoleID]map[schema.Permission]schema.State
	users map[ref.RoomID]map[string]map[schema.Permission]schema.State
}

// NewOverrides returns an empty override store.
func NewOverrides() *Overrides {
	return &Overrides{
		roles: make(map[ref.RoomID]map[ref.RoleID]map[schema.Permission]schema.State),
		users: make(map[ref.RoomID]map[string]map[schema.Permission]schema.State),
	}
}

// SetRole sets one role override entry. Returns the previous state
// and whether the store changed.
func (o *Overrides) SetRole(channel ref.RoomID, role ref.RoleID, permission schema.Permission, state schema.State) (previous schema.State, changed bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	byRole, ok := o.roles[channel]
	if !ok {
		byRole = make(map[ref.RoleID]map[schema.Permission]schema.State)
		o.roles[channel] = byRole
	}
	return setEntry(byRole, role, permission, state)
}

// SetUser sets one user override entry. Returns the previous state
// and whether the store changed.
func (o *Overrides) SetUser(channel ref.RoomID, user ref.UserID, permission schema.Permission, state schema.State) (previous schema.State, changed bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	byUser, ok := o.users[channel]
	if !ok {
		byUser = make(map[string]map[schema.Permission]schema.State)
		o.users[channel] = byUser
	}
	return setEntry(byUser, user.String(), permission, state)
}

// setEntry applies the direct-set semantics shared by role and user
// overrides: Inherit deletes, anything else stores, empty maps are
// pruned.
func setEntry[K comparable](byTarget map[K]map[schema.Permission]schema.State, target K, permission schema.Permission, state schema.State) (schema.State, bool) {
	entries := byTarget[target]
	previous := entries[permission]
	if previous == state {
		return previous, false
	}

	if state == schema.StateInherit {
		delete(entries, permission)
		if len(entries) == 0 {
			delete(byTarget, target)
		}
		return previous, true
	}

	if entries == nil {
		entries = make(map[schema.Permission]schema.State)
		byTarget[target] = entries
	}
	entries[permission] = state
	return previous, true
}

// RoleState returns the stored state for one role override entry.
// Absent entries read as Inherit.
func (o *Overrides) RoleState(channel ref.RoomID, role ref.RoleID, permission schema.Permission) schema.State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.roles[channel][role][permission]
}

// UserState returns the stored state for one user override entry.
// Absent entries read as Inherit.
func (o *Overrides) UserState(channel ref.RoomID, user ref.UserID, permission schema.Permission) schema.State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.users[channel][user.String()][permission]
}

// RoleMap returns a copy of one role's override map in a channel.
// Used when writing the map back to a state event.
func (o *Overrides) RoleMap(channel ref.RoomID, role ref.RoleID) map[schema.Permission]schema.State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return copyEntries(o.roles[channel][role])
}

// UserMap returns a copy of one user's override map in a channel.
func (o *Overrides) UserMap(channel ref.RoomID, user ref.UserID) map[schema.Permission]schema.State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return copyEntries(o.users[channel][user.String()])
}

// RestoreRole replaces one role's override map during state
// bootstrap. An empty map removes the entry.
func (o *Overrides) RestoreRole(channel ref.RoomID, role ref.RoleID, entries map[schema.Permission]schema.State) {
	o.mu.Lock()
	defer o.mu.Unlock()

	entries = copyEntries(entries)
	if len(entries) == 0 {
		delete(o.roles[channel], role)
		return
	}
	byRole, ok := o.roles[channel]
	if !ok {
		byRole = make(map[ref.RoleID]map[schema.Permission]schema.State)
		o.roles[channel] = byRole
	}
	byRole[role] = entries
}

// RestoreUser replaces one user's override map during state
// bootstrap. An empty map removes the entry.
func (o *Overrides) RestoreUser(channel ref.RoomID, user ref.UserID, entries map[schema.Permission]schema.State) {
	o.mu.Lock()
	defer o.mu.Unlock()

	entries = copyEntries(entries)
	if len(entries) == 0 {
		delete(o.users[channel], user.String())
		return
	}
	byUser, ok := o.users[channel]
	if !ok {
		byUser = make(map[string]map[schema.Permission]schema.State)
		o.users[channel] = byUser
	}
	byUser[user.String()] = entries
}

// ClearRole removes one role's whole override map in a channel.
// Returns the removed map, or nil if there was none.
func (o *Overrides) ClearRole(channel ref.RoomID, role ref.RoleID) map[schema.Permission]schema.State {
	o.mu.Lock()
	defer o.mu.Unlock()

	removed := o.roles[channel][role]
	delete(o.roles[channel], role)
	return removed
}

// ClearUser removes one user's whole override map in a channel.
// Returns the removed map, or nil if there was none.
func (o *Overrides) ClearUser(channel ref.RoomID, user ref.UserID) map[schema.Permission]schema.State {
	o.mu.Lock()
	defer o.mu.Unlock()

	removed := o.users[channel][user.String()]
	delete(o.users[channel], user.String())
	return removed
}

// RemoveRoleEverywhere removes a role's override maps in every
// channel, returning the channels that had one. Used by the role
// deletion cascade.
func (o *Overrides) RemoveRoleEverywhere(role ref.RoleID) []ref.RoomID {
	o.mu.Lock()
	defer o.mu.Unlock()

	var affected []ref.RoomID
	for channel, byRole := range o.roles {
		if _, ok := byRole[role]; ok {
			delete(byRole, role)
			affected = append(affected, channel)
		}
	}
	sort.Slice(affected, func(i, j int) bool { return affected[i].String() < affected[j].String() })
	return affected
}

// OverrideEntry is one listed override for display.
type OverrideEntry struct {
	// Target is a role ID or user ID depending on Kind.
	Target string
	Kind   TargetKind
	States map[schema.Permission]schema.State
}

// TargetKind distinguishes role and user override targets.
type TargetKind uint8

const (
	// RoleTarget is a per-role override.
	RoleTarget TargetKind = iota
	// UserTarget is a per-user override.
	UserTarget
)

// String returns "role" or "user".
func (k TargetKind) String() string {
	if k == UserTarget {
		return "user"
	}
	return "role"
}

// ListChannel returns every override in a channel, roles first, each
// group sorted by target.
func (o *Overrides) ListChannel(channel ref.RoomID) []OverrideEntry {
	o.mu.RLock()
	defer o.mu.RUnlock()

	var out []OverrideEntry
	for role, entries := range o.roles[channel] {
		out = append(out, OverrideEntry{Target: role.String(), Kind: RoleTarget, States: copyEntries(entries)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Target < out[j].Target })

	users := make([]OverrideEntry, 0, len(o.users[channel]))
	for user, entries := range o.users[channel] {
		users = append(users, OverrideEntry{Target: user, Kind: UserTarget, States: copyEntries(entries)})
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Target < users[j].Target })
	return append(out, users...)
}

func copyEntries(entries map[schema.Permission]schema.State) map[schema.Permission]schema.State {
	if len(entries) == 0 {
		return nil
	}
	out := make(map[schema.Permission]schema.State, len(entries))
	for permission, state := range entries {
		out[permission] = state
	}
	return out
}
