// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package permission

import (
	"fmt"
	"sort"
	"sync"

	"github.com/concord-chat/concord/lib/fault"
	"github.com/concord-chat/concord/lib/ref"
	"github.com/concord-chat/concord/lib/schema"
)

// powerCeiling is the exclusive upper bound for role power levels.
// Level 100 is reserved for the space owner in Matrix convention, so
// created roles always land strictly below it.
const powerCeiling = 100

// Hierarchy is the ordered set of roles in one space plus the role
// assignments of its members. The built-in @everyone role always
// exists, always holds the lowest power level, and cannot be deleted,
// renamed, or moved.
//
// Roles are totally ordered by (power level desc, creation sequence
// asc). Creation inserts a role with a power level strictly between
// its neighbors; when no integer gap remains, the whole ladder is
// renumbered atomically.
//
// All methods are safe for concurrent use.
type Hierarchy struct {
	mu           sync.RWMutex
	roles        map[ref.RoleID]*Role
	members      map[string][]ref.RoleID
	nextSequence uint64
}

// NewHierarchy returns a Hierarchy containing only @everyone at power
// level 0 with the default participation base set.
func NewHierarchy() *Hierarchy {
	return &Hierarchy{
		roles: map[ref.RoleID]*Role{
			ref.EveryoneRoleID: {
				ID:   ref.EveryoneRoleID,
				Name: "@everyone",
				Base: DefaultEveryoneBase(),
			},
		},
		members:      make(map[string][]ref.RoleID),
		nextSequence: 1,
	}
}

// Everyone returns a copy of the @everyone role.
func (h *Hierarchy) Everyone() Role {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.roles[ref.EveryoneRoleID].clone()
}

// Get returns a copy of the role with the given ID.
func (h *Hierarchy) Get(id ref.RoleID) (Role, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	role, ok := h.roles[id]
	if !ok {
		return Role{}, false
	}
	return role.clone(), true
}

// List returns copies of all roles in authority order, highest first.
// @everyone is always last.
func (h *Hierarchy) List() []Role {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ordered := h.orderedLocked(true)
	out := make([]Role, len(ordered))
	for i, role := range ordered {
		out[i] = role.clone()
	}
	return out
}

// Restore inserts or replaces a role during state bootstrap, keeping
// the sequence counter ahead of everything restored. Restoring
// @everyone replaces its base set and name but pins its power level
// to the ladder floor.
func (h *Hierarchy) Restore(role Role) {
	h.mu.Lock()
	defer h.mu.Unlock()

	stored := role.clone()
	if stored.ID == ref.EveryoneRoleID {
		stored.PowerLevel = h.roles[ref.EveryoneRoleID].PowerLevel
		stored.Sequence = 0
	}
	h.roles[stored.ID] = &stored
	if stored.Sequence >= h.nextSequence {
		h.nextSequence = stored.Sequence + 1
	}
}

// RestoreMember replaces a user's role assignments during state
// bootstrap. Unknown role IDs are dropped silently; the loader logs
// them at its own level.
func (h *Hierarchy) RestoreMember(user ref.UserID, roleIDs []ref.RoleID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	assigned := make([]ref.RoleID, 0, len(roleIDs))
	for _, id := range roleIDs {
		if id == ref.EveryoneRoleID {
			continue
		}
		if _, ok := h.roles[id]; ok {
			assigned = append(assigned, id)
		}
	}
	if len(assigned) == 0 {
		delete(h.members, user.String())
		return
	}
	h.members[user.String()] = assigned
}

// Create inserts a new role at the given position in the descending
// authority ordering of non-@everyone roles (0 = top). A position
// past the end, or negative, inserts at the bottom, just above
// @everyone. The new role's power level lands strictly between its
// neighbors.
func (h *Hierarchy) Create(id ref.RoleID, name, color string, base map[schema.Permission]bool, position int) (Role, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if id == ref.EveryoneRoleID {
		return Role{}, fault.New(fault.ProtectedRole, "cannot create a role with the reserved ID %q", id)
	}
	if _, exists := h.roles[id]; exists {
		return Role{}, fault.New(fault.AlreadyInState, "role %q already exists", id)
	}

	ordered := h.orderedLocked(false)
	if position < 0 || position > len(ordered) {
		position = len(ordered)
	}

	power, err := h.gapLocked(ordered, position)
	if err != nil {
		return Role{}, err
	}

	role := Role{
		ID:         id,
		Name:       name,
		Color:      color,
		PowerLevel: power,
		Sequence:   h.nextSequence,
	}
	if base != nil {
		role.Base = make(map[schema.Permission]bool, len(base))
		for permission, granted := range base {
			role.Base[permission] = granted
		}
	}
	content := role.Content()
	if err := content.Validate(); err != nil {
		return Role{}, fmt.Errorf("permission: invalid role: %w", err)
	}

	h.nextSequence++
	h.roles[id] = &role
	return role.clone(), nil
}

// RoleEdit describes a partial role update. Nil fields are left
// unchanged; a non-nil Base replaces the whole base set.
type RoleEdit struct {
	Name  *string
	Color *string
	Base  map[schema.Permission]bool
}

// Edit applies a partial update to a role, returning the role before
// and after the change. @everyone accepts base set changes only.
func (h *Hierarchy) Edit(id ref.RoleID, edit RoleEdit) (before, after Role, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	role, ok := h.roles[id]
	if !ok {
		return Role{}, Role{}, fault.New(fault.AlreadyInState, "role %q does not exist", id)
	}
	if id == ref.EveryoneRoleID && (edit.Name != nil || edit.Color != nil) {
		return Role{}, Role{}, fault.New(fault.ProtectedRole, "@everyone cannot be renamed or recolored")
	}

	before = role.clone()
	updated := role.clone()
	if edit.Name != nil {
		updated.Name = *edit.Name
	}
	if edit.Color != nil {
		updated.Color = *edit.Color
	}
	if edit.Base != nil {
		updated.Base = make(map[schema.Permission]bool, len(edit.Base))
		for permission, granted := range edit.Base {
			updated.Base[permission] = granted
		}
	}

	content := updated.Content()
	if err := content.Validate(); err != nil {
		return Role{}, Role{}, fmt.Errorf("permission: invalid role edit: %w", err)
	}

	*role = updated
	return before, role.clone(), nil
}

// Delete removes a role. Members holding it lose it; members holding
// only it fall back to @everyone implicitly. Returns the removed role
// and the users whose assignments changed. @everyone cannot be
// deleted.
func (h *Hierarchy) Delete(id ref.RoleID) (Role, []ref.UserID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if id == ref.EveryoneRoleID {
		return Role{}, nil, fault.New(fault.ProtectedRole, "@everyone cannot be deleted")
	}
	role, ok := h.roles[id]
	if !ok {
		return Role{}, nil, fault.New(fault.AlreadyInState, "role %q does not exist", id)
	}

	removed := role.clone()
	delete(h.roles, id)

	var affected []ref.UserID
	for user, assigned := range h.members {
		kept := assigned[:0]
		changed := false
		for _, assignedID := range assigned {
			if assignedID == id {
				changed = true
				continue
			}
			kept = append(kept, assignedID)
		}
		if !changed {
			continue
		}
		if userID, err := ref.ParseUserID(user); err == nil {
			affected = append(affected, userID)
		}
		if len(kept) == 0 {
			delete(h.members, user)
		} else {
			h.members[user] = kept
		}
	}
	sort.Slice(affected, func(i, j int) bool { return affected[i].String() < affected[j].String() })
	return removed, affected, nil
}

// Reorder moves a role to a new position in the descending authority
// ordering (0 = top) and recomputes power levels atomically. The
// actor's power level must strictly exceed that of every role the
// move places the role above. Returns the moved role and every role
// whose power level changed (the moved role included).
func (h *Hierarchy) Reorder(id ref.RoleID, position int, actorLevel int) (Role, []Role, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if id == ref.EveryoneRoleID {
		return Role{}, nil, fault.New(fault.ProtectedRole, "@everyone cannot be moved")
	}
	moved, ok := h.roles[id]
	if !ok {
		return Role{}, nil, fault.New(fault.AlreadyInState, "role %q does not exist", id)
	}

	rest := make([]*Role, 0, len(h.roles))
	for _, role := range h.orderedLocked(false) {
		if role.ID != id {
			rest = append(rest, role)
		}
	}
	if position < 0 || position > len(rest) {
		position = len(rest)
	}

	// The move may not lift the role above anyone the actor does not
	// outrank. Power levels are compared before renumbering.
	for _, displaced := range rest[position:] {
		if displaced.ranksAbove(*moved) && displaced.PowerLevel >= actorLevel {
			return Role{}, nil, fault.New(fault.InsufficientPrivilege,
				"cannot move role %q above %q (power %d, actor has %d)",
				id, displaced.ID, displaced.PowerLevel, actorLevel)
		}
	}

	newOrder := make([]*Role, 0, len(rest)+1)
	newOrder = append(newOrder, rest[:position]...)
	newOrder = append(newOrder, moved)
	newOrder = append(newOrder, rest[position:]...)

	changed, err := h.applyOrderLocked(newOrder, moved)
	if err != nil {
		return Role{}, nil, err
	}
	return moved.clone(), changed, nil
}

// Assign adds a role to a user's assignments. Returns false if the
// user already held it. Assigning @everyone is a no-op: everyone
// holds it implicitly.
func (h *Hierarchy) Assign(user ref.UserID, id ref.RoleID) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if id == ref.EveryoneRoleID {
		return false, nil
	}
	if _, ok := h.roles[id]; !ok {
		return false, fault.New(fault.AlreadyInState, "role %q does not exist", id)
	}

	key := user.String()
	for _, assigned := range h.members[key] {
		if assigned == id {
			return false, nil
		}
	}
	h.members[key] = append(h.members[key], id)
	return true, nil
}

// Unassign removes a role from a user's assignments. Returns false if
// the user did not hold it.
func (h *Hierarchy) Unassign(user ref.UserID, id ref.RoleID) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.roles[id]; !ok && id != ref.EveryoneRoleID {
		return false, fault.New(fault.AlreadyInState, "role %q does not exist", id)
	}

	key := user.String()
	assigned := h.members[key]
	for i, assignedID := range assigned {
		if assignedID != id {
			continue
		}
		assigned = append(assigned[:i], assigned[i+1:]...)
		if len(assigned) == 0 {
			delete(h.members, key)
		} else {
			h.members[key] = assigned
		}
		return true, nil
	}
	return false, nil
}

// RolesFor returns the user's roles in authority order, highest
// first. @everyone is always included and always last. A user with no
// assignments gets exactly [@everyone].
func (h *Hierarchy) RolesFor(user ref.UserID) []Role {
	h.mu.RLock()
	defer h.mu.RUnlock()

	assigned := h.members[user.String()]
	out := make([]Role, 0, len(assigned)+1)
	for _, id := range assigned {
		if role, ok := h.roles[id]; ok {
			out = append(out, role.clone())
		}
	}
	out = append(out, h.roles[ref.EveryoneRoleID].clone())
	sort.Slice(out, func(i, j int) bool { return out[i].ranksAbove(out[j]) })
	return out
}

// AssignedRoleIDs returns the user's explicit role assignments (not
// including the implicit @everyone), for writing back to state.
func (h *Hierarchy) AssignedRoleIDs(user ref.UserID) []ref.RoleID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	assigned := h.members[user.String()]
	out := make([]ref.RoleID, len(assigned))
	copy(out, assigned)
	return out
}

// UserLevel returns the user's effective power level: the highest
// power level among their roles. A user with no roles has @everyone's
// level.
func (h *Hierarchy) UserLevel(user ref.UserID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	level := h.roles[ref.EveryoneRoleID].PowerLevel
	for _, id := range h.members[user.String()] {
		if role, ok := h.roles[id]; ok && role.PowerLevel > level {
			level = role.PowerLevel
		}
	}
	return level
}

// orderedLocked returns roles in authority order, highest first.
// Caller holds h.mu.
func (h *Hierarchy) orderedLocked(includeEveryone bool) []*Role {
	out := make([]*Role, 0, len(h.roles))
	for id, role := range h.roles {
		if !includeEveryone && id == ref.EveryoneRoleID {
			continue
		}
		out = append(out, role)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ranksAbove(*out[j]) })
	return out
}

// gapLocked finds a power level strictly between the neighbors of the
// given position in the descending ordering of non-@everyone roles,
// renumbering the ladder first if no integer gap remains. Caller
// holds h.mu.
func (h *Hierarchy) gapLocked(ordered []*Role, position int) (int, error) {
	upper, lower := h.boundsLocked(ordered, position)
	if upper-lower < 2 {
		if err := h.renumberLocked(ordered); err != nil {
			return 0, err
		}
		upper, lower = h.boundsLocked(ordered, position)
		if upper-lower < 2 {
			return 0, fmt.Errorf("permission: no power level gap at position %d", position)
		}
	}
	return (upper + lower) / 2, nil
}

// boundsLocked returns the exclusive power bounds around a position:
// the role above (or the ceiling) and the role below (or @everyone).
func (h *Hierarchy) boundsLocked(ordered []*Role, position int) (upper, lower int) {
	upper = powerCeiling
	if position > 0 {
		upper = ordered[position-1].PowerLevel
	}
	lower = h.roles[ref.EveryoneRoleID].PowerLevel
	if position < len(ordered) {
		lower = ordered[position].PowerLevel
	}
	return upper, lower
}

// renumberLocked spreads the given descending ordering evenly between
// @everyone's level and the ceiling, preserving order. Caller holds
// h.mu.
func (h *Hierarchy) renumberLocked(ordered []*Role) error {
	floor := h.roles[ref.EveryoneRoleID].PowerLevel
	step := (powerCeiling - floor) / (len(ordered) + 1)
	if step < 1 {
		return fmt.Errorf("permission: role ladder is full (%d roles between %d and %d)", len(ordered), floor, powerCeiling)
	}
	for i, role := range ordered {
		// ordered is highest-first; the top role gets the highest level.
		role.PowerLevel = floor + step*(len(ordered)-i)
	}
	return nil
}

// applyOrderLocked makes newOrder (descending, non-@everyone) the
// authoritative ordering. The moved role gets a level strictly
// between its new neighbors when a gap exists; otherwise the whole
// ladder is renumbered. Returns copies of every role whose power
// level changed. Caller holds h.mu.
func (h *Hierarchy) applyOrderLocked(newOrder []*Role, moved *Role) ([]Role, error) {
	oldLevels := make(map[ref.RoleID]int, len(newOrder))
	for _, role := range newOrder {
		oldLevels[role.ID] = role.PowerLevel
	}

	position := 0
	for i, role := range newOrder {
		if role == moved {
			position = i
			break
		}
	}

	rest := make([]*Role, 0, len(newOrder)-1)
	rest = append(rest, newOrder[:position]...)
	rest = append(rest, newOrder[position+1:]...)

	upper, lower := h.boundsLocked(rest, position)
	if upper-lower >= 2 {
		moved.PowerLevel = (upper + lower) / 2
	} else if err := h.renumberLocked(newOrder); err != nil {
		return nil, err
	}

	var changed []Role
	for _, role := range newOrder {
		if role.PowerLevel != oldLevels[role.ID] {
			changed = append(changed, role.clone())
		}
	}
	return changed, nil
}
