// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package permission

import (
	"testing"

	"github.com/concord-chat/concord/lib/fault"
	"github.com/concord-chat/concord/lib/ref"
	"github.com/concord-chat/concord/lib/schema"
)

func mustUser(t *testing.T, raw string) ref.UserID {
	t.Helper()
	userID, err := ref.ParseUserID(raw)
	if err != nil {
		t.Fatal(err)
	}
	return userID
}

func mustCreate(t *testing.T, h *Hierarchy, id string, base map[schema.Permission]bool, position int) Role {
	t.Helper()
	roleID, err := ref.ParseRoleID(id)
	if err != nil {
		t.Fatal(err)
	}
	role, err := h.Create(roleID, id, "", base, position)
	if err != nil {
		t.Fatalf("Create(%q): %v", id, err)
	}
	return role
}

func TestCreateAssignsPowerBetweenNeighbors(t *testing.T) {
	h := NewHierarchy()

	mods := mustCreate(t, h, "mods", nil, 0)
	if mods.PowerLevel <= 0 || mods.PowerLevel >= 100 {
		t.Fatalf("mods power = %d, want strictly between 0 and 100", mods.PowerLevel)
	}

	admins := mustCreate(t, h, "admins", nil, 0)
	if admins.PowerLevel <= mods.PowerLevel || admins.PowerLevel >= 100 {
		t.Fatalf("admins power = %d, want strictly between %d and 100", admins.PowerLevel, mods.PowerLevel)
	}

	// Unspecified position inserts at the bottom, above @everyone.
	helpers := mustCreate(t, h, "helpers", nil, -1)
	if helpers.PowerLevel <= 0 || helpers.PowerLevel >= mods.PowerLevel {
		t.Fatalf("helpers power = %d, want strictly between 0 and %d", helpers.PowerLevel, mods.PowerLevel)
	}

	ordered := h.List()
	wantOrder := []ref.RoleID{"admins", "mods", "helpers", ref.EveryoneRoleID}
	for i, want := range wantOrder {
		if ordered[i].ID != want {
			t.Errorf("List()[%d] = %q, want %q", i, ordered[i].ID, want)
		}
	}
}

func TestCreateRenumbersWhenSqueezed(t *testing.T) {
	h := NewHierarchy()
	mustCreate(t, h, "top", nil, 0)

	// Repeatedly insert at position 1 (just below "top") until the
	// midpoint gap is exhausted; creation must renumber, not fail.
	for i := 0; i < 10; i++ {
		mustCreate(t, h, roleName(i), nil, 1)
	}

	ordered := h.List()
	for i := 1; i < len(ordered); i++ {
		if !ordered[i-1].ranksAbove(ordered[i]) {
			t.Fatalf("ordering violated at index %d: %q (power %d) vs %q (power %d)",
				i, ordered[i-1].ID, ordered[i-1].PowerLevel, ordered[i].ID, ordered[i].PowerLevel)
		}
	}
	everyone := ordered[len(ordered)-1]
	if everyone.ID != ref.EveryoneRoleID {
		t.Fatalf("@everyone is not last: %q", everyone.ID)
	}
}

func roleName(i int) string {
	return "role-" + string(rune('a'+i))
}

func TestCreateDuplicateAndReservedID(t *testing.T) {
	h := NewHierarchy()
	mustCreate(t, h, "mods", nil, 0)

	_, err := h.Create("mods", "Mods", "", nil, 0)
	if !fault.Is(err, fault.AlreadyInState) {
		t.Errorf("duplicate create: %v, want AlreadyInState", err)
	}

	_, err = h.Create(ref.EveryoneRoleID, "Everyone", "", nil, 0)
	if !fault.Is(err, fault.ProtectedRole) {
		t.Errorf("create everyone: %v, want ProtectedRole", err)
	}
}

func TestEveryoneIsProtected(t *testing.T) {
	h := NewHierarchy()

	if _, _, err := h.Delete(ref.EveryoneRoleID); !fault.Is(err, fault.ProtectedRole) {
		t.Errorf("Delete(everyone): %v, want ProtectedRole", err)
	}
	if _, _, err := h.Reorder(ref.EveryoneRoleID, 0, 100); !fault.Is(err, fault.ProtectedRole) {
		t.Errorf("Reorder(everyone): %v, want ProtectedRole", err)
	}
	name := "The People"
	if _, _, err := h.Edit(ref.EveryoneRoleID, RoleEdit{Name: &name}); !fault.Is(err, fault.ProtectedRole) {
		t.Errorf("Edit(everyone, rename): %v, want ProtectedRole", err)
	}

	// Base set edits on @everyone are allowed.
	_, after, err := h.Edit(ref.EveryoneRoleID, RoleEdit{Base: map[schema.Permission]bool{
		schema.PermissionViewChannel: true,
	}})
	if err != nil {
		t.Fatalf("Edit(everyone, base): %v", err)
	}
	if len(after.Base) != 1 || !after.Base[schema.PermissionViewChannel] {
		t.Errorf("everyone base after edit = %v", after.Base)
	}
}

func TestDeleteCascadesToMembers(t *testing.T) {
	h := NewHierarchy()
	mods := mustCreate(t, h, "mods", nil, 0)
	helpers := mustCreate(t, h, "helpers", nil, 1)

	alice := mustUser(t, "@alice:concord.chat")
	bob := mustUser(t, "@bob:concord.chat")
	if _, err := h.Assign(alice, mods.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := h.Assign(alice, helpers.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := h.Assign(bob, helpers.ID); err != nil {
		t.Fatal(err)
	}

	_, affected, err := h.Delete(helpers.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(affected) != 2 {
		t.Fatalf("affected = %v, want alice and bob", affected)
	}

	// Bob held only "helpers" and falls back to @everyone.
	bobRoles := h.RolesFor(bob)
	if len(bobRoles) != 1 || bobRoles[0].ID != ref.EveryoneRoleID {
		t.Errorf("bob's roles after cascade = %v", bobRoles)
	}

	// Alice keeps "mods".
	aliceRoles := h.RolesFor(alice)
	if len(aliceRoles) != 2 || aliceRoles[0].ID != mods.ID {
		t.Errorf("alice's roles after cascade = %v", aliceRoles)
	}
}

func TestReorderPrivilegeCheck(t *testing.T) {
	h := NewHierarchy()
	admins := mustCreate(t, h, "admins", nil, 0)
	mustCreate(t, h, "mods", nil, 1)
	helpers := mustCreate(t, h, "helpers", nil, 2)

	// A moderator-level actor may not lift "helpers" above "admins".
	_, _, err := h.Reorder(helpers.ID, 0, admins.PowerLevel)
	if !fault.Is(err, fault.InsufficientPrivilege) {
		t.Fatalf("Reorder above admins: %v, want InsufficientPrivilege", err)
	}

	// An actor above "admins" may.
	moved, _, err := h.Reorder(helpers.ID, 0, admins.PowerLevel+1)
	if err != nil {
		t.Fatal(err)
	}
	ordered := h.List()
	if ordered[0].ID != moved.ID {
		t.Errorf("top role after reorder = %q, want %q", ordered[0].ID, moved.ID)
	}
	for i := 1; i < len(ordered); i++ {
		if !ordered[i-1].ranksAbove(ordered[i]) {
			t.Errorf("ordering violated after reorder at index %d", i)
		}
	}
}

func TestRolesForFallbackAndOrdering(t *testing.T) {
	h := NewHierarchy()
	mods := mustCreate(t, h, "mods", nil, 0)
	helpers := mustCreate(t, h, "helpers", nil, 1)

	nobody := mustUser(t, "@nobody:concord.chat")
	roles := h.RolesFor(nobody)
	if len(roles) != 1 || roles[0].ID != ref.EveryoneRoleID {
		t.Fatalf("RolesFor(no assignments) = %v, want just @everyone", roles)
	}

	alice := mustUser(t, "@alice:concord.chat")
	if _, err := h.Assign(alice, helpers.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := h.Assign(alice, mods.ID); err != nil {
		t.Fatal(err)
	}

	roles = h.RolesFor(alice)
	want := []ref.RoleID{mods.ID, helpers.ID, ref.EveryoneRoleID}
	if len(roles) != len(want) {
		t.Fatalf("RolesFor(alice) = %v", roles)
	}
	for i, id := range want {
		if roles[i].ID != id {
			t.Errorf("RolesFor(alice)[%d] = %q, want %q", i, roles[i].ID, id)
		}
	}

	if got := h.UserLevel(alice); got != mods.PowerLevel {
		t.Errorf("UserLevel(alice) = %d, want %d", got, mods.PowerLevel)
	}
	if got := h.UserLevel(nobody); got != 0 {
		t.Errorf("UserLevel(nobody) = %d, want 0", got)
	}
}

func TestAssignIsIdempotent(t *testing.T) {
	h := NewHierarchy()
	mods := mustCreate(t, h, "mods", nil, 0)
	alice := mustUser(t, "@alice:concord.chat")

	changed, err := h.Assign(alice, mods.ID)
	if err != nil || !changed {
		t.Fatalf("first assign: changed=%v err=%v", changed, err)
	}
	changed, err = h.Assign(alice, mods.ID)
	if err != nil || changed {
		t.Fatalf("second assign: changed=%v err=%v", changed, err)
	}

	changed, err = h.Unassign(alice, mods.ID)
	if err != nil || !changed {
		t.Fatalf("unassign: changed=%v err=%v", changed, err)
	}
	changed, err = h.Unassign(alice, mods.ID)
	if err != nil || changed {
		t.Fatalf("second unassign: changed=%v err=%v", changed, err)
	}
}

func TestEqualPowerTieBreaksByCreationSequence(t *testing.T) {
	h := NewHierarchy()
	first := mustCreate(t, h, "first", nil, 0)
	second := mustCreate(t, h, "second", nil, 1)

	// Force equal power levels through Restore (state from another
	// client could contain ties).
	tied := second
	tied.PowerLevel = first.PowerLevel
	h.Restore(tied)

	alice := mustUser(t, "@alice:concord.chat")
	if _, err := h.Assign(alice, "second"); err != nil {
		t.Fatal(err)
	}
	if _, err := h.Assign(alice, "first"); err != nil {
		t.Fatal(err)
	}

	roles := h.RolesFor(alice)
	if roles[0].ID != "first" {
		t.Errorf("tie broken in favor of %q, want first-created %q", roles[0].ID, "first")
	}
}
