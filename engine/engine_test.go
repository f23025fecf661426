// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
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

// fakeSession is an in-memory homeserver: state events live in a map
// keyed by (type, state key), and membership calls are recorded.
type fakeSession struct {
	mu     sync.Mutex
	user   ref.UserID
	state  map[[2]string]json.RawMessage
	kicks  []ref.UserID
	bans   []ref.UserID
	unbans []ref.UserID
}

func newFakeSession(user ref.UserID) *fakeSession {
	return &fakeSession{user: user, state: make(map[[2]string]json.RawMessage)}
}

func (s *fakeSession) UserID() ref.UserID { return s.user }

func (s *fakeSession) SendStateEvent(_ context.Context, _ ref.RoomID, eventType ref.EventType, stateKey string, content any) (string, error) {
	raw, err := json.Marshal(content)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state[[2]string{string(eventType), stateKey}] = raw
	return "$event:concord.chat", nil
}

func (s *fakeSession) GetStateEvent(_ context.Context, _ ref.RoomID, eventType ref.EventType, stateKey string) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.state[[2]string{string(eventType), stateKey}]
	if !ok {
		return nil, &messaging.MatrixError{Code: messaging.ErrCodeNotFound, StatusCode: 404}
	}
	return raw, nil
}

func (s *fakeSession) GetRoomState(context.Context, ref.RoomID) ([]messaging.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := make([]messaging.Event, 0, len(s.state))
	for key, raw := range s.state {
		events = append(events, messaging.Event{
			Type:     ref.EventType(key[0]),
			StateKey: key[1],
			Content:  raw,
		})
	}
	return events, nil
}

func (s *fakeSession) GetRoomMembers(context.Context, ref.RoomID) ([]messaging.RoomMember, error) {
	return nil, nil
}

func (s *fakeSession) KickUser(_ context.Context, _ ref.RoomID, userID ref.UserID, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kicks = append(s.kicks, userID)
	return nil
}

func (s *fakeSession) BanUser(_ context.Context, _ ref.RoomID, userID ref.UserID, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bans = append(s.bans, userID)
	return nil
}

func (s *fakeSession) UnbanUser(_ context.Context, _ ref.RoomID, userID ref.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unbans = append(s.unbans, userID)
	return nil
}

// stateRaw returns the stored content for (type, state key), or nil.
func (s *fakeSession) stateRaw(eventType ref.EventType, stateKey string) json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state[[2]string{string(eventType), stateKey}]
}

// seed installs a state event directly, bypassing the engine.
func (s *fakeSession) seed(t *testing.T, eventType ref.EventType, stateKey string, content any) {
	t.Helper()
	raw, err := json.Marshal(content)
	if err != nil {
		t.Fatal(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state[[2]string{string(eventType), stateKey}] = raw
}

type engineFixture struct {
	engine  *Engine
	session *fakeSession
	log     *audit.Memory
	clk     *clock.FakeClock

	space   ref.RoomID
	general ref.RoomID

	owner  ref.UserID // Matrix power 100, no Concord role
	admin  ref.UserID // holds the admins role (administrator base)
	mod    ref.UserID // holds the mods role (manage_roles base)
	member ref.UserID // @everyone only
}

func mustRoom(t *testing.T, raw string) ref.RoomID {
	t.Helper()
	room, err := ref.ParseRoomID(raw)
	if err != nil {
		t.Fatal(err)
	}
	return room
}

func mustUserID(t *testing.T, raw string) ref.UserID {
	t.Helper()
	user, err := ref.ParseUserID(raw)
	if err != nil {
		t.Fatal(err)
	}
	return user
}

// newEngineFixture seeds a small space (two roles, assignments, power
// levels) and loads it.
func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	f := &engineFixture{
		clk:     clock.NewFake(),
		space:   mustRoom(t, "!space:concord.chat"),
		general: mustRoom(t, "!general:concord.chat"),
		owner:   mustUserID(t, "@owner:concord.chat"),
		admin:   mustUserID(t, "@admin:concord.chat"),
		mod:     mustUserID(t, "@mod:concord.chat"),
		member:  mustUserID(t, "@member:concord.chat"),
	}
	f.log = audit.NewMemory(f.clk)
	f.session = newFakeSession(f.owner)

	f.session.seed(t, schema.EventTypeRole, "admins", schema.RoleContent{
		Name:       "Admins",
		PowerLevel: 90,
		Sequence:   1,
		Base:       map[schema.Permission]bool{schema.PermissionAdministrator: true},
	})
	f.session.seed(t, schema.EventTypeRole, "mods", schema.RoleContent{
		Name:       "Mods",
		PowerLevel: 50,
		Sequence:   2,
		Base: map[schema.Permission]bool{
			schema.PermissionManageRoles:  true,
			schema.PermissionKickMembers:  true,
			schema.PermissionBanMembers:   true,
			schema.PermissionSendMessages: true,
		},
	})
	f.session.seed(t, schema.EventTypeMember, f.admin.String(),
		schema.MemberContent{Roles: []ref.RoleID{"admins"}})
	f.session.seed(t, schema.EventTypeMember, f.mod.String(),
		schema.MemberContent{Roles: []ref.RoleID{"mods"}})
	f.session.seed(t, schema.MatrixEventTypePowerLevels, "", schema.PowerLevels{
		Users: map[string]int{f.owner.String(): 100},
	})

	engine, err := New(Config{
		Session:     f.session,
		Space:       f.space,
		SystemActor: f.owner,
		Audit:       f.log,
		Clock:       f.clk,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := engine.LoadState(context.Background()); err != nil {
		t.Fatal(err)
	}
	f.engine = engine
	return f
}

func TestLoadStateRestoresSpace(t *testing.T) {
	f := newEngineFixture(t)

	roles := f.engine.ListRoles()
	if len(roles) != 3 {
		t.Fatalf("roles = %+v", roles)
	}
	if roles[0].ID != "admins" || roles[1].ID != "mods" || roles[2].ID != ref.EveryoneRoleID {
		t.Errorf("role order = %v, %v, %v", roles[0].ID, roles[1].ID, roles[2].ID)
	}
	if got := f.engine.EffectiveLevel(f.mod); got != 50 {
		t.Errorf("mod level = %d, want 50", got)
	}
	// Owner power comes from Matrix power levels, not a role.
	if got := f.engine.EffectiveLevel(f.owner); got != 100 {
		t.Errorf("owner level = %d, want 100", got)
	}
}

func TestLoadStateSkipsMalformedEvents(t *testing.T) {
	f := newEngineFixture(t)
	f.session.seed(t, schema.EventTypeRole, "Bad Key!", schema.RoleContent{Name: "x", Sequence: 9})
	f.session.seed(t, schema.EventTypeRole, "badpower", schema.RoleContent{
		Name: "Bad", PowerLevel: 400, Sequence: 10,
	})
	f.session.seed(t, schema.EventTypeMember, f.member.String(),
		map[string]any{"roles": "not-a-list"})

	if err := f.engine.LoadState(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(f.engine.ListRoles()) != 3 {
		t.Errorf("malformed roles were loaded: %+v", f.engine.ListRoles())
	}
}

func TestCheckPermissionLayers(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	// Space default: @everyone base grants send_messages.
	result, err := f.engine.CheckPermission(f.member, f.general, schema.PermissionSendMessages)
	if err != nil {
		t.Fatal(err)
	}
	if result.Decision != permission.Allow {
		t.Errorf("baseline send: %+v", result)
	}

	// Role override denies @everyone in #general.
	err = f.engine.SetRoleOverride(ctx, f.mod, f.general, ref.EveryoneRoleID,
		schema.PermissionSendMessages, schema.StateDeny)
	if err != nil {
		t.Fatal(err)
	}
	result, _ = f.engine.CheckPermission(f.member, f.general, schema.PermissionSendMessages)
	if result.Decision != permission.Deny || result.Layer != permission.LayerRoleOverride {
		t.Errorf("after role override: %+v", result)
	}

	// A user override outranks the role override. The mod no longer
	// holds send_messages here, so an administrator sets it.
	err = f.engine.SetUserOverride(ctx, f.admin, f.general, f.member,
		schema.PermissionSendMessages, schema.StateAllow)
	if err != nil {
		t.Fatal(err)
	}
	result, _ = f.engine.CheckPermission(f.member, f.general, schema.PermissionSendMessages)
	if result.Decision != permission.Allow || result.Layer != permission.LayerUserOverride {
		t.Errorf("after user override: %+v", result)
	}
}

func TestSetOverrideWritesStateAndAudits(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	err := f.engine.SetRoleOverride(ctx, f.mod, f.general, "mods",
		schema.PermissionMentionEveryone, schema.StateAllow)
	if err != nil {
		t.Fatal(err)
	}

	stateKey := schema.OverrideStateKey(f.general, "mods")
	raw := f.session.stateRaw(schema.EventTypeRoleOverride, stateKey)
	if raw == nil {
		t.Fatal("no override event written")
	}
	var content schema.OverrideContent
	if err := json.Unmarshal(raw, &content); err != nil {
		t.Fatal(err)
	}
	if content.States[schema.PermissionMentionEveryone] != schema.StateAllow {
		t.Errorf("written content = %+v", content)
	}

	entries := f.log.Entries()
	if len(entries) != 1 || entries[0].Action != audit.ActionOverrideSet {
		t.Fatalf("audit entries = %+v", entries)
	}

	// Idempotent set: no new event, no new audit entry.
	err = f.engine.SetRoleOverride(ctx, f.mod, f.general, "mods",
		schema.PermissionMentionEveryone, schema.StateAllow)
	if err != nil {
		t.Fatal(err)
	}
	if f.log.Len() != 1 {
		t.Errorf("idempotent set was audited")
	}
}

func TestSetOverrideUnknownPermission(t *testing.T) {
	f := newEngineFixture(t)
	err := f.engine.SetRoleOverride(context.Background(), f.mod, f.general, "mods",
		schema.Permission("fly"), schema.StateAllow)
	if !fault.Is(err, fault.InvalidPermissionName) {
		t.Errorf("unknown permission: %v", err)
	}
}

func TestSetOverrideRequiresPrivilege(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	err := f.engine.SetRoleOverride(ctx, f.member, f.general, "mods",
		schema.PermissionSendMessages, schema.StateDeny)
	if !fault.Is(err, fault.InsufficientPrivilege) {
		t.Errorf("member setting override: %v", err)
	}

	// A mod cannot override a user they do not outrank.
	err = f.engine.SetUserOverride(ctx, f.mod, f.general, f.admin,
		schema.PermissionSendMessages, schema.StateDeny)
	if !fault.Is(err, fault.InsufficientPrivilege) {
		t.Errorf("mod overriding admin: %v", err)
	}

	// Administrators bypass the rank check.
	err = f.engine.SetUserOverride(ctx, f.admin, f.general, f.mod,
		schema.PermissionSendMessages, schema.StateDeny)
	if err != nil {
		t.Errorf("admin overriding mod: %v", err)
	}
}

func TestSetOverrideRequiresHeldPermission(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	// The mod resolves Deny for administrator; handing it out is
	// refused and nothing is written.
	err := f.engine.SetRoleOverride(ctx, f.mod, f.general, "mods",
		schema.PermissionAdministrator, schema.StateAllow)
	if !fault.Is(err, fault.InsufficientPrivilege) {
		t.Errorf("granting unheld permission: %v", err)
	}
	if f.log.Len() != 0 {
		t.Errorf("refused set was audited")
	}
	stateKey := schema.OverrideStateKey(f.general, "mods")
	if raw := f.session.stateRaw(schema.EventTypeRoleOverride, stateKey); raw != nil {
		t.Errorf("refused set wrote state: %s", raw)
	}

	// Once @everyone is denied send_messages in the channel, the mod
	// no longer holds it there and cannot hand it out either.
	err = f.engine.SetRoleOverride(ctx, f.admin, f.general, ref.EveryoneRoleID,
		schema.PermissionSendMessages, schema.StateDeny)
	if err != nil {
		t.Fatal(err)
	}
	err = f.engine.SetUserOverride(ctx, f.mod, f.general, f.member,
		schema.PermissionSendMessages, schema.StateAllow)
	if !fault.Is(err, fault.InsufficientPrivilege) {
		t.Errorf("granting channel-denied permission: %v", err)
	}
}

func TestSetUserOverrideRequiresChannelAccess(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	err := f.engine.SetRoleOverride(ctx, f.admin, f.general, ref.EveryoneRoleID,
		schema.PermissionViewChannel, schema.StateDeny)
	if err != nil {
		t.Fatal(err)
	}

	// The member cannot access #general, so no override may target
	// them there.
	err = f.engine.SetUserOverride(ctx, f.admin, f.general, f.member,
		schema.PermissionSendMessages, schema.StateAllow)
	if !fault.Is(err, fault.InsufficientPrivilege) {
		t.Errorf("override for locked-out user: %v", err)
	}

	// Granting view_channel itself is the way back in.
	err = f.engine.SetUserOverride(ctx, f.admin, f.general, f.member,
		schema.PermissionViewChannel, schema.StateAllow)
	if err != nil {
		t.Fatalf("restoring access: %v", err)
	}
	err = f.engine.SetUserOverride(ctx, f.admin, f.general, f.member,
		schema.PermissionSendMessages, schema.StateAllow)
	if err != nil {
		t.Errorf("override after access restored: %v", err)
	}
}

func TestSetUserOverrideSelfRefused(t *testing.T) {
	f := newEngineFixture(t)

	// Self is equal level, and equal or higher is refused.
	err := f.engine.SetUserOverride(context.Background(), f.mod, f.general, f.mod,
		schema.PermissionSendMessages, schema.StateAllow)
	if !fault.Is(err, fault.InsufficientPrivilege) {
		t.Errorf("self-targeted override: %v", err)
	}
}

func TestCycleOverrideTombstonesOnInherit(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	stateKey := schema.OverrideStateKey(f.general, f.member.String())

	want := []schema.State{schema.StateAllow, schema.StateDeny, schema.StateInherit}
	for _, expected := range want {
		got, err := f.engine.CycleUserOverride(ctx, f.mod, f.general, f.member,
			schema.PermissionAttachFiles)
		if err != nil {
			t.Fatal(err)
		}
		if got != expected {
			t.Fatalf("cycle = %v, want %v", got, expected)
		}
	}

	// The full cycle ends at Inherit: the event must be a tombstone.
	raw := f.session.stateRaw(schema.EventTypeUserOverride, stateKey)
	if string(raw) != "{}" {
		t.Errorf("final event = %s, want tombstone", raw)
	}
}

func TestClearOverride(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	err := f.engine.SetUserOverride(ctx, f.mod, f.general, f.member,
		schema.PermissionSendMessages, schema.StateDeny)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.engine.ClearUserOverride(ctx, f.mod, f.general, f.member); err != nil {
		t.Fatal(err)
	}

	result, _ := f.engine.CheckPermission(f.member, f.general, schema.PermissionSendMessages)
	if result.Layer == permission.LayerUserOverride {
		t.Errorf("override survived clear: %+v", result)
	}

	err = f.engine.ClearUserOverride(ctx, f.mod, f.general, f.member)
	if !fault.Is(err, fault.AlreadyInState) {
		t.Errorf("double clear: %v", err)
	}
}

func TestCreateRoleWritesEvent(t *testing.T) {
	f := newEngineFixture(t)
	role, err := f.engine.CreateRole(context.Background(), f.admin, "helpers", "Helpers", "#33cc66",
		map[schema.Permission]bool{schema.PermissionManageMessages: true}, 1)
	if err != nil {
		t.Fatal(err)
	}
	// Position 1 lands between admins (90) and mods (50).
	if role.PowerLevel <= 50 || role.PowerLevel >= 90 {
		t.Errorf("power = %d, want between 50 and 90", role.PowerLevel)
	}

	raw := f.session.stateRaw(schema.EventTypeRole, "helpers")
	if raw == nil {
		t.Fatal("no role event written")
	}
	var content schema.RoleContent
	if err := json.Unmarshal(raw, &content); err != nil {
		t.Fatal(err)
	}
	if content.Name != "Helpers" || content.PowerLevel != role.PowerLevel {
		t.Errorf("written content = %+v", content)
	}
}

func TestDeleteRoleCascades(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	err := f.engine.SetRoleOverride(ctx, f.admin, f.general, "mods",
		schema.PermissionSendMessages, schema.StateAllow)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.engine.DeleteRole(ctx, f.admin, "mods"); err != nil {
		t.Fatal(err)
	}

	if _, ok := f.engine.hierarchy.Get("mods"); ok {
		t.Error("role survived deletion")
	}
	// Role event and its override event are tombstoned.
	if raw := f.session.stateRaw(schema.EventTypeRole, "mods"); string(raw) != "{}" {
		t.Errorf("role event = %s", raw)
	}
	overrideKey := schema.OverrideStateKey(f.general, "mods")
	if raw := f.session.stateRaw(schema.EventTypeRoleOverride, overrideKey); string(raw) != "{}" {
		t.Errorf("override event = %s", raw)
	}
	// The mod held only this role; their member event is tombstoned
	// and they fall back to @everyone.
	if raw := f.session.stateRaw(schema.EventTypeMember, f.mod.String()); string(raw) != "{}" {
		t.Errorf("member event = %s", raw)
	}
	if got := f.engine.EffectiveLevel(f.mod); got != 0 {
		t.Errorf("mod level after delete = %d, want 0", got)
	}
}

func TestDeleteEveryoneRefused(t *testing.T) {
	f := newEngineFixture(t)
	err := f.engine.DeleteRole(context.Background(), f.admin, ref.EveryoneRoleID)
	if !fault.Is(err, fault.ProtectedRole) {
		t.Errorf("deleting @everyone: %v", err)
	}
}

func TestAssignRoleMirrorsPowerLevel(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	if err := f.engine.AssignRole(ctx, f.admin, f.member, "mods"); err != nil {
		t.Fatal(err)
	}
	if got := f.engine.EffectiveLevel(f.member); got != 50 {
		t.Errorf("member level = %d, want 50", got)
	}

	raw := f.session.stateRaw(schema.EventTypeMember, f.member.String())
	var content schema.MemberContent
	if err := json.Unmarshal(raw, &content); err != nil {
		t.Fatal(err)
	}
	if len(content.Roles) != 1 || content.Roles[0] != "mods" {
		t.Errorf("member event = %+v", content)
	}

	var levels schema.PowerLevels
	if err := json.Unmarshal(f.session.stateRaw(schema.MatrixEventTypePowerLevels, ""), &levels); err != nil {
		t.Fatal(err)
	}
	if levels.UserLevel(f.member.String()) != 50 {
		t.Errorf("mirrored level = %d, want 50", levels.UserLevel(f.member.String()))
	}

	// Assigning again is AlreadyInState.
	err := f.engine.AssignRole(ctx, f.admin, f.member, "mods")
	if !fault.Is(err, fault.AlreadyInState) {
		t.Errorf("double assign: %v", err)
	}
}

func TestReorderRolePrivilege(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	helpers, err := f.engine.CreateRole(ctx, f.admin, "helpers", "Helpers", "",
		map[schema.Permission]bool{schema.PermissionManageRoles: true}, 2)
	if err != nil {
		t.Fatal(err)
	}
	helper := mustUserID(t, "@helper:concord.chat")
	if err := f.engine.AssignRole(ctx, f.admin, helper, "helpers"); err != nil {
		t.Fatal(err)
	}

	// A helper cannot move their own role above admins.
	_, err = f.engine.ReorderRole(ctx, helper, "helpers", 0)
	if !fault.Is(err, fault.InsufficientPrivilege) {
		t.Errorf("reorder above admins: %v", err)
	}

	// The owner (level 100) can.
	moved, err := f.engine.ReorderRole(ctx, f.owner, "helpers", 0)
	if err != nil {
		t.Fatal(err)
	}
	if moved.PowerLevel <= 90 {
		t.Errorf("moved power = %d, want above 90", moved.PowerLevel)
	}
	if moved.PowerLevel == helpers.PowerLevel {
		t.Errorf("reorder did not change power level")
	}
}

func TestEngineModerationWiring(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	if err := f.engine.Kick(ctx, f.mod, f.member, "spam"); err != nil {
		t.Fatal(err)
	}
	if len(f.session.kicks) != 1 || f.session.kicks[0] != f.member {
		t.Errorf("kicks = %v", f.session.kicks)
	}

	ban, err := f.engine.Ban(ctx, f.mod, f.member, "spam", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if ban.Permanent() {
		t.Errorf("timed ban came back permanent")
	}
	if raw := f.session.stateRaw(schema.EventTypeBan, f.member.String()); raw == nil {
		t.Error("no ban record written")
	}

	if err := f.engine.Unban(ctx, f.mod, f.member); err != nil {
		t.Fatal(err)
	}
	if raw := f.session.stateRaw(schema.EventTypeBan, f.member.String()); string(raw) != "{}" {
		t.Errorf("ban record = %s, want tombstone", raw)
	}
}

func TestEngineBulkWiring(t *testing.T) {
	f := newEngineFixture(t)
	results, err := f.engine.ExecuteBulk(context.Background(), moderation.BulkRequest{
		Actor:   f.mod,
		Action:  moderation.BulkKick,
		Targets: []ref.UserID{f.member, f.admin}, // admin filtered: outranks mod
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Target != f.member || results[0].Status != moderation.BulkSuccess {
		t.Errorf("results = %+v", results)
	}
}

func TestBanExpiryEndToEnd(t *testing.T) {
	f := newEngineFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := f.engine.Ban(ctx, f.mod, f.member, "cooldown", 30*time.Minute); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		f.engine.RunBanExpiry(ctx)
		close(done)
	}()
	f.clk.WaitForTimers(1)
	f.clk.Advance(time.Hour)

	deadline := time.After(5 * time.Second)
	for {
		if _, banned := f.engine.bans.Get(f.member); !banned {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed ban was not lifted")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	cancel()
	<-done

	entries := f.log.Entries()
	last := entries[len(entries)-1]
	if last.Action != audit.ActionBanExpired || last.Actor != f.owner.String() {
		t.Errorf("expiry entry = %+v", last)
	}
}
