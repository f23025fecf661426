// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package moderation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/concord-chat/concord/audit"
	"github.com/concord-chat/concord/lib/clock"
	"github.com/concord-chat/concord/lib/fault"
	"github.com/concord-chat/concord/lib/ref"
	"github.com/concord-chat/concord/lib/schema"
	"github.com/concord-chat/concord/messaging"
)

// backendCall records one homeserver call made by a fake backend.
type backendCall struct {
	method   string
	target   ref.UserID
	reason   string
	stateKey string
	content  any
}

// fakeBackend implements Backend, recording calls and failing per an
// injected error queue keyed by method name.
type fakeBackend struct {
	mu       sync.Mutex
	calls    []backendCall
	failures map[string][]error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{failures: make(map[string][]error)}
}

// failNext queues errs to be returned by the next calls to method, in
// order. Once the queue drains, calls succeed.
func (b *fakeBackend) failNext(method string, errs ...error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[method] = append(b.failures[method], errs...)
}

func (b *fakeBackend) record(call backendCall) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, call)
	if queue := b.failures[call.method]; len(queue) > 0 {
		b.failures[call.method] = queue[1:]
		return queue[0]
	}
	return nil
}

func (b *fakeBackend) callsTo(method string) []backendCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []backendCall
	for _, call := range b.calls {
		if call.method == method {
			out = append(out, call)
		}
	}
	return out
}

func (b *fakeBackend) KickUser(_ context.Context, _ ref.RoomID, userID ref.UserID, reason string) error {
	return b.record(backendCall{method: "kick", target: userID, reason: reason})
}

func (b *fakeBackend) BanUser(_ context.Context, _ ref.RoomID, userID ref.UserID, reason string) error {
	return b.record(backendCall{method: "ban", target: userID, reason: reason})
}

func (b *fakeBackend) UnbanUser(_ context.Context, _ ref.RoomID, userID ref.UserID) error {
	return b.record(backendCall{method: "unban", target: userID})
}

func (b *fakeBackend) SendStateEvent(_ context.Context, _ ref.RoomID, _ ref.EventType, stateKey string, content any) (string, error) {
	err := b.record(backendCall{method: "state", stateKey: stateKey, content: content})
	return "$event:concord.chat", err
}

// fakeLevels maps users to power levels; unknown users are level 0.
type fakeLevels map[ref.UserID]int

func (l fakeLevels) EffectiveLevel(user ref.UserID) int { return l[user] }

func mustUser(t *testing.T, raw string) ref.UserID {
	t.Helper()
	user, err := ref.ParseUserID(raw)
	if err != nil {
		t.Fatal(err)
	}
	return user
}

type fixture struct {
	service *Service
	backend *fakeBackend
	bans    *BanStore
	log     *audit.Memory
	clk     *clock.FakeClock

	moderator ref.UserID
	member    ref.UserID
	admin     ref.UserID
	system    ref.UserID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		backend:   newFakeBackend(),
		bans:      NewBanStore(),
		clk:       clock.NewFake(),
		moderator: mustUser(t, "@mod:concord.chat"),
		member:    mustUser(t, "@member:concord.chat"),
		admin:     mustUser(t, "@admin:concord.chat"),
		system:    mustUser(t, "@concord:concord.chat"),
	}
	f.log = audit.NewMemory(f.clk)
	space, err := ref.ParseRoomID("!space:concord.chat")
	if err != nil {
		t.Fatal(err)
	}
	f.service, err = NewService(Config{
		Backend: f.backend,
		Levels: fakeLevels{
			f.admin:     100,
			f.moderator: 50,
			f.member:    0,
		},
		Bans:        f.bans,
		Audit:       f.log,
		Space:       space,
		SystemActor: f.system,
		Clock:       f.clk,
	})
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func rateLimited() error {
	return &messaging.MatrixError{Code: messaging.ErrCodeLimitExceeded, StatusCode: 429}
}

func forbidden() error {
	return &messaging.MatrixError{Code: messaging.ErrCodeForbidden, StatusCode: 403}
}

func TestKick(t *testing.T) {
	f := newFixture(t)
	if err := f.service.Kick(context.Background(), f.moderator, f.member, "spam"); err != nil {
		t.Fatal(err)
	}

	kicks := f.backend.callsTo("kick")
	if len(kicks) != 1 || kicks[0].target != f.member || kicks[0].reason != "spam" {
		t.Errorf("kick calls = %+v", kicks)
	}
	entries := f.log.Entries()
	if len(entries) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(entries))
	}
	if entries[0].Action != audit.ActionMemberKick || entries[0].Actor != f.moderator.String() {
		t.Errorf("audit entry = %+v", entries[0])
	}
}

func TestKickPreconditions(t *testing.T) {
	f := newFixture(t)

	err := f.service.Kick(context.Background(), f.moderator, f.moderator, "")
	if !fault.Is(err, fault.SelfTargetForbidden) {
		t.Errorf("self kick: %v", err)
	}

	// Equal levels are not enough; the actor must be strictly above.
	err = f.service.Kick(context.Background(), f.moderator, f.admin, "")
	if !fault.Is(err, fault.InsufficientPrivilege) {
		t.Errorf("kick upward: %v", err)
	}

	if len(f.backend.calls) != 0 {
		t.Errorf("refused kicks reached the backend: %+v", f.backend.calls)
	}
	if f.log.Len() != 0 {
		t.Errorf("refused kicks were audited")
	}
}

func TestKickRetriesTransientFailure(t *testing.T) {
	f := newFixture(t)
	f.backend.failNext("kick", rateLimited(), rateLimited())

	done := make(chan error, 1)
	go func() {
		done <- f.service.Kick(context.Background(), f.moderator, f.member, "spam")
	}()

	// Two rate-limited attempts mean two backoff waits.
	f.clk.WaitForTimers(1)
	f.clk.Advance(time.Second)
	f.clk.WaitForTimers(1)
	f.clk.Advance(2 * time.Second)

	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if got := len(f.backend.callsTo("kick")); got != 3 {
		t.Errorf("kick attempts = %d, want 3", got)
	}
	if f.log.Len() != 1 {
		t.Errorf("audit entries = %d, want exactly 1", f.log.Len())
	}
}

func TestKickPermanentFailureDoesNotRetry(t *testing.T) {
	f := newFixture(t)
	f.backend.failNext("kick", forbidden())

	err := f.service.Kick(context.Background(), f.moderator, f.member, "")
	if !fault.Is(err, fault.BackendRejected) {
		t.Fatalf("kick error = %v", err)
	}
	if got := len(f.backend.callsTo("kick")); got != 1 {
		t.Errorf("kick attempts = %d, want 1", got)
	}
	if f.log.Len() != 0 {
		t.Errorf("failed kick was audited")
	}
}

func TestBanWritesRecord(t *testing.T) {
	f := newFixture(t)
	ban, err := f.service.Ban(context.Background(), f.moderator, f.member, "raiding", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	if ban.Moderator != f.moderator || ban.Permanent() {
		t.Errorf("ban = %+v", ban)
	}
	wantExpiry := f.clk.Now().Add(time.Hour).UnixMilli()
	if ban.ExpiresAt != wantExpiry {
		t.Errorf("expires_at = %d, want %d", ban.ExpiresAt, wantExpiry)
	}

	states := f.backend.callsTo("state")
	if len(states) != 1 || states[0].stateKey != f.member.String() {
		t.Fatalf("state calls = %+v", states)
	}
	stored, ok := f.bans.Get(f.member)
	if !ok || stored != ban {
		t.Errorf("stored ban = %+v, ok = %v", stored, ok)
	}

	entries := f.log.Entries()
	if len(entries) != 1 || entries[0].Action != audit.ActionMemberBan {
		t.Fatalf("audit entries = %+v", entries)
	}
	if entries[0].Before != nil {
		t.Errorf("fresh ban has a before snapshot")
	}
}

func TestBanNegativeDuration(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.Ban(context.Background(), f.moderator, f.member, "", -time.Minute)
	if !fault.Is(err, fault.InvalidArgument) {
		t.Errorf("negative duration: %v", err)
	}
	if len(f.backend.calls) != 0 {
		t.Errorf("backend was called: %+v", f.backend.calls)
	}
	if f.log.Len() != 0 {
		t.Errorf("refused ban was audited")
	}
}

func TestRebanReplacesRecord(t *testing.T) {
	f := newFixture(t)
	first, err := f.service.Ban(context.Background(), f.moderator, f.member, "first", 0)
	if err != nil {
		t.Fatal(err)
	}
	f.clk.Advance(time.Minute)

	second, err := f.service.Ban(context.Background(), f.admin, f.member, "second", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	stored, _ := f.bans.Get(f.member)
	if stored != second || stored == first {
		t.Errorf("stored ban = %+v", stored)
	}

	entries := f.log.Entries()
	if len(entries) != 2 {
		t.Fatalf("audit entries = %d, want 2", len(entries))
	}
	if entries[1].Before == nil {
		t.Errorf("re-ban has no before snapshot")
	}
}

func TestUnban(t *testing.T) {
	f := newFixture(t)
	if _, err := f.service.Ban(context.Background(), f.moderator, f.member, "x", 0); err != nil {
		t.Fatal(err)
	}

	if err := f.service.Unban(context.Background(), f.moderator, f.member); err != nil {
		t.Fatal(err)
	}
	if _, banned := f.bans.Get(f.member); banned {
		t.Errorf("ban record survived unban")
	}

	// The tombstone is the second state write.
	states := f.backend.callsTo("state")
	if len(states) != 2 {
		t.Fatalf("state calls = %+v", states)
	}
	if _, isBan := states[1].content.(*schema.BanContent); isBan {
		t.Errorf("unban wrote a ban record instead of a tombstone")
	}

	// Unbanning again is AlreadyInState, before any backend call.
	err := f.service.Unban(context.Background(), f.moderator, f.member)
	if !fault.Is(err, fault.AlreadyInState) {
		t.Errorf("double unban: %v", err)
	}
	if got := len(f.backend.callsTo("unban")); got != 1 {
		t.Errorf("unban attempts = %d, want 1", got)
	}
}

func TestExpireBan(t *testing.T) {
	f := newFixture(t)
	if _, err := f.service.Ban(context.Background(), f.moderator, f.member, "x", time.Hour); err != nil {
		t.Fatal(err)
	}

	if err := f.service.ExpireBan(context.Background(), f.member); err != nil {
		t.Fatal(err)
	}
	if _, banned := f.bans.Get(f.member); banned {
		t.Errorf("ban record survived expiry")
	}
	entries := f.log.Entries()
	last := entries[len(entries)-1]
	if last.Action != audit.ActionBanExpired || last.Actor != f.system.String() {
		t.Errorf("expiry audit entry = %+v", last)
	}

	// Idempotent: no record, no backend call, no audit entry.
	before := f.log.Len()
	if err := f.service.ExpireBan(context.Background(), f.member); err != nil {
		t.Fatal(err)
	}
	if f.log.Len() != before {
		t.Errorf("no-op expiry was audited")
	}
}

func TestExpireBanClearsRecordWhenServerAlreadyLifted(t *testing.T) {
	f := newFixture(t)
	if _, err := f.service.Ban(context.Background(), f.moderator, f.member, "x", time.Hour); err != nil {
		t.Fatal(err)
	}
	f.backend.failNext("unban", forbidden())

	if err := f.service.ExpireBan(context.Background(), f.member); err != nil {
		t.Fatal(err)
	}
	if _, banned := f.bans.Get(f.member); banned {
		t.Errorf("stale ban record kept after server-side rejection")
	}
}

func TestSchedulerLiftsExpiredBans(t *testing.T) {
	f := newFixture(t)
	if _, err := f.service.Ban(context.Background(), f.moderator, f.member, "x", time.Hour); err != nil {
		t.Fatal(err)
	}
	permTarget := mustUser(t, "@perm:concord.chat")
	if _, err := f.service.Ban(context.Background(), f.moderator, permTarget, "x", 0); err != nil {
		t.Fatal(err)
	}

	scheduler := NewScheduler(f.service, 10*time.Minute)

	// Before expiry a tick does nothing.
	f.clk.Advance(time.Minute)
	scheduler.Fire(context.Background())
	if f.bans.Len() != 2 {
		t.Fatalf("bans lifted early: %d remain", f.bans.Len())
	}

	f.clk.Advance(time.Hour)
	scheduler.Fire(context.Background())
	if _, banned := f.bans.Get(f.member); banned {
		t.Errorf("expired ban not lifted")
	}
	if _, banned := f.bans.Get(permTarget); !banned {
		t.Errorf("permanent ban was lifted")
	}

	// A second tick after everything expired is a no-op.
	before := f.log.Len()
	scheduler.Fire(context.Background())
	if f.log.Len() != before {
		t.Errorf("idle tick appended audit entries")
	}
}

func TestSchedulerRunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	scheduler := NewScheduler(f.service, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		scheduler.Run(ctx)
		close(done)
	}()

	f.clk.WaitForTimers(1)
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestBanStoreExpiredSorted(t *testing.T) {
	store := NewBanStore()
	clk := clock.NewFake()
	now := clk.Now()

	put := func(raw string, expiresAt int64) {
		user, err := ref.ParseUserID(raw)
		if err != nil {
			t.Fatal(err)
		}
		store.Put(user, schema.BanContent{
			Moderator: user,
			CreatedAt: now.Add(-2 * time.Hour).UnixMilli(),
			ExpiresAt: expiresAt,
		})
	}
	put("@zed:concord.chat", now.Add(-time.Minute).UnixMilli())
	put("@amy:concord.chat", now.Add(-time.Hour).UnixMilli())
	put("@future:concord.chat", now.Add(time.Hour).UnixMilli())
	put("@forever:concord.chat", 0)

	expired := store.Expired(now)
	if len(expired) != 2 {
		t.Fatalf("expired = %v", expired)
	}
	if expired[0].String() != "@amy:concord.chat" || expired[1].String() != "@zed:concord.chat" {
		t.Errorf("expired order = %v", expired)
	}
}

func TestFromBackendPassthrough(t *testing.T) {
	// Cancellation during a moderation call must surface as a context
	// error, not a backend fault.
	f := newFixture(t)
	f.backend.failNext("kick", context.Canceled)

	err := f.service.Kick(context.Background(), f.moderator, f.member, "")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("kick error = %v", err)
	}
	if fault.CodeOf(err) != "" {
		t.Errorf("cancellation got a taxonomy code: %v", err)
	}
}
