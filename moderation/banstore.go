// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package moderation

import (
	"sort"
	"sync"
	"time"

	"github.com/concord-chat/concord/lib/ref"
	"github.com/concord-chat/concord/lib/schema"
)

// BanStore is the in-memory mirror of the space's active ban records.
// The durable copy lives in m.concord.ban state events; the store
// exists so expiry checks and precondition lookups avoid a round trip.
// Safe for concurrent use.
type BanStore struct {
	mu   sync.Mutex
	bans map[ref.UserID]schema.BanContent
}

// NewBanStore returns an empty store.
func NewBanStore() *BanStore {
	return &BanStore{bans: make(map[ref.UserID]schema.BanContent)}
}

// Put records or replaces the active ban for a user.
func (s *BanStore) Put(user ref.UserID, ban schema.BanContent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bans[user] = ban
}

// Get returns the active ban for a user, if any.
func (s *BanStore) Get(user ref.UserID) (schema.BanContent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ban, ok := s.bans[user]
	return ban, ok
}

// Delete removes a user's ban record. No-op if none exists.
func (s *BanStore) Delete(user ref.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bans, user)
}

// Len returns the number of active ban records.
func (s *BanStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bans)
}

// Expired returns the users whose timed bans have expired as of now,
// sorted by user ID so expiry processing is deterministic.
func (s *BanStore) Expired(now time.Time) []ref.UserID {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []ref.UserID
	for user, ban := range s.bans {
		if ban.ExpiredAt(now) {
			expired = append(expired, user)
		}
	}
	sort.Slice(expired, func(i, j int) bool {
		return expired[i].String() < expired[j].String()
	})
	return expired
}
