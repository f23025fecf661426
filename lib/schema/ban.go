// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"fmt"
	"time"

	"github.com/concord-chat/concord/lib/ref"
)

// BanContent is the content of an m.concord.ban state event: one
// active space ban. The state key carries the target user ID, so a
// user has at most one active ban per space and re-banning overwrites
// the prior record. Lifting a ban overwrites the event with empty
// content.
//
// Timestamps are Unix milliseconds, matching Matrix origin_server_ts.
type BanContent struct {
	Reason    string     `json:"reason,omitempty"`
	Moderator ref.UserID `json:"moderator"`
	CreatedAt int64      `json:"created_at"`
	// ExpiresAt is 0 for a permanent ban.
	ExpiresAt int64 `json:"expires_at,omitempty"`
}

// Validate checks the content at the decode boundary. A lifted ban
// (empty content) fails on the zero moderator; loaders treat that as
// a tombstone.
func (c *BanContent) Validate() error {
	if c.Moderator.IsZero() {
		return fmt.Errorf("ban has no moderator")
	}
	if c.CreatedAt <= 0 {
		return fmt.Errorf("ban has no creation timestamp")
	}
	if c.ExpiresAt != 0 && c.ExpiresAt <= c.CreatedAt {
		return fmt.Errorf("ban expires at %d, before its creation at %d", c.ExpiresAt, c.CreatedAt)
	}
	return nil
}

// Permanent reports whether the ban has no expiry.
func (c *BanContent) Permanent() bool { return c.ExpiresAt == 0 }

// ExpiredAt reports whether a timed ban has expired as of now.
// Permanent bans never expire.
func (c *BanContent) ExpiredAt(now time.Time) bool {
	if c.Permanent() {
		return false
	}
	return now.UnixMilli() >= c.ExpiresAt
}

// Expiry returns the expiry instant of a timed ban. Call only when
// Permanent is false.
func (c *BanContent) Expiry() time.Time {
	return time.UnixMilli(c.ExpiresAt)
}
