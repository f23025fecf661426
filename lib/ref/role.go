// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import "fmt"

// maxRoleIDLength bounds role IDs so they stay usable as Matrix state
// keys and SQLite index values without truncation.
const maxRoleIDLength = 64

// RoleID identifies a Concord role within a space. Role IDs are
// chosen by moderators at role creation (e.g., "moderators",
// "trusted-members") and used as state keys for m.concord.role events,
// so they are restricted to a filesystem- and state-key-safe charset.
//
// RoleID is a named string type: the set of valid role IDs is open
// (unlike event types, new roles appear at runtime), so construction
// goes through ParseRoleID at the boundary. The zero value "" is not
// a valid role ID.
type RoleID string

// EveryoneRoleID is the reserved ID of the built-in @everyone role.
// Every space has exactly one; it cannot be created, deleted, or
// renamed.
const EveryoneRoleID RoleID = "everyone"

// ParseRoleID validates a raw role ID string. Valid role IDs are
// non-empty, at most 64 characters, use only a-z, 0-9, '.', '_',
// and '-', and do not start with '.'.
func ParseRoleID(raw string) (RoleID, error) {
	if raw == "" {
		return "", fmt.Errorf("empty role ID")
	}
	if len(raw) > maxRoleIDLength {
		return "", fmt.Errorf("role ID %q is %d characters, maximum is %d", raw, len(raw), maxRoleIDLength)
	}
	if raw[0] == '.' {
		return "", fmt.Errorf("role ID %q must not start with '.'", raw)
	}
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '.' || c == '_' || c == '-' {
			continue
		}
		return "", fmt.Errorf("role ID %q: invalid character %q at position %d (allowed: a-z, 0-9, ., _, -)", raw, c, i)
	}
	return RoleID(raw), nil
}

// String returns the role ID string.
func (r RoleID) String() string { return string(r) }

// IsZero reports whether the RoleID is empty.
func (r RoleID) IsZero() bool { return r == "" }
