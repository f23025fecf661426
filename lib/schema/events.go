// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"fmt"
	"strings"

	"github.com/concord-chat/concord/lib/ref"
)

// Concord custom state event types. All Concord state lives in the
// space room, never in individual channels, so one state fetch
// bootstraps the whole space.
const (
	// EventTypeRole defines a role. State key: role ID.
	EventTypeRole ref.EventType = "m.concord.role"

	// EventTypeRoleOverride holds one channel's tri-state override map
	// for one role. State key: "<channel ID>|<role ID>".
	EventTypeRoleOverride ref.EventType = "m.concord.role_override"

	// EventTypeUserOverride holds one channel's tri-state override map
	// for one user. State key: "<channel ID>|<user ID>".
	EventTypeUserOverride ref.EventType = "m.concord.user_override"

	// EventTypeBan records an active space ban. State key: target
	// user ID. Lifting a ban overwrites the event with empty content.
	EventTypeBan ref.EventType = "m.concord.ban"

	// EventTypeMember records a user's role assignments. State key:
	// user ID. Absent or empty means the user holds only @everyone.
	EventTypeMember ref.EventType = "m.concord.member"
)

// Standard Matrix event types Concord reads.
const (
	// MatrixEventTypePowerLevels is the room power levels state event.
	MatrixEventTypePowerLevels ref.EventType = "m.room.power_levels"

	// MatrixEventTypeMember is the room membership state event.
	MatrixEventTypeMember ref.EventType = "m.room.member"
)

// OverrideStateKey builds the state key for a channel-scoped override
// event. The '|' separator cannot appear in room IDs, user IDs, or
// role IDs, so the split is unambiguous.
func OverrideStateKey(channel ref.RoomID, target string) string {
	return channel.String() + "|" + target
}

// SplitOverrideStateKey splits an override state key back into the
// channel room ID and the target (role ID or user ID, depending on
// the event type).
func SplitOverrideStateKey(stateKey string) (ref.RoomID, string, error) {
	index := strings.LastIndexByte(stateKey, '|')
	if index < 0 {
		return ref.RoomID{}, "", fmt.Errorf("override state key %q: missing '|' separator", stateKey)
	}
	channel, err := ref.ParseRoomID(stateKey[:index])
	if err != nil {
		return ref.RoomID{}, "", fmt.Errorf("override state key %q: %w", stateKey, err)
	}
	target := stateKey[index+1:]
	if target == "" {
		return ref.RoomID{}, "", fmt.Errorf("override state key %q: empty target", stateKey)
	}
	return channel, target, nil
}
