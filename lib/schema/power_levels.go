// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/concord-chat/concord/lib/ref"
)

// PowerLevels is a typed representation of the Matrix
// m.room.power_levels state event content. It supports typed
// read-modify-write: unmarshal the raw JSON from GetStateEvent,
// modify with SetUserLevel, then send the struct back with
// SendStateEvent.
//
// Pointer-to-int fields distinguish "not set" (nil, omitted from
// JSON) from "explicitly set to 0" (pointer to 0). This preserves
// server defaults for fields the caller doesn't touch.
type PowerLevels struct {
	Users         map[string]int `json:"users,omitempty"`
	UsersDefault  *int           `json:"users_default,omitempty"`
	Events        map[string]int `json:"events,omitempty"`
	EventsDefault *int           `json:"events_default,omitempty"`
	StateDefault  *int           `json:"state_default,omitempty"`
	Invite        *int           `json:"invite,omitempty"`
	Ban           *int           `json:"ban,omitempty"`
	Kick          *int           `json:"kick,omitempty"`
	Redact        *int           `json:"redact,omitempty"`
	Notifications map[string]int `json:"notifications,omitempty"`
}

// UserLevel returns the power level for a Matrix user ID string. If
// the user has an explicit entry in the Users map, that value is
// returned. Otherwise falls back to UsersDefault. If UsersDefault is
// also nil (not set), returns 0 per the Matrix spec default.
func (powerLevels *PowerLevels) UserLevel(userID string) int {
	if powerLevels.Users != nil {
		if level, ok := powerLevels.Users[userID]; ok {
			return level
		}
	}
	if powerLevels.UsersDefault != nil {
		return *powerLevels.UsersDefault
	}
	return 0
}

// SetUserLevel sets the power level for a Matrix user ID. Initializes
// the Users map if nil.
func (powerLevels *PowerLevels) SetUserLevel(userID ref.UserID, level int) {
	if powerLevels.Users == nil {
		powerLevels.Users = make(map[string]int)
	}
	powerLevels.Users[userID.String()] = level
}

// Threshold accessors. Each returns the explicit value when set,
// otherwise the Matrix spec default for that field.

// KickLevel returns the power level required to kick (default 50).
func (powerLevels *PowerLevels) KickLevel() int { return intOr(powerLevels.Kick, 50) }

// BanLevel returns the power level required to ban (default 50).
func (powerLevels *PowerLevels) BanLevel() int { return intOr(powerLevels.Ban, 50) }

// RedactLevel returns the power level required to redact other users'
// messages (default 50).
func (powerLevels *PowerLevels) RedactLevel() int { return intOr(powerLevels.Redact, 50) }

// InviteLevel returns the power level required to invite (default 0).
func (powerLevels *PowerLevels) InviteLevel() int { return intOr(powerLevels.Invite, 0) }

// EventsDefaultLevel returns the power level required to send
// ordinary timeline events (default 0).
func (powerLevels *PowerLevels) EventsDefaultLevel() int {
	return intOr(powerLevels.EventsDefault, 0)
}

// StateDefaultLevel returns the power level required to send state
// events (default 50).
func (powerLevels *PowerLevels) StateDefaultLevel() int {
	return intOr(powerLevels.StateDefault, 50)
}

func intOr(value *int, fallback int) int {
	if value != nil {
		return *value
	}
	return fallback
}

// StateSession is the subset of the Matrix client-server API needed
// for state event read-modify-write operations. Satisfied by
// messaging.Session and messaging.DirectSession.
type StateSession interface {
	GetStateEvent(ctx context.Context, roomID ref.RoomID, eventType ref.EventType, stateKey string) (json.RawMessage, error)
	SendStateEvent(ctx context.Context, roomID ref.RoomID, eventType ref.EventType, stateKey string, content any) (string, error)
}

// GrantUserLevels reads the current m.room.power_levels state event
// from a room, applies all user grants, and writes the updated event
// back. One GET + one PUT regardless of how many grants are included.
// The engine uses this to mirror role power levels into Matrix when
// role assignments change.
func GrantUserLevels(ctx context.Context, session StateSession, roomID ref.RoomID, grants map[ref.UserID]int) error {
	content, err := session.GetStateEvent(ctx, roomID, MatrixEventTypePowerLevels, "")
	if err != nil {
		return fmt.Errorf("reading power levels for %s: %w", roomID, err)
	}

	var powerLevels PowerLevels
	if err := json.Unmarshal(content, &powerLevels); err != nil {
		return fmt.Errorf("parsing power levels for %s: %w", roomID, err)
	}

	for userID, level := range grants {
		powerLevels.SetUserLevel(userID, level)
	}

	if _, err := session.SendStateEvent(ctx, roomID, MatrixEventTypePowerLevels, "", powerLevels); err != nil {
		return fmt.Errorf("writing power levels for %s: %w", roomID, err)
	}

	return nil
}
