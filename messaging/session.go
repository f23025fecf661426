// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"

	"github.com/concord-chat/concord/lib/ref"
)

// Session is the homeserver surface consumed by the engine and
// moderation packages. DirectSession implements it against a real
// homeserver; tests implement it with an in-memory fake.
type Session interface {
	// UserID returns the user this session acts as.
	UserID() ref.UserID

	// SendStateEvent writes a state event and returns its event ID.
	SendStateEvent(ctx context.Context, roomID ref.RoomID, eventType ref.EventType, stateKey string, content any) (string, error)

	// GetStateEvent fetches one state event's content. Returns a
	// *MatrixError with code M_NOT_FOUND if the event does not exist.
	GetStateEvent(ctx context.Context, roomID ref.RoomID, eventType ref.EventType, stateKey string) (json.RawMessage, error)

	// GetRoomState fetches all current state events from a room.
	GetRoomState(ctx context.Context, roomID ref.RoomID) ([]Event, error)

	// GetRoomMembers returns the members of a room.
	GetRoomMembers(ctx context.Context, roomID ref.RoomID) ([]RoomMember, error)

	// KickUser removes a user from a room. The user can rejoin.
	KickUser(ctx context.Context, roomID ref.RoomID, userID ref.UserID, reason string) error

	// BanUser bans a user from a room, removing them if joined.
	BanUser(ctx context.Context, roomID ref.RoomID, userID ref.UserID, reason string) error

	// UnbanUser lifts a ban without rejoining the user.
	UnbanUser(ctx context.Context, roomID ref.RoomID, userID ref.UserID) error
}

var _ Session = (*DirectSession)(nil)
