// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"encoding/json"

	"github.com/concord-chat/concord/lib/ref"
)

// Event is a Matrix event as returned by the room state endpoint.
type Event struct {
	Type           ref.EventType   `json:"type"`
	StateKey       string          `json:"state_key"`
	Sender         string          `json:"sender"`
	EventID        string          `json:"event_id"`
	OriginServerTS int64           `json:"origin_server_ts"`
	Content        json.RawMessage `json:"content"`
}

// WhoAmIResponse is the response from the whoami endpoint.
type WhoAmIResponse struct {
	UserID ref.UserID `json:"user_id"`
}

// SendEventResponse is the response from event send endpoints.
type SendEventResponse struct {
	EventID string `json:"event_id"`
}

// ResolveAliasResponse is the response from alias resolution.
type ResolveAliasResponse struct {
	RoomID ref.RoomID `json:"room_id"`
}

// KickRequest is the body of the kick endpoint.
type KickRequest struct {
	UserID ref.UserID `json:"user_id"`
	Reason string     `json:"reason,omitempty"`
}

// BanRequest is the body of the ban endpoint.
type BanRequest struct {
	UserID ref.UserID `json:"user_id"`
	Reason string     `json:"reason,omitempty"`
}

// UnbanRequest is the body of the unban endpoint.
type UnbanRequest struct {
	UserID ref.UserID `json:"user_id"`
}

// RoomMembersResponse is the raw response from the members endpoint:
// a chunk of m.room.member state events.
type RoomMembersResponse struct {
	Chunk []MemberEvent `json:"chunk"`
}

// MemberEvent is one m.room.member state event.
type MemberEvent struct {
	StateKey string        `json:"state_key"`
	Content  MemberContent `json:"content"`
}

// MemberContent is the content of an m.room.member event.
type MemberContent struct {
	Membership  string `json:"membership"`
	DisplayName string `json:"displayname,omitempty"`
}

// RoomMember is the flattened view of a room member that callers
// actually use.
type RoomMember struct {
	UserID      string
	DisplayName string
	Membership  string
}
