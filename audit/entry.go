// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"context"
	"encoding/binary"
	"encoding/json"

	"github.com/zeebo/blake3"
)

// Action identifies what an audit entry records. Actions are stable
// wire strings; filters match on them exactly.
type Action string

const (
	ActionOverrideSet   Action = "override.set"
	ActionOverrideClear Action = "override.clear"
	ActionRoleCreate    Action = "role.create"
	ActionRoleEdit      Action = "role.edit"
	ActionRoleDelete    Action = "role.delete"
	ActionRoleReorder   Action = "role.reorder"
	ActionRoleAssign    Action = "role.assign"
	ActionRoleUnassign  Action = "role.unassign"
	ActionMemberKick    Action = "member.kick"
	ActionMemberBan     Action = "member.ban"
	ActionMemberUnban   Action = "member.unban"
	// ActionBanExpired records a timed ban lifted by the scheduler
	// rather than a moderator.
	ActionBanExpired Action = "member.unban.expired"
)

// Entry is one audit record. Callers fill the who/what/where fields
// and the snapshots; Append assigns Sequence, Timestamp, and Hash.
type Entry struct {
	// Sequence is the strictly increasing position in the log,
	// starting at 1.
	Sequence int64 `json:"sequence" cbor:"sequence"`
	// Timestamp is Unix milliseconds at append time.
	Timestamp int64 `json:"timestamp" cbor:"timestamp"`

	Actor  string `json:"actor" cbor:"actor"`
	Action Action `json:"action" cbor:"action"`
	// Target is the affected user or role ID, when the action has
	// one.
	Target string `json:"target,omitempty" cbor:"target,omitempty"`
	// Channel is the affected channel room ID, when the action is
	// channel-scoped.
	Channel string `json:"channel,omitempty" cbor:"channel,omitempty"`

	// Before and After are JSON snapshots of the changed record.
	// Either may be nil (creation has no before, deletion no after).
	Before json.RawMessage `json:"before,omitempty" cbor:"before,omitempty"`
	After  json.RawMessage `json:"after,omitempty" cbor:"after,omitempty"`

	// Hash is the BLAKE3 chain hash covering the previous entry's
	// hash and every field above.
	Hash []byte `json:"hash" cbor:"hash"`
}

// Log is the append surface consumed by the moderation service and
// the engine. Append assigns Sequence, Timestamp, and Hash and
// returns the completed entry.
type Log interface {
	Append(ctx context.Context, entry Entry) (Entry, error)
}

// chainHash computes an entry's hash from the previous entry's hash
// and the entry's own fields. Fields are length-prefixed so adjacent
// values cannot be confused.
func chainHash(previous []byte, entry *Entry) []byte {
	hasher := blake3.New()
	hasher.Write(previous)

	var scratch [8]byte
	writeInt := func(v int64) {
		binary.BigEndian.PutUint64(scratch[:], uint64(v))
		hasher.Write(scratch[:])
	}
	writeBytes := func(data []byte) {
		writeInt(int64(len(data)))
		hasher.Write(data)
	}

	writeInt(entry.Sequence)
	writeInt(entry.Timestamp)
	writeBytes([]byte(entry.Actor))
	writeBytes([]byte(entry.Action))
	writeBytes([]byte(entry.Target))
	writeBytes([]byte(entry.Channel))
	writeBytes(entry.Before)
	writeBytes(entry.After)

	return hasher.Sum(nil)
}
