// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package permission

import (
	"maps"

	"github.com/concord-chat/concord/lib/ref"
	"github.com/concord-chat/concord/lib/schema"
)

// Role is the in-memory form of one role. Instances handed out by the
// Hierarchy are copies; mutating one never affects the store.
type Role struct {
	ID         ref.RoleID
	Name       string
	Color      string
	PowerLevel int
	// Sequence is the creation order within the space. It breaks
	// power-level ties: the earlier-created role wins.
	Sequence uint64
	// Base maps permissions the role has an explicit opinion about.
	// true grants, false refuses. Absent means no opinion — the next
	// resolution layer decides.
	Base map[schema.Permission]bool
}

// clone returns a deep copy.
func (r Role) clone() Role {
	r.Base = maps.Clone(r.Base)
	return r
}

// ranksAbove reports whether r outranks other: higher power level, or
// equal power level and earlier creation.
func (r Role) ranksAbove(other Role) bool {
	if r.PowerLevel != other.PowerLevel {
		return r.PowerLevel > other.PowerLevel
	}
	return r.Sequence < other.Sequence
}

// Content converts the role to its state event form.
func (r Role) Content() schema.RoleContent {
	return schema.RoleContent{
		Name:       r.Name,
		Color:      r.Color,
		PowerLevel: r.PowerLevel,
		Base:       maps.Clone(r.Base),
		Sequence:   r.Sequence,
	}
}

// RoleFromContent builds a Role from a validated state event content
// and its state key.
func RoleFromContent(id ref.RoleID, content schema.RoleContent) Role {
	return Role{
		ID:         id,
		Name:       content.Name,
		Color:      content.Color,
		PowerLevel: content.PowerLevel,
		Sequence:   content.Sequence,
		Base:       maps.Clone(content.Base),
	}
}

// DefaultEveryoneBase is the base permission set a fresh @everyone
// role starts with: ordinary participation, no moderation.
func DefaultEveryoneBase() map[schema.Permission]bool {
	return map[schema.Permission]bool{
		schema.PermissionViewChannel:  true,
		schema.PermissionSendMessages: true,
		schema.PermissionEmbedLinks:   true,
		schema.PermissionAttachFiles:  true,
		schema.PermissionAddReactions: true,
		schema.PermissionCreateInvite: true,
	}
}
