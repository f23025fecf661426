// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package permission

import (
	"github.com/concord-chat/concord/lib/ref"
	"github.com/concord-chat/concord/lib/schema"
)

// Tier is a named band of the Matrix power level scale. Concord's UI
// talks in tiers; the wire talks in numbers.
type Tier int

const (
	// TierMember is the default tier (power level 0-49).
	TierMember Tier = 0
	// TierModerator covers power levels 50-99.
	TierModerator Tier = 50
	// TierAdmin is power level 100.
	TierAdmin Tier = 100
)

// String returns the tier's display name.
func (t Tier) String() string {
	switch t {
	case TierAdmin:
		return "admin"
	case TierModerator:
		return "moderator"
	default:
		return "member"
	}
}

// Level returns the lowest power level in the tier.
func (t Tier) Level() int { return int(t) }

// TierForLevel maps a numeric power level to its tier.
func TierForLevel(level int) Tier {
	switch {
	case level >= int(TierAdmin):
		return TierAdmin
	case level >= int(TierModerator):
		return TierModerator
	default:
		return TierMember
	}
}

// Mapper derives space-wide default decisions from the space room's
// m.room.power_levels thresholds. It is the last real resolution
// layer: when no override and no role base has an opinion, the
// actor's power level against the relevant threshold decides.
//
// The zero Mapper denies everything — a space whose power levels have
// not been loaded fails closed.
type Mapper struct {
	loaded bool

	users        map[string]int
	usersDefault int

	kick          int
	ban           int
	redact        int
	invite        int
	eventsDefault int
	stateDefault  int
}

// NewMapper builds a Mapper from a loaded power levels event.
func NewMapper(powerLevels *schema.PowerLevels) Mapper {
	users := make(map[string]int, len(powerLevels.Users))
	for userID, level := range powerLevels.Users {
		users[userID] = level
	}
	usersDefault := 0
	if powerLevels.UsersDefault != nil {
		usersDefault = *powerLevels.UsersDefault
	}
	return Mapper{
		loaded:        true,
		users:         users,
		usersDefault:  usersDefault,
		kick:          powerLevels.KickLevel(),
		ban:           powerLevels.BanLevel(),
		redact:        powerLevels.RedactLevel(),
		invite:        powerLevels.InviteLevel(),
		eventsDefault: powerLevels.EventsDefaultLevel(),
		stateDefault:  powerLevels.StateDefaultLevel(),
	}
}

// Loaded reports whether the mapper has real thresholds behind it.
func (m Mapper) Loaded() bool { return m.loaded }

// UserLevel returns the explicit Matrix power level for a user, or
// the users_default fallback. This covers users (like the space
// owner) who hold Matrix power without holding a Concord role.
func (m Mapper) UserLevel(user ref.UserID) int {
	if level, ok := m.users[user.String()]; ok {
		return level
	}
	return m.usersDefault
}

// Threshold returns the power level required for a permission under
// the space defaults.
func (m Mapper) Threshold(permission schema.Permission) int {
	switch permission {
	case schema.PermissionKickMembers, schema.PermissionManageNicknames:
		return m.kick
	case schema.PermissionBanMembers:
		return m.ban
	case schema.PermissionManageMessages:
		return m.redact
	case schema.PermissionCreateInvite:
		return m.invite
	case schema.PermissionManageChannels, schema.PermissionManageRoles:
		return m.stateDefault
	case schema.PermissionAdministrator:
		return TierAdmin.Level()
	default:
		// Ordinary participation permissions (view, send, react, ...).
		return m.eventsDefault
	}
}

// Default returns the space-wide decision for a permission at the
// given power level. An unloaded mapper always denies.
func (m Mapper) Default(permission schema.Permission, level int) Decision {
	if !m.loaded {
		return Deny
	}
	if level >= m.Threshold(permission) {
		return Allow
	}
	return Deny
}
