// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"fmt"
	"sort"
)

// Permission names one entry in the closed permission registry.
// Permission names are stable wire strings: they appear in role base
// permission sets, override maps, and audit entries.
//
// The registry is closed — every name flowing in from state events,
// API calls, or the CLI is checked against it, and unknown names are
// rejected at the boundary rather than silently resolving to Deny.
type Permission string

// The permission registry. Grouped by the surface they gate.
const (
	// Channel access and messaging.
	PermissionViewChannel     Permission = "view_channel"
	PermissionSendMessages    Permission = "send_messages"
	PermissionEmbedLinks      Permission = "embed_links"
	PermissionAttachFiles     Permission = "attach_files"
	PermissionAddReactions    Permission = "add_reactions"
	PermissionMentionEveryone Permission = "mention_everyone"
	PermissionCreateInvite    Permission = "create_invite"

	// Moderation.
	PermissionManageMessages Permission = "manage_messages"
	PermissionKickMembers    Permission = "kick_members"
	PermissionBanMembers     Permission = "ban_members"
	PermissionManageNicknames Permission = "manage_nicknames"

	// Administration.
	PermissionManageChannels Permission = "manage_channels"
	PermissionManageRoles    Permission = "manage_roles"
	PermissionAdministrator  Permission = "administrator"
)

// registry is the closed set of known permissions.
var registry = map[Permission]bool{
	PermissionViewChannel:     true,
	PermissionSendMessages:    true,
	PermissionEmbedLinks:      true,
	PermissionAttachFiles:     true,
	PermissionAddReactions:    true,
	PermissionMentionEveryone: true,
	PermissionCreateInvite:    true,
	PermissionManageMessages:  true,
	PermissionKickMembers:     true,
	PermissionBanMembers:      true,
	PermissionManageNicknames: true,
	PermissionManageChannels:  true,
	PermissionManageRoles:     true,
	PermissionAdministrator:   true,
}

// String returns the permission's wire name.
func (p Permission) String() string { return string(p) }

// Known reports whether p is in the registry.
func (p Permission) Known() bool { return registry[p] }

// ParsePermission checks a raw name against the registry.
func ParsePermission(raw string) (Permission, error) {
	p := Permission(raw)
	if !p.Known() {
		return "", fmt.Errorf("unknown permission %q", raw)
	}
	return p, nil
}

// AllPermissions returns every registered permission in sorted order.
func AllPermissions() []Permission {
	all := make([]Permission, 0, len(registry))
	for p := range registry {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })
	return all
}
