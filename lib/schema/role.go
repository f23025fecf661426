// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"fmt"

	"github.com/concord-chat/concord/lib/ref"
)

// maxRoleNameLength bounds display names so clients can render them
// without truncation surprises.
const maxRoleNameLength = 100

// RoleContent is the content of an m.concord.role state event. The
// state key carries the role ID; the content carries everything else.
//
// Sequence is the role's creation order within the space, assigned
// once at creation and never changed. It breaks power-level ties
// during permission resolution: earlier-created roles win.
type RoleContent struct {
	Name       string              `json:"name"`
	Color      string              `json:"color,omitempty"`
	PowerLevel int                 `json:"power_level"`
	Base       map[Permission]bool `json:"base,omitempty"`
	Sequence   uint64              `json:"sequence"`
}

// Validate checks the content at the decode boundary. A deleted role
// (state event overwritten with empty content) fails validation on
// the empty name; loaders treat that as a tombstone, not an error.
func (c *RoleContent) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("role has no name")
	}
	if len(c.Name) > maxRoleNameLength {
		return fmt.Errorf("role name %q is %d characters, maximum is %d", c.Name, len(c.Name), maxRoleNameLength)
	}
	if err := validateColor(c.Color); err != nil {
		return err
	}
	if c.PowerLevel < 0 || c.PowerLevel > 100 {
		return fmt.Errorf("role power level %d out of range [0, 100]", c.PowerLevel)
	}
	for permission := range c.Base {
		if !permission.Known() {
			return fmt.Errorf("role base set references unknown permission %q", permission)
		}
	}
	return nil
}

// validateColor accepts an empty color (client default) or a
// "#rrggbb" hex triplet.
func validateColor(color string) error {
	if color == "" {
		return nil
	}
	if len(color) != 7 || color[0] != '#' {
		return fmt.Errorf("role color %q: want #rrggbb", color)
	}
	for i := 1; i < 7; i++ {
		c := color[i]
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') {
			continue
		}
		return fmt.Errorf("role color %q: invalid hex digit %q", color, c)
	}
	return nil
}

// MemberContent is the content of an m.concord.member state event:
// the roles assigned to one user. The state key carries the user ID.
// An absent event, or an empty role list, means the user holds only
// the implicit @everyone role.
type MemberContent struct {
	Roles []ref.RoleID `json:"roles,omitempty"`
}

// Validate checks every assigned role ID parses. Role existence is
// checked by the loader against the hierarchy, not here.
func (c *MemberContent) Validate() error {
	for _, roleID := range c.Roles {
		if _, err := ref.ParseRoleID(roleID.String()); err != nil {
			return fmt.Errorf("member role assignment: %w", err)
		}
	}
	return nil
}
