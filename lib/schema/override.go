// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import "fmt"

// OverrideContent is the content of an m.concord.role_override or
// m.concord.user_override state event: one channel's tri-state map
// for one target. The state key carries the channel and target (see
// OverrideStateKey).
//
// An entry set to Inherit carries no information — writers drop such
// entries before sending, and an event whose map becomes empty is
// overwritten with empty content (a tombstone).
type OverrideContent struct {
	States map[Permission]State `json:"states,omitempty"`
}

// Validate checks the content at the decode boundary: every
// permission must be in the registry and every state must be one of
// the three defined values.
func (c *OverrideContent) Validate() error {
	for permission, state := range c.States {
		if !permission.Known() {
			return fmt.Errorf("override references unknown permission %q", permission)
		}
		if !state.Valid() {
			return fmt.Errorf("override for %q has invalid state %d", permission, uint8(state))
		}
	}
	return nil
}

// Normalize drops redundant Inherit entries. Returns true if any
// entries remain.
func (c *OverrideContent) Normalize() bool {
	for permission, state := range c.States {
		if state == StateInherit {
			delete(c.States, permission)
		}
	}
	return len(c.States) > 0
}
