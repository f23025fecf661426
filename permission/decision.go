// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package permission

import "github.com/concord-chat/concord/lib/ref"

// Decision is the outcome of permission resolution. Unlike
// schema.State there is no third value: resolution always lands on
// Allow or Deny.
type Decision uint8

const (
	// Deny is the zero value, so an unresolved or errored check fails
	// closed.
	Deny Decision = iota
	// Allow grants the permission.
	Allow
)

// String returns "allow" or "deny".
func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// Layer identifies which resolution layer produced a decision. It is
// carried in Result for diagnostics and audit detail; resolution
// semantics never depend on it.
type Layer uint8

const (
	// LayerNone means no layer decided (zero value of Result).
	LayerNone Layer = iota
	// LayerUserOverride: a per-user channel override decided.
	LayerUserOverride
	// LayerRoleOverride: a per-role channel override decided.
	LayerRoleOverride
	// LayerRoleBase: a role's base permission set decided.
	LayerRoleBase
	// LayerSpaceDefault: the space-wide power level mapping decided.
	LayerSpaceDefault
	// LayerImplicitDeny: no layer had an opinion.
	LayerImplicitDeny
)

var layerNames = map[Layer]string{
	LayerNone:         "none",
	LayerUserOverride: "user_override",
	LayerRoleOverride: "role_override",
	LayerRoleBase:     "role_base",
	LayerSpaceDefault: "space_default",
	LayerImplicitDeny: "implicit_deny",
}

// String returns the layer's name.
func (l Layer) String() string {
	if name, ok := layerNames[l]; ok {
		return name
	}
	return "unknown"
}

// Result is a resolved decision with its provenance: which layer
// decided, and for the role layers, which role.
type Result struct {
	Decision Decision
	Layer    Layer
	// Role is set when Layer is LayerRoleOverride or LayerRoleBase.
	Role ref.RoleID
}
