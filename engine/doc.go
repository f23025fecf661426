// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

// Package engine ties Concord's permission model, moderation service,
// and audit log together behind one facade over a live space.
//
// The Engine owns the in-memory stores (role hierarchy, override
// maps, ban records) and keeps them consistent with the space room's
// state events: every mutation updates memory and writes the
// corresponding m.concord.* event back to the homeserver, and
// LoadState rebuilds everything from a single room state fetch.
//
// Reads (CheckPermission, ListRoles, ListOverrides) are lock-free on
// the engine itself; mutations serialize per concern so the role
// ladder and each channel's override events stay internally
// consistent.
package engine
