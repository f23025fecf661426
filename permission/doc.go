// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

// Package permission implements Concord's layered permission model:
// the role hierarchy, the per-channel override stores, the power
// level mapper, and the resolver that combines them.
//
// Resolution is pure and side-effect free. For a given (actor,
// channel, permission) the resolver walks the layers in order — user
// override, role override, role base, space default — and the first
// layer with an opinion decides. Within the role layers the actor's
// highest-powered role wins, with ties broken by creation sequence
// (earlier role wins). The result is always Allow or Deny, never
// Inherit.
//
// All stores are safe for concurrent use. Writers come through the
// engine package, which serializes mutations per channel; readers
// (the resolver) take snapshot reads and never block on Matrix I/O.
package permission
