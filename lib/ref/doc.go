// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides validated identifier value types for Concord:
// Matrix user IDs, room IDs, room aliases, event types, and Concord
// role IDs.
//
// Raw strings are parsed into these types at system boundaries (config
// files, CLI arguments, Matrix API responses, state event contents).
// Past the boundary, code passes the value types around and never
// re-validates. Zero values are invalid; use IsZero to check.
package ref
