// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

// Package schema defines the typed contents of Concord's custom
// Matrix state events (m.concord.*) plus the typed view of the
// standard m.room.power_levels event.
//
// Every content type validates itself at the decode boundary with a
// Validate method. Code that loads room state parses the raw JSON
// into these types, calls Validate, and discards events that fail —
// malformed state never reaches the permission or moderation layers.
//
// The package also defines the closed permission registry and the
// tri-state override State, since both appear directly in event
// contents.
package schema
