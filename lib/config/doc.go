// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the Concord moderation tool's YAML
// configuration: homeserver connection, space room, audit database,
// and tuning knobs, with optional per-environment overrides.
package config
