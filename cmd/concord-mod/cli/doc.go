// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the small command tree used by concord-mod:
// subcommand dispatch, pflag parsing, and structured help output.
package cli
