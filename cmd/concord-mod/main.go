// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

// concord-mod is the operator CLI for a Concord space: permission
// checks, channel overrides, role management, moderation actions, and
// the audit log.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return rootCommand().Execute(os.Args[1:])
}
