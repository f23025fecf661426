// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/concord-chat/concord/cmd/concord-mod/cli"
)

func rootCommand() *cli.Command {
	return &cli.Command{
		Name:    "concord-mod",
		Summary: "Moderate a Concord space: permissions, roles, kicks, bans, audit.",
		Subcommands: []*cli.Command{
			checkCommand(),
			overrideCommand(),
			roleCommand(),
			kickCommand(),
			banCommand(),
			unbanCommand(),
			bulkCommand(),
			auditCommand(),
		},
	}
}
