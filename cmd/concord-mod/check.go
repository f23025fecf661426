// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/concord-chat/concord/cmd/concord-mod/cli"
	"github.com/concord-chat/concord/lib/ref"
	"github.com/concord-chat/concord/lib/schema"
)

func checkCommand() *cli.Command {
	var common commonFlags
	var channel string

	return &cli.Command{
		Name:    "check",
		Summary: "Resolve one permission for one user in one channel.",
		Usage:   "concord-mod check <user> <permission> --channel <room> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("check", pflag.ContinueOnError)
			common.register(flagSet)
			flagSet.StringVar(&channel, "channel", "", "channel room ID (required)")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("want <user> <permission>, got %d arguments", len(args))
			}
			user, err := ref.ParseUserID(args[0])
			if err != nil {
				return err
			}
			perm, err := schema.ParsePermission(args[1])
			if err != nil {
				return err
			}
			channelID, err := ref.ParseRoomID(channel)
			if err != nil {
				return fmt.Errorf("--channel: %w", err)
			}

			ctx := context.Background()
			app, err := common.connect(ctx)
			if err != nil {
				return err
			}
			defer app.close()

			result, err := app.engine.CheckPermission(user, channelID, perm)
			if err != nil {
				return err
			}
			fmt.Printf("%s\t%s in %s: %s (decided by %s", user, perm, channelID, result.Decision, result.Layer)
			if result.Role != "" {
				fmt.Printf(" via role %s", result.Role)
			}
			fmt.Println(")")
			return nil
		},
	}
}
