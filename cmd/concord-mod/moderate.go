// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/concord-chat/concord/cmd/concord-mod/cli"
	"github.com/concord-chat/concord/lib/ref"
	"github.com/concord-chat/concord/moderation"
)

func kickCommand() *cli.Command {
	var common commonFlags
	var reason string

	return &cli.Command{
		Name:    "kick",
		Summary: "Remove a user from the space (they can rejoin).",
		Usage:   "concord-mod kick <user> [--reason <text>]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("kick", pflag.ContinueOnError)
			common.register(flagSet)
			flagSet.StringVar(&reason, "reason", "", "reason recorded in the audit log")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("want <user>, got %d arguments", len(args))
			}
			target, err := ref.ParseUserID(args[0])
			if err != nil {
				return err
			}

			ctx := context.Background()
			app, err := common.connect(ctx)
			if err != nil {
				return err
			}
			defer app.close()

			if err := app.engine.Kick(ctx, app.actor, target, reason); err != nil {
				return err
			}
			fmt.Printf("kicked %s\n", target)
			return nil
		},
	}
}

func banCommand() *cli.Command {
	var common commonFlags
	var reason string
	var duration time.Duration

	return &cli.Command{
		Name:    "ban",
		Summary: "Ban a user, permanently or for a duration.",
		Usage:   "concord-mod ban <user> [--reason <text>] [--duration <d>]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("ban", pflag.ContinueOnError)
			common.register(flagSet)
			flagSet.StringVar(&reason, "reason", "", "reason recorded in the ban and the audit log")
			flagSet.DurationVar(&duration, "duration", 0, "ban length (e.g. 24h); omit for permanent")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("want <user>, got %d arguments", len(args))
			}
			target, err := ref.ParseUserID(args[0])
			if err != nil {
				return err
			}

			ctx := context.Background()
			app, err := common.connect(ctx)
			if err != nil {
				return err
			}
			defer app.close()

			ban, err := app.engine.Ban(ctx, app.actor, target, reason, duration)
			if err != nil {
				return err
			}
			if ban.Permanent() {
				fmt.Printf("banned %s permanently\n", target)
			} else {
				fmt.Printf("banned %s until %s\n", target, ban.Expiry().UTC().Format(time.RFC3339))
			}
			return nil
		},
	}
}

func unbanCommand() *cli.Command {
	var common commonFlags

	return &cli.Command{
		Name:    "unban",
		Summary: "Lift a user's ban.",
		Usage:   "concord-mod unban <user>",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("unban", pflag.ContinueOnError)
			common.register(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("want <user>, got %d arguments", len(args))
			}
			target, err := ref.ParseUserID(args[0])
			if err != nil {
				return err
			}

			ctx := context.Background()
			app, err := common.connect(ctx)
			if err != nil {
				return err
			}
			defer app.close()

			if err := app.engine.Unban(ctx, app.actor, target); err != nil {
				return err
			}
			fmt.Printf("unbanned %s\n", target)
			return nil
		},
	}
}

func bulkCommand() *cli.Command {
	var common commonFlags
	var action, reason string
	var duration time.Duration

	return &cli.Command{
		Name:    "bulk",
		Summary: "Apply a kick or ban to many users at once.",
		Usage:   "concord-mod bulk --action (kick|ban) <user>... [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("bulk", pflag.ContinueOnError)
			common.register(flagSet)
			flagSet.StringVar(&action, "action", "", "kick or ban (required)")
			flagSet.StringVar(&reason, "reason", "", "reason recorded per target")
			flagSet.DurationVar(&duration, "duration", 0, "ban length; omit for permanent")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("at least one target user is required")
			}
			targets := make([]ref.UserID, 0, len(args))
			for _, raw := range args {
				target, err := ref.ParseUserID(raw)
				if err != nil {
					return err
				}
				targets = append(targets, target)
			}

			ctx := context.Background()
			app, err := common.connect(ctx)
			if err != nil {
				return err
			}
			defer app.close()

			results, err := app.engine.ExecuteBulk(ctx, moderation.BulkRequest{
				Actor:    app.actor,
				Action:   moderation.BulkAction(action),
				Targets:  targets,
				Reason:   reason,
				Duration: duration,
			})
			if err != nil {
				return err
			}

			succeeded := 0
			for _, result := range results {
				switch result.Status {
				case moderation.BulkSuccess:
					succeeded++
					fmt.Printf("%s: ok\n", result.Target)
				default:
					fmt.Printf("%s: %s (%s)\n", result.Target, result.Status, result.Message)
				}
			}
			fmt.Printf("%d/%d targets succeeded (%d requested)\n", succeeded, len(results), len(targets))
			return nil
		},
	}
}
