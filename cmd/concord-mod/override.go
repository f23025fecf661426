// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/concord-chat/concord/cmd/concord-mod/cli"
	"github.com/concord-chat/concord/lib/ref"
	"github.com/concord-chat/concord/lib/schema"
	"github.com/concord-chat/concord/permission"
)

func overrideCommand() *cli.Command {
	return &cli.Command{
		Name:    "override",
		Summary: "Manage channel permission overrides.",
		Subcommands: []*cli.Command{
			overrideSetCommand(),
			overrideCycleCommand(),
			overrideClearCommand(),
			overrideListCommand(),
		},
	}
}

// overrideTarget parses the mutually exclusive --role / --user pair.
type overrideTarget struct {
	role string
	user string
}

func (t *overrideTarget) register(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&t.role, "role", "", "target role ID")
	flagSet.StringVar(&t.user, "user", "", "target user ID")
}

func (t *overrideTarget) validate() error {
	if (t.role == "") == (t.user == "") {
		return fmt.Errorf("exactly one of --role or --user is required")
	}
	return nil
}

func overrideSetCommand() *cli.Command {
	var common commonFlags
	var target overrideTarget
	var channel string

	return &cli.Command{
		Name:    "set",
		Summary: "Directly set one override entry to inherit, allow, or deny.",
		Usage:   "concord-mod override set <permission> <state> --channel <room> (--role <id> | --user <id>)",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("override set", pflag.ContinueOnError)
			common.register(flagSet)
			target.register(flagSet)
			flagSet.StringVar(&channel, "channel", "", "channel room ID (required)")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("want <permission> <state>, got %d arguments", len(args))
			}
			if err := target.validate(); err != nil {
				return err
			}
			perm, err := schema.ParsePermission(args[0])
			if err != nil {
				return err
			}
			state, err := schema.ParseState(args[1])
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

			if target.role != "" {
				roleID, err := ref.ParseRoleID(target.role)
				if err != nil {
					return err
				}
				if err := app.engine.SetRoleOverride(ctx, app.actor, channelID, roleID, perm, state); err != nil {
					return err
				}
				fmt.Printf("role %s: %s = %s in %s\n", roleID, perm, state, channelID)
				return nil
			}
			userID, err := ref.ParseUserID(target.user)
			if err != nil {
				return err
			}
			if err := app.engine.SetUserOverride(ctx, app.actor, channelID, userID, perm, state); err != nil {
				return err
			}
			fmt.Printf("user %s: %s = %s in %s\n", userID, perm, state, channelID)
			return nil
		},
	}
}

func overrideCycleCommand() *cli.Command {
	var common commonFlags
	var target overrideTarget
	var channel string

	return &cli.Command{
		Name:    "cycle",
		Summary: "Advance one entry through inherit -> allow -> deny -> inherit.",
		Usage:   "concord-mod override cycle <permission> --channel <room> (--role <id> | --user <id>)",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("override cycle", pflag.ContinueOnError)
			common.register(flagSet)
			target.register(flagSet)
			flagSet.StringVar(&channel, "channel", "", "channel room ID (required)")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("want <permission>, got %d arguments", len(args))
			}
			if err := target.validate(); err != nil {
				return err
			}
			perm, err := schema.ParsePermission(args[0])
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

			var next schema.State
			if target.role != "" {
				roleID, err := ref.ParseRoleID(target.role)
				if err != nil {
					return err
				}
				if next, err = app.engine.CycleRoleOverride(ctx, app.actor, channelID, roleID, perm); err != nil {
					return err
				}
			} else {
				userID, err := ref.ParseUserID(target.user)
				if err != nil {
					return err
				}
				if next, err = app.engine.CycleUserOverride(ctx, app.actor, channelID, userID, perm); err != nil {
					return err
				}
			}
			fmt.Printf("%s is now %s\n", perm, next)
			return nil
		},
	}
}

func overrideClearCommand() *cli.Command {
	var common commonFlags
	var target overrideTarget
	var channel string

	return &cli.Command{
		Name:    "clear",
		Summary: "Remove a target's whole override map in a channel.",
		Usage:   "concord-mod override clear --channel <room> (--role <id> | --user <id>)",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("override clear", pflag.ContinueOnError)
			common.register(flagSet)
			target.register(flagSet)
			flagSet.StringVar(&channel, "channel", "", "channel room ID (required)")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("unexpected arguments: %v", args)
			}
			if err := target.validate(); err != nil {
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

			if target.role != "" {
				roleID, err := ref.ParseRoleID(target.role)
				if err != nil {
					return err
				}
				if err := app.engine.ClearRoleOverride(ctx, app.actor, channelID, roleID); err != nil {
					return err
				}
				fmt.Printf("cleared overrides for role %s in %s\n", roleID, channelID)
				return nil
			}
			userID, err := ref.ParseUserID(target.user)
			if err != nil {
				return err
			}
			if err := app.engine.ClearUserOverride(ctx, app.actor, channelID, userID); err != nil {
				return err
			}
			fmt.Printf("cleared overrides for %s in %s\n", userID, channelID)
			return nil
		},
	}
}

func overrideListCommand() *cli.Command {
	var common commonFlags
	var channel string

	return &cli.Command{
		Name:    "list",
		Summary: "List every override in a channel.",
		Usage:   "concord-mod override list --channel <room>",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("override list", pflag.ContinueOnError)
			common.register(flagSet)
			flagSet.StringVar(&channel, "channel", "", "channel room ID (required)")
			return flagSet
		},
		Run: func(args []string) error {
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

			entries := app.engine.ListOverrides(channelID)
			if len(entries) == 0 {
				fmt.Printf("no overrides in %s\n", channelID)
				return nil
			}
			printOverrides(entries)
			return nil
		},
	}
}

func printOverrides(entries []permission.OverrideEntry) {
	table := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(table, "KIND\tTARGET\tPERMISSION\tSTATE")
	for _, entry := range entries {
		perms := make([]schema.Permission, 0, len(entry.States))
		for perm := range entry.States {
			perms = append(perms, perm)
		}
		sort.Slice(perms, func(i, j int) bool { return perms[i] < perms[j] })
		for _, perm := range perms {
			fmt.Fprintf(table, "%s\t%s\t%s\t%s\n", entry.Kind, entry.Target, perm, entry.States[perm])
		}
	}
	table.Flush()
}
