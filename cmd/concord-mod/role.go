// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"
	"github.com/tidwall/jsonc"

	"github.com/concord-chat/concord/cmd/concord-mod/cli"
	"github.com/concord-chat/concord/lib/ref"
	"github.com/concord-chat/concord/lib/schema"
	"github.com/concord-chat/concord/permission"
)

func roleCommand() *cli.Command {
	return &cli.Command{
		Name:    "role",
		Summary: "Manage the space's role hierarchy.",
		Subcommands: []*cli.Command{
			roleListCommand(),
			roleCreateCommand(),
			roleEditCommand(),
			roleDeleteCommand(),
			roleReorderCommand(),
			roleAssignCommand(),
			roleUnassignCommand(),
			roleImportCommand(),
		},
	}
}

// parseBaseFlags turns repeated "--allow perm" / "--deny perm" flags
// into a base permission map.
func parseBaseFlags(allows, denies []string) (map[schema.Permission]bool, error) {
	if len(allows) == 0 && len(denies) == 0 {
		return nil, nil
	}
	base := make(map[schema.Permission]bool, len(allows)+len(denies))
	for _, raw := range allows {
		perm, err := schema.ParsePermission(raw)
		if err != nil {
			return nil, err
		}
		base[perm] = true
	}
	for _, raw := range denies {
		perm, err := schema.ParsePermission(raw)
		if err != nil {
			return nil, err
		}
		base[perm] = false
	}
	return base, nil
}

func roleListCommand() *cli.Command {
	var common commonFlags

	return &cli.Command{
		Name:    "list",
		Summary: "List roles in authority order.",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("role list", pflag.ContinueOnError)
			common.register(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			ctx := context.Background()
			app, err := common.connect(ctx)
			if err != nil {
				return err
			}
			defer app.close()

			table := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(table, "ROLE\tNAME\tPOWER\tCOLOR\tBASE PERMS")
			for _, role := range app.engine.ListRoles() {
				fmt.Fprintf(table, "%s\t%s\t%d\t%s\t%d\n",
					role.ID, role.Name, role.PowerLevel, role.Color, len(role.Base))
			}
			return table.Flush()
		},
	}
}

func roleCreateCommand() *cli.Command {
	var common commonFlags
	var name, color string
	var position int
	var allows, denies []string

	return &cli.Command{
		Name:    "create",
		Summary: "Create a role at a ladder position (0 = top).",
		Usage:   "concord-mod role create <id> --name <name> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("role create", pflag.ContinueOnError)
			common.register(flagSet)
			flagSet.StringVar(&name, "name", "", "display name (required)")
			flagSet.StringVar(&color, "color", "", "display color (#rrggbb)")
			flagSet.IntVar(&position, "position", -1, "ladder position, 0 = top (default: bottom)")
			flagSet.StringSliceVar(&allows, "allow", nil, "base permission to grant (repeatable)")
			flagSet.StringSliceVar(&denies, "deny", nil, "base permission to refuse (repeatable)")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("want <id>, got %d arguments", len(args))
			}
			id, err := ref.ParseRoleID(args[0])
			if err != nil {
				return err
			}
			base, err := parseBaseFlags(allows, denies)
			if err != nil {
				return err
			}

			ctx := context.Background()
			app, err := common.connect(ctx)
			if err != nil {
				return err
			}
			defer app.close()

			role, err := app.engine.CreateRole(ctx, app.actor, id, name, color, base, position)
			if err != nil {
				return err
			}
			fmt.Printf("created role %s at power %d\n", role.ID, role.PowerLevel)
			return nil
		},
	}
}

func roleEditCommand() *cli.Command {
	var common commonFlags
	var name, color string
	var allows, denies []string

	return &cli.Command{
		Name:    "edit",
		Summary: "Rename, recolor, or replace a role's base permission set.",
		Usage:   "concord-mod role edit <id> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("role edit", pflag.ContinueOnError)
			common.register(flagSet)
			flagSet.StringVar(&name, "name", "", "new display name")
			flagSet.StringVar(&color, "color", "", "new display color (#rrggbb)")
			flagSet.StringSliceVar(&allows, "allow", nil, "base permission to grant (repeatable; replaces the base set)")
			flagSet.StringSliceVar(&denies, "deny", nil, "base permission to refuse (repeatable; replaces the base set)")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("want <id>, got %d arguments", len(args))
			}
			id, err := ref.ParseRoleID(args[0])
			if err != nil {
				return err
			}
			base, err := parseBaseFlags(allows, denies)
			if err != nil {
				return err
			}
			edit := permission.RoleEdit{Base: base}
			if name != "" {
				edit.Name = &name
			}
			if color != "" {
				edit.Color = &color
			}

			ctx := context.Background()
			app, err := common.connect(ctx)
			if err != nil {
				return err
			}
			defer app.close()

			role, err := app.engine.EditRole(ctx, app.actor, id, edit)
			if err != nil {
				return err
			}
			fmt.Printf("updated role %s\n", role.ID)
			return nil
		},
	}
}

func roleDeleteCommand() *cli.Command {
	var common commonFlags

	return &cli.Command{
		Name:    "delete",
		Summary: "Delete a role; holders fall back to their remaining roles.",
		Usage:   "concord-mod role delete <id>",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("role delete", pflag.ContinueOnError)
			common.register(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("want <id>, got %d arguments", len(args))
			}
			id, err := ref.ParseRoleID(args[0])
			if err != nil {
				return err
			}

			ctx := context.Background()
			app, err := common.connect(ctx)
			if err != nil {
				return err
			}
			defer app.close()

			if err := app.engine.DeleteRole(ctx, app.actor, id); err != nil {
				return err
			}
			fmt.Printf("deleted role %s\n", id)
			return nil
		},
	}
}

func roleReorderCommand() *cli.Command {
	var common commonFlags

	return &cli.Command{
		Name:    "reorder",
		Summary: "Move a role to a new ladder position (0 = top).",
		Usage:   "concord-mod role reorder <id> <position>",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("role reorder", pflag.ContinueOnError)
			common.register(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("want <id> <position>, got %d arguments", len(args))
			}
			id, err := ref.ParseRoleID(args[0])
			if err != nil {
				return err
			}
			var position int
			if _, err := fmt.Sscanf(args[1], "%d", &position); err != nil {
				return fmt.Errorf("position %q: %w", args[1], err)
			}

			ctx := context.Background()
			app, err := common.connect(ctx)
			if err != nil {
				return err
			}
			defer app.close()

			role, err := app.engine.ReorderRole(ctx, app.actor, id, position)
			if err != nil {
				return err
			}
			fmt.Printf("moved role %s to power %d\n", role.ID, role.PowerLevel)
			return nil
		},
	}
}

func roleAssignCommand() *cli.Command {
	var common commonFlags

	return &cli.Command{
		Name:    "assign",
		Summary: "Assign a role to a user.",
		Usage:   "concord-mod role assign <id> <user>",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("role assign", pflag.ContinueOnError)
			common.register(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			return runAssignment(&common, args, true)
		},
	}
}

func roleUnassignCommand() *cli.Command {
	var common commonFlags

	return &cli.Command{
		Name:    "unassign",
		Summary: "Remove a role from a user.",
		Usage:   "concord-mod role unassign <id> <user>",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("role unassign", pflag.ContinueOnError)
			common.register(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			return runAssignment(&common, args, false)
		},
	}
}

func runAssignment(common *commonFlags, args []string, assign bool) error {
	if len(args) != 2 {
		return fmt.Errorf("want <id> <user>, got %d arguments", len(args))
	}
	id, err := ref.ParseRoleID(args[0])
	if err != nil {
		return err
	}
	user, err := ref.ParseUserID(args[1])
	if err != nil {
		return err
	}

	ctx := context.Background()
	app, err := common.connect(ctx)
	if err != nil {
		return err
	}
	defer app.close()

	if assign {
		if err := app.engine.AssignRole(ctx, app.actor, user, id); err != nil {
			return err
		}
		fmt.Printf("assigned %s to %s\n", id, user)
		return nil
	}
	if err := app.engine.UnassignRole(ctx, app.actor, user, id); err != nil {
		return err
	}
	fmt.Printf("removed %s from %s\n", id, user)
	return nil
}

// roleSeed is one entry of a role import file. The file is JSONC, so
// seed files can carry comments.
type roleSeed struct {
	ID    ref.RoleID      `json:"id"`
	Name  string          `json:"name"`
	Color string          `json:"color,omitempty"`
	Base  map[string]bool `json:"base,omitempty"`
}

func roleImportCommand() *cli.Command {
	var common commonFlags

	return &cli.Command{
		Name:    "import",
		Summary: "Create roles from a JSONC seed file, top to bottom.",
		Usage:   "concord-mod role import <file>",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("role import", pflag.ContinueOnError)
			common.register(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("want <file>, got %d arguments", len(args))
			}
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var seeds []roleSeed
			if err := json.Unmarshal(jsonc.ToJSON(raw), &seeds); err != nil {
				return fmt.Errorf("parsing %s: %w", args[0], err)
			}

			ctx := context.Background()
			app, err := common.connect(ctx)
			if err != nil {
				return err
			}
			defer app.close()

			// Seeds are ordered highest first; appending each at the
			// bottom preserves the file's order.
			for _, seed := range seeds {
				base := make(map[schema.Permission]bool, len(seed.Base))
				for raw, granted := range seed.Base {
					perm, err := schema.ParsePermission(raw)
					if err != nil {
						return fmt.Errorf("role %s: %w", seed.ID, err)
					}
					base[perm] = granted
				}
				role, err := app.engine.CreateRole(ctx, app.actor, seed.ID, seed.Name, seed.Color, base, -1)
				if err != nil {
					return fmt.Errorf("role %s: %w", seed.ID, err)
				}
				fmt.Printf("created role %s at power %d\n", role.ID, role.PowerLevel)
			}
			return nil
		},
	}
}
