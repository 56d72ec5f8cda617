// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/procauth/internal/config"
	"github.com/holomush/procauth/internal/store"
)

// NewMigrateCmd creates the migrate subcommand and its children.
func NewMigrateCmd(deps *AppDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the realm database schema",
		Long: `Apply, roll back or inspect the PostgreSQL realm schema. The database
is taken from realm.database_url, $` + config.EnvDatabaseURL + ` or --realm.database-url.`,
	}
	cmd.PersistentFlags().String("realm.database-url", "", "PostgreSQL connection string (default: $"+config.EnvDatabaseURL+")")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m Migrator) error {
				if err := m.Up(); err != nil {
					return err
				}
				cmd.Println("Migrations completed successfully")
				return nil
			})
		},
	})

	var confirm bool
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back every migration, dropping all users and roles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !confirm {
				return oops.Code("CONFIRMATION_REQUIRED").
					Errorf("migrate down drops every user and role; rerun with --yes")
			}
			return withMigrator(cmd, deps, func(m Migrator) error {
				if err := m.Down(); err != nil {
					return err
				}
				cmd.Println("Realm schema removed")
				return nil
			})
		},
	}
	down.Flags().BoolVar(&confirm, "yes", false, "confirm dropping the realm schema")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m Migrator) error {
				st, err := m.Status()
				if err != nil {
					return err
				}
				_, err = fmt.Fprint(cmd.OutOrStdout(), formatStatus(st))
				return err
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Mark VERSION as applied without running it",
		Long:  `Mark VERSION as applied and clear the dirty flag. Use it to recover after a migration failed partway.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			return withMigrator(cmd, deps, func(m Migrator) error {
				if err := m.Force(version); err != nil {
					return err
				}
				cmd.Printf("Forced schema version %d\n", version)
				return nil
			})
		},
	})

	return cmd
}

// withMigrator opens a migrator for the configured database, runs fn and
// closes it.
func withMigrator(cmd *cobra.Command, deps *AppDeps, fn func(Migrator) error) (err error) {
	deps = deps.withDefaults()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Realm.DatabaseURL == "" {
		return oops.Code(config.CodeConfigInvalid).
			With("key", "realm.database_url").
			Errorf("migrate needs realm.database_url or %s", config.EnvDatabaseURL)
	}

	m, err := deps.NewMigrator(cfg.Realm.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(m)
}

func parseForceVersion(s string) (int, error) {
	version, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, oops.Code(store.CodeInvalidVersion).With("version", s).Wrap(err)
	}
	if version < 0 {
		return 0, oops.Code(store.CodeInvalidVersion).With("version", s).Errorf("version must be non-negative")
	}
	return version, nil
}

func formatStatus(st store.Status) string {
	var b strings.Builder
	if st.Version == 0 {
		b.WriteString("version: none\n")
	} else {
		b.WriteString("version: " + strconv.FormatUint(uint64(st.Version), 10) + " (" + st.Name + ")\n")
	}
	b.WriteString("dirty:   " + strconv.FormatBool(st.Dirty) + "\n")
	if len(st.Pending) == 0 {
		b.WriteString("pending: none\n")
		return b.String()
	}
	pending := make([]string, len(st.Pending))
	for i, v := range st.Pending {
		pending[i] = strconv.FormatUint(uint64(v), 10)
	}
	b.WriteString("pending: " + strings.Join(pending, ", ") + "\n")
	return b.String()
}
