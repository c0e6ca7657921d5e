// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package main

import (
	"fmt"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/accountd/accountd/internal/account/sqlite"
	"github.com/accountd/accountd/internal/config"
	"github.com/accountd/accountd/internal/store"
)

// NewMigrateCmd creates the migrate command group.
func NewMigrateCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the account database schema",
		Long: `Apply or roll back the embedded PostgreSQL migrations.
SQLite databases apply their schema when opened, so only "up" and "status" apply to them.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd, opts, "up", func(m *store.Migrator) error { return m.Up() })
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd, opts, "down", func(m *store.Migrator) error { return m.Down() })
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "steps <n>",
		Short: "Apply (n > 0) or roll back (n < 0) n migrations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseVersionArg(args[0])
			if err != nil {
				return err
			}
			return runMigrate(cmd, opts, "steps", func(m *store.Migrator) error { return m.Steps(n) })
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "force <version>",
		Short: "Mark a version as applied without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseVersionArg(args[0])
			if err != nil {
				return err
			}
			return runMigrate(cmd, opts, "force", func(m *store.Migrator) error { return m.Force(v) })
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrateStatus(cmd, opts)
		},
	})

	return cmd
}

// parseVersionArg parses a migration version or step count.
// Sscanf stops at the first non-digit, so "3abc" yields 3.
func parseVersionArg(s string) (int, error) {
	var v int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &v); err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Wrap(err)
	}
	return v, nil
}

func loadDatabaseURL(cmd *cobra.Command, opts *globalOptions) (string, error) {
	cfg, err := config.Load(opts.configFile, cmd.Flags())
	if err != nil {
		return "", err
	}
	if err := cfg.RequireDatabase(); err != nil {
		return "", err
	}
	return cfg.DatabaseURL, nil
}

func runMigrate(cmd *cobra.Command, opts *globalOptions, op string, apply func(*store.Migrator) error) error {
	databaseURL, err := loadDatabaseURL(cmd, opts)
	if err != nil {
		return err
	}

	if sqlite.IsSQLiteURL(databaseURL) {
		if op != "up" {
			return oops.Code("MIGRATION_UNSUPPORTED").
				With("operation", op).
				Errorf("sqlite databases only support migrate up")
		}
		db, err := sqlite.Open(cmd.Context(), databaseURL)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		cmd.Println("SQLite schema is up to date")
		return nil
	}

	migrator, err := store.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = migrator.Close() }()

	cmd.Printf("Running migrate %s...\n", op)
	if err := apply(migrator); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", op).Wrap(err)
	}

	version, dirty, err := migrator.Version()
	if err != nil {
		return err
	}
	cmd.Printf("Schema version %d (dirty: %t)\n", version, dirty)
	return nil
}

func runMigrateStatus(cmd *cobra.Command, opts *globalOptions) error {
	databaseURL, err := loadDatabaseURL(cmd, opts)
	if err != nil {
		return err
	}

	if sqlite.IsSQLiteURL(databaseURL) {
		cmd.Println("SQLite schema is applied when the database is opened")
		return nil
	}

	migrator, err := store.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = migrator.Close() }()

	st, err := migrator.Status()
	if err != nil {
		return err
	}

	cmd.Printf("Version: %d\n", st.Version)
	if st.Dirty {
		cmd.Println("State:   dirty (fix manually, then run migrate force)")
	}
	for _, name := range st.Applied {
		cmd.Printf("  [x] %s\n", name)
	}
	for _, name := range st.Pending {
		cmd.Printf("  [ ] %s\n", name)
	}
	return nil
}
