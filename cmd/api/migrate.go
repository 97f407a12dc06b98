package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/ecoms/ecoms_account/internal/store"
)

// NewMigrateCmd creates the migrate subcommand and its children.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply all pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(func(m *store.Migrator) error {
				if err := m.Up(); err != nil {
					return err
				}
				return printVersion(cmd, m)
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back every migration (drops all tables)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(func(m *store.Migrator) error {
				if err := m.Down(); err != nil {
					return err
				}
				return printVersion(cmd, m)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "steps N",
		Short: "Apply N migrations up (N > 0) or down (N < 0)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil || n == 0 {
				return fmt.Errorf("steps must be a non-zero integer, got %q", args[0])
			}
			return withMigrator(func(m *store.Migrator) error {
				if err := m.Steps(n); err != nil {
					return err
				}
				return printVersion(cmd, m)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(func(m *store.Migrator) error {
				return printVersion(cmd, m)
			})
		},
	})

	return cmd
}

func withMigrator(fn func(m *store.Migrator) error) (err error) {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("DATABASE_URL environment variable is required")
	}

	m, err := store.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); err == nil {
			err = closeErr
		}
	}()
	return fn(m)
}

func printVersion(cmd *cobra.Command, m *store.Migrator) error {
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	if dirty {
		cmd.Printf("schema version %d (dirty)\n", version)
		return nil
	}
	cmd.Printf("schema version %d\n", version)
	return nil
}
