package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ecoms/ecoms_account/internal/config"
	"github.com/ecoms/ecoms_account/internal/infra"
	"github.com/ecoms/ecoms_account/internal/session"
)

// NewPruneSessionsCmd creates the prune-sessions subcommand. It deletes
// expired sessions from the Postgres backend; Redis expires keys by itself.
func NewPruneSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune-sessions",
		Short: "Delete expired sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.Session.Backend != config.SessionBackendPostgres {
				cmd.Printf("session backend %s expires sessions on its own\n", cfg.Session.Backend)
				return nil
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			db, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL, 1)
			if err != nil {
				return err
			}
			defer db.Close()

			return prune(ctx, cmd, session.NewPostgresStore(db, session.Policy{TTL: cfg.Session.TTL}))
		},
	}
}

func prune(ctx context.Context, cmd *cobra.Command, store session.Store) error {
	n, err := store.Prune(ctx)
	if err != nil {
		return err
	}
	cmd.Printf("pruned %d expired sessions\n", n)
	return nil
}
