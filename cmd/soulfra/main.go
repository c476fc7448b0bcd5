// Package main provides the soulfra operations CLI: seeding, CSV domain
// import, QR batch generation, ownership recompute, search reindex, and
// newsletter digests.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"soulfra/api/internal/config"
	"soulfra/api/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "soulfra",
		Short: "Soulfra operations CLI",
		Long: `Operational commands for the Soulfra platform.

The API server is a separate binary (cmd/api); this tool covers the
offline jobs: demo seeding, domain CSV import, QR batch generation,
ownership recompute, search reindexing, and the newsletter digest.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(seedCmd())
	cmd.AddCommand(domainsCmd())
	cmd.AddCommand(qrCmd())
	cmd.AddCommand(ownershipCmd())
	cmd.AddCommand(searchCmd())
	cmd.AddCommand(digestCmd())
	return cmd
}

// env bundles the shared handles every subcommand needs.
type env struct {
	cfg   config.Config
	db    *sql.DB
	store *store.SQLiteStore
}

func openEnv(ctx context.Context) (*env, error) {
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := store.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &env{cfg: cfg, db: db, store: store.NewSQLiteStore(db)}, nil
}

func (e *env) close() {
	_ = e.db.Close()
}
