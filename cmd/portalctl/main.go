package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/maintenance-portal-api/pkg/config"
	"github.com/noah-isme/maintenance-portal-api/pkg/database"
	"github.com/noah-isme/maintenance-portal-api/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "portalctl: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "portalctl",
		Short: "Maintenance portal operations CLI",
		Long: `portalctl runs operational tasks against the maintenance portal database and proof storage:
schema migrations, orphaned proof sweeps and offline report exports.`,
		SilenceUsage: true,
	}
	cmd.AddCommand(
		newMigrateCmd(),
		newSweepCmd(),
		newExportCmd(),
	)
	return cmd
}

// runtimeDeps holds the shared pieces every subcommand needs.
type runtimeDeps struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *sqlx.DB
}

func (d *runtimeDeps) Close() {
	if d.db != nil {
		_ = d.db.Close()
	}
	_ = d.logger.Sync()
}

func bootstrap(ctx context.Context) (*runtimeDeps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return &runtimeDeps{cfg: cfg, logger: logr, db: db}, nil
}
