package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"storefront/config"
	"storefront/internal/redisclient"
	"storefront/internal/service"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		kind   string
		noLock bool
	)

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Create missing inventory and sales report rows and refresh stale ones",
		Long: "Walks the configured report windows ending today and brings every\n" +
			"(product, day) report row up to date. Safe to run repeatedly.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := service.ParseBackfillKind(kind)
			if err != nil {
				return err
			}
			return run(cmd.Context(), k, noLock)
		},
	}

	cmd.Flags().StringVar(&kind, "kind", string(service.BackfillAll), "report to backfill: inventory, sales or all")
	cmd.Flags().BoolVar(&noLock, "no-lock", false, "skip the Redis lock that keeps concurrent backfills apart")
	return cmd
}

func run(ctx context.Context, kind service.BackfillKind, noLock bool) error {
	cfg := config.Load()
	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer util.SyncLogger()
	logger := util.Component("backfill")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.NewStore(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			return err
		}
	}

	var locker service.Locker
	if !noLock {
		rc, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer rc.Close()
		locker = rc
	}

	reports, err := service.NewReportService(db, locker, cfg.Reports)
	if err != nil {
		return err
	}

	results, err := reports.Backfill(ctx, kind)
	for _, r := range results {
		logger.Info("Backfill done",
			zap.String("report", r.Report),
			zap.String("from", r.From),
			zap.String("to", r.To),
			zap.Int64("created", r.Created),
			zap.Int64("updated", r.Updated),
			zap.Duration("duration", r.Duration))
	}
	if err != nil {
		logger.Error("Backfill failed", zap.Error(err))
		return err
	}
	return nil
}
