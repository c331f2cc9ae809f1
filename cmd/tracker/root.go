package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"position-tracker/internal/accumulation"
	"position-tracker/internal/api"
	"position-tracker/internal/config"
	"position-tracker/internal/database"
	"position-tracker/internal/logger"
	"position-tracker/internal/portfolio"
	"position-tracker/internal/session"
	"position-tracker/internal/store"
	"position-tracker/internal/strategy"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "tracker",
		Short:        "Position valuation and strategy alert engine",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "./configs", "directory containing config.yml")

	cmd.AddCommand(
		newServeCmd(&configPath),
		newWatchCmd(&configPath),
		newMigrateCmd(&configPath),
		newSessionCmd(&configPath),
	)
	return cmd
}

// app holds the wired components shared by the subcommands.
type app struct {
	cfg   config.Config
	log   *zap.Logger
	store store.Store
	svc   api.Services
}

// bootstrap loads config, builds the logger and opens storage.
func bootstrap(configPath string) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("could not load config: %w", err)
	}

	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		return nil, err
	}
	log.Info("Configuration loaded", zap.String("backend", string(cfg.Storage.Backend)))

	st, err := store.Open(cfg.Storage, log)
	if err != nil {
		return nil, fmt.Errorf("could not open storage: %w", err)
	}

	var db *gorm.DB
	if ds, ok := st.(*database.Store); ok {
		db = ds.DB()
	}
	sessions, err := session.Open(cfg.Storage.Backend, db, time.Duration(cfg.Session.TTLMinutes)*time.Minute, log)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	peaks := strategy.NewPeakTracker(st, log)
	return &app{
		cfg:   cfg,
		log:   log,
		store: st,
		svc: api.Services{
			Catalog:    st,
			Ledger:     portfolio.NewLedger(st, st, peaks, log),
			Valuation:  portfolio.NewValuation(st, st, log),
			Strategies: strategy.NewStrategies(st, st, log),
			Peaks:      peaks,
			Alerts:     strategy.NewGenerator(st, log),
			Trades:     accumulation.NewTracker(st, log),
			Sessions:   sessions,
		},
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.log.Warn("Failed to close storage", zap.Error(err))
	}
	_ = a.log.Sync()
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(log *zap.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-sigchan:
			log.Info("Shutdown signal received, gracefully shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
