package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"position-tracker/internal/api"
	"position-tracker/internal/config"
	"position-tracker/internal/database"
	"position-tracker/internal/pricefeed"
	"position-tracker/internal/watcher"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := signalContext(a.log)
			defer cancel()

			server := api.NewServer(a.cfg.Server.Port, api.NewRouter(a.svc, a.cfg.Session, a.log), a.log)
			errCh := server.Start()

			select {
			case <-ctx.Done():
			case err := <-errCh:
				if err != nil {
					return err
				}
			}

			shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
			defer stop()
			if err := server.Stop(shutdownCtx); err != nil {
				a.log.Error("API server shutdown failed", zap.Error(err))
				return err
			}
			a.log.Info("API server has been shut down.")
			return nil
		},
	}
}

func newWatchCmd(configPath *string) *cobra.Command {
	var owner string
	var assets []string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll prices and raise strategy alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			opts := watcher.Options{
				OwnerID:  a.cfg.Watcher.OwnerID,
				Assets:   a.cfg.Watcher.Assets,
				Interval: time.Duration(a.cfg.Watcher.Interval) * time.Second,
			}
			if owner != "" {
				opts.OwnerID = owner
			}
			if len(assets) > 0 {
				opts.Assets = assets
			}

			ctx, cancel := signalContext(a.log)
			defer cancel()

			feed := pricefeed.NewClient(a.cfg.PriceFeed, a.log)
			engine := watcher.NewEngine(a.log, opts, feed, a.svc.Catalog, a.svc.Peaks, a.svc.Alerts)
			if err := engine.Run(ctx); err != nil {
				return err
			}
			a.log.Info("Watcher has been shut down.")
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owner id to watch (overrides watcher.owner_id)")
	cmd.Flags().StringSliceVar(&assets, "assets", nil, "asset symbols to watch (overrides watcher.assets)")
	return cmd
}

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			ds, ok := a.store.(*database.Store)
			if !ok {
				a.log.Info("Nothing to migrate for backend", zap.String("backend", string(a.cfg.Storage.Backend)))
				return nil
			}
			if err := database.AutoMigrate(ds.DB()); err != nil {
				return err
			}
			a.log.Info("Schema is up to date.")
			return nil
		},
	}
}

func newSessionCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage bearer tokens",
	}
	cmd.AddCommand(newSessionIssueCmd(configPath))
	return cmd
}

// newSessionIssueCmd prints a fresh token for an owner. Tokens only outlive
// the command on the database backend.
func newSessionIssueCmd(configPath *string) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a bearer token for an owner",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(owner) == "" {
				return fmt.Errorf("--owner is required")
			}
			a, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			if a.cfg.Storage.Backend == config.BackendMemory {
				a.log.Warn("Memory backend: the token is discarded when this command exits")
			}
			tok, err := a.svc.Sessions.Issue(cmd.Context(), owner)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", tok.Token, tok.ExpiresAt.Format(time.RFC3339))
			return err
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owner id the token resolves to")
	return cmd
}
