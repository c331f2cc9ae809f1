// Package watcher polls the price feed and feeds observed prices into the
// peak tracker and the alert generator.
package watcher

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"position-tracker/internal/models"
	"position-tracker/internal/pricefeed"
	"position-tracker/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PeakObserver records observed prices.
type PeakObserver interface {
	Observe(ctx context.Context, ownerID string, assetID uint, price decimal.Decimal, at time.Time) (*models.PricePeak, error)
}

// AlertGenerator evaluates strategies against a price.
type AlertGenerator interface {
	Generate(ctx context.Context, ownerID string, assetID uint, price decimal.Decimal) ([]models.StrategyAlert, error)
}

// Options configures an Engine.
type Options struct {
	OwnerID  string
	Assets   []string
	Interval time.Duration
}

// Engine runs the polling loop for one owner.
type Engine struct {
	logger  *zap.Logger
	opts    Options
	feed    pricefeed.Feed
	catalog store.Catalog
	peaks   PeakObserver
	alerts  AlertGenerator
	now     func() time.Time

	assets map[string]uint
}

// NewEngine creates a watcher engine.
func NewEngine(logger *zap.Logger, opts Options, feed pricefeed.Feed, catalog store.Catalog, peaks PeakObserver, alerts AlertGenerator) *Engine {
	return &Engine{
		logger:  logger.Named("watcher"),
		opts:    opts,
		feed:    feed,
		catalog: catalog,
		peaks:   peaks,
		alerts:  alerts,
		now:     time.Now,
		assets:  make(map[string]uint),
	}
}

// Run checks once immediately and then on every interval until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("Initializing watcher...")
	if err := e.initialize(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(e.opts.Interval)
	defer ticker.Stop()

	e.logger.Info("Starting watch loop",
		zap.String("owner_id", e.opts.OwnerID),
		zap.Int("assets", len(e.assets)),
		zap.Duration("interval", e.opts.Interval))

	for {
		if _, err := e.Tick(ctx); err != nil {
			e.logger.Error("Watch cycle failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			e.logger.Info("Stopping watcher...")
			return nil
		case <-ticker.C:
		}
	}
}

// initialize resolves the configured symbols to catalog ids.
func (e *Engine) initialize(ctx context.Context) error {
	if strings.TrimSpace(e.opts.OwnerID) == "" {
		return fmt.Errorf("watcher owner id is required")
	}
	if len(e.opts.Assets) == 0 {
		return fmt.Errorf("watcher needs at least one asset")
	}
	if e.opts.Interval <= 0 {
		return fmt.Errorf("watcher interval must be positive, got %s", e.opts.Interval)
	}
	for _, symbol := range e.opts.Assets {
		asset, err := e.catalog.FindAssetBySymbol(ctx, symbol)
		if err != nil {
			return fmt.Errorf("could not resolve asset %s: %w", symbol, err)
		}
		e.assets[asset.Symbol] = asset.ID
	}
	return nil
}

// Tick fetches prices once and evaluates every watched asset concurrently.
// It returns the alerts created in this cycle.
func (e *Engine) Tick(ctx context.Context) ([]models.StrategyAlert, error) {
	symbols := make([]string, 0, len(e.assets))
	for symbol := range e.assets {
		symbols = append(symbols, symbol)
	}

	prices, err := e.feed.GetPrices(ctx, symbols)
	if err != nil {
		return nil, fmt.Errorf("could not get prices: %w", err)
	}
	at := e.now()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created []models.StrategyAlert
	)
	for symbol, assetID := range e.assets {
		price, ok := prices[symbol]
		if !ok {
			e.logger.Warn("No price for watched asset", zap.String("asset", symbol))
			continue
		}

		wg.Add(1)
		go func(symbol string, assetID uint, price decimal.Decimal) {
			defer wg.Done()
			l := e.logger.With(zap.String("asset", symbol), zap.Stringer("price", price))

			if _, err := e.peaks.Observe(ctx, e.opts.OwnerID, assetID, price, at); err != nil {
				l.Warn("Failed to record price peak", zap.Error(err))
			}
			alerts, err := e.alerts.Generate(ctx, e.opts.OwnerID, assetID, price)
			if err != nil {
				l.Error("Alert check failed", zap.Error(err))
				return
			}
			for _, a := range alerts {
				l.Info("Alert raised", zap.Uint("alert_id", a.ID), zap.String("message", a.Message))
			}

			mu.Lock()
			created = append(created, alerts...)
			mu.Unlock()
		}(symbol, assetID, price)
	}
	wg.Wait()

	e.logger.Debug("Watch cycle complete", zap.Int("alerts", len(created)))
	return created, nil
}
