// Package pricefeed reads current USD prices from a public ticker API.
package pricefeed

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"position-tracker/internal/config"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const maxAttempts = 3

// Feed is what the watcher needs from a price source.
type Feed interface {
	GetPrice(ctx context.Context, asset string) (decimal.Decimal, error)
	GetPrices(ctx context.Context, assets []string) (map[string]decimal.Decimal, error)
}

// Client talks to a Binance-compatible /ticker/price endpoint. Prices quoted
// in a USD stablecoin are taken as USD.
type Client struct {
	client  *resty.Client
	quote   string
	logger  *zap.Logger
	limiter *rate.Limiter
	backoff func(attempt int) time.Duration
}

var _ Feed = (*Client)(nil)

// NewClient creates a ticker client from configuration.
func NewClient(cfg config.PriceFeed, logger *zap.Logger) *Client {
	logger = logger.Named("pricefeed")
	logger.Info("Using price feed", zap.String("base_url", cfg.BaseURL), zap.String("quote", cfg.Quote))

	return &Client{
		client:  resty.New().SetBaseURL(cfg.BaseURL).SetTimeout(10 * time.Second),
		quote:   strings.ToUpper(cfg.Quote),
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst),
		backoff: exponentialBackoff,
	}
}

// exponentialBackoff waits 1s, 2s, 4s between attempts.
func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))) * time.Second
}

type tickerPrice struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

func (c *Client) symbol(asset string) string {
	return strings.ToUpper(strings.TrimSpace(asset)) + c.quote
}

// GetPrice fetches the current price of one asset.
func (c *Client) GetPrice(ctx context.Context, asset string) (decimal.Decimal, error) {
	symbol := c.symbol(asset)
	req := c.client.R().
		SetContext(ctx).
		SetQueryParam("symbol", symbol).
		SetResult(&tickerPrice{})

	resp, err := c.fetch(ctx, "/ticker/price", req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get price for %s: %w", symbol, err)
	}
	return parsePrice(resp.Result().(*tickerPrice))
}

// GetPrices fetches all tickers in one call and returns the requested
// assets keyed by asset symbol. Assets the feed does not list are omitted.
func (c *Client) GetPrices(ctx context.Context, assets []string) (map[string]decimal.Decimal, error) {
	var tickers []tickerPrice
	req := c.client.R().
		SetContext(ctx).
		SetResult(&tickers)

	resp, err := c.fetch(ctx, "/ticker/price", req)
	if err != nil {
		return nil, fmt.Errorf("failed to get ticker prices: %w", err)
	}

	bySymbol := make(map[string]*tickerPrice)
	for _, t := range *resp.Result().(*[]tickerPrice) {
		bySymbol[t.Symbol] = &t
	}

	prices := make(map[string]decimal.Decimal, len(assets))
	for _, asset := range assets {
		t, ok := bySymbol[c.symbol(asset)]
		if !ok {
			c.logger.Warn("Asset not listed by price feed", zap.String("asset", asset))
			continue
		}
		price, err := parsePrice(t)
		if err != nil {
			return nil, err
		}
		prices[strings.ToUpper(strings.TrimSpace(asset))] = price
	}
	return prices, nil
}

func parsePrice(t *tickerPrice) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(t.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid price %q for %s: %w", t.Price, t.Symbol, err)
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("non-positive price %s for %s", price, t.Symbol)
	}
	return price, nil
}

// fetch runs req under the rate limiter. Throttling (429, 418), 5xx answers
// and transport errors are tried again up to maxAttempts times; any other
// error response is returned at once.
func (c *Client) fetch(ctx context.Context, path string, req *resty.Request) (*resty.Response, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("price feed rate limit: %w", err)
		}

		resp, err := req.Get(path)
		if err == nil && !resp.IsError() {
			return resp, nil
		}

		wait, retryable := c.retryDelay(resp, attempt)
		if !retryable {
			return nil, fmt.Errorf("ticker %s answered %s: %s", path, resp.Status(), resp.String())
		}
		lastErr = err
		if lastErr == nil {
			lastErr = fmt.Errorf("ticker %s answered %s", path, resp.Status())
		}
		if attempt == maxAttempts-1 {
			break
		}

		c.logger.Warn("Price feed unavailable",
			zap.String("path", path),
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait),
			zap.Error(lastErr))

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("ticker request gave up after %d attempts: %w", maxAttempts, lastErr)
}

// retryDelay reports whether a failed call may be repeated and how long to
// wait first. A response without a status is a transport failure.
func (c *Client) retryDelay(resp *resty.Response, attempt int) (time.Duration, bool) {
	status := 0
	if resp != nil {
		status = resp.StatusCode()
	}

	switch {
	case status == http.StatusTooManyRequests || status == http.StatusTeapot:
		if secs, err := strconv.Atoi(resp.Header().Get("Retry-After")); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second, true
		}
	case status == 0, status >= http.StatusInternalServerError:
	default:
		return 0, false
	}
	return c.backoff(attempt), true
}
