// Package api exposes the engine over HTTP. Every route except /health and
// session issue resolves the caller's owner id from a bearer token; session
// issue requires the configured issue key.
package api

import (
	"errors"
	"net/http"
	"strconv"

	"position-tracker/internal/accumulation"
	"position-tracker/internal/apperr"
	"position-tracker/internal/config"
	"position-tracker/internal/portfolio"
	"position-tracker/internal/session"
	"position-tracker/internal/store"
	"position-tracker/internal/strategy"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Services are the engine components the handlers call into.
type Services struct {
	Catalog    store.Catalog
	Ledger     *portfolio.Ledger
	Valuation  *portfolio.Valuation
	Strategies *strategy.Strategies
	Peaks      *strategy.PeakTracker
	Alerts     *strategy.Generator
	Trades     *accumulation.Tracker
	Sessions   session.Store
}

type handler struct {
	svc      Services
	issueKey string
	logger   *zap.Logger
}

// NewRouter builds the gin engine with all routes registered.
func NewRouter(svc Services, cfg config.Session, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	logger = logger.Named("api")
	h := &handler{svc: svc, issueKey: cfg.IssueKey, logger: logger}
	if h.issueKey == "" {
		logger.Info("No session.issue_key configured; HTTP token issuance is disabled")
	}

	r := gin.New()
	r.Use(requestLogger(logger), recovery(logger))

	r.GET("/health", h.health)

	api := r.Group("/api/v1")
	api.POST("/sessions", issueKeyRequired(h.issueKey), h.issueSession)

	auth := api.Group("")
	auth.Use(authRequired(svc.Sessions))
	{
		auth.POST("/sessions/rotate", h.rotateSession)
		auth.DELETE("/sessions", h.revokeSession)

		auth.GET("/assets", h.listAssets)
		auth.POST("/assets", h.createAsset)
		auth.GET("/exchanges", h.listExchanges)
		auth.POST("/exchanges", h.createExchange)

		auth.POST("/transactions", h.recordTransaction)
		auth.GET("/transactions", h.listTransactions)
		auth.GET("/transactions/:id", h.getTransaction)

		auth.GET("/portfolio/performance", h.performance)
		auth.GET("/portfolio/summary", h.summary)

		strategies := auth.Group("/strategies")
		strategies.PUT("/buy/:assetId", h.upsertBuyStrategy)
		strategies.GET("/buy/:assetId", h.getBuyStrategy)
		strategies.DELETE("/buy/:assetId", h.deleteBuyStrategy)
		strategies.PUT("/sell/:assetId", h.upsertSellStrategy)
		strategies.GET("/sell/:assetId", h.getSellStrategy)
		strategies.DELETE("/sell/:assetId", h.deleteSellStrategy)

		auth.GET("/peaks/:assetId", h.getPeak)
		auth.PUT("/peaks/:assetId", h.updatePeak)
		auth.DELETE("/peaks/:assetId", h.deletePeak)

		auth.POST("/alerts/generate", h.generateAlerts)
		auth.GET("/alerts", h.listAlerts)
		auth.POST("/alerts/:id/acknowledge", h.acknowledgeAlert)
		auth.DELETE("/alerts/:id", h.deleteAlert)

		trades := auth.Group("/accumulation")
		trades.POST("", h.openTrade)
		trades.GET("", h.listTrades)
		trades.GET("/:id", h.getTrade)
		trades.POST("/:id/close", h.closeTrade)
		trades.DELETE("/:id", h.deleteTrade)
	}

	return r
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// fail writes err with the status for its kind.
func (h *handler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperr.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperr.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, session.ErrInvalidToken):
		status = http.StatusUnauthorized
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func owner(c *gin.Context) string {
	return c.GetString(ownerIDKey)
}

// idParam parses a positive numeric path parameter.
func idParam(c *gin.Context, name string) (uint, error) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		return 0, apperr.Validationf("%s must be a positive integer", name)
	}
	return uint(v), nil
}

// bind decodes the JSON body into v.
func bind(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil {
		return apperr.Validationf("invalid request body: %v", err)
	}
	return nil
}
