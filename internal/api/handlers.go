package api

import (
	"net/http"
	"strings"
	"time"

	"position-tracker/internal/apperr"
	"position-tracker/internal/models"
	"position-tracker/internal/portfolio"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type sessionRequest struct {
	OwnerID string `json:"owner_id"`
}

func (h *handler) issueSession(c *gin.Context) {
	var req sessionRequest
	if err := bind(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	tok, err := h.svc.Sessions.Issue(c.Request.Context(), req.OwnerID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, tok)
}

func (h *handler) rotateSession(c *gin.Context) {
	tok, err := h.svc.Sessions.Rotate(c.Request.Context(), c.GetString(tokenKey))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tok)
}

func (h *handler) revokeSession(c *gin.Context) {
	if err := h.svc.Sessions.Revoke(c.Request.Context(), c.GetString(tokenKey)); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type assetRequest struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

func (h *handler) listAssets(c *gin.Context) {
	assets, err := h.svc.Catalog.ListAssets(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, assets)
}

func (h *handler) createAsset(c *gin.Context) {
	var req assetRequest
	if err := bind(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		h.fail(c, apperr.Validation("symbol is required"))
		return
	}
	asset := &models.Asset{Symbol: symbol, Name: strings.TrimSpace(req.Name)}
	if err := h.svc.Catalog.CreateAsset(c.Request.Context(), asset); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, asset)
}

type exchangeRequest struct {
	Name string `json:"name"`
}

func (h *handler) listExchanges(c *gin.Context) {
	exchanges, err := h.svc.Catalog.ListExchanges(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, exchanges)
}

func (h *handler) createExchange(c *gin.Context) {
	var req exchangeRequest
	if err := bind(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		h.fail(c, apperr.Validation("name is required"))
		return
	}
	exchange := &models.Exchange{Name: name}
	if err := h.svc.Catalog.CreateExchange(c.Request.Context(), exchange); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, exchange)
}

type transactionRequest struct {
	AssetID      uint             `json:"asset_id"`
	ExchangeID   uint             `json:"exchange_id"`
	Type         string           `json:"type"`
	GrossAmount  decimal.Decimal  `json:"gross_amount"`
	FeeAmount    *decimal.Decimal `json:"fee_amount"`
	FeeCurrency  *string          `json:"fee_currency"`
	UnitPriceUSD decimal.Decimal  `json:"unit_price_usd"`
	Date         time.Time        `json:"date"`
	Notes        string           `json:"notes"`
}

func (h *handler) recordTransaction(c *gin.Context) {
	var req transactionRequest
	if err := bind(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	tx, err := h.svc.Ledger.Record(c.Request.Context(), portfolio.RecordInput{
		OwnerID:      owner(c),
		AssetID:      req.AssetID,
		ExchangeID:   req.ExchangeID,
		Type:         models.TransactionType(strings.ToUpper(strings.TrimSpace(req.Type))),
		GrossAmount:  req.GrossAmount,
		FeeAmount:    req.FeeAmount,
		FeeCurrency:  req.FeeCurrency,
		UnitPriceUSD: req.UnitPriceUSD,
		Date:         req.Date,
		Notes:        req.Notes,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, tx)
}

func (h *handler) listTransactions(c *gin.Context) {
	txs, err := h.svc.Ledger.List(c.Request.Context(), owner(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, txs)
}

func (h *handler) getTransaction(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	tx, err := h.svc.Ledger.Get(c.Request.Context(), owner(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}

func (h *handler) performance(c *gin.Context) {
	rows, err := h.svc.Valuation.GetPerformance(c.Request.Context(), owner(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *handler) summary(c *gin.Context) {
	s, err := h.svc.Valuation.GetSummary(c.Request.Context(), owner(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}
