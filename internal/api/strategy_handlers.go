package api

import (
	"net/http"
	"time"

	"position-tracker/internal/strategy"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type strategyRequest struct {
	ThresholdPercent decimal.Decimal `json:"threshold_percent"`
	Active           *bool           `json:"active"`
}

func (r strategyRequest) active() bool {
	return r.Active == nil || *r.Active
}

func (h *handler) upsertBuyStrategy(c *gin.Context) {
	assetID, err := idParam(c, "assetId")
	if err != nil {
		h.fail(c, err)
		return
	}
	var req strategyRequest
	if err := bind(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	s, err := h.svc.Strategies.UpsertBuy(c.Request.Context(), owner(c), assetID, req.ThresholdPercent, req.active())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *handler) getBuyStrategy(c *gin.Context) {
	assetID, err := idParam(c, "assetId")
	if err != nil {
		h.fail(c, err)
		return
	}
	s, err := h.svc.Strategies.GetBuy(c.Request.Context(), owner(c), assetID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *handler) deleteBuyStrategy(c *gin.Context) {
	assetID, err := idParam(c, "assetId")
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.svc.Strategies.DeleteBuy(c.Request.Context(), owner(c), assetID); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) upsertSellStrategy(c *gin.Context) {
	assetID, err := idParam(c, "assetId")
	if err != nil {
		h.fail(c, err)
		return
	}
	var req strategyRequest
	if err := bind(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	s, err := h.svc.Strategies.UpsertSell(c.Request.Context(), owner(c), assetID, req.ThresholdPercent, req.active())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *handler) getSellStrategy(c *gin.Context) {
	assetID, err := idParam(c, "assetId")
	if err != nil {
		h.fail(c, err)
		return
	}
	s, err := h.svc.Strategies.GetSell(c.Request.Context(), owner(c), assetID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *handler) deleteSellStrategy(c *gin.Context) {
	assetID, err := idParam(c, "assetId")
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.svc.Strategies.DeleteSell(c.Request.Context(), owner(c), assetID); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type peakRequest struct {
	PeakPrice     decimal.Decimal `json:"peak_price"`
	PeakTimestamp time.Time       `json:"peak_timestamp"`
	Active        *bool           `json:"active"`
}

func (h *handler) getPeak(c *gin.Context) {
	assetID, err := idParam(c, "assetId")
	if err != nil {
		h.fail(c, err)
		return
	}
	p, err := h.svc.Peaks.Get(c.Request.Context(), owner(c), assetID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *handler) updatePeak(c *gin.Context) {
	assetID, err := idParam(c, "assetId")
	if err != nil {
		h.fail(c, err)
		return
	}
	var req peakRequest
	if err := bind(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	p, err := h.svc.Peaks.Update(c.Request.Context(), owner(c), assetID, strategy.PeakUpdate{
		PeakPrice:     req.PeakPrice,
		PeakTimestamp: req.PeakTimestamp,
		Active:        req.Active,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *handler) deletePeak(c *gin.Context) {
	assetID, err := idParam(c, "assetId")
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.svc.Peaks.Delete(c.Request.Context(), owner(c), assetID); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type generateRequest struct {
	AssetID         uint            `json:"asset_id"`
	CurrentPriceUSD decimal.Decimal `json:"current_price_usd"`
}

func (h *handler) generateAlerts(c *gin.Context) {
	var req generateRequest
	if err := bind(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	alerts, err := h.svc.Alerts.Generate(c.Request.Context(), owner(c), req.AssetID, req.CurrentPriceUSD)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, alerts)
}

func (h *handler) listAlerts(c *gin.Context) {
	alerts, err := h.svc.Alerts.List(c.Request.Context(), owner(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, alerts)
}

func (h *handler) acknowledgeAlert(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	a, err := h.svc.Alerts.Acknowledge(c.Request.Context(), owner(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *handler) deleteAlert(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.svc.Alerts.Delete(c.Request.Context(), owner(c), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type openTradeRequest struct {
	ExitTransactionID uint   `json:"exit_transaction_id"`
	PredictionNotes   string `json:"prediction_notes"`
}

type closeTradeRequest struct {
	ReentryTransactionID uint `json:"reentry_transaction_id"`
}

func (h *handler) openTrade(c *gin.Context) {
	var req openTradeRequest
	if err := bind(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	t, err := h.svc.Trades.Open(c.Request.Context(), owner(c), req.ExitTransactionID, req.PredictionNotes)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *handler) closeTrade(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	var req closeTradeRequest
	if err := bind(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	t, err := h.svc.Trades.Close(c.Request.Context(), owner(c), id, req.ReentryTransactionID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *handler) listTrades(c *gin.Context) {
	trades, err := h.svc.Trades.List(c.Request.Context(), owner(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, trades)
}

func (h *handler) getTrade(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	t, err := h.svc.Trades.Get(c.Request.Context(), owner(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *handler) deleteTrade(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.svc.Trades.Delete(c.Request.Context(), owner(c), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
