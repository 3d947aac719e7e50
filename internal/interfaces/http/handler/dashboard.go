package handler

import (
	"context"
	"fmt"
	"net/http"

	appfin "github.com/erp/receivables/internal/application/finance"
	"github.com/erp/receivables/internal/domain/shared"
	"github.com/erp/receivables/internal/infrastructure/logger"
	"github.com/erp/receivables/internal/interfaces/export"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateRefresher drops a cached rate snapshot so the next read reloads it
type RateRefresher interface {
	Refresh(ctx context.Context) error
}

// DashboardHandler handles dashboard, export and exchange rate endpoints
type DashboardHandler struct {
	BaseHandler
	dashboard *appfin.DashboardService
	refresher RateRefresher
	clock     shared.Clock
}

// NewDashboardHandler creates a new DashboardHandler. refresher may be nil
// when rates are not cached.
func NewDashboardHandler(dashboard *appfin.DashboardService, refresher RateRefresher, clock shared.Clock) *DashboardHandler {
	if clock == nil {
		clock = shared.SystemClock{}
	}
	return &DashboardHandler{dashboard: dashboard, refresher: refresher, clock: clock}
}

// Query serves GET /api/v1/finance/dashboard. Lists contracts, installments or per-staff
// totals with due, paid and unpaid amounts. currency_mode original keeps each row in its
// own currency; fixed and floating convert into the record currency.
func (h *DashboardHandler) Query(c *gin.Context) {
	var req appfin.DashboardRequest
	if !h.bindQuery(c, &req) {
		return
	}
	resp, err := h.dashboard.Query(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, resp, resp.Total, resp.Page, resp.PageSize)
}

// Export serves GET /api/v1/finance/dashboard/export. Takes the dashboard filters and
// returns every matching row, up to 5000, as an XLSX workbook.
func (h *DashboardHandler) Export(c *gin.Context) {
	var req appfin.DashboardRequest
	if !h.bindQuery(c, &req) {
		return
	}
	resp, err := h.dashboard.QueryAll(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if resp.Total > int64(appfin.MaxExportRows) {
		logger.L(c.Request.Context()).Warn("Dashboard export truncated",
			zap.Int64("total", resp.Total),
			zap.Int("exported", appfin.MaxExportRows),
		)
	}
	data, err := export.DashboardXLSX(resp)
	if err != nil {
		h.HandleError(c, fmt.Errorf("render dashboard export: %w", err))
		return
	}
	filename := fmt.Sprintf("receivables-%s-%s.xlsx", resp.View, h.clock.Now().Format("20060102-150405"))
	c.Header("Content-Disposition", attachment(filename))
	c.Data(http.StatusOK, export.XLSXContentType, data)
}

// ExchangeRates serves GET /api/v1/finance/exchange-rates
func (h *DashboardHandler) ExchangeRates(c *gin.Context) {
	resp, err := h.dashboard.ExchangeRates(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// RefreshExchangeRates serves POST /api/v1/finance/exchange-rates/refresh. Drops the
// cached rate snapshot and returns the freshly loaded one.
func (h *DashboardHandler) RefreshExchangeRates(c *gin.Context) {
	if h.refresher != nil {
		if err := h.refresher.Refresh(c.Request.Context()); err != nil {
			h.HandleError(c, fmt.Errorf("refresh exchange rates: %w", err))
			return
		}
		logger.L(c.Request.Context()).Info("Exchange rates refreshed")
	}
	h.ExchangeRates(c)
}
