package router

import (
	"github.com/erp/receivables/internal/infrastructure/auth"
	"github.com/erp/receivables/internal/interfaces/http/handler"
	"github.com/erp/receivables/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// FinanceRoutes registers the /finance endpoints with their permissions.
// Idempotency guards the receipt and settle endpoints when set.
type FinanceRoutes struct {
	Contracts    *handler.ContractHandler
	Installments *handler.InstallmentHandler
	Dashboard    *handler.DashboardHandler
	Idempotency  gin.HandlerFunc
}

// RegisterRoutes implements RouteRegistrar
func (f *FinanceRoutes) RegisterRoutes(rg *gin.RouterGroup) {
	read := middleware.RequirePermission(auth.PermContractRead)
	write := middleware.RequirePermission(auth.PermContractWrite)
	receipt := middleware.RequirePermission(auth.PermReceiptWrite)
	status := middleware.RequirePermission(auth.PermStatusWrite)
	dashboard := middleware.RequirePermission(auth.PermDashboardRead)

	idem := f.Idempotency
	if idem == nil {
		idem = func(c *gin.Context) { c.Next() }
	}

	g := rg.Group("/finance")

	contracts := g.Group("/contracts")
	contracts.POST("", write, f.Contracts.Create)
	contracts.GET("/:id", read, f.Contracts.GetByID)
	contracts.DELETE("/:id", write, f.Contracts.Delete)
	contracts.GET("/:id/rollup", read, f.Contracts.Rollup)
	contracts.PUT("/:id/pricing", write, f.Contracts.Reprice)
	contracts.POST("/:id/void", write, f.Contracts.Void)
	contracts.PUT("/:id/status", status, f.Contracts.UpdateStatus)
	contracts.POST("/:id/installments", write, f.Contracts.AddInstallment)
	contracts.GET("/:id/statement", read, f.Contracts.Statement)

	installments := g.Group("/installments")
	installments.GET("/:id", read, f.Installments.GetByID)
	installments.PUT("/:id", write, f.Installments.Update)
	installments.DELETE("/:id", write, f.Installments.Delete)
	installments.POST("/:id/receipts", receipt, idem, f.Installments.ApplyReceipt)
	installments.GET("/:id/receipts", read, f.Installments.ListReceipts)
	installments.POST("/:id/settle", receipt, idem, f.Installments.Settle)
	installments.GET("/:id/reconcile", read, f.Installments.Reconcile)
	installments.PUT("/:id/status", status, f.Installments.UpdateStatus)

	g.GET("/dashboard", dashboard, f.Dashboard.Query)
	g.GET("/dashboard/export", dashboard, f.Dashboard.Export)
	g.GET("/exchange-rates", dashboard, f.Dashboard.ExchangeRates)
	g.POST("/exchange-rates/refresh", write, f.Dashboard.RefreshExchangeRates)
}
