package handler

import (
	appfin "github.com/erp/receivables/internal/application/finance"
	"github.com/gin-gonic/gin"
)

// InstallmentHandler handles installment, receipt and settlement endpoints
type InstallmentHandler struct {
	BaseHandler
	contracts *appfin.ContractService
	ledger    *appfin.ReceiptLedger
	statuses  *appfin.StatusService
}

// NewInstallmentHandler creates a new InstallmentHandler
func NewInstallmentHandler(contracts *appfin.ContractService, ledger *appfin.ReceiptLedger, statuses *appfin.StatusService) *InstallmentHandler {
	return &InstallmentHandler{contracts: contracts, ledger: ledger, statuses: statuses}
}

// GetByID serves GET /api/v1/finance/installments/{id}
func (h *InstallmentHandler) GetByID(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.contracts.GetInstallment(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Update serves PUT /api/v1/finance/installments/{id}. The new amount may not fall below
// what has already been paid.
func (h *InstallmentHandler) Update(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req appfin.EditInstallmentRequest
	if !h.bindJSON(c, &req) {
		return
	}
	resp, err := h.contracts.EditInstallment(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Delete serves DELETE /api/v1/finance/installments/{id}
func (h *InstallmentHandler) Delete(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.contracts.DeleteInstallment(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// ApplyReceipt serves POST /api/v1/finance/installments/{id}/receipts. Converts the amount
// into the installment currency and applies it. Overpayment is rejected. Send an
// Idempotency-Key header to make retries safe.
func (h *InstallmentHandler) ApplyReceipt(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req appfin.ApplyReceiptRequest
	if !h.bindJSON(c, &req) {
		return
	}
	resp, err := h.ledger.ApplyReceipt(c.Request.Context(), id, req, actorID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// Settle serves POST /api/v1/finance/installments/{id}/settle. Posts one receipt for the
// current unpaid balance in the installment currency.
func (h *InstallmentHandler) Settle(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req appfin.SettleInstallmentRequest
	if !h.bindJSON(c, &req) {
		return
	}
	resp, err := h.ledger.SettleInstallment(c.Request.Context(), id, req, actorID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// ListReceipts serves GET /api/v1/finance/installments/{id}/receipts
func (h *InstallmentHandler) ListReceipts(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.contracts.ListReceipts(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Reconcile serves GET /api/v1/finance/installments/{id}/reconcile
func (h *InstallmentHandler) Reconcile(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.contracts.Reconcile(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// UpdateStatus serves PUT /api/v1/finance/installments/{id}/status. Only pending and
// dunning may be set by hand; received, partially_received and overdue come from payments
// and dates. An empty status clears the override.
func (h *InstallmentHandler) UpdateStatus(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req appfin.UpdateInstallmentStatusRequest
	if !h.bindJSON(c, &req) {
		return
	}
	resp, err := h.statuses.UpdateInstallmentStatus(c.Request.Context(), id, req, actorID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}
