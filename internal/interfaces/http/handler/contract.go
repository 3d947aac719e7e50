package handler

import (
	"fmt"
	"net/http"

	appfin "github.com/erp/receivables/internal/application/finance"
	"github.com/erp/receivables/internal/domain/shared"
	"github.com/erp/receivables/internal/interfaces/export"
	"github.com/gin-gonic/gin"
)

// ContractHandler handles contract endpoints
type ContractHandler struct {
	BaseHandler
	contracts *appfin.ContractService
	statuses  *appfin.StatusService
	clock     shared.Clock
}

// NewContractHandler creates a new ContractHandler
func NewContractHandler(contracts *appfin.ContractService, statuses *appfin.StatusService, clock shared.Clock) *ContractHandler {
	if clock == nil {
		clock = shared.SystemClock{}
	}
	return &ContractHandler{contracts: contracts, statuses: statuses, clock: clock}
}

// Create serves POST /api/v1/finance/contracts. Opens a contract together with its payment
// plan. The response carries a balance warning when the plan does not add up to the net
// amount.
func (h *ContractHandler) Create(c *gin.Context) {
	var req appfin.CreateContractRequest
	if !h.bindJSON(c, &req) {
		return
	}
	resp, err := h.contracts.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// GetByID serves GET /api/v1/finance/contracts/{id}
func (h *ContractHandler) GetByID(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.contracts.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Rollup serves GET /api/v1/finance/contracts/{id}/rollup. Sums due, paid and unpaid over
// live installments and reports whether the plan balances against the net amount.
func (h *ContractHandler) Rollup(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.contracts.Rollup(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Reprice serves PUT /api/v1/finance/contracts/{id}/pricing
func (h *ContractHandler) Reprice(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req appfin.RepriceContractRequest
	if !h.bindJSON(c, &req) {
		return
	}
	resp, err := h.contracts.Reprice(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Void serves POST /api/v1/finance/contracts/{id}/void
func (h *ContractHandler) Void(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req appfin.VoidContractRequest
	if !h.bindJSON(c, &req) {
		return
	}
	resp, err := h.contracts.Void(c.Request.Context(), id, req, actorID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Delete serves DELETE /api/v1/finance/contracts/{id}. Soft deletes the contract with its
// installments and receipts in one transaction.
func (h *ContractHandler) Delete(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.contracts.Delete(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// AddInstallment serves POST /api/v1/finance/contracts/{id}/installments
func (h *ContractHandler) AddInstallment(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req appfin.InstallmentPlanRequest
	if !h.bindJSON(c, &req) {
		return
	}
	resp, err := h.contracts.AddInstallment(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// UpdateStatus serves PUT /api/v1/finance/contracts/{id}/status. Any label is accepted; an
// empty status clears the override.
func (h *ContractHandler) UpdateStatus(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req appfin.UpdateContractStatusRequest
	if !h.bindJSON(c, &req) {
		return
	}
	resp, err := h.statuses.UpdateContractStatus(c.Request.Context(), id, req, actorID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Statement serves GET /api/v1/finance/contracts/{id}/statement. Renders the contract, its
// installments and their receipts as a PDF.
func (h *ContractHandler) Statement(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	contract, receipts, err := h.contracts.Statement(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	pdf, err := export.ContractStatementPDF(contract, receipts, h.clock.Now())
	if err != nil {
		h.HandleError(c, fmt.Errorf("render statement: %w", err))
		return
	}
	filename := fmt.Sprintf("statement-%s-%s.pdf", contract.ContractNo, h.clock.Now().Format("20060102"))
	c.Header("Content-Disposition", attachment(filename))
	c.Data(http.StatusOK, export.PDFContentType, pdf)
}

// attachment builds a Content-Disposition value for a download
func attachment(filename string) string {
	return fmt.Sprintf("attachment; filename=%q", filename)
}

