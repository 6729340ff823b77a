package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type vendorAdjustmentRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
	Kind   string          `json:"kind" binding:"required"`
	Actor  string          `json:"actor"`
	Note   string          `json:"note"`
}

// adjustVendorBalance posts a purchase, purchase return or payment
// against a vendor's running balance
func (h *Handler) adjustVendorBalance(c *gin.Context) {
	vendorID, ok := pathID(c)
	if !ok {
		return
	}

	var req vendorAdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	entry, err := h.financeService.AdjustVendorBalance(c.Request.Context(), vendorID, req.Amount, req.Kind, actorOf(c, req.Actor), req.Note)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, entry)
}

// getVendorLedger returns a vendor with its ledger entries
func (h *Handler) getVendorLedger(c *gin.Context) {
	vendorID, ok := pathID(c)
	if !ok {
		return
	}

	vendor, entries, err := h.financeService.GetVendorLedger(c.Request.Context(), vendorID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"vendor":  vendor,
		"entries": entries,
	})
}

type initSettlementRequest struct {
	PeriodStart time.Time `json:"period_start" binding:"required"`
	PeriodEnd   time.Time `json:"period_end" binding:"required"`
}

// initRiderSettlement opens (or returns the existing) settlement for a
// rider and period
func (h *Handler) initRiderSettlement(c *gin.Context) {
	riderID, ok := pathID(c)
	if !ok {
		return
	}

	var req initSettlementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	settlement, err := h.financeService.InitRiderSettlement(c.Request.Context(), riderID, req.PeriodStart, req.PeriodEnd)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, settlement)
}

type completeSettlementRequest struct {
	CashReceived     decimal.Decimal `json:"cash_received"`
	DeductFromWallet bool            `json:"deduct_from_wallet"`
	Actor            string          `json:"actor"`
}

// completeRiderSettlement closes a settlement with the cash handed in
func (h *Handler) completeRiderSettlement(c *gin.Context) {
	settlementID, ok := pathID(c)
	if !ok {
		return
	}

	var req completeSettlementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	settlement, err := h.financeService.CompleteRiderSettlement(c.Request.Context(), settlementID, req.CashReceived, req.DeductFromWallet, actorOf(c, req.Actor))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, settlement)
}
