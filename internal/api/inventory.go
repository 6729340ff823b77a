package api

import (
	"net/http"

	"order-engine/internal/service"

	"github.com/gin-gonic/gin"
)

// getVariant returns a stock variant with its current counters
func (h *Handler) getVariant(c *gin.Context) {
	variantID, ok := pathID(c)
	if !ok {
		return
	}

	variant, err := h.inventoryService.GetVariant(c.Request.Context(), variantID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, variant)
}

// getVariantMovements returns the movement ledger for a variant
func (h *Handler) getVariantMovements(c *gin.Context) {
	variantID, ok := pathID(c)
	if !ok {
		return
	}

	movements, err := h.inventoryService.GetMovements(c.Request.Context(), variantID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"movements": movements})
}

type batchStockRequest struct {
	Items        []service.BatchItem `json:"items" binding:"required,min=1"`
	OrderID      *int64              `json:"order_id,omitempty"`
	Actor        string              `json:"actor"`
	AllOrNothing bool                `json:"all_or_nothing"`
}

// batchReserve reserves stock for several variants in one call
func (h *Handler) batchReserve(c *gin.Context) {
	var req batchStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	report, err := h.inventoryService.BatchReserve(c.Request.Context(), req.Items, req.OrderID, actorOf(c, req.Actor), req.AllOrNothing)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if !report.AllApplied() {
		status = http.StatusMultiStatus
	}
	c.JSON(status, report)
}

// batchDeduct deducts stock for several variants in one call
func (h *Handler) batchDeduct(c *gin.Context) {
	var req batchStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	report, err := h.inventoryService.BatchDeduct(c.Request.Context(), req.Items, req.OrderID, actorOf(c, req.Actor), req.AllOrNothing)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if !report.AllApplied() {
		status = http.StatusMultiStatus
	}
	c.JSON(status, report)
}
