package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type createManifestRequest struct {
	CarrierType string  `json:"carrier_type" binding:"required"`
	CarrierID   int64   `json:"carrier_id" binding:"required"`
	OrderIDs    []int64 `json:"order_ids" binding:"required,min=1"`
	Actor       string  `json:"actor"`
}

// createManifest builds a dispatch manifest from packed orders
func (h *Handler) createManifest(c *gin.Context) {
	var req createManifestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	result, err := h.dispatchService.CreateManifest(c.Request.Context(), req.CarrierType, req.CarrierID, req.OrderIDs, actorOf(c, req.Actor))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// getManifest returns a manifest with its orders and delivery attempts
func (h *Handler) getManifest(c *gin.Context) {
	manifestID, ok := pathID(c)
	if !ok {
		return
	}

	manifest, orders, attempts, err := h.dispatchService.GetManifest(c.Request.Context(), manifestID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"manifest": manifest,
		"orders":   orders,
		"attempts": attempts,
	})
}

type deliveryOutcomeRequest struct {
	OrderID       int64           `json:"order_id" binding:"required"`
	Outcome       string          `json:"outcome" binding:"required"`
	CashCollected decimal.Decimal `json:"cash_collected"`
	Proof         string          `json:"proof"`
	Actor         string          `json:"actor"`
}

// recordDeliveryOutcome records one delivery attempt on a manifest
func (h *Handler) recordDeliveryOutcome(c *gin.Context) {
	manifestID, ok := pathID(c)
	if !ok {
		return
	}

	var req deliveryOutcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	attempt, err := h.dispatchService.RecordDeliveryOutcome(c.Request.Context(), manifestID, req.OrderID, req.Outcome, req.CashCollected, req.Proof, actorOf(c, req.Actor))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, attempt)
}

type settleManifestRequest struct {
	CashReceived decimal.Decimal `json:"cash_received"`
	Actor        string          `json:"actor"`
}

// settleManifest closes a manifest against the cash actually received
func (h *Handler) settleManifest(c *gin.Context) {
	manifestID, ok := pathID(c)
	if !ok {
		return
	}

	var req settleManifestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	manifest, err := h.dispatchService.SettleManifest(c.Request.Context(), manifestID, req.CashReceived, actorOf(c, req.Actor))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, manifest)
}
