package api

import (
	"net/http"

	"order-engine/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	order, items, err := h.orderService.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order": order,
		"items": items,
	})
}

// getOrderStatusLog returns the full transition history for an order
func (h *Handler) getOrderStatusLog(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	log, err := h.orderService.GetStatusLog(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status_log": log})
}

type transitionOrderRequest struct {
	ToStatus string `json:"to_status" binding:"required"`
	Actor    string `json:"actor"`
	Override bool   `json:"override"`
	Reason   string `json:"reason"`
}

// transitionOrder moves an order to a new status. Override skips the
// transition table and requires a reason.
func (h *Handler) transitionOrder(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	var req transitionOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	var opts []service.TransitionOption
	if req.Override {
		opts = append(opts, service.WithOverride(req.Reason))
	}

	order, err := h.orderService.Transition(c.Request.Context(), orderID, req.ToStatus, actorOf(c, req.Actor), opts...)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

type redirectOrderRequest struct {
	TargetLeadID int64  `json:"target_lead_id" binding:"required"`
	Reason       string `json:"reason" binding:"required"`
	Actor        string `json:"actor"`
}

// redirectOrder re-routes a failed order's items to a new order built
// from another open lead
func (h *Handler) redirectOrder(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	var req redirectOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	result, err := h.leadService.Redirect(c.Request.Context(), orderID, req.TargetLeadID, req.Reason, actorOf(c, req.Actor))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

type recordPaymentRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
	Method string          `json:"method" binding:"required"`
	Proof  string          `json:"proof"`
	Actor  string          `json:"actor"`
}

// recordPayment records an advance payment against an order
func (h *Handler) recordPayment(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	var req recordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	payment, err := h.financeService.RecordAdvancePayment(c.Request.Context(), orderID, req.Amount, req.Method, req.Proof, actorOf(c, req.Actor))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, payment)
}

type voidPaymentRequest struct {
	Actor string `json:"actor"`
}

// voidPayment voids an advance payment and recomputes the order totals
func (h *Handler) voidPayment(c *gin.Context) {
	paymentID, ok := pathID(c)
	if !ok {
		return
	}

	var req voidPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if err := h.financeService.VoidAdvancePayment(c.Request.Context(), paymentID, actorOf(c, req.Actor)); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"voided": true})
}

type verifyReturnRequest struct {
	Condition string `json:"condition" binding:"required"`
	Inspector string `json:"inspector"`
	Notes     string `json:"notes"`
}

// verifyReturn runs QC on a received return and restocks per condition
func (h *Handler) verifyReturn(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	var req verifyReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	settlements, err := h.returnsService.VerifyReturn(c.Request.Context(), orderID, req.Condition, actorOf(c, req.Inspector), req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"settlements": settlements})
}

type markLostRequest struct {
	Evidence string `json:"evidence" binding:"required"`
	Actor    string `json:"actor"`
}

// markOrderLost declares an in-flight order lost in transit
func (h *Handler) markOrderLost(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	var req markLostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	order, err := h.returnsService.MarkLost(c.Request.Context(), orderID, actorOf(c, req.Actor), req.Evidence)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}
