package api

import (
	"net/http"
	"time"

	"order-engine/internal/service"

	"github.com/gin-gonic/gin"
)

// createLead handles lead intake
func (h *Handler) createLead(c *gin.Context) {
	var req service.CreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	lead, err := h.leadService.CreateLead(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, lead)
}

// getLead handles get lead by ID
func (h *Handler) getLead(c *gin.Context) {
	leadID, ok := pathID(c)
	if !ok {
		return
	}

	lead, items, err := h.leadService.GetLead(c.Request.Context(), leadID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"lead":  lead,
		"items": items,
	})
}

type updateLeadStatusRequest struct {
	Status     string     `json:"status" binding:"required"`
	Actor      string     `json:"actor"`
	FollowUpAt *time.Time `json:"follow_up_at,omitempty"`
}

// updateLeadStatus moves a lead along its pipeline
func (h *Handler) updateLeadStatus(c *gin.Context) {
	leadID, ok := pathID(c)
	if !ok {
		return
	}

	var req updateLeadStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	lead, err := h.leadService.UpdateStatus(c.Request.Context(), leadID, req.Status, actorOf(c, req.Actor), req.FollowUpAt)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, lead)
}

type restoreLeadRequest struct {
	Reason string `json:"reason" binding:"required"`
	Actor  string `json:"actor"`
}

// restoreLead reopens a closed lead
func (h *Handler) restoreLead(c *gin.Context) {
	leadID, ok := pathID(c)
	if !ok {
		return
	}

	var req restoreLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	lead, err := h.leadService.Restore(c.Request.Context(), leadID, actorOf(c, req.Actor), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, lead)
}

type convertLeadRequest struct {
	Channel string `json:"channel" binding:"required"`
	Actor   string `json:"actor"`
}

// convertLead converts a lead into an order on the given channel
func (h *Handler) convertLead(c *gin.Context) {
	leadID, ok := pathID(c)
	if !ok {
		return
	}

	var req convertLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	result, err := h.leadService.Convert(c.Request.Context(), leadID, req.Channel, actorOf(c, req.Actor))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}
