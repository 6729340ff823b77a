package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// getArchive looks up the archive snapshot of a closed order or lead
func (h *Handler) getArchive(c *gin.Context) {
	entityID, ok := pathID(c)
	if !ok {
		return
	}

	record, err := h.archiveService.GetArchive(c.Request.Context(), c.Param("type"), entityID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}
