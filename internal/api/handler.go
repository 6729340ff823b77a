package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"order-engine/internal/models"
	"order-engine/internal/service"
	"order-engine/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	leadService      *service.LeadService
	orderService     *service.OrderService
	inventoryService *service.InventoryService
	financeService   *service.FinanceService
	dispatchService  *service.DispatchService
	returnsService   *service.ReturnsService
	archiveService   *service.ArchiveService
}

// NewHandler creates a new HTTP handler
func NewHandler(
	leadService *service.LeadService,
	orderService *service.OrderService,
	inventoryService *service.InventoryService,
	financeService *service.FinanceService,
	dispatchService *service.DispatchService,
	returnsService *service.ReturnsService,
	archiveService *service.ArchiveService,
) *Handler {
	return &Handler{
		leadService:      leadService,
		orderService:     orderService,
		inventoryService: inventoryService,
		financeService:   financeService,
		dispatchService:  dispatchService,
		returnsService:   returnsService,
		archiveService:   archiveService,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/leads", h.createLead)
		v1.GET("/leads/:id", h.getLead)
		v1.PATCH("/leads/:id/status", h.updateLeadStatus)
		v1.POST("/leads/:id/restore", h.restoreLead)
		v1.POST("/leads/:id/convert", h.convertLead)

		v1.GET("/orders/:id", h.getOrder)
		v1.GET("/orders/:id/status-log", h.getOrderStatusLog)
		v1.POST("/orders/:id/transition", h.transitionOrder)
		v1.POST("/orders/:id/redirect", h.redirectOrder)
		v1.POST("/orders/:id/payments", h.recordPayment)
		v1.POST("/orders/:id/verify-return", h.verifyReturn)
		v1.POST("/orders/:id/mark-lost", h.markOrderLost)
		v1.POST("/payments/:id/void", h.voidPayment)

		v1.GET("/variants/:id", h.getVariant)
		v1.GET("/variants/:id/movements", h.getVariantMovements)
		v1.POST("/inventory/reserve", h.batchReserve)
		v1.POST("/inventory/deduct", h.batchDeduct)

		v1.POST("/vendors/:id/adjustments", h.adjustVendorBalance)
		v1.GET("/vendors/:id/ledger", h.getVendorLedger)
		v1.POST("/riders/:id/settlements", h.initRiderSettlement)
		v1.POST("/settlements/:id/complete", h.completeRiderSettlement)

		v1.POST("/manifests", h.createManifest)
		v1.GET("/manifests/:id", h.getManifest)
		v1.POST("/manifests/:id/outcomes", h.recordDeliveryOutcome)
		v1.POST("/manifests/:id/settle", h.settleManifest)

		v1.GET("/archives/:type/:id", h.getArchive)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID"})
		return 0, false
	}
	return id, true
}

// respondError maps domain errors to HTTP status codes. Typed errors
// carry their detail fields into the response body.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, models.ErrInsufficientStock),
		errors.Is(err, models.ErrAlreadyProcessed),
		errors.Is(err, models.ErrConcurrencyConflict):
		status = http.StatusConflict
	case errors.Is(err, models.ErrInvalidAmount),
		errors.Is(err, models.ErrNoValidOrders):
		status = http.StatusUnprocessableEntity
	}

	body := gin.H{"error": err.Error()}

	var transitionErr *models.InvalidTransitionError
	if errors.As(err, &transitionErr) {
		body["channel"] = transitionErr.Channel
		body["from_status"] = transitionErr.From
		body["to_status"] = transitionErr.To
	}

	var stockErr *models.InsufficientStockError
	if errors.As(err, &stockErr) {
		body["variant_id"] = stockErr.VariantID
		body["requested"] = stockErr.Requested
		body["available"] = stockErr.Available
	}

	c.JSON(status, body)
}

func actorOf(c *gin.Context, fallback string) string {
	if actor := c.GetHeader("X-Actor"); actor != "" {
		return actor
	}
	if fallback != "" {
		return fallback
	}
	return "system"
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
