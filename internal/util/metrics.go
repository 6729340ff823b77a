package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LeadsConvertedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leads_converted_total",
		Help: "Total number of leads converted into orders",
	})

	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders created",
	})

	OrdersRedirectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_redirected_total",
		Help: "Total number of failed orders redirected to a new lead",
	})

	OrderTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Total number of committed order status transitions",
	}, []string{"channel", "to"})

	OrderTransitionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_rejected_total",
		Help: "Total number of status transitions rejected by the guard",
	}, []string{"channel"})

	StockMovementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_movements_total",
		Help: "Total number of stock movements recorded",
	}, []string{"kind"})

	StockReservationsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_reservations_failed_total",
		Help: "Total number of failed stock reservations",
	}, []string{"reason"})

	InventoryOpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inventory_op_latency_seconds",
		Help:    "Latency of inventory ledger operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	VendorAdjustmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vendor_adjustments_total",
		Help: "Total number of vendor balance adjustments",
	}, []string{"kind"})

	AdvancePaymentsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "advance_payments_total",
		Help: "Total number of advance payments recorded",
	})

	ManifestsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "manifests_created_total",
		Help: "Total number of delivery manifests created",
	}, []string{"carrier_type"})

	DeliveryOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "delivery_outcomes_total",
		Help: "Total number of delivery outcomes recorded",
	}, []string{"outcome"})

	SettlementsCompletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlements_completed_total",
		Help: "Total number of rider settlements closed",
	}, []string{"status"})

	ReturnsVerifiedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "returns_verified_total",
		Help: "Total number of returned orders passed through QC",
	}, []string{"condition"})

	ArchivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "archived_total",
		Help: "Total number of terminal leads/orders archived",
	}, []string{"entity_type"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
