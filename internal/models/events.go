package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderCreated         = "ORDER_CREATED"
	EventTypeOrderStatusChanged   = "ORDER_STATUS_CHANGED"
	EventTypeOrderRedirected      = "ORDER_REDIRECTED"
	EventTypeLeadConverted        = "LEAD_CONVERTED"
	EventTypeLeadClosed           = "LEAD_CLOSED"
	EventTypeManifestCreated      = "MANIFEST_CREATED"
	EventTypeManifestSettled      = "MANIFEST_SETTLED"
	EventTypeSettlementCompleted  = "SETTLEMENT_COMPLETED"
	EventTypeReturnVerified       = "RETURN_VERIFIED"
	EventTypeAdvancePaymentTaken  = "ADVANCE_PAYMENT_TAKEN"
	EventTypeVendorBalanceChanged = "VENDOR_BALANCE_CHANGED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Actor     string    `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent published when a lead conversion or redirect creates an order
type OrderCreatedEvent struct {
	BaseEvent
	OrderID     int64           `json:"order_id"`
	OrderCode   string          `json:"order_code"`
	CustomerID  int64           `json:"customer_id"`
	Channel     string          `json:"channel"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	LeadID      *int64          `json:"lead_id,omitempty"`
}

// OrderStatusChangedEvent published after every committed status transition
type OrderStatusChangedEvent struct {
	BaseEvent
	OrderID        int64  `json:"order_id"`
	Channel        string `json:"channel"`
	FromStatus     string `json:"from_status"`
	ToStatus       string `json:"to_status"`
	Override       bool   `json:"override,omitempty"`
	OverrideReason string `json:"override_reason,omitempty"`
}

// Terminal reports whether the order reached an archivable state.
func (e *OrderStatusChangedEvent) Terminal() bool {
	return IsTerminalOrderStatus(e.Channel, e.ToStatus)
}

// LeadConvertedEvent published when a lead becomes an order
type LeadConvertedEvent struct {
	BaseEvent
	LeadID        int64 `json:"lead_id"`
	OrderID       int64 `json:"order_id"`
	ItemsCreated  int   `json:"items_created"`
	UnitsReserved int   `json:"units_reserved"`
}

// LeadClosedEvent published when a lead reaches CANCELLED or CONVERTED
type LeadClosedEvent struct {
	BaseEvent
	LeadID int64  `json:"lead_id"`
	Status string `json:"status"`
}

// ManifestCreatedEvent published when a delivery batch is handed over
type ManifestCreatedEvent struct {
	BaseEvent
	ManifestID  int64           `json:"manifest_id"`
	CarrierType string          `json:"carrier_type"`
	CarrierID   int64           `json:"carrier_id"`
	OrderIDs    []int64         `json:"order_ids"`
	ExpectedCOD decimal.Decimal `json:"expected_cod"`
}

// ManifestSettledEvent published when a manifest's cash is reconciled
type ManifestSettledEvent struct {
	BaseEvent
	ManifestID int64           `json:"manifest_id"`
	Expected   decimal.Decimal `json:"expected"`
	Received   decimal.Decimal `json:"received"`
	Variance   decimal.Decimal `json:"variance"`
}

// SettlementCompletedEvent published when a rider settlement closes
type SettlementCompletedEvent struct {
	BaseEvent
	SettlementID int64           `json:"settlement_id"`
	RiderID      int64           `json:"rider_id"`
	Status       string          `json:"status"`
	Shortage     decimal.Decimal `json:"shortage"`
}

// ReturnVerifiedEvent published after QC on a returned order
type ReturnVerifiedEvent struct {
	BaseEvent
	OrderID   int64  `json:"order_id"`
	Condition string `json:"condition"`
	Restocked bool   `json:"restocked"`
}

// OrderRedirectedEvent published when a failed order's goods are
// reassigned to a fresh order on another lead
type OrderRedirectedEvent struct {
	BaseEvent
	OrderID    int64  `json:"order_id"`
	NewOrderID int64  `json:"new_order_id"`
	LeadID     int64  `json:"lead_id"`
	Reason     string `json:"reason"`
}

// AdvancePaymentTakenEvent published when a payment lands on an order
type AdvancePaymentTakenEvent struct {
	BaseEvent
	OrderID       int64           `json:"order_id"`
	PaymentID     int64           `json:"payment_id"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	PaymentStatus string          `json:"payment_status"`
}

// VendorBalanceChangedEvent published after a vendor ledger adjustment
type VendorBalanceChangedEvent struct {
	BaseEvent
	VendorID     int64           `json:"vendor_id"`
	Kind         string          `json:"kind"`
	Amount       decimal.Decimal `json:"amount"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
}
