package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Fulfillment channels. An order belongs to exactly one channel and its
// status set is scoped to that channel.
const (
	ChannelLocal   = "inside_local_delivery"
	ChannelCourier = "outside_courier_delivery"
	ChannelPOS     = "point_of_sale"
)

// Lead statuses
const (
	LeadStatusIntake    = "INTAKE"
	LeadStatusFollowUp  = "FOLLOW_UP"
	LeadStatusBusy      = "BUSY"
	LeadStatusCancelled = "CANCELLED"
	LeadStatusConverted = "CONVERTED"
)

// Order statuses. Local-only: assigned, sent_for_delivery, rejected,
// next_attempt. Courier-only: dispatched. POS shares the common set.
const (
	OrderStatusPacked          = "packed"
	OrderStatusAssigned        = "assigned"
	OrderStatusSentForDelivery = "sent_for_delivery"
	OrderStatusDispatched      = "dispatched"
	OrderStatusDelivered       = "delivered"
	OrderStatusRejected        = "rejected"
	OrderStatusHold            = "hold"
	OrderStatusNextAttempt     = "next_attempt"
	OrderStatusReturnReceived  = "return_received"
	OrderStatusReturned        = "returned"
	OrderStatusRedirected      = "redirected"
	OrderStatusRefunded        = "refunded"
	OrderStatusExchanged       = "exchanged"
	OrderStatusCancelled       = "cancelled"
	OrderStatusLostInTransit   = "lost_in_transit"
)

// Payment statuses derived from paid_amount vs total_amount
const (
	PaymentStatusUnpaid  = "unpaid"
	PaymentStatusPartial = "partial"
	PaymentStatusPaid    = "paid"
)

// Stock movement kinds
const (
	MovementReserve = "reserve"
	MovementRelease = "release"
	MovementDeduct  = "deduct"
	MovementRestock = "restock"
	MovementDamage  = "damage"
)

// Vendor ledger entry kinds
const (
	VendorEntryPurchase       = "purchase"
	VendorEntryPurchaseReturn = "purchase_return"
	VendorEntryPayment        = "payment"
)

// Settlement statuses (rider settlements and manifests)
const (
	SettlementStatusPending   = "pending"
	SettlementStatusCompleted = "completed"
	SettlementStatusDisputed  = "disputed"

	ManifestStatusOpen    = "open"
	ManifestStatusSettled = "settled"
)

// Manifest carrier types
const (
	CarrierRider   = "rider"
	CarrierCourier = "courier"
)

// Delivery outcomes reported per attempt
const (
	OutcomeDelivered       = "delivered"
	OutcomeCustomerRefused = "customer_refused"
	OutcomeReturned        = "returned"
	OutcomeDamaged         = "damaged"
	OutcomeRescheduled     = "rescheduled"
	OutcomeUnavailable     = "unavailable"
	OutcomeWrongAddress    = "wrong_address"
	OutcomeLost            = "lost"
)

// Return QC conditions
const (
	ConditionGood         = "good"
	ConditionDamaged      = "damaged"
	ConditionMissingItems = "missing_items"
	ConditionTampered     = "tampered"
)

// Per-item return sub-states
const (
	ItemReturnNone          = "none"
	ItemReturnPendingPickup = "pending_pickup"
	ItemReturnPickedUp      = "picked_up"
	ItemReturnReceivedHub   = "received_hub"
	ItemReturnDamagedHub    = "damaged_hub"
)

// CustomerInfo is the typed customer snapshot captured on a lead.
// Unknown/legacy shapes are rejected at the boundary.
type CustomerInfo struct {
	Name    string `db:"customer_name" json:"name" binding:"required"`
	Phone   string `db:"customer_phone" json:"phone" binding:"required"`
	Address string `db:"customer_address" json:"address"`
}

// Lead is a prospective sale in the intake pipeline.
type Lead struct {
	ID              int64      `db:"id" json:"id"`
	Code            string     `db:"code" json:"code"`
	Status          string     `db:"status" json:"status"`
	CustomerName    string     `db:"customer_name" json:"customer_name"`
	CustomerPhone   string     `db:"customer_phone" json:"customer_phone"`
	CustomerAddress string     `db:"customer_address" json:"customer_address"`
	AgentID         *int64     `db:"agent_id" json:"agent_id,omitempty"`
	FollowUpAt      *time.Time `db:"follow_up_at" json:"follow_up_at,omitempty"`
	OrderID         *int64     `db:"order_id" json:"order_id,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// LeadItem is one desired item on a lead. VariantID is nil when the
// reference could not be resolved against the catalog.
type LeadItem struct {
	ID              int64           `db:"id" json:"id"`
	LeadID          int64           `db:"lead_id" json:"lead_id"`
	VariantID       *int64          `db:"variant_id" json:"variant_id,omitempty"`
	Quantity        int             `db:"quantity" json:"quantity"`
	IndicativePrice decimal.Decimal `db:"indicative_price" json:"indicative_price"`
}

// Customer is a resolved buyer, matched by phone at conversion time.
type Customer struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Phone     string    `db:"phone" json:"phone"`
	Address   string    `db:"address" json:"address"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Order is a committed sale with a delivery obligation.
type Order struct {
	ID            int64           `db:"id" json:"id"`
	Code          string          `db:"code" json:"code"`
	CustomerID    int64           `db:"customer_id" json:"customer_id"`
	Channel       string          `db:"channel" json:"channel"`
	Status        string          `db:"status" json:"status"`
	TotalAmount   decimal.Decimal `db:"total_amount" json:"total_amount"`
	PaidAmount    decimal.Decimal `db:"paid_amount" json:"paid_amount"`
	PaymentStatus string          `db:"payment_status" json:"payment_status"`
	CODSettled    bool            `db:"cod_settled" json:"cod_settled"`
	ParentOrderID *int64          `db:"parent_order_id" json:"parent_order_id,omitempty"`
	LeadID        *int64          `db:"lead_id" json:"lead_id,omitempty"`
	ManifestID    *int64          `db:"manifest_id" json:"manifest_id,omitempty"`
	PackedAt      *time.Time      `db:"packed_at" json:"packed_at,omitempty"`
	DispatchedAt  *time.Time      `db:"dispatched_at" json:"dispatched_at,omitempty"`
	DeliveredAt   *time.Time      `db:"delivered_at" json:"delivered_at,omitempty"`
	ReturnedAt    *time.Time      `db:"returned_at" json:"returned_at,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// CODDue is the cash still owed at the door.
func (o *Order) CODDue() decimal.Decimal {
	return o.TotalAmount.Sub(o.PaidAmount)
}

// OrderItem is one line within an order.
type OrderItem struct {
	ID          int64           `db:"id" json:"id"`
	OrderID     int64           `db:"order_id" json:"order_id"`
	VariantID   int64           `db:"variant_id" json:"variant_id"`
	Quantity    int             `db:"quantity" json:"quantity"`
	UnitPrice   decimal.Decimal `db:"unit_price" json:"unit_price"`
	UnitCost    decimal.Decimal `db:"unit_cost" json:"unit_cost"`
	LineTotal   decimal.Decimal `db:"line_total" json:"line_total"`
	ReturnState string          `db:"return_state" json:"return_state"`
}

// StockVariant is a sellable unit with counters mutated only through
// the inventory ledger.
type StockVariant struct {
	ID           int64           `db:"id" json:"id"`
	SKU          string          `db:"sku" json:"sku"`
	Name         string          `db:"name" json:"name"`
	OnHand       int             `db:"on_hand" json:"on_hand"`
	Reserved     int             `db:"reserved" json:"reserved"`
	Damaged      int             `db:"damaged" json:"damaged"`
	CostPrice    decimal.Decimal `db:"cost_price" json:"cost_price"`
	SellingPrice decimal.Decimal `db:"selling_price" json:"selling_price"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// Available is the sellable headroom for new reservations.
func (v *StockVariant) Available() int {
	return v.OnHand - v.Reserved
}

// StockMovement is one immutable delta against a variant.
type StockMovement struct {
	ID             int64     `db:"id" json:"id"`
	VariantID      int64     `db:"variant_id" json:"variant_id"`
	Kind           string    `db:"kind" json:"kind"`
	Quantity       int       `db:"quantity" json:"quantity"`
	OnHandBefore   int       `db:"on_hand_before" json:"on_hand_before"`
	OnHandAfter    int       `db:"on_hand_after" json:"on_hand_after"`
	ReservedBefore int       `db:"reserved_before" json:"reserved_before"`
	ReservedAfter  int       `db:"reserved_after" json:"reserved_after"`
	OrderID        *int64    `db:"order_id" json:"order_id,omitempty"`
	Actor          string    `db:"actor" json:"actor"`
	Note           string    `db:"note" json:"note,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Vendor carries a payable balance.
type Vendor struct {
	ID        int64           `db:"id" json:"id"`
	Name      string          `db:"name" json:"name"`
	Balance   decimal.Decimal `db:"balance" json:"balance"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// VendorLedgerEntry is one immutable debit/credit with a running balance.
type VendorLedgerEntry struct {
	ID           int64           `db:"id" json:"id"`
	VendorID     int64           `db:"vendor_id" json:"vendor_id"`
	Kind         string          `db:"kind" json:"kind"`
	Amount       decimal.Decimal `db:"amount" json:"amount"`
	BalanceAfter decimal.Decimal `db:"balance_after" json:"balance_after"`
	Actor        string          `db:"actor" json:"actor"`
	Note         string          `db:"note" json:"note,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// Rider holds cash collected on delivery until settled.
type Rider struct {
	ID            int64           `db:"id" json:"id"`
	Name          string          `db:"name" json:"name"`
	CashInHand    decimal.Decimal `db:"cash_in_hand" json:"cash_in_hand"`
	ShortageTotal decimal.Decimal `db:"shortage_total" json:"shortage_total"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// RiderSettlement reconciles one rider's cash over a period.
type RiderSettlement struct {
	ID          int64           `db:"id" json:"id"`
	RiderID     int64           `db:"rider_id" json:"rider_id"`
	PeriodStart time.Time       `db:"period_start" json:"period_start"`
	PeriodEnd   time.Time       `db:"period_end" json:"period_end"`
	Expected    decimal.Decimal `db:"expected" json:"expected"`
	Collected   decimal.Decimal `db:"collected" json:"collected"`
	Shortage    decimal.Decimal `db:"shortage" json:"shortage"`
	Status      string          `db:"status" json:"status"`
	SettledBy   string          `db:"settled_by" json:"settled_by,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// Manifest is one delivery batch handed to a rider or courier partner.
type Manifest struct {
	ID               int64           `db:"id" json:"id"`
	Code             string          `db:"code" json:"code"`
	CarrierType      string          `db:"carrier_type" json:"carrier_type"`
	CarrierID        int64           `db:"carrier_id" json:"carrier_id"`
	Status           string          `db:"status" json:"status"`
	ExpectedCOD      decimal.Decimal `db:"expected_cod" json:"expected_cod"`
	CollectedCOD     decimal.Decimal `db:"collected_cod" json:"collected_cod"`
	Variance         decimal.Decimal `db:"variance" json:"variance"`
	DeliveredCount   int             `db:"delivered_count" json:"delivered_count"`
	ReturnedCount    int             `db:"returned_count" json:"returned_count"`
	RescheduledCount int             `db:"rescheduled_count" json:"rescheduled_count"`
	CreatedBy        string          `db:"created_by" json:"created_by"`
	SettledAt        *time.Time      `db:"settled_at" json:"settled_at,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// DeliveryAttempt is one immutable outcome record for an order on a manifest.
type DeliveryAttempt struct {
	ID            int64           `db:"id" json:"id"`
	ManifestID    int64           `db:"manifest_id" json:"manifest_id"`
	OrderID       int64           `db:"order_id" json:"order_id"`
	Outcome       string          `db:"outcome" json:"outcome"`
	CashCollected decimal.Decimal `db:"cash_collected" json:"cash_collected"`
	Proof         string          `db:"proof" json:"proof,omitempty"`
	Actor         string          `db:"actor" json:"actor"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// ReturnSettlement is one QC record for a returned item.
type ReturnSettlement struct {
	ID          int64     `db:"id" json:"id"`
	OrderID     int64     `db:"order_id" json:"order_id"`
	OrderItemID int64     `db:"order_item_id" json:"order_item_id"`
	Condition   string    `db:"condition" json:"condition"`
	Restocked   bool      `db:"restocked" json:"restocked"`
	Inspector   string    `db:"inspector" json:"inspector"`
	Notes       string    `db:"notes" json:"notes,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// AdvancePayment is one immutable customer payment against an order.
type AdvancePayment struct {
	ID        int64           `db:"id" json:"id"`
	OrderID   int64           `db:"order_id" json:"order_id"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	Method    string          `db:"method" json:"method"`
	Proof     string          `db:"proof" json:"proof,omitempty"`
	Voided    bool            `db:"voided" json:"voided"`
	Actor     string          `db:"actor" json:"actor"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// OrderStatusLog is one append-only status transition record.
type OrderStatusLog struct {
	ID             int64     `db:"id" json:"id"`
	OrderID        int64     `db:"order_id" json:"order_id"`
	FromStatus     string    `db:"from_status" json:"from_status"`
	ToStatus       string    `db:"to_status" json:"to_status"`
	Actor          string    `db:"actor" json:"actor"`
	Override       bool      `db:"override" json:"override"`
	OverrideReason string    `db:"override_reason" json:"override_reason,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Archive entity types
const (
	ArchiveEntityLead  = "lead"
	ArchiveEntityOrder = "order"
)

// ArchiveRecord is an immutable snapshot of a terminal lead or order.
type ArchiveRecord struct {
	ID         int64     `db:"id" json:"id"`
	EntityType string    `db:"entity_type" json:"entity_type"`
	EntityID   int64     `db:"entity_id" json:"entity_id"`
	Snapshot   []byte    `db:"snapshot" json:"snapshot"`
	Reason     string    `db:"reason" json:"reason"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// ProcessedEvent for consumer idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
