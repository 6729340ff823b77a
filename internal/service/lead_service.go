package service

import (
	"context"
	"fmt"
	"time"

	"order-engine/internal/broker"
	"order-engine/internal/models"
	"order-engine/internal/store"
	"order-engine/internal/util"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LeadService manages the sales pipeline and the lead-to-order handoff.
type LeadService struct {
	store     *store.Store
	orders    *OrderService
	inventory *InventoryService
	publisher *broker.EventPublisher
	logger    *zap.Logger
}

// NewLeadService creates a new lead service
func NewLeadService(
	store *store.Store,
	orders *OrderService,
	inventory *InventoryService,
	publisher *broker.EventPublisher,
) *LeadService {
	return &LeadService{
		store:     store,
		orders:    orders,
		inventory: inventory,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// CreateLeadRequest captures a new lead at intake.
type CreateLeadRequest struct {
	Customer   models.CustomerInfo `json:"customer" binding:"required"`
	AgentID    *int64              `json:"agent_id,omitempty"`
	FollowUpAt *time.Time          `json:"follow_up_at,omitempty"`
	Items      []LeadItemRequest   `json:"items" binding:"required,min=1,dive"`
}

// LeadItemRequest is one desired item on a new lead.
type LeadItemRequest struct {
	VariantID       *int64          `json:"variant_id,omitempty"`
	Quantity        int             `json:"quantity" binding:"required,min=1"`
	IndicativePrice decimal.Decimal `json:"indicative_price"`
}

// CreateLead registers a lead in INTAKE with its desired items.
func (ls *LeadService) CreateLead(ctx context.Context, req *CreateLeadRequest) (*models.Lead, error) {
	ctx, span := util.StartSpan(ctx, "LeadService.CreateLead")
	defer span.End()

	if req.Customer.Name == "" || req.Customer.Phone == "" {
		return nil, fmt.Errorf("%w: customer name and phone are required", models.ErrInvalidAmount)
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: item quantity must be positive", models.ErrInvalidAmount)
		}
		if item.IndicativePrice.IsNegative() {
			return nil, fmt.Errorf("%w: indicative price cannot be negative", models.ErrInvalidAmount)
		}
	}

	lead := &models.Lead{
		Code:            NewLeadCode(),
		Status:          models.LeadStatusIntake,
		CustomerName:    req.Customer.Name,
		CustomerPhone:   req.Customer.Phone,
		CustomerAddress: req.Customer.Address,
		AgentID:         req.AgentID,
		FollowUpAt:      req.FollowUpAt,
	}
	if err := ls.store.CreateLead(ctx, lead); err != nil {
		return nil, fmt.Errorf("failed to create lead: %w", err)
	}

	for _, item := range req.Items {
		leadItem := &models.LeadItem{
			LeadID:          lead.ID,
			VariantID:       item.VariantID,
			Quantity:        item.Quantity,
			IndicativePrice: item.IndicativePrice,
		}
		if err := ls.store.CreateLeadItem(ctx, leadItem); err != nil {
			return nil, fmt.Errorf("failed to create lead item: %w", err)
		}
	}

	ls.logger.Info("Lead created",
		zap.Int64("lead_id", lead.ID),
		zap.String("code", lead.Code))
	return lead, nil
}

// UpdateStatus moves a lead through the pipeline. Terminal leads are
// immutable here; Restore is the only way back.
func (ls *LeadService) UpdateStatus(ctx context.Context, leadID int64, to, actor string, followUpAt *time.Time) (*models.Lead, error) {
	ctx, span := util.StartSpan(ctx, "LeadService.UpdateStatus")
	defer span.End()

	var lead *models.Lead
	err := ls.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		lead, err = ls.store.GetLeadForUpdate(ctx, tx, leadID)
		if err != nil {
			return err
		}
		if err := models.CanTransitionLead(lead.Status, to); err != nil {
			return err
		}
		if err := ls.store.UpdateLeadStatus(ctx, tx, leadID, to, nil); err != nil {
			return err
		}
		if followUpAt != nil {
			if err := ls.store.UpdateLeadFollowUp(ctx, tx, leadID, followUpAt); err != nil {
				return err
			}
			lead.FollowUpAt = followUpAt
		}
		lead.Status = to
		return nil
	})
	if err != nil {
		return nil, err
	}

	if to == models.LeadStatusCancelled {
		ls.publishLeadClosed(ctx, lead, actor)
	}
	return lead, nil
}

// Restore reopens a terminal lead. Privileged; the reason is required
// and logged.
func (ls *LeadService) Restore(ctx context.Context, leadID int64, actor, reason string) (*models.Lead, error) {
	ctx, span := util.StartSpan(ctx, "LeadService.Restore")
	defer span.End()

	if reason == "" {
		return nil, fmt.Errorf("%w: restore requires a reason", models.ErrInvalidAmount)
	}

	var lead *models.Lead
	err := ls.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		lead, err = ls.store.GetLeadForUpdate(ctx, tx, leadID)
		if err != nil {
			return err
		}
		if !models.IsTerminalLeadStatus(lead.Status) {
			return fmt.Errorf("%w: lead %d is not terminal", models.ErrInvalidTransition, leadID)
		}
		if err := ls.store.UpdateLeadStatus(ctx, tx, leadID, models.LeadStatusFollowUp, nil); err != nil {
			return err
		}
		lead.Status = models.LeadStatusFollowUp
		return nil
	})
	if err != nil {
		return nil, err
	}

	ls.logger.Warn("Lead restored from terminal status",
		zap.Int64("lead_id", leadID),
		zap.String("actor", actor),
		zap.String("reason", reason))
	return lead, nil
}

// ConversionResult reports what a conversion produced.
type ConversionResult struct {
	OrderID       int64  `json:"order_id"`
	OrderCode     string `json:"order_code"`
	ItemsCreated  int    `json:"items_created"`
	UnitsReserved int    `json:"units_reserved"`
}

// Convert turns an open lead into an order. Items whose variant cannot
// be resolved are skipped; a reservation failure on one item is logged
// as a warning and does not abort the conversion — partial reservation
// is accepted.
func (ls *LeadService) Convert(ctx context.Context, leadID int64, channel, actor string) (*ConversionResult, error) {
	ctx, span := util.StartSpan(ctx, "LeadService.Convert")
	defer span.End()

	if _, ok := map[string]bool{
		models.ChannelLocal: true, models.ChannelCourier: true, models.ChannelPOS: true,
	}[channel]; !ok {
		return nil, fmt.Errorf("%w: unknown fulfillment channel %q", models.ErrInvalidAmount, channel)
	}

	var result ConversionResult
	var order *models.Order
	var lead *models.Lead

	err := ls.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		lead, err = ls.store.GetLeadForUpdate(ctx, tx, leadID)
		if err != nil {
			return err
		}
		switch lead.Status {
		case models.LeadStatusConverted:
			return fmt.Errorf("%w: lead %d already converted", models.ErrAlreadyProcessed, leadID)
		case models.LeadStatusCancelled:
			return fmt.Errorf("%w: lead %d is cancelled", models.ErrAlreadyProcessed, leadID)
		}

		customer, err := ls.resolveCustomer(ctx, tx, lead)
		if err != nil {
			return err
		}

		leadItems, err := ls.store.GetLeadItemsByLeadID(ctx, leadID)
		if err != nil {
			return err
		}

		variants, err := ls.loadVariants(ctx, leadItems)
		if err != nil {
			return err
		}

		order = &models.Order{
			Code:          NewOrderCode(),
			CustomerID:    customer.ID,
			Channel:       channel,
			Status:        models.OrderStatusPacked,
			TotalAmount:   decimal.Zero,
			PaidAmount:    decimal.Zero,
			PaymentStatus: models.PaymentStatusUnpaid,
			LeadID:        &lead.ID,
		}
		if err := ls.store.CreateOrder(ctx, tx, order); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		total := decimal.Zero
		for _, li := range leadItems {
			if li.VariantID == nil {
				ls.logger.Warn("Skipping lead item without resolvable variant",
					zap.Int64("lead_id", leadID), zap.Int64("lead_item_id", li.ID))
				continue
			}
			variant, ok := variants[*li.VariantID]
			if !ok {
				ls.logger.Warn("Skipping lead item with unknown variant",
					zap.Int64("lead_id", leadID), zap.Int64("variant_id", *li.VariantID))
				continue
			}

			unitPrice := li.IndicativePrice
			if unitPrice.IsZero() {
				unitPrice = variant.SellingPrice
			}
			lineTotal := unitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))

			item := &models.OrderItem{
				OrderID:     order.ID,
				VariantID:   variant.ID,
				Quantity:    li.Quantity,
				UnitPrice:   unitPrice,
				UnitCost:    variant.CostPrice,
				LineTotal:   lineTotal,
				ReturnState: models.ItemReturnNone,
			}
			if err := ls.store.CreateOrderItem(ctx, tx, item); err != nil {
				return fmt.Errorf("failed to create order item: %w", err)
			}
			result.ItemsCreated++
			total = total.Add(lineTotal)

			if err := ls.inventory.ReserveTx(ctx, tx, variant.ID, li.Quantity, &order.ID, actor); err != nil {
				ls.logger.Warn("Reservation failed during conversion, continuing",
					zap.Int64("order_id", order.ID),
					zap.Int64("variant_id", variant.ID),
					zap.Int("quantity", li.Quantity),
					zap.Error(err))
				continue
			}
			result.UnitsReserved += li.Quantity
		}

		order.TotalAmount = total
		if _, err := tx.ExecContext(ctx,
			"UPDATE orders SET total_amount = $1, updated_at = NOW() WHERE id = $2",
			total, order.ID); err != nil {
			return fmt.Errorf("failed to set order total: %w", err)
		}

		return ls.store.UpdateLeadStatus(ctx, tx, leadID, models.LeadStatusConverted, &order.ID)
	})
	if err != nil {
		return nil, err
	}

	result.OrderID = order.ID
	result.OrderCode = order.Code
	util.LeadsConvertedTotal.Inc()
	util.OrdersCreatedTotal.Inc()
	ls.logger.Info("Lead converted",
		zap.Int64("lead_id", leadID),
		zap.Int64("order_id", order.ID),
		zap.Int("items_created", result.ItemsCreated),
		zap.Int("units_reserved", result.UnitsReserved))

	ls.publishOrderCreated(ctx, order, actor)
	ls.publishLeadConverted(ctx, lead, &result, actor)
	lead.Status = models.LeadStatusConverted
	ls.publishLeadClosed(ctx, lead, actor)

	return &result, nil
}

// Redirect reassigns a failed order's already-allocated goods to a new
// lead. The new order copies the line items without touching inventory;
// the physical stock deducted for the failed order is reused as-is.
func (ls *LeadService) Redirect(ctx context.Context, failedOrderID, targetLeadID int64, reason, actor string) (*ConversionResult, error) {
	ctx, span := util.StartSpan(ctx, "LeadService.Redirect")
	defer span.End()

	if reason == "" {
		return nil, fmt.Errorf("%w: redirect requires a reason", models.ErrInvalidAmount)
	}

	var result ConversionResult
	var newOrder *models.Order
	var failed *models.Order
	var failedFrom string
	var lead *models.Lead

	err := ls.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		failed, err = ls.store.GetOrderForUpdate(ctx, tx, failedOrderID)
		if err != nil {
			return err
		}
		if !models.RedirectableOrderStatuses[failed.Status] {
			return &models.InvalidTransitionError{
				Channel: failed.Channel,
				From:    failed.Status,
				To:      models.OrderStatusRedirected,
			}
		}

		lead, err = ls.store.GetLeadForUpdate(ctx, tx, targetLeadID)
		if err != nil {
			return err
		}
		if models.IsTerminalLeadStatus(lead.Status) {
			return fmt.Errorf("%w: target lead %d is not open", models.ErrAlreadyProcessed, targetLeadID)
		}

		customer, err := ls.resolveCustomer(ctx, tx, lead)
		if err != nil {
			return err
		}

		items, err := ls.store.GetOrderItemsByOrderIDTx(ctx, tx, failedOrderID)
		if err != nil {
			return err
		}

		newOrder = &models.Order{
			Code:          NewOrderCode(),
			CustomerID:    customer.ID,
			Channel:       failed.Channel,
			Status:        models.OrderStatusPacked,
			TotalAmount:   failed.TotalAmount,
			PaidAmount:    decimal.Zero,
			PaymentStatus: models.PaymentStatusUnpaid,
			ParentOrderID: &failed.ID,
			LeadID:        &lead.ID,
		}
		if err := ls.store.CreateOrder(ctx, tx, newOrder); err != nil {
			return fmt.Errorf("failed to create redirected order: %w", err)
		}

		for _, item := range items {
			copied := &models.OrderItem{
				OrderID:     newOrder.ID,
				VariantID:   item.VariantID,
				Quantity:    item.Quantity,
				UnitPrice:   item.UnitPrice,
				UnitCost:    item.UnitCost,
				LineTotal:   item.LineTotal,
				ReturnState: models.ItemReturnNone,
			}
			if err := ls.store.CreateOrderItem(ctx, tx, copied); err != nil {
				return fmt.Errorf("failed to copy order item: %w", err)
			}
			result.ItemsCreated++
		}

		failedFrom = failed.Status
		if err := ls.orders.transitionTx(ctx, tx, failed, models.OrderStatusRedirected, actor); err != nil {
			return err
		}

		return ls.store.UpdateLeadStatus(ctx, tx, targetLeadID, models.LeadStatusConverted, &newOrder.ID)
	})
	if err != nil {
		return nil, err
	}

	result.OrderID = newOrder.ID
	result.OrderCode = newOrder.Code
	util.OrdersRedirectedTotal.Inc()
	util.OrdersCreatedTotal.Inc()
	ls.logger.Info("Order redirected",
		zap.Int64("failed_order_id", failedOrderID),
		zap.Int64("new_order_id", newOrder.ID),
		zap.String("reason", reason))

	ls.orders.afterStatusChange(ctx, failed, failedFrom, failed.Status, actor)
	ls.publishOrderCreated(ctx, newOrder, actor)

	event := &models.OrderRedirectedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderRedirected,
			Actor:     actor,
			Timestamp: time.Now(),
		},
		OrderID:    failed.ID,
		NewOrderID: newOrder.ID,
		LeadID:     lead.ID,
		Reason:     reason,
	}
	if err := ls.publisher.PublishOrderEvent(ctx, failed.ID, event); err != nil {
		ls.logger.Error("Failed to publish OrderRedirected event",
			zap.Int64("order_id", failed.ID), zap.Error(err))
	}

	lead.Status = models.LeadStatusConverted
	ls.publishLeadClosed(ctx, lead, actor)

	return &result, nil
}

// GetLead retrieves a lead with its desired items.
func (ls *LeadService) GetLead(ctx context.Context, leadID int64) (*models.Lead, []models.LeadItem, error) {
	lead, err := ls.store.GetLeadByID(ctx, leadID)
	if err != nil {
		return nil, nil, err
	}
	items, err := ls.store.GetLeadItemsByLeadID(ctx, leadID)
	if err != nil {
		return nil, nil, err
	}
	return lead, items, nil
}

func (ls *LeadService) resolveCustomer(ctx context.Context, tx *sqlx.Tx, lead *models.Lead) (*models.Customer, error) {
	customer, err := ls.store.GetCustomerByPhone(ctx, tx, lead.CustomerPhone)
	if err != nil {
		return nil, err
	}
	if customer != nil {
		return customer, nil
	}

	customer = &models.Customer{
		Name:    lead.CustomerName,
		Phone:   lead.CustomerPhone,
		Address: lead.CustomerAddress,
	}
	if err := ls.store.CreateCustomer(ctx, tx, customer); err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}
	return customer, nil
}

func (ls *LeadService) loadVariants(ctx context.Context, items []models.LeadItem) (map[int64]models.StockVariant, error) {
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		if item.VariantID != nil {
			ids = append(ids, *item.VariantID)
		}
	}

	variants, err := ls.store.GetVariantsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]models.StockVariant, len(variants))
	for _, v := range variants {
		byID[v.ID] = v
	}
	return byID, nil
}

func (ls *LeadService) publishOrderCreated(ctx context.Context, order *models.Order, actor string) {
	event := &models.OrderCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderCreated,
			Actor:     actor,
			Timestamp: time.Now(),
		},
		OrderID:     order.ID,
		OrderCode:   order.Code,
		CustomerID:  order.CustomerID,
		Channel:     order.Channel,
		TotalAmount: order.TotalAmount,
		LeadID:      order.LeadID,
	}
	if err := ls.publisher.PublishOrderEvent(ctx, order.ID, event); err != nil {
		ls.logger.Error("Failed to publish OrderCreated event",
			zap.Int64("order_id", order.ID), zap.Error(err))
	}
}

func (ls *LeadService) publishLeadConverted(ctx context.Context, lead *models.Lead, result *ConversionResult, actor string) {
	event := &models.LeadConvertedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeLeadConverted,
			Actor:     actor,
			Timestamp: time.Now(),
		},
		LeadID:        lead.ID,
		OrderID:       result.OrderID,
		ItemsCreated:  result.ItemsCreated,
		UnitsReserved: result.UnitsReserved,
	}
	if err := ls.publisher.PublishLeadEvent(ctx, lead.ID, event); err != nil {
		ls.logger.Error("Failed to publish LeadConverted event",
			zap.Int64("lead_id", lead.ID), zap.Error(err))
	}
}

func (ls *LeadService) publishLeadClosed(ctx context.Context, lead *models.Lead, actor string) {
	event := &models.LeadClosedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeLeadClosed,
			Actor:     actor,
			Timestamp: time.Now(),
		},
		LeadID: lead.ID,
		Status: lead.Status,
	}
	if err := ls.publisher.PublishLeadEvent(ctx, lead.ID, event); err != nil {
		ls.logger.Error("Failed to publish LeadClosed event",
			zap.Int64("lead_id", lead.ID), zap.Error(err))
	}
}
