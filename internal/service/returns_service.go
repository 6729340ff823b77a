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
	"go.uber.org/zap"
)

// ReturnsService receives returned goods, performs quality
// classification and feeds the inventory ledger. Inventory is never
// incremented before physical verification: a carrier-reported return
// that never shows up at the hub must not restock anything.
type ReturnsService struct {
	store     *store.Store
	orders    *OrderService
	inventory *InventoryService
	publisher *broker.EventPublisher
	logger    *zap.Logger
}

// NewReturnsService creates a new returns service
func NewReturnsService(
	store *store.Store,
	orders *OrderService,
	inventory *InventoryService,
	publisher *broker.EventPublisher,
) *ReturnsService {
	return &ReturnsService{
		store:     store,
		orders:    orders,
		inventory: inventory,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// itemReturnState maps a QC condition to the per-item sub-state it leaves.
func itemReturnState(condition string) string {
	switch condition {
	case models.ConditionDamaged, models.ConditionTampered:
		return models.ItemReturnDamagedHub
	default:
		return models.ItemReturnReceivedHub
	}
}

// conditionRestocks reports whether a QC condition puts units back into
// a stock counter at all.
func conditionRestocks(condition string) bool {
	switch condition {
	case models.ConditionGood, models.ConditionDamaged, models.ConditionTampered:
		return true
	}
	return false
}

// VerifyReturn inspects a physically returned order. Good units return
// to on_hand, damaged/tampered units are quarantined, missing items
// touch no counter. Only on success does the order reach its returned
// terminal state; QC rows, stock movements and the status write commit
// together.
func (rs *ReturnsService) VerifyReturn(ctx context.Context, orderID int64, condition, inspector, notes string) ([]models.ReturnSettlement, error) {
	ctx, span := util.StartSpan(ctx, "ReturnsService.VerifyReturn")
	defer span.End()

	switch condition {
	case models.ConditionGood, models.ConditionDamaged, models.ConditionMissingItems, models.ConditionTampered:
	default:
		return nil, fmt.Errorf("%w: unknown return condition %q", models.ErrInvalidAmount, condition)
	}

	var records []models.ReturnSettlement
	var order *models.Order
	err := rs.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		order, err = rs.store.GetOrderForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if !models.RTOPendingStatuses[order.Status] {
			return &models.InvalidTransitionError{
				Channel: order.Channel,
				From:    order.Status,
				To:      models.OrderStatusReturned,
			}
		}

		items, err := rs.store.GetOrderItemsByOrderIDTx(ctx, tx, orderID)
		if err != nil {
			return err
		}

		restocks := conditionRestocks(condition)
		for _, item := range items {
			if restocks {
				if err := rs.inventory.RestockTx(ctx, tx, item.VariantID, item.Quantity,
					condition, &orderID, inspector, notes); err != nil {
					return err
				}
			}

			record := models.ReturnSettlement{
				OrderID:     orderID,
				OrderItemID: item.ID,
				Condition:   condition,
				Restocked:   restocks,
				Inspector:   inspector,
				Notes:       notes,
			}
			if err := rs.store.InsertReturnSettlement(ctx, tx, &record); err != nil {
				return fmt.Errorf("failed to record return QC: %w", err)
			}
			records = append(records, record)

			if err := rs.store.UpdateOrderItemReturnState(ctx, tx, item.ID, itemReturnState(condition)); err != nil {
				return err
			}
		}

		return rs.orders.transitionTx(ctx, tx, order, models.OrderStatusReturned, inspector)
	})
	if err != nil {
		return nil, err
	}

	util.ReturnsVerifiedTotal.WithLabelValues(condition).Inc()
	rs.orders.afterStatusChange(ctx, order, models.OrderStatusReturnReceived, models.OrderStatusReturned, inspector)

	event := &models.ReturnVerifiedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeReturnVerified,
			Actor:     inspector,
			Timestamp: time.Now(),
		},
		OrderID:   orderID,
		Condition: condition,
		Restocked: conditionRestocks(condition),
	}
	if err := rs.publisher.PublishOrderEvent(ctx, orderID, event); err != nil {
		rs.logger.Error("Failed to publish ReturnVerified event",
			zap.Int64("order_id", orderID), zap.Error(err))
	}

	return records, nil
}

// MarkLost moves an undeliverable order to lost_in_transit for carrier
// dispute. Only permitted from in-transit or RTO-related statuses;
// inventory is untouched.
func (rs *ReturnsService) MarkLost(ctx context.Context, orderID int64, actor, evidence string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "ReturnsService.MarkLost")
	defer span.End()

	if evidence == "" {
		return nil, fmt.Errorf("%w: marking an order lost requires evidence", models.ErrInvalidAmount)
	}

	var order *models.Order
	var from string
	err := rs.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		order, err = rs.store.GetOrderForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if !models.LossEligibleStatuses[order.Status] {
			return &models.InvalidTransitionError{
				Channel: order.Channel,
				From:    order.Status,
				To:      models.OrderStatusLostInTransit,
			}
		}
		from = order.Status
		return rs.orders.transitionTx(ctx, tx, order, models.OrderStatusLostInTransit, actor)
	})
	if err != nil {
		return nil, err
	}

	rs.logger.Warn("Order marked lost in transit",
		zap.Int64("order_id", orderID),
		zap.String("actor", actor),
		zap.String("evidence", evidence))
	rs.orders.afterStatusChange(ctx, order, from, models.OrderStatusLostInTransit, actor)

	return order, nil
}
