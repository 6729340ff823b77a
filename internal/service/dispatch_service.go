package service

import (
	"context"
	"fmt"
	"time"

	"order-engine/internal/broker"
	"order-engine/internal/models"
	"order-engine/internal/redisclient"
	"order-engine/internal/store"
	"order-engine/internal/util"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DispatchService groups packed orders into delivery manifests, records
// per-order delivery outcomes and reconciles manifest cash.
type DispatchService struct {
	store     *store.Store
	orders    *OrderService
	inventory *InventoryService
	publisher *broker.EventPublisher
	redis     *redisclient.Client
	logger    *zap.Logger
}

// NewDispatchService creates a new dispatch service
func NewDispatchService(
	store *store.Store,
	orders *OrderService,
	inventory *InventoryService,
	publisher *broker.EventPublisher,
	redis *redisclient.Client,
) *DispatchService {
	return &DispatchService{
		store:     store,
		orders:    orders,
		inventory: inventory,
		publisher: publisher,
		redis:     redis,
		logger:    util.GetLogger(),
	}
}

// CreateManifestResult reports which orders made it onto the manifest.
type CreateManifestResult struct {
	Manifest *models.Manifest `json:"manifest"`
	Attached []int64          `json:"attached"`
	Skipped  []int64          `json:"skipped"`
}

// CreateManifest hands a batch of orders to one rider or courier. Only
// packed, unassigned orders qualify; non-qualifying ids are skipped and
// reported. The whole call fails with NoValidOrders when none qualify.
// Attaching an order advances it to its channel's dispatch state and
// physically deducts its reserved stock in the same transaction, so a
// manifest can never exist whose stock is still counted as on hand.
func (ds *DispatchService) CreateManifest(ctx context.Context, carrierType string, carrierID int64, orderIDs []int64, actor string) (*CreateManifestResult, error) {
	ctx, span := util.StartSpan(ctx, "DispatchService.CreateManifest")
	defer span.End()

	if carrierType != models.CarrierRider && carrierType != models.CarrierCourier {
		return nil, fmt.Errorf("%w: unknown carrier type %q", models.ErrInvalidAmount, carrierType)
	}
	if len(orderIDs) == 0 {
		return nil, models.ErrNoValidOrders
	}

	result := &CreateManifestResult{}
	err := ds.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		orders, err := ds.store.GetOrdersByIDsForUpdate(ctx, tx, orderIDs)
		if err != nil {
			return err
		}

		qualifying := make([]*models.Order, 0, len(orders))
		seen := make(map[int64]bool, len(orders))
		for i := range orders {
			o := &orders[i]
			seen[o.ID] = true
			if o.Status != models.OrderStatusPacked || o.ManifestID != nil {
				result.Skipped = append(result.Skipped, o.ID)
				continue
			}
			if carrierType == models.CarrierCourier && o.Channel != models.ChannelCourier {
				result.Skipped = append(result.Skipped, o.ID)
				continue
			}
			if carrierType == models.CarrierRider && o.Channel != models.ChannelLocal {
				result.Skipped = append(result.Skipped, o.ID)
				continue
			}
			qualifying = append(qualifying, o)
		}
		for _, id := range orderIDs {
			if !seen[id] {
				result.Skipped = append(result.Skipped, id)
			}
		}
		if len(qualifying) == 0 {
			return models.ErrNoValidOrders
		}

		expectedCOD := decimal.Zero
		for _, o := range qualifying {
			expectedCOD = expectedCOD.Add(o.CODDue())
		}

		manifest := &models.Manifest{
			Code:         NewManifestCode(carrierType),
			CarrierType:  carrierType,
			CarrierID:    carrierID,
			Status:       models.ManifestStatusOpen,
			ExpectedCOD:  expectedCOD,
			CollectedCOD: decimal.Zero,
			Variance:     decimal.Zero,
			CreatedBy:    actor,
		}
		if err := ds.store.CreateManifest(ctx, tx, manifest); err != nil {
			return fmt.Errorf("failed to create manifest: %w", err)
		}
		result.Manifest = manifest

		for _, o := range qualifying {
			target := models.DispatchStatus(o.Channel)
			if err := ds.orders.transitionTx(ctx, tx, o, target, actor); err != nil {
				return err
			}
			if err := ds.store.SetOrderManifest(ctx, tx, o.ID, &manifest.ID); err != nil {
				return err
			}

			items, err := ds.store.GetOrderItemsByOrderIDTx(ctx, tx, o.ID)
			if err != nil {
				return err
			}
			for _, item := range items {
				if err := ds.inventory.DeductTx(ctx, tx, item.VariantID, item.Quantity, &o.ID, actor); err != nil {
					return err
				}
			}
			result.Attached = append(result.Attached, o.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	util.ManifestsCreatedTotal.WithLabelValues(carrierType).Inc()
	ds.invalidateOrders(ctx, result.Attached)
	ds.logger.Info("Manifest created",
		zap.Int64("manifest_id", result.Manifest.ID),
		zap.String("carrier_type", carrierType),
		zap.Int("attached", len(result.Attached)),
		zap.Int("skipped", len(result.Skipped)))

	event := &models.ManifestCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeManifestCreated,
			Actor:     actor,
			Timestamp: time.Now(),
		},
		ManifestID:  result.Manifest.ID,
		CarrierType: carrierType,
		CarrierID:   carrierID,
		OrderIDs:    result.Attached,
		ExpectedCOD: result.Manifest.ExpectedCOD,
	}
	if err := ds.publisher.PublishManifestEvent(ctx, result.Manifest.ID, event); err != nil {
		ds.logger.Error("Failed to publish ManifestCreated event",
			zap.Int64("manifest_id", result.Manifest.ID), zap.Error(err))
	}

	return result, nil
}

// OutcomeStatus maps a delivery outcome to the order status it implies
// for the channel. The table is fixed; unknown outcomes are rejected.
func OutcomeStatus(channel, outcome string) (string, error) {
	switch outcome {
	case models.OutcomeDelivered:
		return models.OrderStatusDelivered, nil
	case models.OutcomeCustomerRefused, models.OutcomeReturned, models.OutcomeDamaged:
		return models.OrderStatusReturnReceived, nil
	case models.OutcomeRescheduled, models.OutcomeUnavailable, models.OutcomeWrongAddress:
		if channel == models.ChannelLocal {
			return models.OrderStatusNextAttempt, nil
		}
		return models.OrderStatusHold, nil
	case models.OutcomeLost:
		return models.OrderStatusLostInTransit, nil
	}
	return "", fmt.Errorf("%w: unknown delivery outcome %q", models.ErrInvalidAmount, outcome)
}

// RecordDeliveryOutcome records one delivery attempt: the order takes
// the status the outcome implies, the manifest's running counters and
// COD total move, and an immutable attempt row is appended.
func (ds *DispatchService) RecordDeliveryOutcome(ctx context.Context, manifestID, orderID int64, outcome string, cashCollected decimal.Decimal, proof, actor string) (*models.DeliveryAttempt, error) {
	ctx, span := util.StartSpan(ctx, "DispatchService.RecordDeliveryOutcome")
	defer span.End()

	if cashCollected.IsNegative() {
		return nil, fmt.Errorf("%w: collected cash cannot be negative", models.ErrInvalidAmount)
	}

	var attempt *models.DeliveryAttempt
	var order *models.Order
	var fromStatus string
	err := ds.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		manifest, err := ds.store.GetManifestForUpdate(ctx, tx, manifestID)
		if err != nil {
			return err
		}
		if manifest.Status == models.ManifestStatusSettled {
			return fmt.Errorf("%w: manifest %d already settled", models.ErrAlreadyProcessed, manifestID)
		}

		order, err = ds.store.GetOrderForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.ManifestID == nil || *order.ManifestID != manifestID {
			return fmt.Errorf("order %d not on manifest %d: %w", orderID, manifestID, models.ErrNotFound)
		}

		target, err := OutcomeStatus(order.Channel, outcome)
		if err != nil {
			return err
		}
		fromStatus = order.Status
		if err := ds.orders.transitionTx(ctx, tx, order, target, actor); err != nil {
			return err
		}

		switch outcome {
		case models.OutcomeDelivered:
			manifest.DeliveredCount++
			manifest.CollectedCOD = manifest.CollectedCOD.Add(cashCollected)
		case models.OutcomeCustomerRefused, models.OutcomeReturned, models.OutcomeDamaged, models.OutcomeLost:
			manifest.ReturnedCount++
		default:
			manifest.RescheduledCount++
		}
		if err := ds.store.UpdateManifestCounters(ctx, tx, manifest); err != nil {
			return fmt.Errorf("failed to update manifest counters: %w", err)
		}

		attempt = &models.DeliveryAttempt{
			ManifestID:    manifestID,
			OrderID:       orderID,
			Outcome:       outcome,
			CashCollected: cashCollected,
			Proof:         proof,
			Actor:         actor,
		}
		return ds.store.InsertDeliveryAttempt(ctx, tx, attempt)
	})
	if err != nil {
		return nil, err
	}

	util.DeliveryOutcomesTotal.WithLabelValues(outcome).Inc()
	ds.orders.afterStatusChange(ctx, order, fromStatus, order.Status, actor)
	return attempt, nil
}

// SettleManifest reconciles the cash actually handed in against the
// manifest's expected COD and detaches the manifest from its member
// orders so they are no longer in flight.
func (ds *DispatchService) SettleManifest(ctx context.Context, manifestID int64, cashReceived decimal.Decimal, actor string) (*models.Manifest, error) {
	ctx, span := util.StartSpan(ctx, "DispatchService.SettleManifest")
	defer span.End()

	if cashReceived.IsNegative() {
		return nil, fmt.Errorf("%w: cash received cannot be negative", models.ErrInvalidAmount)
	}

	var manifest *models.Manifest
	var memberIDs []int64
	err := ds.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		manifest, err = ds.store.GetManifestForUpdate(ctx, tx, manifestID)
		if err != nil {
			return err
		}
		if manifest.Status == models.ManifestStatusSettled {
			return fmt.Errorf("%w: manifest %d already settled", models.ErrAlreadyProcessed, manifestID)
		}

		var ids []int64
		if err := tx.SelectContext(ctx, &ids,
			"SELECT id FROM orders WHERE manifest_id = $1 ORDER BY id", manifestID); err != nil {
			return err
		}
		memberIDs = ids

		variance := cashReceived.Sub(manifest.ExpectedCOD)
		manifest.Status = models.ManifestStatusSettled
		manifest.CollectedCOD = cashReceived
		manifest.Variance = variance

		if err := ds.store.SettleManifest(ctx, tx, manifestID, cashReceived, variance); err != nil {
			return fmt.Errorf("failed to settle manifest: %w", err)
		}
		return ds.store.DetachOrdersFromManifest(ctx, tx, manifestID)
	})
	if err != nil {
		return nil, err
	}

	ds.invalidateOrders(ctx, memberIDs)
	ds.logger.Info("Manifest settled",
		zap.Int64("manifest_id", manifestID),
		zap.String("expected", manifest.ExpectedCOD.String()),
		zap.String("received", manifest.CollectedCOD.String()),
		zap.String("variance", manifest.Variance.String()))

	event := &models.ManifestSettledEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeManifestSettled,
			Actor:     actor,
			Timestamp: time.Now(),
		},
		ManifestID: manifest.ID,
		Expected:   manifest.ExpectedCOD,
		Received:   manifest.CollectedCOD,
		Variance:   manifest.Variance,
	}
	if err := ds.publisher.PublishManifestEvent(ctx, manifest.ID, event); err != nil {
		ds.logger.Error("Failed to publish ManifestSettled event",
			zap.Int64("manifest_id", manifest.ID), zap.Error(err))
	}

	return manifest, nil
}

// GetManifest retrieves a manifest with its member orders and attempts.
func (ds *DispatchService) GetManifest(ctx context.Context, manifestID int64) (*models.Manifest, []models.Order, []models.DeliveryAttempt, error) {
	manifest, err := ds.store.GetManifestByID(ctx, manifestID)
	if err != nil {
		return nil, nil, nil, err
	}
	orders, err := ds.store.GetManifestOrders(ctx, manifestID)
	if err != nil {
		return nil, nil, nil, err
	}
	attempts, err := ds.store.GetDeliveryAttemptsByManifestID(ctx, manifestID)
	if err != nil {
		return nil, nil, nil, err
	}
	return manifest, orders, attempts, nil
}

func (ds *DispatchService) invalidateOrders(ctx context.Context, orderIDs []int64) {
	keys := make([]string, 0, len(orderIDs))
	for _, id := range orderIDs {
		keys = append(keys, redisclient.OrderKey(id))
	}
	if err := ds.redis.Invalidate(ctx, keys...); err != nil {
		ds.logger.Warn("Failed to invalidate order cache", zap.Error(err))
	}
}
