package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"order-engine/internal/broker"
	"order-engine/internal/models"
	"order-engine/internal/redisclient"
	"order-engine/internal/store"
	"order-engine/internal/util"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const defaultOrderCacheTTL = 5 * time.Minute

// OrderService owns the order status state machine. Every status
// mutation in the engine, no matter which operation triggers it, goes
// through transitionTx so the guard and the write share one atomic unit.
type OrderService struct {
	store     *store.Store
	redis     *redisclient.Client
	publisher *broker.EventPublisher
	inventory *InventoryService
	hooks     *StatusHooks
	cacheTTL  time.Duration
	logger    *zap.Logger
}

// NewOrderService creates a new order service with the built-in
// milestone, metrics and stock hooks registered.
func NewOrderService(
	store *store.Store,
	redis *redisclient.Client,
	publisher *broker.EventPublisher,
	inventory *InventoryService,
) *OrderService {
	s := &OrderService{
		store:     store,
		redis:     redis,
		publisher: publisher,
		inventory: inventory,
		hooks:     NewStatusHooks(),
		cacheTTL:  defaultOrderCacheTTL,
		logger:    util.GetLogger(),
	}

	s.hooks.Register(s.milestoneHook)
	s.hooks.Register(metricsHook)
	s.hooks.Register(s.stockHook)
	return s
}

// SetCacheTTL overrides the read-through cache lifetime for orders.
func (s *OrderService) SetCacheTTL(ttl time.Duration) {
	if ttl > 0 {
		s.cacheTTL = ttl
	}
}

// RegisterStatusHook adds an observer to the transition pipeline.
func (s *OrderService) RegisterStatusHook(hook StatusHook) {
	s.hooks.Register(hook)
}

// TransitionOption configures a single transition attempt.
type TransitionOption func(*transitionOptions)

type transitionOptions struct {
	override bool
	reason   string
}

// WithOverride permits a privileged transition out of a terminal state
// or against the table. The reason is mandatory and lands in the
// status log.
func WithOverride(reason string) TransitionOption {
	return func(o *transitionOptions) {
		o.override = true
		o.reason = reason
	}
}

// Transition performs one guarded status change as its own atomic unit.
func (s *OrderService) Transition(ctx context.Context, orderID int64, to, actor string, opts ...TransitionOption) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.Transition")
	defer span.End()

	var order *models.Order
	var from string
	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		order, err = s.store.GetOrderForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		from = order.Status
		return s.transitionTx(ctx, tx, order, to, actor, opts...)
	})
	if err != nil {
		return nil, err
	}

	s.afterStatusChange(ctx, order, from, to, actor, opts...)
	return order, nil
}

// transitionTx applies a guarded status change to an already-locked
// order inside the caller's transaction.
func (s *OrderService) transitionTx(ctx context.Context, tx *sqlx.Tx, order *models.Order, to, actor string, opts ...TransitionOption) error {
	var o transitionOptions
	for _, opt := range opts {
		opt(&o)
	}

	from := order.Status
	if o.override {
		if o.reason == "" {
			return fmt.Errorf("%w: override requires a reason", models.ErrInvalidTransition)
		}
		if !models.ValidOrderStatus(order.Channel, to) {
			util.OrderTransitionsRejected.WithLabelValues(order.Channel).Inc()
			return &models.InvalidTransitionError{Channel: order.Channel, From: from, To: to}
		}
	} else if err := models.CanTransitionOrder(order.Channel, from, to); err != nil {
		util.OrderTransitionsRejected.WithLabelValues(order.Channel).Inc()
		return err
	}

	if err := s.store.UpdateOrderStatus(ctx, tx, order.ID, to); err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	logEntry := &models.OrderStatusLog{
		OrderID:        order.ID,
		FromStatus:     from,
		ToStatus:       to,
		Actor:          actor,
		Override:       o.override,
		OverrideReason: o.reason,
	}
	if err := s.store.InsertOrderStatusLog(ctx, tx, logEntry); err != nil {
		return fmt.Errorf("failed to log status transition: %w", err)
	}

	order.Status = to
	return s.hooks.Run(ctx, tx, order, from, to, actor)
}

// afterStatusChange runs the post-commit side effects: cache
// invalidation and event publication. Failures here are logged only.
func (s *OrderService) afterStatusChange(ctx context.Context, order *models.Order, from, to, actor string, opts ...TransitionOption) {
	var o transitionOptions
	for _, opt := range opts {
		opt(&o)
	}

	if err := s.redis.Invalidate(ctx, redisclient.OrderKey(order.ID)); err != nil {
		s.logger.Warn("Failed to invalidate order cache",
			zap.Int64("order_id", order.ID), zap.Error(err))
	}

	event := &models.OrderStatusChangedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderStatusChanged,
			Actor:     actor,
			Timestamp: time.Now(),
		},
		OrderID:        order.ID,
		Channel:        order.Channel,
		FromStatus:     from,
		ToStatus:       to,
		Override:       o.override,
		OverrideReason: o.reason,
	}
	if err := s.publisher.PublishOrderEvent(ctx, order.ID, event); err != nil {
		s.logger.Error("Failed to publish OrderStatusChanged event",
			zap.Int64("order_id", order.ID), zap.Error(err))
	}
}

// GetOrder retrieves an order with its items, read-through cached.
func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*models.Order, []models.OrderItem, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder")
	defer span.End()

	var cached models.Order
	if hit, err := s.redis.GetJSON(ctx, redisclient.OrderKey(orderID), &cached); err == nil && hit {
		items, err := s.store.GetOrderItemsByOrderID(ctx, orderID)
		if err != nil {
			return nil, nil, err
		}
		return &cached, items, nil
	}

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	items, err := s.store.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	if err := s.redis.SetJSON(ctx, redisclient.OrderKey(orderID), order, s.cacheTTL); err != nil {
		s.logger.Warn("Failed to cache order", zap.Int64("order_id", orderID), zap.Error(err))
	}

	return order, items, nil
}

// GetStatusLog retrieves the transition history for an order.
func (s *OrderService) GetStatusLog(ctx context.Context, orderID int64) ([]models.OrderStatusLog, error) {
	if _, err := s.store.GetOrderByID(ctx, orderID); err != nil {
		return nil, err
	}
	return s.store.GetOrderStatusLogs(ctx, orderID)
}

// milestoneHook stamps the lifecycle timestamp matching the new status.
// First write wins; re-entering a state keeps the original timestamp.
func (s *OrderService) milestoneHook(ctx context.Context, tx *sqlx.Tx, order *models.Order, from, to, actor string) error {
	column := milestoneColumn(to)
	if column == "" {
		return nil
	}
	return s.store.SetOrderMilestone(ctx, tx, order.ID, column)
}

// stockHook keeps the inventory ledger in step with the status write.
// Cancelling an order that was never dispatched releases every line's
// reservation; a POS delivery deducts at the counter. Both run inside
// the transition's transaction, so status and stock move together or
// not at all.
func (s *OrderService) stockHook(ctx context.Context, tx *sqlx.Tx, order *models.Order, from, to, actor string) error {
	effect := stockEffect(order, to)
	if effect == stockEffectNone || s.inventory == nil {
		return nil
	}

	items, err := s.store.GetOrderItemsByOrderIDTx(ctx, tx, order.ID)
	if err != nil {
		return err
	}
	for _, item := range items {
		switch effect {
		case stockEffectRelease:
			err = s.inventory.ReleaseTx(ctx, tx, item.VariantID, item.Quantity, &order.ID, actor)
		case stockEffectDeduct:
			err = s.inventory.DeductTx(ctx, tx, item.VariantID, item.Quantity, &order.ID, actor)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// NewOrderCode builds a human-readable order code. Malformed legacy
// formats are not accepted anywhere; codes are always generated here.
func NewOrderCode() string {
	return fmt.Sprintf("ORD-%s-%s",
		time.Now().Format("20060102"),
		strings.ToUpper(uuid.New().String()[:8]))
}

// NewManifestCode builds a manifest code.
func NewManifestCode(carrierType string) string {
	prefix := "RUN"
	if carrierType == models.CarrierCourier {
		prefix = "MAN"
	}
	return fmt.Sprintf("%s-%s-%s", prefix,
		time.Now().Format("20060102"),
		strings.ToUpper(uuid.New().String()[:8]))
}

// NewLeadCode builds a lead code.
func NewLeadCode() string {
	return fmt.Sprintf("LD-%s-%s",
		time.Now().Format("20060102"),
		strings.ToUpper(uuid.New().String()[:8]))
}
