package service

import (
	"context"

	"order-engine/internal/models"
	"order-engine/internal/util"

	"github.com/jmoiron/sqlx"
)

// StatusHook runs synchronously at the end of a status-mutating
// operation, inside the same transaction as the status write. A hook
// error aborts the whole unit. This replaces trigger-style side
// effects: there is exactly one code path that applies a transition,
// so an effect can never fire twice for one write.
type StatusHook func(ctx context.Context, tx *sqlx.Tx, order *models.Order, from, to, actor string) error

// StatusHooks is an ordered observer list for order transitions.
type StatusHooks struct {
	hooks []StatusHook
}

// NewStatusHooks creates an empty hook list.
func NewStatusHooks() *StatusHooks {
	return &StatusHooks{}
}

// Register appends a hook. Hooks run in registration order.
func (h *StatusHooks) Register(hook StatusHook) {
	h.hooks = append(h.hooks, hook)
}

// Run executes all hooks; the first error aborts.
func (h *StatusHooks) Run(ctx context.Context, tx *sqlx.Tx, order *models.Order, from, to, actor string) error {
	for _, hook := range h.hooks {
		if err := hook(ctx, tx, order, from, to, actor); err != nil {
			return err
		}
	}
	return nil
}

// milestoneColumn maps a target status to the lifecycle timestamp it
// stamps, empty when none applies.
func milestoneColumn(to string) string {
	switch to {
	case models.OrderStatusPacked:
		return "packed_at"
	case models.OrderStatusAssigned, models.OrderStatusDispatched:
		return "dispatched_at"
	case models.OrderStatusDelivered:
		return "delivered_at"
	case models.OrderStatusReturned:
		return "returned_at"
	}
	return ""
}

// Inventory effects of a transition.
const (
	stockEffectNone    = ""
	stockEffectRelease = "release"
	stockEffectDeduct  = "deduct"
)

// stockEffect decides what the inventory ledger must do alongside a
// status write. A cancellation before physical deduction returns the
// reservation to the sellable pool; a walk-in sale deducts at the
// counter, since no manifest ever dispatches it. Orders that already
// shipped keep their deduction and come back through the return
// pipeline instead. Redirected orders never reserved anything: their
// lines reuse goods deducted for the parent order.
func stockEffect(order *models.Order, to string) string {
	switch {
	case to == models.OrderStatusCancelled && order.DispatchedAt == nil &&
		order.DeliveredAt == nil && order.ParentOrderID == nil:
		return stockEffectRelease
	case order.Channel == models.ChannelPOS && to == models.OrderStatusDelivered && order.DeliveredAt == nil:
		return stockEffectDeduct
	}
	return stockEffectNone
}

// metricsHook counts committed transitions. It observes only; counting
// a transition that later rolls back slightly overcounts, which is
// acceptable for a monotonic counter.
func metricsHook(ctx context.Context, tx *sqlx.Tx, order *models.Order, from, to, actor string) error {
	util.OrderTransitionsTotal.WithLabelValues(order.Channel, to).Inc()
	return nil
}
