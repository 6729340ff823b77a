package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"order-engine/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMilestoneColumn(t *testing.T) {
	assert.Equal(t, "packed_at", milestoneColumn(models.OrderStatusPacked))
	assert.Equal(t, "dispatched_at", milestoneColumn(models.OrderStatusAssigned))
	assert.Equal(t, "dispatched_at", milestoneColumn(models.OrderStatusDispatched))
	assert.Equal(t, "delivered_at", milestoneColumn(models.OrderStatusDelivered))
	assert.Equal(t, "returned_at", milestoneColumn(models.OrderStatusReturned))

	assert.Equal(t, "", milestoneColumn(models.OrderStatusHold))
	assert.Equal(t, "", milestoneColumn(models.OrderStatusCancelled))
}

func TestStatusHooksRunInOrder(t *testing.T) {
	hooks := NewStatusHooks()

	var calls []string
	hooks.Register(func(ctx context.Context, tx *sqlx.Tx, order *models.Order, from, to, actor string) error {
		calls = append(calls, "first")
		return nil
	})
	hooks.Register(func(ctx context.Context, tx *sqlx.Tx, order *models.Order, from, to, actor string) error {
		calls = append(calls, "second")
		return nil
	})

	order := &models.Order{ID: 1, Channel: models.ChannelLocal}
	require.NoError(t, hooks.Run(context.Background(), nil, order, models.OrderStatusPacked, models.OrderStatusAssigned, "tester"))
	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestStatusHooksStopOnError(t *testing.T) {
	hooks := NewStatusHooks()
	boom := errors.New("boom")

	ran := false
	hooks.Register(func(ctx context.Context, tx *sqlx.Tx, order *models.Order, from, to, actor string) error {
		return boom
	})
	hooks.Register(func(ctx context.Context, tx *sqlx.Tx, order *models.Order, from, to, actor string) error {
		ran = true
		return nil
	})

	order := &models.Order{ID: 1, Channel: models.ChannelLocal}
	err := hooks.Run(context.Background(), nil, order, models.OrderStatusPacked, models.OrderStatusAssigned, "tester")
	require.ErrorIs(t, err, boom)
	assert.False(t, ran)
}

func TestStockEffect(t *testing.T) {
	now := time.Now()

	// Cancelling before dispatch hands the reservation back, on any
	// channel.
	for _, channel := range []string{models.ChannelLocal, models.ChannelCourier, models.ChannelPOS} {
		order := &models.Order{ID: 1, Channel: channel}
		assert.Equal(t, stockEffectRelease, stockEffect(order, models.OrderStatusCancelled), channel)
	}

	// Once dispatched the stock is already deducted; cancellation must
	// not release anything.
	dispatched := &models.Order{ID: 2, Channel: models.ChannelLocal, DispatchedAt: &now}
	assert.Equal(t, stockEffectNone, stockEffect(dispatched, models.OrderStatusCancelled))

	// A redirected order reuses goods deducted for its parent and never
	// held a reservation of its own.
	parent := int64(9)
	redirected := &models.Order{ID: 5, Channel: models.ChannelLocal, ParentOrderID: &parent}
	assert.Equal(t, stockEffectNone, stockEffect(redirected, models.OrderStatusCancelled))

	// A walk-in sale deducts at the counter on delivery, exactly once.
	pos := &models.Order{ID: 3, Channel: models.ChannelPOS}
	assert.Equal(t, stockEffectDeduct, stockEffect(pos, models.OrderStatusDelivered))
	posDelivered := &models.Order{ID: 3, Channel: models.ChannelPOS, DeliveredAt: &now}
	assert.Equal(t, stockEffectNone, stockEffect(posDelivered, models.OrderStatusDelivered))
	assert.Equal(t, stockEffectNone, stockEffect(posDelivered, models.OrderStatusCancelled))

	// Delivery channels deduct at manifest creation, never here.
	local := &models.Order{ID: 4, Channel: models.ChannelLocal, DispatchedAt: &now}
	assert.Equal(t, stockEffectNone, stockEffect(local, models.OrderStatusDelivered))

	// Ordinary pipeline moves touch no stock.
	assert.Equal(t, stockEffectNone, stockEffect(&models.Order{Channel: models.ChannelPOS}, models.OrderStatusHold))
	assert.Equal(t, stockEffectNone, stockEffect(&models.Order{Channel: models.ChannelLocal}, models.OrderStatusAssigned))
}
