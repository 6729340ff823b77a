package models

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderCODDue(t *testing.T) {
	order := &Order{
		TotalAmount: decimal.NewFromInt(2500),
		PaidAmount:  decimal.NewFromInt(1000),
	}
	assert.True(t, order.CODDue().Equal(decimal.NewFromInt(1500)))

	order.PaidAmount = order.TotalAmount
	assert.True(t, order.CODDue().IsZero())
}

func TestStockVariantAvailable(t *testing.T) {
	v := &StockVariant{OnHand: 10, Reserved: 4}
	assert.Equal(t, 6, v.Available())
}

func TestInsufficientStockErrorUnwraps(t *testing.T) {
	err := error(&InsufficientStockError{VariantID: 7, Requested: 5, Available: 2})
	assert.True(t, errors.Is(err, ErrInsufficientStock))

	var se *InsufficientStockError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, int64(7), se.VariantID)
}

func TestOrderStatusChangedEventTerminal(t *testing.T) {
	event := &OrderStatusChangedEvent{
		Channel:  ChannelCourier,
		ToStatus: OrderStatusDelivered,
	}
	assert.True(t, event.Terminal())

	event.Channel = ChannelPOS
	assert.False(t, event.Terminal())

	event.Channel = ChannelLocal
	event.ToStatus = OrderStatusHold
	assert.False(t, event.Terminal())
}
