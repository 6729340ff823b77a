package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalDeliveryHappyPath(t *testing.T) {
	steps := [][2]string{
		{OrderStatusPacked, OrderStatusAssigned},
		{OrderStatusAssigned, OrderStatusSentForDelivery},
		{OrderStatusSentForDelivery, OrderStatusDelivered},
	}

	for _, step := range steps {
		assert.NoError(t, CanTransitionOrder(ChannelLocal, step[0], step[1]),
			"%s -> %s should be allowed", step[0], step[1])
	}
}

func TestCourierHappyPath(t *testing.T) {
	assert.NoError(t, CanTransitionOrder(ChannelCourier, OrderStatusPacked, OrderStatusDispatched))
	assert.NoError(t, CanTransitionOrder(ChannelCourier, OrderStatusDispatched, OrderStatusDelivered))
}

func TestCrossChannelStatusRejected(t *testing.T) {
	// A local order can never take a courier-only status, even from a
	// state that allows onward movement.
	err := CanTransitionOrder(ChannelLocal, OrderStatusPacked, OrderStatusDispatched)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	var te *InvalidTransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, ChannelLocal, te.Channel)
	assert.Equal(t, OrderStatusPacked, te.From)
	assert.Equal(t, OrderStatusDispatched, te.To)

	assert.Error(t, CanTransitionOrder(ChannelCourier, OrderStatusPacked, OrderStatusAssigned))
	assert.Error(t, CanTransitionOrder(ChannelPOS, OrderStatusPacked, OrderStatusSentForDelivery))
}

func TestTerminalStatesRejectAllTransitions(t *testing.T) {
	terminal := []string{
		OrderStatusRefunded, OrderStatusCancelled,
		OrderStatusExchanged, OrderStatusLostInTransit,
	}

	for _, channel := range []string{ChannelLocal, ChannelCourier, ChannelPOS} {
		for _, from := range terminal {
			err := CanTransitionOrder(channel, from, OrderStatusPacked)
			assert.Error(t, err, "%s: %s should be terminal", channel, from)
			assert.Empty(t, AllowedOrderTransitions(channel, from))
		}
	}

	assert.Error(t, CanTransitionOrder(ChannelLocal, OrderStatusDelivered, OrderStatusReturnReceived))
	assert.Error(t, CanTransitionOrder(ChannelCourier, OrderStatusDelivered, OrderStatusReturnReceived))
}

func TestPOSDeliveredStaysOpen(t *testing.T) {
	// Walk-in sales keep an exchange/return window after handover.
	assert.False(t, IsTerminalOrderStatus(ChannelPOS, OrderStatusDelivered))
	assert.NoError(t, CanTransitionOrder(ChannelPOS, OrderStatusDelivered, OrderStatusReturnReceived))
	assert.NoError(t, CanTransitionOrder(ChannelPOS, OrderStatusDelivered, OrderStatusExchanged))

	assert.True(t, IsTerminalOrderStatus(ChannelLocal, OrderStatusDelivered))
	assert.True(t, IsTerminalOrderStatus(ChannelCourier, OrderStatusDelivered))
}

func TestReturnPipeline(t *testing.T) {
	for _, channel := range []string{ChannelLocal, ChannelCourier, ChannelPOS} {
		assert.NoError(t, CanTransitionOrder(channel, OrderStatusReturnReceived, OrderStatusReturned))
		assert.NoError(t, CanTransitionOrder(channel, OrderStatusReturned, OrderStatusRefunded))
	}
}

func TestTransitionTableStaysInsideChannelVocabulary(t *testing.T) {
	// Every row of the table must target statuses the channel knows.
	for key, targets := range orderTransitions {
		assert.True(t, ValidOrderStatus(key.Channel, key.From),
			"%s: from-status %s not in vocabulary", key.Channel, key.From)
		for _, to := range targets {
			assert.True(t, ValidOrderStatus(key.Channel, to),
				"%s: %s -> %s targets unknown status", key.Channel, key.From, to)
		}
	}
}

func TestAllowedOrderTransitions(t *testing.T) {
	allowed := AllowedOrderTransitions(ChannelLocal, OrderStatusSentForDelivery)
	assert.Contains(t, allowed, OrderStatusDelivered)
	assert.Contains(t, allowed, OrderStatusRejected)
	assert.Contains(t, allowed, OrderStatusNextAttempt)
	assert.NotContains(t, allowed, OrderStatusDispatched)

	assert.Nil(t, AllowedOrderTransitions(ChannelLocal, "unknown"))
}

func TestDispatchStatus(t *testing.T) {
	assert.Equal(t, OrderStatusDispatched, DispatchStatus(ChannelCourier))
	assert.Equal(t, OrderStatusAssigned, DispatchStatus(ChannelLocal))
}

func TestLeadPipeline(t *testing.T) {
	assert.NoError(t, CanTransitionLead(LeadStatusIntake, LeadStatusFollowUp))
	assert.NoError(t, CanTransitionLead(LeadStatusFollowUp, LeadStatusFollowUp))
	assert.NoError(t, CanTransitionLead(LeadStatusBusy, LeadStatusConverted))

	assert.Error(t, CanTransitionLead(LeadStatusConverted, LeadStatusFollowUp))
	assert.Error(t, CanTransitionLead(LeadStatusCancelled, LeadStatusFollowUp))

	assert.True(t, IsTerminalLeadStatus(LeadStatusConverted))
	assert.True(t, IsTerminalLeadStatus(LeadStatusCancelled))
	assert.False(t, IsTerminalLeadStatus(LeadStatusBusy))
}

func TestRedirectAndLossEligibility(t *testing.T) {
	assert.True(t, RedirectableOrderStatuses[OrderStatusRejected])
	assert.True(t, RedirectableOrderStatuses[OrderStatusNextAttempt])
	assert.False(t, RedirectableOrderStatuses[OrderStatusDelivered])

	assert.True(t, LossEligibleStatuses[OrderStatusSentForDelivery])
	assert.True(t, LossEligibleStatuses[OrderStatusDispatched])
	assert.False(t, LossEligibleStatuses[OrderStatusPacked])
}
