package service

import (
	"errors"
	"testing"

	"order-engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutcomeStatus(t *testing.T) {
	cases := []struct {
		channel string
		outcome string
		want    string
	}{
		{models.ChannelLocal, models.OutcomeDelivered, models.OrderStatusDelivered},
		{models.ChannelCourier, models.OutcomeDelivered, models.OrderStatusDelivered},

		{models.ChannelLocal, models.OutcomeCustomerRefused, models.OrderStatusReturnReceived},
		{models.ChannelLocal, models.OutcomeReturned, models.OrderStatusReturnReceived},
		{models.ChannelCourier, models.OutcomeDamaged, models.OrderStatusReturnReceived},

		// A rider retries; a courier shipment parks until re-routed.
		{models.ChannelLocal, models.OutcomeRescheduled, models.OrderStatusNextAttempt},
		{models.ChannelLocal, models.OutcomeUnavailable, models.OrderStatusNextAttempt},
		{models.ChannelCourier, models.OutcomeRescheduled, models.OrderStatusHold},
		{models.ChannelCourier, models.OutcomeWrongAddress, models.OrderStatusHold},

		{models.ChannelLocal, models.OutcomeLost, models.OrderStatusLostInTransit},
		{models.ChannelCourier, models.OutcomeLost, models.OrderStatusLostInTransit},
	}

	for _, tc := range cases {
		got, err := OutcomeStatus(tc.channel, tc.outcome)
		require.NoError(t, err, "%s/%s", tc.channel, tc.outcome)
		assert.Equal(t, tc.want, got, "%s/%s", tc.channel, tc.outcome)
	}
}

// Every outcome must land on a status the transition table actually
// permits from the state deliveries are attempted in, or recording an
// outcome could never succeed.
func TestOutcomeStatusReachableFromInTransit(t *testing.T) {
	inTransit := map[string]string{
		models.ChannelLocal:   models.OrderStatusSentForDelivery,
		models.ChannelCourier: models.OrderStatusDispatched,
	}
	outcomes := []string{
		models.OutcomeDelivered, models.OutcomeCustomerRefused, models.OutcomeReturned,
		models.OutcomeDamaged, models.OutcomeRescheduled, models.OutcomeUnavailable,
		models.OutcomeWrongAddress, models.OutcomeLost,
	}

	for channel, from := range inTransit {
		for _, outcome := range outcomes {
			target, err := OutcomeStatus(channel, outcome)
			require.NoError(t, err, "%s/%s", channel, outcome)
			assert.NoError(t, models.CanTransitionOrder(channel, from, target),
				"%s/%s -> %s", channel, outcome, target)
		}
	}
}

func TestOutcomeStatusRejectsUnknown(t *testing.T) {
	_, err := OutcomeStatus(models.ChannelLocal, "vanished")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInvalidAmount))
}

func TestNewManifestCode(t *testing.T) {
	assert.Regexp(t, `^RUN-\d{8}-[0-9A-F]{8}$`, NewManifestCode(models.CarrierRider))
	assert.Regexp(t, `^MAN-\d{8}-[0-9A-F]{8}$`, NewManifestCode(models.CarrierCourier))
}
