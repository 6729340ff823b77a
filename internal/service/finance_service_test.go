package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestSettlementShortage(t *testing.T) {
	expected := decimal.NewFromInt(5000)

	shortage := settlementShortage(expected, decimal.NewFromInt(4200))
	assert.True(t, shortage.Equal(decimal.NewFromInt(800)))

	// Exact hand-in.
	assert.True(t, settlementShortage(expected, expected).IsZero())

	// Over-collection never produces a negative shortage.
	assert.True(t, settlementShortage(expected, decimal.NewFromInt(5300)).IsZero())
}

func TestSettlementShortageFractional(t *testing.T) {
	expected := decimal.RequireFromString("1050.50")
	received := decimal.RequireFromString("1000.25")

	shortage := settlementShortage(expected, received)
	assert.True(t, shortage.Equal(decimal.RequireFromString("50.25")))
}
