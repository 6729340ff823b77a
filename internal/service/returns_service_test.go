package service

import (
	"testing"

	"order-engine/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestItemReturnState(t *testing.T) {
	assert.Equal(t, models.ItemReturnReceivedHub, itemReturnState(models.ConditionGood))
	assert.Equal(t, models.ItemReturnReceivedHub, itemReturnState(models.ConditionMissingItems))
	assert.Equal(t, models.ItemReturnDamagedHub, itemReturnState(models.ConditionDamaged))
	assert.Equal(t, models.ItemReturnDamagedHub, itemReturnState(models.ConditionTampered))
}

func TestConditionRestocks(t *testing.T) {
	// Damaged and tampered units still re-enter stock, in the damaged
	// counter. Only missing units restock nothing.
	assert.True(t, conditionRestocks(models.ConditionGood))
	assert.True(t, conditionRestocks(models.ConditionDamaged))
	assert.True(t, conditionRestocks(models.ConditionTampered))
	assert.False(t, conditionRestocks(models.ConditionMissingItems))
}
