package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewOrderCode(t *testing.T) {
	code := NewOrderCode()
	assert.Regexp(t, `^ORD-\d{8}-[0-9A-F]{8}$`, code)

	// Codes must not collide within a batch.
	assert.NotEqual(t, code, NewOrderCode())
}

func TestNewLeadCode(t *testing.T) {
	assert.Regexp(t, `^LD-\d{8}-[0-9A-F]{8}$`, NewLeadCode())
}

func TestWithOverride(t *testing.T) {
	var opts transitionOptions
	WithOverride("customer escalation")(&opts)

	assert.True(t, opts.override)
	assert.Equal(t, "customer escalation", opts.reason)
}
