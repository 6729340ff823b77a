package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for the engine's error taxonomy. Callers classify
// outcomes with errors.Is/errors.As; nothing here terminates the process.
var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidTransition   = errors.New("invalid transition")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrAlreadyProcessed    = errors.New("already processed")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	ErrNoValidOrders       = errors.New("no valid orders")
)

// InvalidTransitionError reports a rejected status change with enough
// context for the UI to render it as guidance.
type InvalidTransitionError struct {
	Channel string
	From    string
	To      string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s for channel %s", e.From, e.To, e.Channel)
}

func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// InsufficientStockError reports a failed reservation with the count
// that was actually available at lock time.
type InsufficientStockError struct {
	VariantID int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for variant %d: requested=%d available=%d",
		e.VariantID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}
