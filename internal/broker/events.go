package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"order-engine/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher handles publishing domain events. Publishing happens
// after the owning transaction commits; a publish failure is logged by
// the caller and never rolls back the business operation.
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishOrderEvent publishes any order-keyed event
func (ep *EventPublisher) PublishOrderEvent(ctx context.Context, orderID int64, event interface{}) error {
	key := fmt.Sprintf("order-%d", orderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishLeadEvent publishes any lead-keyed event
func (ep *EventPublisher) PublishLeadEvent(ctx context.Context, leadID int64, event interface{}) error {
	key := fmt.Sprintf("lead-%d", leadID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishManifestEvent publishes any manifest-keyed event
func (ep *EventPublisher) PublishManifestEvent(ctx context.Context, manifestID int64, event interface{}) error {
	key := fmt.Sprintf("manifest-%d", manifestID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishSettlementEvent publishes a rider settlement event
func (ep *EventPublisher) PublishSettlementEvent(ctx context.Context, settlementID int64, event interface{}) error {
	key := fmt.Sprintf("settlement-%d", settlementID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishVendorEvent publishes a vendor-keyed event
func (ep *EventPublisher) PublishVendorEvent(ctx context.Context, vendorID int64, event interface{}) error {
	key := fmt.Sprintf("vendor-%d", vendorID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventHandler routes incoming events to registered callbacks.
type EventHandler struct {
	onOrderStatusChanged func(context.Context, *models.OrderStatusChangedEvent) error
	onLeadClosed         func(context.Context, *models.LeadClosedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnOrderStatusChanged registers a handler for OrderStatusChanged events
func (eh *EventHandler) OnOrderStatusChanged(handler func(context.Context, *models.OrderStatusChangedEvent) error) {
	eh.onOrderStatusChanged = handler
}

// OnLeadClosed registers a handler for LeadClosed events
func (eh *EventHandler) OnLeadClosed(handler func(context.Context, *models.LeadClosedEvent) error) {
	eh.onLeadClosed = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	switch baseEvent.EventType {
	case models.EventTypeOrderStatusChanged:
		if eh.onOrderStatusChanged != nil {
			var event models.OrderStatusChangedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderStatusChanged event: %w", err)
			}
			return eh.onOrderStatusChanged(ctx, &event)
		}

	case models.EventTypeLeadClosed:
		if eh.onLeadClosed != nil {
			var event models.LeadClosedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal LeadClosed event: %w", err)
			}
			return eh.onLeadClosed(ctx, &event)
		}

	default:
		log.Printf("Unhandled event type: %s", baseEvent.EventType)
	}

	return nil
}
