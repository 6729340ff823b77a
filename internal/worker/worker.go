package worker

import (
	"context"
	"fmt"
	"log"

	"order-engine/internal/broker"
	"order-engine/internal/models"
	"order-engine/internal/service"
	"order-engine/internal/store"
	"order-engine/internal/util"

	"go.uber.org/zap"
)

// ArchiveWorker sweeps the domain-event stream and snapshots leads and
// orders that reached a terminal status. It is the only archival
// trigger, so a failed snapshot can never roll back the business
// operation that closed the entity; the event is simply retried.
type ArchiveWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	store        *store.Store
	archive      *service.ArchiveService
	logger       *zap.Logger
}

// NewArchiveWorker creates a new archive worker
func NewArchiveWorker(
	consumer *broker.Consumer,
	store *store.Store,
	archive *service.ArchiveService,
) *ArchiveWorker {
	w := &ArchiveWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		store:        store,
		archive:      archive,
		logger:       util.GetLogger(),
	}

	w.eventHandler.OnOrderStatusChanged(w.handleOrderStatusChanged)
	w.eventHandler.OnLeadClosed(w.handleLeadClosed)
	return w
}

// Start starts the worker
func (w *ArchiveWorker) Start(ctx context.Context) error {
	log.Println("Starting archive worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *ArchiveWorker) Stop() error {
	log.Println("Stopping archive worker...")
	return w.consumer.Close()
}

func (w *ArchiveWorker) handleOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	if !event.Terminal() {
		return nil
	}

	processed, err := w.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		return nil
	}

	reason := fmt.Sprintf("order reached %s", event.ToStatus)
	if err := w.archive.ArchiveOrder(ctx, event.OrderID, reason); err != nil {
		w.logger.Error("Failed to archive order",
			zap.Int64("order_id", event.OrderID), zap.Error(err))
		return err
	}

	return w.store.MarkEventProcessed(ctx, event.EventID, event.EventType)
}

func (w *ArchiveWorker) handleLeadClosed(ctx context.Context, event *models.LeadClosedEvent) error {
	processed, err := w.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		return nil
	}

	reason := fmt.Sprintf("lead reached %s", event.Status)
	if err := w.archive.ArchiveLead(ctx, event.LeadID, reason); err != nil {
		w.logger.Error("Failed to archive lead",
			zap.Int64("lead_id", event.LeadID), zap.Error(err))
		return err
	}

	return w.store.MarkEventProcessed(ctx, event.EventID, event.EventType)
}
