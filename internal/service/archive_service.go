package service

import (
	"context"
	"encoding/json"
	"fmt"

	"order-engine/internal/models"
	"order-engine/internal/store"
	"order-engine/internal/util"

	"go.uber.org/zap"
)

// ArchiveService snapshots terminal leads and orders into immutable
// history records. It runs from the archival sweep, never inside the
// triggering business transaction: an archive failure must not roll
// back the operation that closed the entity.
type ArchiveService struct {
	store  *store.Store
	logger *zap.Logger
}

// NewArchiveService creates a new archive service
func NewArchiveService(store *store.Store) *ArchiveService {
	return &ArchiveService{
		store:  store,
		logger: util.GetLogger(),
	}
}

type orderSnapshot struct {
	Order     *models.Order           `json:"order"`
	Items     []models.OrderItem      `json:"items"`
	StatusLog []models.OrderStatusLog `json:"status_log"`
}

// ArchiveOrder snapshots a terminal order with its items and full
// transition history. Idempotent: a second snapshot of the same order
// is a no-op.
func (as *ArchiveService) ArchiveOrder(ctx context.Context, orderID int64, reason string) error {
	order, err := as.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return err
	}
	if !models.IsTerminalOrderStatus(order.Channel, order.Status) {
		return fmt.Errorf("%w: order %d is not terminal", models.ErrInvalidTransition, orderID)
	}

	items, err := as.store.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		return err
	}
	statusLog, err := as.store.GetOrderStatusLogs(ctx, orderID)
	if err != nil {
		return err
	}

	snapshot, err := json.Marshal(&orderSnapshot{Order: order, Items: items, StatusLog: statusLog})
	if err != nil {
		return fmt.Errorf("failed to marshal order snapshot: %w", err)
	}

	record := &models.ArchiveRecord{
		EntityType: models.ArchiveEntityOrder,
		EntityID:   orderID,
		Snapshot:   snapshot,
		Reason:     reason,
	}
	if err := as.store.InsertArchiveRecord(ctx, record); err != nil {
		return fmt.Errorf("failed to archive order %d: %w", orderID, err)
	}

	util.ArchivedTotal.WithLabelValues(models.ArchiveEntityOrder).Inc()
	as.logger.Info("Order archived",
		zap.Int64("order_id", orderID), zap.String("reason", reason))
	return nil
}

// GetArchive retrieves one snapshot by entity.
func (as *ArchiveService) GetArchive(ctx context.Context, entityType string, entityID int64) (*models.ArchiveRecord, error) {
	if entityType != models.ArchiveEntityOrder && entityType != models.ArchiveEntityLead {
		return nil, fmt.Errorf("%w: unknown archive entity type %q", models.ErrInvalidAmount, entityType)
	}
	record, err := as.store.GetArchiveRecord(ctx, entityType, entityID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("no archive for %s %d: %w", entityType, entityID, models.ErrNotFound)
	}
	return record, nil
}

type leadSnapshot struct {
	Lead  *models.Lead      `json:"lead"`
	Items []models.LeadItem `json:"items"`
}

// ArchiveLead snapshots a terminal lead with its desired items.
func (as *ArchiveService) ArchiveLead(ctx context.Context, leadID int64, reason string) error {
	lead, err := as.store.GetLeadByID(ctx, leadID)
	if err != nil {
		return err
	}
	if !models.IsTerminalLeadStatus(lead.Status) {
		return fmt.Errorf("%w: lead %d is not terminal", models.ErrInvalidTransition, leadID)
	}

	items, err := as.store.GetLeadItemsByLeadID(ctx, leadID)
	if err != nil {
		return err
	}

	snapshot, err := json.Marshal(&leadSnapshot{Lead: lead, Items: items})
	if err != nil {
		return fmt.Errorf("failed to marshal lead snapshot: %w", err)
	}

	record := &models.ArchiveRecord{
		EntityType: models.ArchiveEntityLead,
		EntityID:   leadID,
		Snapshot:   snapshot,
		Reason:     reason,
	}
	if err := as.store.InsertArchiveRecord(ctx, record); err != nil {
		return fmt.Errorf("failed to archive lead %d: %w", leadID, err)
	}

	util.ArchivedTotal.WithLabelValues(models.ArchiveEntityLead).Inc()
	as.logger.Info("Lead archived",
		zap.Int64("lead_id", leadID), zap.String("reason", reason))
	return nil
}
