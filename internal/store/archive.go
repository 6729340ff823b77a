package store

import (
	"context"

	"order-engine/internal/models"
)

// InsertArchiveRecord appends one immutable snapshot. A repeat snapshot
// of the same entity is a no-op so the sweep stays idempotent.
func (s *Store) InsertArchiveRecord(ctx context.Context, r *models.ArchiveRecord) error {
	query := `
		INSERT INTO archive_records (entity_type, entity_id, snapshot, reason)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (entity_type, entity_id) DO NOTHING`

	_, err := s.db.ExecContext(ctx, query, r.EntityType, r.EntityID, r.Snapshot, r.Reason)
	return err
}

// GetArchiveRecord retrieves one snapshot, nil when absent.
func (s *Store) GetArchiveRecord(ctx context.Context, entityType string, entityID int64) (*models.ArchiveRecord, error) {
	var records []models.ArchiveRecord
	err := s.db.SelectContext(ctx, &records,
		"SELECT * FROM archive_records WHERE entity_type = $1 AND entity_id = $2 LIMIT 1",
		entityType, entityID)
	if err != nil || len(records) == 0 {
		return nil, err
	}
	return &records[0], nil
}
