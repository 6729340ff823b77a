package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"order-engine/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// CreateManifest inserts an open manifest.
func (s *Store) CreateManifest(ctx context.Context, tx *sqlx.Tx, m *models.Manifest) error {
	query := `
		INSERT INTO manifests
			(code, carrier_type, carrier_id, status, expected_cod, collected_cod, variance, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	return tx.GetContext(ctx, m, query,
		m.Code, m.CarrierType, m.CarrierID, m.Status,
		m.ExpectedCOD, m.CollectedCOD, m.Variance, m.CreatedBy)
}

// GetManifestByID retrieves a manifest by ID
func (s *Store) GetManifestByID(ctx context.Context, id int64) (*models.Manifest, error) {
	var m models.Manifest
	err := s.db.GetContext(ctx, &m, "SELECT * FROM manifests WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("manifest %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetManifestForUpdate locks the manifest row for counter updates.
func (s *Store) GetManifestForUpdate(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Manifest, error) {
	var m models.Manifest
	err := tx.GetContext(ctx, &m, "SELECT * FROM manifests WHERE id = $1 FOR UPDATE", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("manifest %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock manifest %d: %w", id, err)
	}
	return &m, nil
}

// UpdateManifestCounters writes running outcome counters and the COD
// collected total for a locked manifest.
func (s *Store) UpdateManifestCounters(ctx context.Context, tx *sqlx.Tx, m *models.Manifest) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE manifests
		 SET collected_cod = $1, delivered_count = $2, returned_count = $3,
		     rescheduled_count = $4, updated_at = NOW()
		 WHERE id = $5`,
		m.CollectedCOD, m.DeliveredCount, m.ReturnedCount, m.RescheduledCount, m.ID)
	return err
}

// SettleManifest marks the manifest settled with its cash variance.
func (s *Store) SettleManifest(ctx context.Context, tx *sqlx.Tx, manifestID int64, collected, variance decimal.Decimal) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE manifests
		 SET status = $1, collected_cod = $2, variance = $3, settled_at = NOW(), updated_at = NOW()
		 WHERE id = $4`,
		models.ManifestStatusSettled, collected, variance, manifestID)
	return err
}

// GetManifestOrders retrieves the orders attached to a manifest.
func (s *Store) GetManifestOrders(ctx context.Context, manifestID int64) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE manifest_id = $1 ORDER BY id", manifestID)
	return orders, err
}

// InsertDeliveryAttempt appends one immutable outcome record.
func (s *Store) InsertDeliveryAttempt(ctx context.Context, tx *sqlx.Tx, a *models.DeliveryAttempt) error {
	query := `
		INSERT INTO delivery_attempts (manifest_id, order_id, outcome, cash_collected, proof, actor)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	return tx.GetContext(ctx, a, query,
		a.ManifestID, a.OrderID, a.Outcome, a.CashCollected, a.Proof, a.Actor)
}

// GetDeliveryAttemptsByManifestID retrieves outcome history for a manifest.
func (s *Store) GetDeliveryAttemptsByManifestID(ctx context.Context, manifestID int64) ([]models.DeliveryAttempt, error) {
	var attempts []models.DeliveryAttempt
	err := s.db.SelectContext(ctx, &attempts,
		"SELECT * FROM delivery_attempts WHERE manifest_id = $1 ORDER BY id", manifestID)
	return attempts, err
}
