package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"order-engine/internal/models"

	"github.com/jmoiron/sqlx"
)

// GetVariant retrieves a stock variant without locking it.
func (s *Store) GetVariant(ctx context.Context, variantID int64) (*models.StockVariant, error) {
	var v models.StockVariant
	err := s.db.GetContext(ctx, &v, "SELECT * FROM stock_variants WHERE id = $1", variantID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("variant %d: %w", variantID, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// GetVariantForUpdate locks the variant row before its counters are
// read. Every read-modify-write of stock counters starts here; two
// concurrent mutations of the same variant serialize on this lock.
func (s *Store) GetVariantForUpdate(ctx context.Context, tx *sqlx.Tx, variantID int64) (*models.StockVariant, error) {
	var v models.StockVariant
	err := tx.GetContext(ctx, &v, "SELECT * FROM stock_variants WHERE id = $1 FOR UPDATE", variantID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("variant %d: %w", variantID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock variant %d: %w", variantID, err)
	}
	return &v, nil
}

// UpdateVariantCounts writes new counter values for a locked variant.
// The CHECK constraints on the table are the last line of defense; the
// services pre-validate so a violation here is an internal error.
func (s *Store) UpdateVariantCounts(ctx context.Context, tx *sqlx.Tx, variantID int64, onHand, reserved, damaged int) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE stock_variants SET on_hand = $1, reserved = $2, damaged = $3, updated_at = NOW() WHERE id = $4",
		onHand, reserved, damaged, variantID)
	if err != nil {
		return fmt.Errorf("failed to update variant %d counts: %w", variantID, err)
	}
	return nil
}

// InsertStockMovement appends one immutable movement row.
func (s *Store) InsertStockMovement(ctx context.Context, tx *sqlx.Tx, m *models.StockMovement) error {
	query := `
		INSERT INTO stock_movements
			(variant_id, kind, quantity, on_hand_before, on_hand_after,
			 reserved_before, reserved_after, order_id, actor, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`

	return tx.GetContext(ctx, m, query,
		m.VariantID, m.Kind, m.Quantity, m.OnHandBefore, m.OnHandAfter,
		m.ReservedBefore, m.ReservedAfter, m.OrderID, m.Actor, m.Note)
}

// GetStockMovements retrieves the movement log for a variant, oldest first.
func (s *Store) GetStockMovements(ctx context.Context, variantID int64) ([]models.StockMovement, error) {
	var movements []models.StockMovement
	err := s.db.SelectContext(ctx, &movements,
		"SELECT * FROM stock_movements WHERE variant_id = $1 ORDER BY id", variantID)
	return movements, err
}

// GetVariantsByIDs retrieves multiple variants by IDs
func (s *Store) GetVariantsByIDs(ctx context.Context, ids []int64) ([]models.StockVariant, error) {
	if len(ids) == 0 {
		return []models.StockVariant{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM stock_variants WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var variants []models.StockVariant
	err = s.db.SelectContext(ctx, &variants, query, args...)
	return variants, err
}

// InsertReturnSettlement appends one QC record for a returned item.
func (s *Store) InsertReturnSettlement(ctx context.Context, tx *sqlx.Tx, rs *models.ReturnSettlement) error {
	query := `
		INSERT INTO return_settlements
			(order_id, order_item_id, condition, restocked, inspector, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	return tx.GetContext(ctx, rs, query,
		rs.OrderID, rs.OrderItemID, rs.Condition, rs.Restocked, rs.Inspector, rs.Notes)
}

// GetReturnSettlementsByOrderID retrieves QC records for an order.
func (s *Store) GetReturnSettlementsByOrderID(ctx context.Context, orderID int64) ([]models.ReturnSettlement, error) {
	var settlements []models.ReturnSettlement
	err := s.db.SelectContext(ctx, &settlements,
		"SELECT * FROM return_settlements WHERE order_id = $1 ORDER BY id", orderID)
	return settlements, err
}
