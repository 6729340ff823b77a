package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"order-engine/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// GetVendorForUpdate locks the vendor row before its balance is read.
// This is what closes the read-modify-write race on payables.
func (s *Store) GetVendorForUpdate(ctx context.Context, tx *sqlx.Tx, vendorID int64) (*models.Vendor, error) {
	var vendor models.Vendor
	err := tx.GetContext(ctx, &vendor, "SELECT * FROM vendors WHERE id = $1 FOR UPDATE", vendorID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("vendor %d: %w", vendorID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock vendor %d: %w", vendorID, err)
	}
	return &vendor, nil
}

// GetVendorByID retrieves a vendor without locking.
func (s *Store) GetVendorByID(ctx context.Context, vendorID int64) (*models.Vendor, error) {
	var vendor models.Vendor
	err := s.db.GetContext(ctx, &vendor, "SELECT * FROM vendors WHERE id = $1", vendorID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("vendor %d: %w", vendorID, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &vendor, nil
}

// UpdateVendorBalance writes the new balance for a locked vendor.
func (s *Store) UpdateVendorBalance(ctx context.Context, tx *sqlx.Tx, vendorID int64, balance decimal.Decimal) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE vendors SET balance = $1, updated_at = NOW() WHERE id = $2",
		balance, vendorID)
	return err
}

// InsertVendorLedgerEntry appends one immutable ledger row with its
// running-balance snapshot.
func (s *Store) InsertVendorLedgerEntry(ctx context.Context, tx *sqlx.Tx, e *models.VendorLedgerEntry) error {
	query := `
		INSERT INTO vendor_ledger_entries (vendor_id, kind, amount, balance_after, actor, note)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	return tx.GetContext(ctx, e, query,
		e.VendorID, e.Kind, e.Amount, e.BalanceAfter, e.Actor, e.Note)
}

// GetVendorLedgerEntries retrieves a vendor's ledger, oldest first.
func (s *Store) GetVendorLedgerEntries(ctx context.Context, vendorID int64) ([]models.VendorLedgerEntry, error) {
	var entries []models.VendorLedgerEntry
	err := s.db.SelectContext(ctx, &entries,
		"SELECT * FROM vendor_ledger_entries WHERE vendor_id = $1 ORDER BY id", vendorID)
	return entries, err
}

// GetRiderForUpdate locks the rider row before wallet mutation.
func (s *Store) GetRiderForUpdate(ctx context.Context, tx *sqlx.Tx, riderID int64) (*models.Rider, error) {
	var rider models.Rider
	err := tx.GetContext(ctx, &rider, "SELECT * FROM riders WHERE id = $1 FOR UPDATE", riderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("rider %d: %w", riderID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock rider %d: %w", riderID, err)
	}
	return &rider, nil
}

// GetRiderByID retrieves a rider without locking.
func (s *Store) GetRiderByID(ctx context.Context, riderID int64) (*models.Rider, error) {
	var rider models.Rider
	err := s.db.GetContext(ctx, &rider, "SELECT * FROM riders WHERE id = $1", riderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("rider %d: %w", riderID, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &rider, nil
}

// UpdateRiderWallet writes cash-in-hand and cumulative shortage for a
// locked rider.
func (s *Store) UpdateRiderWallet(ctx context.Context, tx *sqlx.Tx, riderID int64, cashInHand, shortageTotal decimal.Decimal) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE riders SET cash_in_hand = $1, shortage_total = $2, updated_at = NOW() WHERE id = $3",
		cashInHand, shortageTotal, riderID)
	return err
}

// GetRiderSettlementForPeriod finds an existing settlement for the
// rider/period, nil when absent. Locks the row so concurrent inits
// serialize.
func (s *Store) GetRiderSettlementForPeriod(ctx context.Context, tx *sqlx.Tx, riderID int64, periodStart, periodEnd time.Time) (*models.RiderSettlement, error) {
	var settlement models.RiderSettlement
	err := tx.GetContext(ctx, &settlement,
		"SELECT * FROM rider_settlements WHERE rider_id = $1 AND period_start = $2 AND period_end = $3 FOR UPDATE",
		riderID, periodStart, periodEnd)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &settlement, nil
}

// GetRiderSettlementForUpdate locks a settlement by id.
func (s *Store) GetRiderSettlementForUpdate(ctx context.Context, tx *sqlx.Tx, id int64) (*models.RiderSettlement, error) {
	var settlement models.RiderSettlement
	err := tx.GetContext(ctx, &settlement,
		"SELECT * FROM rider_settlements WHERE id = $1 FOR UPDATE", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("settlement %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock settlement %d: %w", id, err)
	}
	return &settlement, nil
}

// CreateRiderSettlement inserts a pending settlement.
func (s *Store) CreateRiderSettlement(ctx context.Context, tx *sqlx.Tx, settlement *models.RiderSettlement) error {
	query := `
		INSERT INTO rider_settlements
			(rider_id, period_start, period_end, expected, collected, shortage, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	return tx.GetContext(ctx, settlement, query,
		settlement.RiderID, settlement.PeriodStart, settlement.PeriodEnd,
		settlement.Expected, settlement.Collected, settlement.Shortage, settlement.Status)
}

// UpdateRiderSettlement writes the outcome of a completion attempt.
func (s *Store) UpdateRiderSettlement(ctx context.Context, tx *sqlx.Tx, settlement *models.RiderSettlement) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE rider_settlements
		 SET collected = $1, shortage = $2, status = $3, settled_by = $4, updated_at = NOW()
		 WHERE id = $5`,
		settlement.Collected, settlement.Shortage, settlement.Status,
		settlement.SettledBy, settlement.ID)
	return err
}

// SumExpectedCODForRider totals COD due on unsettled delivered orders in
// the rider's manifests within the period.
func (s *Store) SumExpectedCODForRider(ctx context.Context, tx *sqlx.Tx, riderID int64, periodStart, periodEnd time.Time) (decimal.Decimal, error) {
	var expected decimal.Decimal
	err := tx.GetContext(ctx, &expected, `
		SELECT COALESCE(SUM(o.total_amount - o.paid_amount), 0)
		FROM orders o
		JOIN delivery_attempts da ON da.order_id = o.id AND da.outcome = 'delivered'
		JOIN manifests m ON m.id = da.manifest_id
		WHERE m.carrier_type = 'rider' AND m.carrier_id = $1
		  AND o.status = 'delivered' AND o.cod_settled = FALSE
		  AND o.delivered_at >= $2 AND o.delivered_at < $3`,
		riderID, periodStart, periodEnd)
	if err != nil {
		return decimal.Zero, err
	}
	return expected, nil
}

// MarkOrdersCODSettled flags delivered orders for the rider/period as
// settled. The cod_settled = FALSE predicate makes settlement
// exactly-once; the affected count is returned for auditing.
func (s *Store) MarkOrdersCODSettled(ctx context.Context, tx *sqlx.Tx, riderID int64, periodStart, periodEnd time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE orders o SET cod_settled = TRUE, updated_at = NOW()
		FROM delivery_attempts da, manifests m
		WHERE da.order_id = o.id AND da.outcome = 'delivered'
		  AND m.id = da.manifest_id
		  AND m.carrier_type = 'rider' AND m.carrier_id = $1
		  AND o.status = 'delivered' AND o.cod_settled = FALSE
		  AND o.delivered_at >= $2 AND o.delivered_at < $3`,
		riderID, periodStart, periodEnd)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// InsertAdvancePayment appends one immutable payment row.
func (s *Store) InsertAdvancePayment(ctx context.Context, tx *sqlx.Tx, p *models.AdvancePayment) error {
	query := `
		INSERT INTO advance_payments (order_id, amount, method, proof, voided, actor)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	return tx.GetContext(ctx, p, query,
		p.OrderID, p.Amount, p.Method, p.Proof, p.Voided, p.Actor)
}

// VoidAdvancePayment flags a payment void; the row itself stays.
func (s *Store) VoidAdvancePayment(ctx context.Context, tx *sqlx.Tx, paymentID int64) (int64, error) {
	res, err := tx.ExecContext(ctx,
		"UPDATE advance_payments SET voided = TRUE WHERE id = $1 AND voided = FALSE", paymentID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SumOrderPayments recomputes the paid total from non-voided payments.
func (s *Store) SumOrderPayments(ctx context.Context, tx *sqlx.Tx, orderID int64) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := tx.GetContext(ctx, &total,
		"SELECT COALESCE(SUM(amount), 0) FROM advance_payments WHERE order_id = $1 AND voided = FALSE",
		orderID)
	if err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

// GetAdvancePaymentForUpdate locks one payment row.
func (s *Store) GetAdvancePaymentForUpdate(ctx context.Context, tx *sqlx.Tx, paymentID int64) (*models.AdvancePayment, error) {
	var p models.AdvancePayment
	err := tx.GetContext(ctx, &p,
		"SELECT * FROM advance_payments WHERE id = $1 FOR UPDATE", paymentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("payment %d: %w", paymentID, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
