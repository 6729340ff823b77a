package service

import (
	"context"
	"fmt"
	"time"

	"order-engine/internal/models"
	"order-engine/internal/store"
	"order-engine/internal/util"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// InventoryService is the inventory ledger. It is the only component
// allowed to mutate stock counters; every mutation locks the variant
// row before reading (read-then-write under lock) and appends one
// movement row in the same transaction.
type InventoryService struct {
	store  *store.Store
	logger *zap.Logger
}

// NewInventoryService creates a new inventory service
func NewInventoryService(store *store.Store) *InventoryService {
	return &InventoryService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// Reserve holds qty units for an unfulfilled order. Fails with
// InsufficientStock, with no partial effect, when on_hand - reserved < qty.
func (is *InventoryService) Reserve(ctx context.Context, variantID int64, qty int, orderID *int64, actor string) error {
	ctx, span := util.StartSpan(ctx, "InventoryService.Reserve")
	defer span.End()
	defer observeInventoryOp("reserve", time.Now())

	if qty <= 0 {
		return fmt.Errorf("%w: reserve quantity must be positive, got %d", models.ErrInvalidAmount, qty)
	}

	return is.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		return is.ReserveTx(ctx, tx, variantID, qty, orderID, actor)
	})
}

// ReserveTx reserves within the caller's transaction.
func (is *InventoryService) ReserveTx(ctx context.Context, tx *sqlx.Tx, variantID int64, qty int, orderID *int64, actor string) error {
	v, err := is.store.GetVariantForUpdate(ctx, tx, variantID)
	if err != nil {
		return err
	}

	if v.Available() < qty {
		util.StockReservationsFailed.WithLabelValues("insufficient_stock").Inc()
		return &models.InsufficientStockError{
			VariantID: variantID,
			Requested: qty,
			Available: v.Available(),
		}
	}

	newReserved := v.Reserved + qty
	if err := is.store.UpdateVariantCounts(ctx, tx, variantID, v.OnHand, newReserved, v.Damaged); err != nil {
		return err
	}

	return is.logMovement(ctx, tx, v, models.MovementReserve, qty,
		v.OnHand, newReserved, orderID, actor, "")
}

// Release returns reserved units to the sellable pool, floored at zero.
// Used when an order is cancelled before physical deduction.
func (is *InventoryService) Release(ctx context.Context, variantID int64, qty int, orderID *int64, actor string) error {
	ctx, span := util.StartSpan(ctx, "InventoryService.Release")
	defer span.End()
	defer observeInventoryOp("release", time.Now())

	if qty <= 0 {
		return fmt.Errorf("%w: release quantity must be positive, got %d", models.ErrInvalidAmount, qty)
	}

	return is.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		return is.ReleaseTx(ctx, tx, variantID, qty, orderID, actor)
	})
}

// ReleaseTx releases within the caller's transaction.
func (is *InventoryService) ReleaseTx(ctx context.Context, tx *sqlx.Tx, variantID int64, qty int, orderID *int64, actor string) error {
	v, err := is.store.GetVariantForUpdate(ctx, tx, variantID)
	if err != nil {
		return err
	}

	newReserved := v.Reserved - qty
	if newReserved < 0 {
		newReserved = 0
	}
	if err := is.store.UpdateVariantCounts(ctx, tx, variantID, v.OnHand, newReserved, v.Damaged); err != nil {
		return err
	}

	return is.logMovement(ctx, tx, v, models.MovementRelease, -qty,
		v.OnHand, newReserved, orderID, actor, "")
}

// Deduct removes units physically at dispatch time: both reserved and
// on_hand go down, each floored at zero.
func (is *InventoryService) Deduct(ctx context.Context, variantID int64, qty int, orderID *int64, actor string) error {
	ctx, span := util.StartSpan(ctx, "InventoryService.Deduct")
	defer span.End()
	defer observeInventoryOp("deduct", time.Now())

	if qty <= 0 {
		return fmt.Errorf("%w: deduct quantity must be positive, got %d", models.ErrInvalidAmount, qty)
	}

	return is.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		return is.DeductTx(ctx, tx, variantID, qty, orderID, actor)
	})
}

// DeductTx deducts within the caller's transaction. Dispatch runs this
// in the same unit as the status transition so stock and status can
// never diverge.
func (is *InventoryService) DeductTx(ctx context.Context, tx *sqlx.Tx, variantID int64, qty int, orderID *int64, actor string) error {
	v, err := is.store.GetVariantForUpdate(ctx, tx, variantID)
	if err != nil {
		return err
	}

	newOnHand := v.OnHand - qty
	if newOnHand < 0 {
		newOnHand = 0
	}
	newReserved := v.Reserved - qty
	if newReserved < 0 {
		newReserved = 0
	}
	if newReserved > newOnHand {
		newReserved = newOnHand
	}

	if err := is.store.UpdateVariantCounts(ctx, tx, variantID, newOnHand, newReserved, v.Damaged); err != nil {
		return err
	}

	return is.logMovement(ctx, tx, v, models.MovementDeduct, -qty,
		newOnHand, newReserved, orderID, actor, "")
}

// Restock receives physical goods back. Good units return to on_hand;
// damaged units are quarantined in the damaged counter and never touch
// on_hand.
func (is *InventoryService) Restock(ctx context.Context, variantID int64, qty int, condition string, orderID *int64, actor, note string) error {
	ctx, span := util.StartSpan(ctx, "InventoryService.Restock")
	defer span.End()
	defer observeInventoryOp("restock", time.Now())

	if qty <= 0 {
		return fmt.Errorf("%w: restock quantity must be positive, got %d", models.ErrInvalidAmount, qty)
	}

	return is.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		return is.RestockTx(ctx, tx, variantID, qty, condition, orderID, actor, note)
	})
}

// RestockTx restocks within the caller's transaction.
func (is *InventoryService) RestockTx(ctx context.Context, tx *sqlx.Tx, variantID int64, qty int, condition string, orderID *int64, actor, note string) error {
	v, err := is.store.GetVariantForUpdate(ctx, tx, variantID)
	if err != nil {
		return err
	}

	switch condition {
	case models.ConditionGood:
		newOnHand := v.OnHand + qty
		if err := is.store.UpdateVariantCounts(ctx, tx, variantID, newOnHand, v.Reserved, v.Damaged); err != nil {
			return err
		}
		return is.logMovement(ctx, tx, v, models.MovementRestock, qty,
			newOnHand, v.Reserved, orderID, actor, note)

	case models.ConditionDamaged, models.ConditionTampered:
		newDamaged := v.Damaged + qty
		if err := is.store.UpdateVariantCounts(ctx, tx, variantID, v.OnHand, v.Reserved, newDamaged); err != nil {
			return err
		}
		return is.logMovement(ctx, tx, v, models.MovementDamage, qty,
			v.OnHand, v.Reserved, orderID, actor, note)

	default:
		return fmt.Errorf("%w: unknown restock condition %q", models.ErrInvalidAmount, condition)
	}
}

// BatchItem is one line of a batch reserve/deduct request.
type BatchItem struct {
	VariantID int64 `json:"variant_id"`
	Quantity  int   `json:"quantity"`
}

// BatchFailure reports why one batch item did not apply.
type BatchFailure struct {
	VariantID int64  `json:"variant_id"`
	Quantity  int    `json:"quantity"`
	Reason    string `json:"reason"`
}

// BatchReport is the partial-failure report for a batch operation.
type BatchReport struct {
	Succeeded []BatchItem    `json:"succeeded"`
	Failed    []BatchFailure `json:"failed"`
}

// AllApplied reports whether every item succeeded.
func (r *BatchReport) AllApplied() bool {
	return len(r.Failed) == 0
}

// BatchReserve processes items independently: each item is its own
// atomic unit and a failure is isolated to that item's sub-result.
// With allOrNothing the whole batch runs in one transaction and the
// first failure aborts everything.
func (is *InventoryService) BatchReserve(ctx context.Context, items []BatchItem, orderID *int64, actor string, allOrNothing bool) (*BatchReport, error) {
	return is.batchApply(ctx, items, orderID, actor, allOrNothing, is.ReserveTx)
}

// BatchDeduct is the deduction counterpart of BatchReserve.
func (is *InventoryService) BatchDeduct(ctx context.Context, items []BatchItem, orderID *int64, actor string, allOrNothing bool) (*BatchReport, error) {
	return is.batchApply(ctx, items, orderID, actor, allOrNothing, is.DeductTx)
}

type batchOp func(ctx context.Context, tx *sqlx.Tx, variantID int64, qty int, orderID *int64, actor string) error

func (is *InventoryService) batchApply(ctx context.Context, items []BatchItem, orderID *int64, actor string, allOrNothing bool, op batchOp) (*BatchReport, error) {
	report := &BatchReport{}

	if allOrNothing {
		err := is.store.WithTx(ctx, func(tx *sqlx.Tx) error {
			for _, item := range items {
				if err := op(ctx, tx, item.VariantID, item.Quantity, orderID, actor); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		report.Succeeded = items
		return report, nil
	}

	for _, item := range items {
		item := item
		err := is.store.WithTx(ctx, func(tx *sqlx.Tx) error {
			return op(ctx, tx, item.VariantID, item.Quantity, orderID, actor)
		})
		if err != nil {
			report.Failed = append(report.Failed, BatchFailure{
				VariantID: item.VariantID,
				Quantity:  item.Quantity,
				Reason:    err.Error(),
			})
			continue
		}
		report.Succeeded = append(report.Succeeded, item)
	}

	return report, nil
}

// GetVariant retrieves a variant.
func (is *InventoryService) GetVariant(ctx context.Context, variantID int64) (*models.StockVariant, error) {
	return is.store.GetVariant(ctx, variantID)
}

// GetMovements retrieves the append-only movement log for a variant.
func (is *InventoryService) GetMovements(ctx context.Context, variantID int64) ([]models.StockMovement, error) {
	return is.store.GetStockMovements(ctx, variantID)
}

func (is *InventoryService) logMovement(ctx context.Context, tx *sqlx.Tx, before *models.StockVariant, kind string, qty, onHandAfter, reservedAfter int, orderID *int64, actor, note string) error {
	movement := &models.StockMovement{
		VariantID:      before.ID,
		Kind:           kind,
		Quantity:       qty,
		OnHandBefore:   before.OnHand,
		OnHandAfter:    onHandAfter,
		ReservedBefore: before.Reserved,
		ReservedAfter:  reservedAfter,
		OrderID:        orderID,
		Actor:          actor,
		Note:           note,
	}
	if err := is.store.InsertStockMovement(ctx, tx, movement); err != nil {
		return fmt.Errorf("failed to record stock movement: %w", err)
	}
	util.StockMovementsTotal.WithLabelValues(kind).Inc()
	return nil
}

func observeInventoryOp(op string, start time.Time) {
	util.InventoryOpLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
