package service

import (
	"context"
	"fmt"
	"time"

	"order-engine/internal/broker"
	"order-engine/internal/models"
	"order-engine/internal/store"
	"order-engine/internal/util"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// FinanceService is the financial ledger: vendor payables, customer
// advance payments and rider cash settlements. Every balance mutation
// locks its row before reading so concurrent adjustments serialize
// instead of both reading the same stale balance.
type FinanceService struct {
	store     *store.Store
	publisher *broker.EventPublisher
	logger    *zap.Logger
}

// NewFinanceService creates a new finance service
func NewFinanceService(store *store.Store, publisher *broker.EventPublisher) *FinanceService {
	return &FinanceService{
		store:     store,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// AdjustVendorBalance applies one debit/credit to a vendor's payable
// balance and appends a ledger entry carrying the running balance, all
// in one atomic unit. Only purchases increase the balance.
func (fs *FinanceService) AdjustVendorBalance(ctx context.Context, vendorID int64, amount decimal.Decimal, kind, actor, note string) (*models.VendorLedgerEntry, error) {
	ctx, span := util.StartSpan(ctx, "FinanceService.AdjustVendorBalance")
	defer span.End()

	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: adjustment amount must be positive, got %s", models.ErrInvalidAmount, amount)
	}

	var entry *models.VendorLedgerEntry
	err := fs.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		vendor, err := fs.store.GetVendorForUpdate(ctx, tx, vendorID)
		if err != nil {
			return err
		}

		var newBalance decimal.Decimal
		switch kind {
		case models.VendorEntryPurchase:
			newBalance = vendor.Balance.Add(amount)
		case models.VendorEntryPurchaseReturn, models.VendorEntryPayment:
			newBalance = vendor.Balance.Sub(amount)
		default:
			return fmt.Errorf("%w: unknown adjustment kind %q", models.ErrInvalidAmount, kind)
		}

		if err := fs.store.UpdateVendorBalance(ctx, tx, vendorID, newBalance); err != nil {
			return fmt.Errorf("failed to update vendor balance: %w", err)
		}

		entry = &models.VendorLedgerEntry{
			VendorID:     vendorID,
			Kind:         kind,
			Amount:       amount,
			BalanceAfter: newBalance,
			Actor:        actor,
			Note:         note,
		}
		return fs.store.InsertVendorLedgerEntry(ctx, tx, entry)
	})
	if err != nil {
		return nil, err
	}

	util.VendorAdjustmentsTotal.WithLabelValues(kind).Inc()
	fs.logger.Info("Vendor balance adjusted",
		zap.Int64("vendor_id", vendorID),
		zap.String("kind", kind),
		zap.String("amount", amount.String()),
		zap.String("balance_after", entry.BalanceAfter.String()))

	event := &models.VendorBalanceChangedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeVendorBalanceChanged,
			Actor:     actor,
			Timestamp: time.Now(),
		},
		VendorID:     vendorID,
		Kind:         kind,
		Amount:       amount,
		BalanceAfter: entry.BalanceAfter,
	}
	if err := fs.publisher.PublishVendorEvent(ctx, vendorID, event); err != nil {
		fs.logger.Error("Failed to publish VendorBalanceChanged event",
			zap.Int64("vendor_id", vendorID), zap.Error(err))
	}
	return entry, nil
}

// RecordAdvancePayment inserts an immutable payment row and rewrites
// the order's derived paid_amount from the sum of non-voided payments.
// paid_amount may never exceed total_amount.
func (fs *FinanceService) RecordAdvancePayment(ctx context.Context, orderID int64, amount decimal.Decimal, method, proof, actor string) (*models.AdvancePayment, error) {
	ctx, span := util.StartSpan(ctx, "FinanceService.RecordAdvancePayment")
	defer span.End()

	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: payment amount must be positive, got %s", models.ErrInvalidAmount, amount)
	}

	var payment *models.AdvancePayment
	var order *models.Order
	err := fs.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		order, err = fs.store.GetOrderForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}

		payment = &models.AdvancePayment{
			OrderID: orderID,
			Amount:  amount,
			Method:  method,
			Proof:   proof,
			Actor:   actor,
		}
		if err := fs.store.InsertAdvancePayment(ctx, tx, payment); err != nil {
			return fmt.Errorf("failed to insert payment: %w", err)
		}

		return fs.recomputePaidAmount(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	util.AdvancePaymentsTotal.Inc()

	event := &models.AdvancePaymentTakenEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeAdvancePaymentTaken,
			Actor:     actor,
			Timestamp: time.Now(),
		},
		OrderID:       orderID,
		PaymentID:     payment.ID,
		Amount:        amount,
		Method:        method,
		PaidAmount:    order.PaidAmount,
		PaymentStatus: order.PaymentStatus,
	}
	if err := fs.publisher.PublishOrderEvent(ctx, orderID, event); err != nil {
		fs.logger.Error("Failed to publish AdvancePaymentTaken event",
			zap.Int64("order_id", orderID), zap.Error(err))
	}
	return payment, nil
}

// VoidAdvancePayment voids one payment and recomputes the order's paid
// total. The payment row itself is never deleted.
func (fs *FinanceService) VoidAdvancePayment(ctx context.Context, paymentID int64, actor string) error {
	ctx, span := util.StartSpan(ctx, "FinanceService.VoidAdvancePayment")
	defer span.End()

	return fs.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		payment, err := fs.store.GetAdvancePaymentForUpdate(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if payment.Voided {
			return fmt.Errorf("%w: payment %d already voided", models.ErrAlreadyProcessed, paymentID)
		}

		order, err := fs.store.GetOrderForUpdate(ctx, tx, payment.OrderID)
		if err != nil {
			return err
		}

		if _, err := fs.store.VoidAdvancePayment(ctx, tx, paymentID); err != nil {
			return err
		}
		fs.logger.Info("Advance payment voided",
			zap.Int64("payment_id", paymentID), zap.String("actor", actor))

		return fs.recomputePaidAmount(ctx, tx, order)
	})
}

// recomputePaidAmount derives paid_amount and payment_status from the
// non-voided payment rows, enforcing paid <= total.
func (fs *FinanceService) recomputePaidAmount(ctx context.Context, tx *sqlx.Tx, order *models.Order) error {
	paid, err := fs.store.SumOrderPayments(ctx, tx, order.ID)
	if err != nil {
		return err
	}
	if paid.GreaterThan(order.TotalAmount) {
		return fmt.Errorf("%w: paid %s would exceed order total %s",
			models.ErrInvalidAmount, paid, order.TotalAmount)
	}

	order.PaidAmount = paid
	switch {
	case paid.IsZero():
		order.PaymentStatus = models.PaymentStatusUnpaid
	case paid.Equal(order.TotalAmount):
		order.PaymentStatus = models.PaymentStatusPaid
	default:
		order.PaymentStatus = models.PaymentStatusPartial
	}
	return fs.store.UpdateOrderPayment(ctx, tx, order.ID, order)
}

// InitRiderSettlement creates a pending settlement for the rider and
// period, or returns the existing one. Idempotent: calling it twice for
// the same rider/period never creates a duplicate.
func (fs *FinanceService) InitRiderSettlement(ctx context.Context, riderID int64, periodStart, periodEnd time.Time) (*models.RiderSettlement, error) {
	ctx, span := util.StartSpan(ctx, "FinanceService.InitRiderSettlement")
	defer span.End()

	if !periodEnd.After(periodStart) {
		return nil, fmt.Errorf("%w: settlement period end must follow start", models.ErrInvalidAmount)
	}

	var settlement *models.RiderSettlement
	err := fs.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := fs.store.GetRiderForUpdate(ctx, tx, riderID); err != nil {
			return err
		}

		existing, err := fs.store.GetRiderSettlementForPeriod(ctx, tx, riderID, periodStart, periodEnd)
		if err != nil {
			return err
		}
		if existing != nil {
			settlement = existing
			return nil
		}

		expected, err := fs.store.SumExpectedCODForRider(ctx, tx, riderID, periodStart, periodEnd)
		if err != nil {
			return fmt.Errorf("failed to compute expected COD: %w", err)
		}

		settlement = &models.RiderSettlement{
			RiderID:     riderID,
			PeriodStart: periodStart,
			PeriodEnd:   periodEnd,
			Expected:    expected,
			Collected:   decimal.Zero,
			Shortage:    decimal.Zero,
			Status:      models.SettlementStatusPending,
		}
		return fs.store.CreateRiderSettlement(ctx, tx, settlement)
	})
	if err != nil {
		return nil, err
	}
	return settlement, nil
}

// Shortage math: shortage = expected - received, never negative.
func settlementShortage(expected, received decimal.Decimal) decimal.Decimal {
	shortage := expected.Sub(received)
	if shortage.IsNegative() {
		return decimal.Zero
	}
	return shortage
}

// CompleteRiderSettlement reconciles collected cash against expected.
// A shortage completes the settlement only when the caller explicitly
// allows a wallet deduction; otherwise the settlement is left disputed
// for manual resolution. Delivered orders in scope are marked settled
// exactly once.
func (fs *FinanceService) CompleteRiderSettlement(ctx context.Context, settlementID int64, cashReceived decimal.Decimal, deductFromWallet bool, actor string) (*models.RiderSettlement, error) {
	ctx, span := util.StartSpan(ctx, "FinanceService.CompleteRiderSettlement")
	defer span.End()

	if cashReceived.IsNegative() {
		return nil, fmt.Errorf("%w: cash received cannot be negative", models.ErrInvalidAmount)
	}

	var settlement *models.RiderSettlement
	err := fs.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		settlement, err = fs.store.GetRiderSettlementForUpdate(ctx, tx, settlementID)
		if err != nil {
			return err
		}
		if settlement.Status == models.SettlementStatusCompleted {
			return fmt.Errorf("%w: settlement %d already completed", models.ErrAlreadyProcessed, settlementID)
		}

		shortage := settlementShortage(settlement.Expected, cashReceived)
		settlement.Collected = cashReceived
		settlement.Shortage = shortage
		settlement.SettledBy = actor

		switch {
		case shortage.IsZero():
			settlement.Status = models.SettlementStatusCompleted

		case deductFromWallet:
			rider, err := fs.store.GetRiderForUpdate(ctx, tx, settlement.RiderID)
			if err != nil {
				return err
			}
			newCash := rider.CashInHand.Sub(shortage)
			newShortage := rider.ShortageTotal.Add(shortage)
			if err := fs.store.UpdateRiderWallet(ctx, tx, rider.ID, newCash, newShortage); err != nil {
				return fmt.Errorf("failed to deduct rider wallet: %w", err)
			}
			settlement.Status = models.SettlementStatusCompleted

		default:
			settlement.Status = models.SettlementStatusDisputed
		}

		if settlement.Status == models.SettlementStatusCompleted {
			if _, err := fs.store.MarkOrdersCODSettled(ctx, tx, settlement.RiderID, settlement.PeriodStart, settlement.PeriodEnd); err != nil {
				return fmt.Errorf("failed to mark orders settled: %w", err)
			}
		}

		return fs.store.UpdateRiderSettlement(ctx, tx, settlement)
	})
	if err != nil {
		return nil, err
	}

	util.SettlementsCompletedTotal.WithLabelValues(settlement.Status).Inc()
	fs.logger.Info("Rider settlement closed",
		zap.Int64("settlement_id", settlementID),
		zap.String("status", settlement.Status),
		zap.String("shortage", settlement.Shortage.String()))

	event := &models.SettlementCompletedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeSettlementCompleted,
			Actor:     actor,
			Timestamp: time.Now(),
		},
		SettlementID: settlement.ID,
		RiderID:      settlement.RiderID,
		Status:       settlement.Status,
		Shortage:     settlement.Shortage,
	}
	if err := fs.publisher.PublishSettlementEvent(ctx, settlement.ID, event); err != nil {
		fs.logger.Error("Failed to publish SettlementCompleted event",
			zap.Int64("settlement_id", settlement.ID), zap.Error(err))
	}

	return settlement, nil
}

// GetVendorLedger retrieves a vendor with its ledger entries.
func (fs *FinanceService) GetVendorLedger(ctx context.Context, vendorID int64) (*models.Vendor, []models.VendorLedgerEntry, error) {
	vendor, err := fs.store.GetVendorByID(ctx, vendorID)
	if err != nil {
		return nil, nil, err
	}
	entries, err := fs.store.GetVendorLedgerEntries(ctx, vendorID)
	if err != nil {
		return nil, nil, err
	}
	return vendor, entries, nil
}
