package service

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"order-engine/internal/broker"
	"order-engine/internal/models"
	"order-engine/internal/redisclient"
	"order-engine/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// End-to-end lifecycle tests against a live stack. Set TEST_DATABASE_URL
// (and optionally TEST_REDIS_ADDR / TEST_KAFKA_BROKERS) to run them.
type scenarioEnv struct {
	store     *store.Store
	inventory *InventoryService
	orders    *OrderService
	leads     *LeadService
	finance   *FinanceService
	dispatch  *DispatchService
	returns   *ReturnsService
}

func newScenarioEnv(t *testing.T) *scenarioEnv {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("Integration test - set TEST_DATABASE_URL")
	}

	st, err := store.NewStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	redis, err := redisclient.NewClient(envOr("TEST_REDIS_ADDR", "localhost:6379"), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { redis.Close() })

	producer := broker.NewProducer([]string{envOr("TEST_KAFKA_BROKERS", "localhost:9092")}, "order-events-test")
	t.Cleanup(func() { producer.Close() })
	publisher := broker.NewEventPublisher(producer)

	inventory := NewInventoryService(st)
	orders := NewOrderService(st, redis, publisher, inventory)
	return &scenarioEnv{
		store:     st,
		inventory: inventory,
		orders:    orders,
		leads:     NewLeadService(st, orders, inventory, publisher),
		finance:   NewFinanceService(st, publisher),
		dispatch:  NewDispatchService(st, orders, inventory, publisher, redis),
		returns:   NewReturnsService(st, orders, inventory, publisher),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (e *scenarioEnv) seedVariant(t *testing.T, onHand int, price int64) int64 {
	t.Helper()
	var id int64
	err := e.store.GetDB().QueryRowx(`
		INSERT INTO stock_variants (sku, name, on_hand, reserved, damaged, cost_price, selling_price)
		VALUES ($1, $2, $3, 0, 0, $4, $5)
		RETURNING id`,
		"SKU-"+uuid.New().String()[:8], "scenario variant", onHand, price/2, price).Scan(&id)
	require.NoError(t, err)
	return id
}

func (e *scenarioEnv) seedRider(t *testing.T, cashInHand int64) int64 {
	t.Helper()
	var id int64
	err := e.store.GetDB().QueryRowx(`
		INSERT INTO riders (name, cash_in_hand, shortage_total)
		VALUES ($1, $2, 0)
		RETURNING id`,
		"Rider "+uuid.New().String()[:8], cashInHand).Scan(&id)
	require.NoError(t, err)
	return id
}

func (e *scenarioEnv) seedVendor(t *testing.T) int64 {
	t.Helper()
	var id int64
	err := e.store.GetDB().QueryRowx(`
		INSERT INTO vendors (name, balance)
		VALUES ($1, 0)
		RETURNING id`,
		"Vendor "+uuid.New().String()[:8]).Scan(&id)
	require.NoError(t, err)
	return id
}

func (e *scenarioEnv) newLead(t *testing.T, ctx context.Context, phone string, variantID int64, qty int) *models.Lead {
	t.Helper()
	lead, err := e.leads.CreateLead(ctx, &CreateLeadRequest{
		Customer: models.CustomerInfo{
			Name:    "Scenario Customer",
			Phone:   phone,
			Address: "12 Hub Road",
		},
		Items: []LeadItemRequest{{VariantID: &variantID, Quantity: qty}},
	})
	require.NoError(t, err)
	return lead
}

func (e *scenarioEnv) convertLead(t *testing.T, ctx context.Context, variantID int64, qty int, channel string) int64 {
	t.Helper()
	lead := e.newLead(t, ctx, "p-"+uuid.New().String()[:12], variantID, qty)
	result, err := e.leads.Convert(ctx, lead.ID, channel, "tester")
	require.NoError(t, err)
	return result.OrderID
}

func assertAmount(t *testing.T, want int64, got decimal.Decimal) {
	t.Helper()
	assert.True(t, got.Equal(decimal.NewFromInt(want)), "want %d, got %s", want, got)
}

func TestConversionReservesStock(t *testing.T) {
	env := newScenarioEnv(t)
	ctx := context.Background()

	variantID := env.seedVariant(t, 5, 100)
	lead := env.newLead(t, ctx, "p-"+uuid.New().String()[:12], variantID, 2)

	result, err := env.leads.Convert(ctx, lead.ID, models.ChannelLocal, "tester")
	require.NoError(t, err)
	assert.Equal(t, 1, result.ItemsCreated)
	assert.Equal(t, 2, result.UnitsReserved)

	order, err := env.store.GetOrderByID(ctx, result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPacked, order.Status)
	assertAmount(t, 200, order.TotalAmount)

	v, err := env.inventory.GetVariant(ctx, variantID)
	require.NoError(t, err)
	assert.Equal(t, 5, v.OnHand)
	assert.Equal(t, 2, v.Reserved)
}

func TestDispatchDeductsReservedStock(t *testing.T) {
	env := newScenarioEnv(t)
	ctx := context.Background()

	variantID := env.seedVariant(t, 5, 100)
	riderID := env.seedRider(t, 0)
	orderID := env.convertLead(t, ctx, variantID, 2, models.ChannelLocal)

	result, err := env.dispatch.CreateManifest(ctx, models.CarrierRider, riderID, []int64{orderID}, "dispatcher")
	require.NoError(t, err)
	assert.Equal(t, []int64{orderID}, result.Attached)

	order, err := env.store.GetOrderByID(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusAssigned, order.Status)
	require.NotNil(t, order.DispatchedAt)

	v, err := env.inventory.GetVariant(ctx, variantID)
	require.NoError(t, err)
	assert.Equal(t, 3, v.OnHand)
	assert.Equal(t, 0, v.Reserved)

	movements, err := env.inventory.GetMovements(ctx, variantID)
	require.NoError(t, err)
	last := movements[len(movements)-1]
	assert.Equal(t, models.MovementDeduct, last.Kind)
	assert.Equal(t, -2, last.Quantity)
}

func TestDeliveredOrderRejectsPipelineMove(t *testing.T) {
	env := newScenarioEnv(t)
	ctx := context.Background()

	variantID := env.seedVariant(t, 5, 100)
	riderID := env.seedRider(t, 0)
	orderID := env.convertLead(t, ctx, variantID, 1, models.ChannelLocal)

	manifest, err := env.dispatch.CreateManifest(ctx, models.CarrierRider, riderID, []int64{orderID}, "dispatcher")
	require.NoError(t, err)
	_, err = env.orders.Transition(ctx, orderID, models.OrderStatusSentForDelivery, "rider")
	require.NoError(t, err)
	_, err = env.dispatch.RecordDeliveryOutcome(ctx, manifest.Manifest.ID, orderID, models.OutcomeDelivered, decimal.NewFromInt(100), "", "rider")
	require.NoError(t, err)

	_, err = env.orders.Transition(ctx, orderID, models.OrderStatusPacked, "tester")
	require.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestLostOutcomeMarksOrderLost(t *testing.T) {
	env := newScenarioEnv(t)
	ctx := context.Background()

	variantID := env.seedVariant(t, 5, 100)
	riderID := env.seedRider(t, 0)
	orderID := env.convertLead(t, ctx, variantID, 1, models.ChannelLocal)

	manifest, err := env.dispatch.CreateManifest(ctx, models.CarrierRider, riderID, []int64{orderID}, "dispatcher")
	require.NoError(t, err)
	_, err = env.orders.Transition(ctx, orderID, models.OrderStatusSentForDelivery, "rider")
	require.NoError(t, err)

	_, err = env.dispatch.RecordDeliveryOutcome(ctx, manifest.Manifest.ID, orderID, models.OutcomeLost, decimal.Zero, "", "rider")
	require.NoError(t, err)

	order, err := env.store.GetOrderByID(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusLostInTransit, order.Status)
}

func TestRiderSettlementShortageAndWallet(t *testing.T) {
	env := newScenarioEnv(t)
	ctx := context.Background()

	variantID := env.seedVariant(t, 5, 500)
	riderID := env.seedRider(t, 500)
	orderID := env.convertLead(t, ctx, variantID, 2, models.ChannelLocal)

	manifest, err := env.dispatch.CreateManifest(ctx, models.CarrierRider, riderID, []int64{orderID}, "dispatcher")
	require.NoError(t, err)
	_, err = env.orders.Transition(ctx, orderID, models.OrderStatusSentForDelivery, "rider")
	require.NoError(t, err)
	_, err = env.dispatch.RecordDeliveryOutcome(ctx, manifest.Manifest.ID, orderID, models.OutcomeDelivered, decimal.NewFromInt(1000), "", "rider")
	require.NoError(t, err)

	periodStart := time.Now().Add(-time.Hour)
	periodEnd := time.Now().Add(time.Hour)

	settlement, err := env.finance.InitRiderSettlement(ctx, riderID, periodStart, periodEnd)
	require.NoError(t, err)
	assertAmount(t, 1000, settlement.Expected)

	// Re-initialising the same period returns the same settlement.
	again, err := env.finance.InitRiderSettlement(ctx, riderID, periodStart, periodEnd)
	require.NoError(t, err)
	assert.Equal(t, settlement.ID, again.ID)

	completed, err := env.finance.CompleteRiderSettlement(ctx, settlement.ID, decimal.NewFromInt(800), true, "accountant")
	require.NoError(t, err)
	assert.Equal(t, models.SettlementStatusCompleted, completed.Status)
	assertAmount(t, 200, completed.Shortage)

	rider, err := env.store.GetRiderByID(ctx, riderID)
	require.NoError(t, err)
	assertAmount(t, 300, rider.CashInHand)
	assertAmount(t, 200, rider.ShortageTotal)

	order, err := env.store.GetOrderByID(ctx, orderID)
	require.NoError(t, err)
	assert.True(t, order.CODSettled)

	// Completing twice is rejected, and a fresh overlapping settlement
	// finds nothing left to count.
	_, err = env.finance.CompleteRiderSettlement(ctx, settlement.ID, decimal.NewFromInt(800), true, "accountant")
	require.ErrorIs(t, err, models.ErrAlreadyProcessed)

	overlap, err := env.finance.InitRiderSettlement(ctx, riderID, periodStart.Add(time.Minute), periodEnd.Add(time.Minute))
	require.NoError(t, err)
	assertAmount(t, 0, overlap.Expected)
}

func TestDamagedReturnQuarantinesStock(t *testing.T) {
	env := newScenarioEnv(t)
	ctx := context.Background()

	variantID := env.seedVariant(t, 5, 100)
	orderID := env.convertLead(t, ctx, variantID, 2, models.ChannelCourier)

	manifest, err := env.dispatch.CreateManifest(ctx, models.CarrierCourier, 1, []int64{orderID}, "dispatcher")
	require.NoError(t, err)
	_, err = env.dispatch.RecordDeliveryOutcome(ctx, manifest.Manifest.ID, orderID, models.OutcomeReturned, decimal.Zero, "", "courier")
	require.NoError(t, err)

	settlements, err := env.returns.VerifyReturn(ctx, orderID, models.ConditionDamaged, "inspector", "crushed box")
	require.NoError(t, err)
	assert.NotEmpty(t, settlements)

	order, err := env.store.GetOrderByID(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusReturned, order.Status)

	v, err := env.inventory.GetVariant(ctx, variantID)
	require.NoError(t, err)
	assert.Equal(t, 3, v.OnHand)
	assert.Equal(t, 2, v.Damaged)
}

func TestPreDispatchCancellationReleasesReservation(t *testing.T) {
	env := newScenarioEnv(t)
	ctx := context.Background()

	variantID := env.seedVariant(t, 5, 100)
	orderID := env.convertLead(t, ctx, variantID, 2, models.ChannelPOS)

	v, err := env.inventory.GetVariant(ctx, variantID)
	require.NoError(t, err)
	require.Equal(t, 2, v.Reserved)

	_, err = env.orders.Transition(ctx, orderID, models.OrderStatusCancelled, "counter")
	require.NoError(t, err)

	v, err = env.inventory.GetVariant(ctx, variantID)
	require.NoError(t, err)
	assert.Equal(t, 5, v.OnHand)
	assert.Equal(t, 0, v.Reserved)

	movements, err := env.inventory.GetMovements(ctx, variantID)
	require.NoError(t, err)
	last := movements[len(movements)-1]
	assert.Equal(t, models.MovementRelease, last.Kind)
}

func TestPOSDeliveryDeductsAtCounter(t *testing.T) {
	env := newScenarioEnv(t)
	ctx := context.Background()

	variantID := env.seedVariant(t, 5, 100)
	orderID := env.convertLead(t, ctx, variantID, 2, models.ChannelPOS)

	_, err := env.orders.Transition(ctx, orderID, models.OrderStatusDelivered, "counter")
	require.NoError(t, err)

	v, err := env.inventory.GetVariant(ctx, variantID)
	require.NoError(t, err)
	assert.Equal(t, 3, v.OnHand)
	assert.Equal(t, 0, v.Reserved)

	movements, err := env.inventory.GetMovements(ctx, variantID)
	require.NoError(t, err)
	last := movements[len(movements)-1]
	assert.Equal(t, models.MovementDeduct, last.Kind)
}

func TestConcurrentVendorAdjustmentsKeepRunningBalance(t *testing.T) {
	env := newScenarioEnv(t)
	ctx := context.Background()

	vendorID := env.seedVendor(t)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.finance.AdjustVendorBalance(ctx, vendorID, decimal.NewFromInt(10), models.VendorEntryPurchase, "buyer", "")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	vendor, entries, err := env.finance.GetVendorLedger(ctx, vendorID)
	require.NoError(t, err)
	assertAmount(t, 100, vendor.Balance)
	require.Len(t, entries, 10)
	assertAmount(t, 100, entries[len(entries)-1].BalanceAfter)
}

func TestAdvancePaymentsDriveDerivedPaidAmount(t *testing.T) {
	env := newScenarioEnv(t)
	ctx := context.Background()

	variantID := env.seedVariant(t, 5, 100)
	orderID := env.convertLead(t, ctx, variantID, 2, models.ChannelCourier)

	payment, err := env.finance.RecordAdvancePayment(ctx, orderID, decimal.NewFromInt(150), "bank_transfer", "slip-1", "cashier")
	require.NoError(t, err)

	order, err := env.store.GetOrderByID(ctx, orderID)
	require.NoError(t, err)
	assertAmount(t, 150, order.PaidAmount)
	assert.Equal(t, models.PaymentStatusPartial, order.PaymentStatus)

	// Overpaying the 200 total is rejected.
	_, err = env.finance.RecordAdvancePayment(ctx, orderID, decimal.NewFromInt(100), "cash", "", "cashier")
	require.ErrorIs(t, err, models.ErrInvalidAmount)

	// Voiding recomputes from the remaining non-voided rows.
	require.NoError(t, env.finance.VoidAdvancePayment(ctx, payment.ID, "supervisor"))

	order, err = env.store.GetOrderByID(ctx, orderID)
	require.NoError(t, err)
	assertAmount(t, 0, order.PaidAmount)
	assert.Equal(t, models.PaymentStatusUnpaid, order.PaymentStatus)
}

func TestRedirectMovesGoodsToNewLead(t *testing.T) {
	env := newScenarioEnv(t)
	ctx := context.Background()

	variantID := env.seedVariant(t, 5, 100)
	riderID := env.seedRider(t, 0)
	failedID := env.convertLead(t, ctx, variantID, 2, models.ChannelLocal)

	manifest, err := env.dispatch.CreateManifest(ctx, models.CarrierRider, riderID, []int64{failedID}, "dispatcher")
	require.NoError(t, err)
	_, err = env.orders.Transition(ctx, failedID, models.OrderStatusSentForDelivery, "rider")
	require.NoError(t, err)
	_, err = env.dispatch.RecordDeliveryOutcome(ctx, manifest.Manifest.ID, failedID, models.OutcomeRescheduled, decimal.Zero, "", "rider")
	require.NoError(t, err)

	target := env.newLead(t, ctx, "p-"+uuid.New().String()[:12], variantID, 2)
	result, err := env.leads.Redirect(ctx, failedID, target.ID, "customer moved", "agent")
	require.NoError(t, err)

	failed, err := env.store.GetOrderByID(ctx, failedID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusRedirected, failed.Status)

	newOrder, err := env.store.GetOrderByID(ctx, result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPacked, newOrder.Status)
	assert.True(t, newOrder.TotalAmount.Equal(failed.TotalAmount))

	// The goods already deducted for the failed order are reused; the
	// redirect itself must not touch the ledger.
	v, err := env.inventory.GetVariant(ctx, variantID)
	require.NoError(t, err)
	assert.Equal(t, 3, v.OnHand)
	assert.Equal(t, 0, v.Reserved)
}

func TestSamePhoneResolvesToOneCustomer(t *testing.T) {
	env := newScenarioEnv(t)
	ctx := context.Background()

	phone := "p-" + uuid.New().String()[:12]
	variantID := env.seedVariant(t, 10, 100)

	first := env.newLead(t, ctx, phone, variantID, 1)
	second := env.newLead(t, ctx, phone, variantID, 1)

	r1, err := env.leads.Convert(ctx, first.ID, models.ChannelPOS, "tester")
	require.NoError(t, err)
	r2, err := env.leads.Convert(ctx, second.ID, models.ChannelPOS, "tester")
	require.NoError(t, err)

	o1, err := env.store.GetOrderByID(ctx, r1.OrderID)
	require.NoError(t, err)
	o2, err := env.store.GetOrderByID(ctx, r2.OrderID)
	require.NoError(t, err)
	assert.Equal(t, o1.CustomerID, o2.CustomerID)
}
