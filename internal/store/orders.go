package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"order-engine/internal/models"

	"github.com/jmoiron/sqlx"
)

// CreateOrder creates a new order
func (s *Store) CreateOrder(ctx context.Context, tx *sqlx.Tx, order *models.Order) error {
	query := `
		INSERT INTO orders
			(code, customer_id, channel, status, total_amount, paid_amount,
			 payment_status, parent_order_id, lead_id, packed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING id, packed_at, created_at, updated_at`

	return tx.GetContext(ctx, order, query,
		order.Code, order.CustomerID, order.Channel, order.Status,
		order.TotalAmount, order.PaidAmount, order.PaymentStatus,
		order.ParentOrderID, order.LeadID)
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderForUpdate locks the order row for the duration of a status
// mutation so the transition guard and the write see the same state.
func (s *Store) GetOrderForUpdate(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Order, error) {
	var order models.Order
	err := tx.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1 FOR UPDATE", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock order %d: %w", id, err)
	}
	return &order, nil
}

// GetOrdersByIDsForUpdate locks a batch of orders in id order to keep
// lock acquisition deterministic across concurrent manifest builds.
func (s *Store) GetOrdersByIDsForUpdate(ctx context.Context, tx *sqlx.Tx, ids []int64) ([]models.Order, error) {
	if len(ids) == 0 {
		return []models.Order{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM orders WHERE id IN (?) ORDER BY id FOR UPDATE", ids)
	if err != nil {
		return nil, err
	}
	query = tx.Rebind(query)

	var orders []models.Order
	err = tx.SelectContext(ctx, &orders, query, args...)
	return orders, err
}

// UpdateOrderStatus updates order status within a transaction.
func (s *Store) UpdateOrderStatus(ctx context.Context, tx *sqlx.Tx, orderID int64, status string) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2",
		status, orderID)
	return err
}

// SetOrderMilestone stamps one lifecycle timestamp column. The column
// name comes from a fixed internal switch, never from input.
func (s *Store) SetOrderMilestone(ctx context.Context, tx *sqlx.Tx, orderID int64, column string) error {
	switch column {
	case "packed_at", "dispatched_at", "delivered_at", "returned_at":
	default:
		return fmt.Errorf("unknown milestone column %q", column)
	}
	query := fmt.Sprintf("UPDATE orders SET %s = COALESCE(%s, NOW()), updated_at = NOW() WHERE id = $1", column, column)
	_, err := tx.ExecContext(ctx, query, orderID)
	return err
}

// SetOrderManifest attaches or detaches a manifest (nil detaches).
func (s *Store) SetOrderManifest(ctx context.Context, tx *sqlx.Tx, orderID int64, manifestID *int64) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE orders SET manifest_id = $1, updated_at = NOW() WHERE id = $2",
		manifestID, orderID)
	return err
}

// DetachOrdersFromManifest clears manifest membership after settlement.
func (s *Store) DetachOrdersFromManifest(ctx context.Context, tx *sqlx.Tx, manifestID int64) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE orders SET manifest_id = NULL, updated_at = NOW() WHERE manifest_id = $1",
		manifestID)
	return err
}

// UpdateOrderPayment writes the derived paid_amount and payment_status.
func (s *Store) UpdateOrderPayment(ctx context.Context, tx *sqlx.Tx, orderID int64, order *models.Order) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE orders SET paid_amount = $1, payment_status = $2, updated_at = NOW() WHERE id = $3",
		order.PaidAmount, order.PaymentStatus, orderID)
	return err
}

// InsertOrderStatusLog appends one immutable transition record.
func (s *Store) InsertOrderStatusLog(ctx context.Context, tx *sqlx.Tx, l *models.OrderStatusLog) error {
	query := `
		INSERT INTO order_status_logs
			(order_id, from_status, to_status, actor, override, override_reason)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	return tx.GetContext(ctx, l, query,
		l.OrderID, l.FromStatus, l.ToStatus, l.Actor, l.Override, l.OverrideReason)
}

// GetOrderStatusLogs retrieves the transition history for an order.
func (s *Store) GetOrderStatusLogs(ctx context.Context, orderID int64) ([]models.OrderStatusLog, error) {
	var logs []models.OrderStatusLog
	err := s.db.SelectContext(ctx, &logs,
		"SELECT * FROM order_status_logs WHERE order_id = $1 ORDER BY id", orderID)
	return logs, err
}

// CreateOrderItem creates a new order item
func (s *Store) CreateOrderItem(ctx context.Context, tx *sqlx.Tx, item *models.OrderItem) error {
	query := `
		INSERT INTO order_items
			(order_id, variant_id, quantity, unit_price, unit_cost, line_total, return_state)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	return tx.GetContext(ctx, &item.ID, query,
		item.OrderID, item.VariantID, item.Quantity,
		item.UnitPrice, item.UnitCost, item.LineTotal, item.ReturnState)
}

// GetOrderItemsByOrderID retrieves all items for an order
func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	return items, err
}

// GetOrderItemsByOrderIDTx retrieves items inside a transaction.
func (s *Store) GetOrderItemsByOrderIDTx(ctx context.Context, tx *sqlx.Tx, orderID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := tx.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	return items, err
}

// UpdateOrderItemReturnState updates one item's return sub-state.
func (s *Store) UpdateOrderItemReturnState(ctx context.Context, tx *sqlx.Tx, itemID int64, state string) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE order_items SET return_state = $1 WHERE id = $2", state, itemID)
	return err
}

// GetCustomerByPhone resolves a customer by exact phone match inside
// the caller's transaction, locking the row so a concurrent conversion
// for the same phone serializes. Returns nil without error when no
// customer exists.
func (s *Store) GetCustomerByPhone(ctx context.Context, tx *sqlx.Tx, phone string) (*models.Customer, error) {
	var customer models.Customer
	err := tx.GetContext(ctx, &customer, "SELECT * FROM customers WHERE phone = $1 FOR UPDATE", phone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// CreateCustomer upserts a customer keyed by phone. Two conversions
// racing on the same phone land on one row.
func (s *Store) CreateCustomer(ctx context.Context, tx *sqlx.Tx, customer *models.Customer) error {
	query := `
		INSERT INTO customers (name, phone, address)
		VALUES ($1, $2, $3)
		ON CONFLICT (phone) DO UPDATE SET name = EXCLUDED.name, address = EXCLUDED.address
		RETURNING id, created_at`

	return tx.GetContext(ctx, customer, query,
		customer.Name, customer.Phone, customer.Address)
}
