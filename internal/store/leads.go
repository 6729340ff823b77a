package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"order-engine/internal/models"

	"github.com/jmoiron/sqlx"
)

// CreateLead creates a new lead in INTAKE.
func (s *Store) CreateLead(ctx context.Context, lead *models.Lead) error {
	query := `
		INSERT INTO leads
			(code, status, customer_name, customer_phone, customer_address, agent_id, follow_up_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, lead, query,
		lead.Code, lead.Status, lead.CustomerName, lead.CustomerPhone,
		lead.CustomerAddress, lead.AgentID, lead.FollowUpAt)
}

// GetLeadByID retrieves a lead by ID
func (s *Store) GetLeadByID(ctx context.Context, id int64) (*models.Lead, error) {
	var lead models.Lead
	err := s.db.GetContext(ctx, &lead, "SELECT * FROM leads WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lead %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

// GetLeadForUpdate locks the lead row for a status mutation.
func (s *Store) GetLeadForUpdate(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Lead, error) {
	var lead models.Lead
	err := tx.GetContext(ctx, &lead, "SELECT * FROM leads WHERE id = $1 FOR UPDATE", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lead %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock lead %d: %w", id, err)
	}
	return &lead, nil
}

// UpdateLeadStatus updates lead status, optionally back-referencing the
// order a conversion produced.
func (s *Store) UpdateLeadStatus(ctx context.Context, tx *sqlx.Tx, leadID int64, status string, orderID *int64) error {
	if orderID != nil {
		_, err := tx.ExecContext(ctx,
			"UPDATE leads SET status = $1, order_id = $2, updated_at = NOW() WHERE id = $3",
			status, orderID, leadID)
		return err
	}
	_, err := tx.ExecContext(ctx,
		"UPDATE leads SET status = $1, updated_at = NOW() WHERE id = $2",
		status, leadID)
	return err
}

// UpdateLeadFollowUp sets the next follow-up timestamp.
func (s *Store) UpdateLeadFollowUp(ctx context.Context, tx *sqlx.Tx, leadID int64, followUpAt *time.Time) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE leads SET follow_up_at = $1, updated_at = NOW() WHERE id = $2",
		followUpAt, leadID)
	return err
}

// CreateLeadItem creates one desired item on a lead.
func (s *Store) CreateLeadItem(ctx context.Context, item *models.LeadItem) error {
	query := `
		INSERT INTO lead_items (lead_id, variant_id, quantity, indicative_price)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	return s.db.GetContext(ctx, &item.ID, query,
		item.LeadID, item.VariantID, item.Quantity, item.IndicativePrice)
}

// GetLeadItemsByLeadID retrieves desired items for a lead.
func (s *Store) GetLeadItemsByLeadID(ctx context.Context, leadID int64) ([]models.LeadItem, error) {
	var items []models.LeadItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM lead_items WHERE lead_id = $1 ORDER BY id", leadID)
	return items, err
}
