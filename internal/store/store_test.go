package store

import (
	"context"
	"errors"
	"os"
	"testing"

	"order-engine/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapConflict(t *testing.T) {
	for _, code := range []string{"40001", "40P01", "55P03"} {
		err := mapConflict(&pq.Error{Code: pq.ErrorCode(code)})
		assert.True(t, errors.Is(err, models.ErrConcurrencyConflict), "code %s", code)
	}

	// Unique violations and plain errors pass through untouched.
	unique := &pq.Error{Code: "23505"}
	assert.Equal(t, error(unique), mapConflict(unique))

	plain := errors.New("boom")
	assert.Equal(t, plain, mapConflict(plain))
}

func TestWithTxCommitAndRollback(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("Integration test - set TEST_DATABASE_URL")
	}

	store, err := NewStore(dsn)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()

	lead := &models.Lead{
		Code:          "LD-TEST-COMMIT",
		Status:        models.LeadStatusIntake,
		CustomerName:  "Tx Tester",
		CustomerPhone: "tx-commit-phone",
	}
	require.NoError(t, store.CreateLead(ctx, lead))

	// A returned error must roll the whole unit back.
	boom := errors.New("boom")
	err = store.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := store.UpdateLeadStatus(ctx, tx, lead.ID, models.LeadStatusFollowUp, nil); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	reread, err := store.GetLeadByID(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LeadStatusIntake, reread.Status)

	// A nil return commits.
	err = store.WithTx(ctx, func(tx *sqlx.Tx) error {
		return store.UpdateLeadStatus(ctx, tx, lead.ID, models.LeadStatusFollowUp, nil)
	})
	require.NoError(t, err)

	reread, err = store.GetLeadByID(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LeadStatusFollowUp, reread.Status)
}
