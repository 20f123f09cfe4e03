package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nextiertech/outreach-messaging/internal/domain/values"
)

// SuppressionRepository records do-not-contact entries. It satisfies
// both the event pipeline's SuppressionStore and the dispatcher's
// pre-send suppression check.
type SuppressionRepository struct {
	pool *pgxpool.Pool
}

func NewSuppressionRepository(pool *pgxpool.Pool) *SuppressionRepository {
	return &SuppressionRepository{pool: pool}
}

// Suppress records a lead as uncontactable. Re-suppressing is a no-op;
// the first recorded reason wins for the audit trail.
func (r *SuppressionRepository) Suppress(ctx context.Context, leadID uuid.UUID, phone values.PhoneNumber, reason string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO suppressions (lead_id, phone, reason, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (lead_id) DO NOTHING`,
		leadID, phone.String(), reason, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting suppression: %w", err)
	}
	return nil
}

// CanContact reports whether a lead is free of suppression records.
// The team scope matches the lead lookup path; suppression rows are
// keyed by lead so the team id is not part of the query.
func (r *SuppressionRepository) CanContact(ctx context.Context, leadID, _ string) (bool, string, error) {
	id, err := uuid.Parse(leadID)
	if err != nil {
		// Destinations without a lead record carry no suppression state.
		return true, "", nil
	}

	var reason string
	err = r.pool.QueryRow(ctx,
		`SELECT reason FROM suppressions WHERE lead_id = $1`, id).Scan(&reason)
	if errors.Is(err, pgx.ErrNoRows) {
		return true, "", nil
	}
	if err != nil {
		return false, "", fmt.Errorf("checking suppression: %w", err)
	}
	return false, reason, nil
}
