package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/nextiertech/outreach-messaging/internal/domain/lifecycle"
)

// DealRepository persists deals in PostgreSQL. It satisfies the event
// pipeline's DealStore.
type DealRepository struct {
	pool *pgxpool.Pool
}

func NewDealRepository(pool *pgxpool.Pool) *DealRepository {
	return &DealRepository{pool: pool}
}

// Create inserts a new deal.
func (r *DealRepository) Create(ctx context.Context, deal *lifecycle.Deal) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO deals (id, lead_id, team_id, type, source, estimated_value, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		deal.ID, deal.LeadID, deal.TeamID, string(deal.Type),
		deal.Source, deal.EstimatedValue, deal.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting deal: %w", err)
	}
	return nil
}

// GetByLead fetches the most recent deal for a lead, or (nil, nil).
func (r *DealRepository) GetByLead(ctx context.Context, leadID uuid.UUID) (*lifecycle.Deal, error) {
	var (
		deal     lifecycle.Deal
		dealType string
		value    decimal.Decimal
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, lead_id, team_id, type, source, estimated_value, created_at
		FROM deals WHERE lead_id = $1
		ORDER BY created_at DESC LIMIT 1`, leadID).
		Scan(&deal.ID, &deal.LeadID, &deal.TeamID, &dealType,
			&deal.Source, &value, &deal.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching deal: %w", err)
	}

	deal.Type = lifecycle.DealType(dealType)
	deal.EstimatedValue = value
	return &deal, nil
}
