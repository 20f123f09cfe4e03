package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nextiertech/outreach-messaging/internal/domain/lifecycle"
	"github.com/nextiertech/outreach-messaging/internal/domain/values"
)

// LeadRepository persists leads in PostgreSQL. It satisfies the event
// pipeline's LeadStore.
type LeadRepository struct {
	pool *pgxpool.Pool
}

func NewLeadRepository(pool *pgxpool.Pool) *LeadRepository {
	return &LeadRepository{pool: pool}
}

const leadColumns = `id, team_id, phone, name, stage, profile, created_at, updated_at`

// Create inserts a new lead.
func (r *LeadRepository) Create(ctx context.Context, lead *lifecycle.Lead) error {
	profile, err := json.Marshal(lead.Profile)
	if err != nil {
		return fmt.Errorf("marshaling lead profile: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO leads (id, team_id, phone, name, stage, profile, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		lead.ID, lead.TeamID, lead.Phone.String(), lead.Name,
		lead.Stage.String(), profile, lead.CreatedAt, lead.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting lead: %w", err)
	}
	return nil
}

// GetByID fetches one lead. A missing row returns (nil, nil); callers
// map that to their own not-found semantics.
func (r *LeadRepository) GetByID(ctx context.Context, id uuid.UUID) (*lifecycle.Lead, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	return scanLead(row)
}

// GetByPhone fetches the lead owning a phone number within a team.
func (r *LeadRepository) GetByPhone(ctx context.Context, teamID string, phone values.PhoneNumber) (*lifecycle.Lead, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE team_id = $1 AND phone = $2`,
		teamID, phone.String())
	return scanLead(row)
}

// UpdateStage moves a lead to a new pipeline stage.
func (r *LeadRepository) UpdateStage(ctx context.Context, id uuid.UUID, stage lifecycle.Stage) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE leads SET stage = $2, updated_at = $3 WHERE id = $1`,
		id, stage.String(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("updating lead stage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("lead %s not found", id)
	}
	return nil
}

// ListByStage returns the leads in a stage, newest first.
func (r *LeadRepository) ListByStage(ctx context.Context, teamID string, stage lifecycle.Stage, limit int) ([]*lifecycle.Lead, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+leadColumns+` FROM leads
		 WHERE team_id = $1 AND stage = $2
		 ORDER BY updated_at DESC
		 LIMIT $3`,
		teamID, stage.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("listing leads: %w", err)
	}
	defer rows.Close()

	var leads []*lifecycle.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

func scanLead(row pgx.Row) (*lifecycle.Lead, error) {
	var (
		lead       lifecycle.Lead
		phone      string
		stage      string
		profileRaw []byte
	)
	err := row.Scan(&lead.ID, &lead.TeamID, &phone, &lead.Name,
		&stage, &profileRaw, &lead.CreatedAt, &lead.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning lead: %w", err)
	}

	if lead.Phone, err = values.NewPhoneNumber(phone); err != nil {
		return nil, fmt.Errorf("lead %s: %w", lead.ID, err)
	}
	if lead.Stage, err = lifecycle.ParseStage(stage); err != nil {
		return nil, fmt.Errorf("lead %s: %w", lead.ID, err)
	}
	if len(profileRaw) > 0 {
		if err := json.Unmarshal(profileRaw, &lead.Profile); err != nil {
			return nil, fmt.Errorf("lead %s: unmarshaling profile: %w", lead.ID, err)
		}
	}
	return &lead, nil
}
