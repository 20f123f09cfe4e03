package lifecycle

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nextiertech/outreach-messaging/internal/domain/values"
)

// Lead is one prospect working through the pipeline. Stage moves only
// through Apply; callers persist the result, they do not mutate it.
type Lead struct {
	ID        uuid.UUID          `json:"id"`
	TeamID    string             `json:"team_id"`
	Phone     values.PhoneNumber `json:"phone"`
	Name      string             `json:"name,omitempty"`
	Stage     Stage              `json:"stage"`
	Profile   LeadProfile        `json:"profile"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// NewLead creates a lead in the entry stage.
func NewLead(teamID string, phone values.PhoneNumber, name string) *Lead {
	now := time.Now().UTC()
	return &Lead{
		ID:        uuid.New(),
		TeamID:    teamID,
		Phone:     phone,
		Name:      name,
		Stage:     StageNew,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Deal is a persisted opportunity, usually auto-created from a
// qualified signal.
type Deal struct {
	ID             uuid.UUID       `json:"id"`
	LeadID         uuid.UUID       `json:"lead_id"`
	TeamID         string          `json:"team_id"`
	Type           DealType        `json:"type"`
	Source         string          `json:"source"`
	EstimatedValue decimal.Decimal `json:"estimated_value"`
	CreatedAt      time.Time       `json:"created_at"`
}

// NewDeal materializes a deal request against a lead.
func NewDeal(lead *Lead, req *DealRequest) *Deal {
	return &Deal{
		ID:             uuid.New(),
		LeadID:         lead.ID,
		TeamID:         lead.TeamID,
		Type:           req.DealType,
		Source:         req.Source,
		EstimatedValue: req.EstimatedValue,
		CreatedAt:      time.Now().UTC(),
	}
}
