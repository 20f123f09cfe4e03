package pipeline

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nextiertech/outreach-messaging/internal/domain/errors"
	"github.com/nextiertech/outreach-messaging/internal/domain/lifecycle"
	"github.com/nextiertech/outreach-messaging/internal/domain/values"
	"github.com/nextiertech/outreach-messaging/internal/metrics"
)

// LeadStore loads and persists lead records.
type LeadStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*lifecycle.Lead, error)
	GetByPhone(ctx context.Context, teamID string, phone values.PhoneNumber) (*lifecycle.Lead, error)
	UpdateStage(ctx context.Context, id uuid.UUID, stage lifecycle.Stage) error
}

// DealStore persists deals created by lifecycle side effects.
type DealStore interface {
	Create(ctx context.Context, deal *lifecycle.Deal) error
}

// SuppressionStore records leads that may no longer be contacted.
type SuppressionStore interface {
	Suppress(ctx context.Context, leadID uuid.UUID, phone values.PhoneNumber, reason string) error
}

// Outcome reports what one processed event did to a lead.
type Outcome struct {
	LeadID             uuid.UUID              `json:"lead_id"`
	Event              string                 `json:"event"`
	PreviousStage      lifecycle.Stage        `json:"previous_stage"`
	Stage              lifecycle.Stage        `json:"stage"`
	Changed            bool                   `json:"changed"`
	RecommendedActions []string               `json:"recommended_actions"`
	SideEffects        []lifecycle.SideEffect `json:"-"`
	CreatedDealID      *uuid.UUID             `json:"created_deal_id,omitempty"`
}

// Processor applies lifecycle events to leads and executes the side
// effects the state machine derives. The machine itself stays pure;
// everything with a persistence consequence happens here.
type Processor struct {
	leads        LeadStore
	deals        DealStore
	suppressions SuppressionStore
	logger       *zap.Logger
	metrics      *metrics.Registry
}

// NewProcessor creates an event processor. metrics may be nil in tests.
func NewProcessor(
	leads LeadStore,
	deals DealStore,
	suppressions SuppressionStore,
	logger *zap.Logger,
	m *metrics.Registry,
) *Processor {
	return &Processor{
		leads:        leads,
		deals:        deals,
		suppressions: suppressions,
		logger:       logger,
		metrics:      m,
	}
}

// ProcessEvent loads the lead, runs the transition, and persists the
// result. The stage update, deal creation, and suppression record are
// applied in that order; a failure partway through returns an error
// with whatever already committed left in place.
func (p *Processor) ProcessEvent(ctx context.Context, leadID uuid.UUID, event lifecycle.Event) (*Outcome, error) {
	lead, err := p.leads.GetByID(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if lead == nil {
		return nil, errors.NewNotFoundError("lead")
	}

	transition := lifecycle.Apply(lead.Stage, event)

	outcome := &Outcome{
		LeadID:             lead.ID,
		Event:              event.Type.String(),
		PreviousStage:      lead.Stage,
		Stage:              transition.NewStage,
		Changed:            transition.NewStage != lead.Stage,
		RecommendedActions: transition.RecommendedActions,
		SideEffects:        transition.SideEffects,
	}

	if outcome.Changed {
		if err := p.leads.UpdateStage(ctx, lead.ID, transition.NewStage); err != nil {
			return nil, errors.NewInternalError("failed to update lead stage").WithCause(err)
		}
	}

	for _, effect := range transition.SideEffects {
		if err := p.execute(ctx, lead, effect, outcome); err != nil {
			return nil, err
		}
	}

	if outcome.Changed && transition.NewStage == lifecycle.StageSuppressed {
		if err := p.suppressions.Suppress(ctx, lead.ID, lead.Phone, event.Type.String()); err != nil {
			return nil, errors.NewInternalError("failed to record suppression").WithCause(err)
		}
	}

	p.logger.Info("lifecycle event processed",
		zap.String("lead_id", lead.ID.String()),
		zap.String("event", event.Type.String()),
		zap.String("from", outcome.PreviousStage.String()),
		zap.String("to", outcome.Stage.String()))

	if p.metrics != nil {
		p.metrics.LifecycleEvents.WithLabelValues(event.Type.String(), outcome.Stage.String()).Inc()
	}
	return outcome, nil
}

// ProcessInbound resolves a lead by phone, classifies the message body,
// and applies the resulting event. Unknown senders are a not-found; the
// webhook handler decides whether that is worth a retry.
func (p *Processor) ProcessInbound(ctx context.Context, teamID string, from values.PhoneNumber, body string) (*Outcome, error) {
	lead, err := p.leads.GetByPhone(ctx, teamID, from)
	if err != nil {
		return nil, err
	}
	if lead == nil {
		return nil, errors.NewNotFoundError("lead")
	}

	event := lifecycle.Event{Type: ClassifyInbound(body)}
	return p.ProcessEvent(ctx, lead.ID, event)
}

func (p *Processor) execute(ctx context.Context, lead *lifecycle.Lead, effect lifecycle.SideEffect, outcome *Outcome) error {
	switch effect.Type {
	case lifecycle.SideEffectCreateDeal:
		if effect.Deal == nil {
			return nil
		}
		deal := lifecycle.NewDeal(lead, effect.Deal)
		if err := p.deals.Create(ctx, deal); err != nil {
			return errors.NewInternalError("failed to create deal").WithCause(err)
		}
		outcome.CreatedDealID = &deal.ID
		p.logger.Info("deal auto-created",
			zap.String("deal_id", deal.ID.String()),
			zap.String("lead_id", lead.ID.String()),
			zap.String("type", string(deal.Type)))
		return nil
	default:
		p.logger.Warn("unhandled side effect", zap.String("type", string(effect.Type)))
		return nil
	}
}
