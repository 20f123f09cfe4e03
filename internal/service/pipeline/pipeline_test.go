package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	apperrors "github.com/nextiertech/outreach-messaging/internal/domain/errors"
	"github.com/nextiertech/outreach-messaging/internal/domain/lifecycle"
	"github.com/nextiertech/outreach-messaging/internal/domain/values"
)

type fakeLeadStore struct {
	leads       map[uuid.UUID]*lifecycle.Lead
	updateErr   error
	stageWrites []lifecycle.Stage
}

func (f *fakeLeadStore) GetByID(_ context.Context, id uuid.UUID) (*lifecycle.Lead, error) {
	return f.leads[id], nil
}

func (f *fakeLeadStore) GetByPhone(_ context.Context, _ string, phone values.PhoneNumber) (*lifecycle.Lead, error) {
	for _, lead := range f.leads {
		if lead.Phone.Equal(phone) {
			return lead, nil
		}
	}
	return nil, nil
}

func (f *fakeLeadStore) UpdateStage(_ context.Context, id uuid.UUID, stage lifecycle.Stage) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.stageWrites = append(f.stageWrites, stage)
	if lead, ok := f.leads[id]; ok {
		lead.Stage = stage
	}
	return nil
}

type fakeDealStore struct {
	created []*lifecycle.Deal
	err     error
}

func (f *fakeDealStore) Create(_ context.Context, deal *lifecycle.Deal) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, deal)
	return nil
}

type fakeSuppressionStore struct {
	records []string
}

func (f *fakeSuppressionStore) Suppress(_ context.Context, _ uuid.UUID, _ values.PhoneNumber, reason string) error {
	f.records = append(f.records, reason)
	return nil
}

type pipelineHarness struct {
	processor    *Processor
	leads        *fakeLeadStore
	deals        *fakeDealStore
	suppressions *fakeSuppressionStore
	lead         *lifecycle.Lead
}

func newPipelineHarness(t *testing.T, stage lifecycle.Stage) *pipelineHarness {
	t.Helper()

	lead := lifecycle.NewLead("team-1", values.MustNewPhoneNumber("15556667777"), "Jordan")
	lead.Stage = stage

	leads := &fakeLeadStore{leads: map[uuid.UUID]*lifecycle.Lead{lead.ID: lead}}
	deals := &fakeDealStore{}
	suppressions := &fakeSuppressionStore{}

	return &pipelineHarness{
		processor:    NewProcessor(leads, deals, suppressions, zaptest.NewLogger(t), nil),
		leads:        leads,
		deals:        deals,
		suppressions: suppressions,
		lead:         lead,
	}
}

func TestProcessEvent_StageAdvances(t *testing.T) {
	h := newPipelineHarness(t, lifecycle.StageNew)

	outcome, err := h.processor.ProcessEvent(context.Background(), h.lead.ID,
		lifecycle.Event{Type: lifecycle.EventSMSSent})
	require.NoError(t, err)

	assert.True(t, outcome.Changed)
	assert.Equal(t, lifecycle.StageNew, outcome.PreviousStage)
	assert.Equal(t, lifecycle.StageContacted, outcome.Stage)
	assert.Equal(t, []lifecycle.Stage{lifecycle.StageContacted}, h.leads.stageWrites)
	assert.NotEmpty(t, outcome.RecommendedActions)
}

func TestProcessEvent_NoopWritesNothing(t *testing.T) {
	h := newPipelineHarness(t, lifecycle.StageResponded)

	// sms_sent only moves a lead out of new.
	outcome, err := h.processor.ProcessEvent(context.Background(), h.lead.ID,
		lifecycle.Event{Type: lifecycle.EventSMSSent})
	require.NoError(t, err)

	assert.False(t, outcome.Changed)
	assert.Empty(t, h.leads.stageWrites)
	assert.Empty(t, h.deals.created)
}

func TestProcessEvent_AutoCreateDeal(t *testing.T) {
	h := newPipelineHarness(t, lifecycle.StageResponded)

	outcome, err := h.processor.ProcessEvent(context.Background(), h.lead.ID,
		lifecycle.Event{
			Type: lifecycle.EventQualifiedSignal,
			Metadata: lifecycle.QualifiedSignalMetadata{
				AutoCreateDeal: true,
				Lead: lifecycle.LeadProfile{
					B2BSignals:     true,
					EstimatedValue: decimal.NewFromInt(450000),
				},
			},
		})
	require.NoError(t, err)

	assert.Equal(t, lifecycle.StageDealCreated, outcome.Stage)
	require.NotNil(t, outcome.CreatedDealID)
	require.Len(t, h.deals.created, 1)

	deal := h.deals.created[0]
	assert.Equal(t, *outcome.CreatedDealID, deal.ID)
	assert.Equal(t, h.lead.ID, deal.LeadID)
	assert.Equal(t, "team-1", deal.TeamID)
	assert.Equal(t, lifecycle.DealTypeB2BExit, deal.Type)
	assert.Equal(t, "qualified_signal", deal.Source)
	assert.True(t, deal.EstimatedValue.Equal(decimal.NewFromInt(450000)))
}

func TestProcessEvent_DealCreateFailure(t *testing.T) {
	h := newPipelineHarness(t, lifecycle.StageResponded)
	h.deals.err = errors.New("insert failed")

	_, err := h.processor.ProcessEvent(context.Background(), h.lead.ID,
		lifecycle.Event{
			Type: lifecycle.EventQualifiedSignal,
			Metadata: lifecycle.QualifiedSignalMetadata{AutoCreateDeal: true},
		})
	require.Error(t, err)

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrorTypeInternal, appErr.Type)
	// The stage change already committed before the deal insert.
	assert.Equal(t, []lifecycle.Stage{lifecycle.StageDealCreated}, h.leads.stageWrites)
}

func TestProcessEvent_OptOutRecordsSuppression(t *testing.T) {
	h := newPipelineHarness(t, lifecycle.StageContacted)

	outcome, err := h.processor.ProcessEvent(context.Background(), h.lead.ID,
		lifecycle.Event{Type: lifecycle.EventOptOut})
	require.NoError(t, err)

	assert.Equal(t, lifecycle.StageSuppressed, outcome.Stage)
	assert.Equal(t, []string{"opt_out"}, h.suppressions.records)
}

func TestProcessEvent_SuppressedIsAbsorbing(t *testing.T) {
	h := newPipelineHarness(t, lifecycle.StageSuppressed)

	outcome, err := h.processor.ProcessEvent(context.Background(), h.lead.ID,
		lifecycle.Event{Type: lifecycle.EventSMSReceived})
	require.NoError(t, err)

	assert.False(t, outcome.Changed)
	assert.Equal(t, lifecycle.StageSuppressed, outcome.Stage)
	assert.Empty(t, h.leads.stageWrites)
	assert.Empty(t, h.suppressions.records)
}

func TestProcessEvent_UnknownLead(t *testing.T) {
	h := newPipelineHarness(t, lifecycle.StageNew)

	_, err := h.processor.ProcessEvent(context.Background(), uuid.New(),
		lifecycle.Event{Type: lifecycle.EventSMSSent})
	require.Error(t, err)

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrorTypeNotFound, appErr.Type)
}

func TestProcessInbound_ReplyAdvancesLead(t *testing.T) {
	h := newPipelineHarness(t, lifecycle.StageContacted)

	outcome, err := h.processor.ProcessInbound(context.Background(), "team-1",
		h.lead.Phone, "yes, tell me more")
	require.NoError(t, err)

	assert.Equal(t, "sms_received", outcome.Event)
	assert.Equal(t, lifecycle.StageResponded, outcome.Stage)
}

func TestProcessInbound_StopKeywordSuppresses(t *testing.T) {
	h := newPipelineHarness(t, lifecycle.StageResponded)

	outcome, err := h.processor.ProcessInbound(context.Background(), "team-1",
		h.lead.Phone, "STOP")
	require.NoError(t, err)

	assert.Equal(t, "opt_out", outcome.Event)
	assert.Equal(t, lifecycle.StageSuppressed, outcome.Stage)
	assert.Equal(t, []string{"opt_out"}, h.suppressions.records)
}

func TestClassifyInbound(t *testing.T) {
	tests := []struct {
		body string
		want lifecycle.EventType
	}{
		{"STOP", lifecycle.EventOptOut},
		{"stop.", lifecycle.EventOptOut},
		{"  Unsubscribe ", lifecycle.EventOptOut},
		{"QUIT!", lifecycle.EventOptOut},
		{"please stop calling me", lifecycle.EventSMSReceived},
		{"sure, what's the offer?", lifecycle.EventSMSReceived},
		{"", lifecycle.EventSMSReceived},
	}

	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyInbound(tt.body))
		})
	}
}
