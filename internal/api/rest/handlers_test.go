package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/nextiertech/outreach-messaging/internal/admission"
	"github.com/nextiertech/outreach-messaging/internal/domain/identity"
	"github.com/nextiertech/outreach-messaging/internal/domain/lifecycle"
	"github.com/nextiertech/outreach-messaging/internal/domain/values"
	"github.com/nextiertech/outreach-messaging/internal/service/dispatch"
	"github.com/nextiertech/outreach-messaging/internal/service/pipeline"
)

type stubTransport struct {
	mu    sync.Mutex
	calls int
}

func (s *stubTransport) Send(context.Context, string, string, string, string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return "SM1", nil
}

type stubLeadStore struct {
	lead *lifecycle.Lead
}

func (s *stubLeadStore) GetByID(_ context.Context, id uuid.UUID) (*lifecycle.Lead, error) {
	if s.lead != nil && s.lead.ID == id {
		return s.lead, nil
	}
	return nil, nil
}

func (s *stubLeadStore) GetByPhone(_ context.Context, _ string, phone values.PhoneNumber) (*lifecycle.Lead, error) {
	if s.lead != nil && s.lead.Phone.Equal(phone) {
		return s.lead, nil
	}
	return nil, nil
}

func (s *stubLeadStore) UpdateStage(_ context.Context, _ uuid.UUID, stage lifecycle.Stage) error {
	s.lead.Stage = stage
	return nil
}

type stubDealStore struct{}

func (stubDealStore) Create(context.Context, *lifecycle.Deal) error { return nil }

type stubSuppressionStore struct{}

func (stubSuppressionStore) Suppress(context.Context, uuid.UUID, values.PhoneNumber, string) error {
	return nil
}

func newTestRouter(t *testing.T, secret string, leads *stubLeadStore) (http.Handler, *stubTransport) {
	t.Helper()

	logger := zaptest.NewLogger(t)
	registry, err := identity.NewRegistry([]identity.Config{
		{
			Number:     values.MustNewPhoneNumber("15555550100"),
			CampaignID: "camp-cold",
			Lane:       identity.LaneColdOutreach,
			PerMinute:  75,
			PerDay:     2000,
		},
	})
	require.NoError(t, err)

	controller := admission.NewMemoryController()
	transport := &stubTransport{}
	defaults := dispatch.NewDefaults()
	defaults.GroupDelay = 0
	defaults.BatchDelay = 0

	dispatcher := dispatch.NewService(registry, controller, transport, nil, defaults, logger, nil)
	processor := pipeline.NewProcessor(leads, stubDealStore{}, stubSuppressionStore{}, logger, nil)

	handler := NewHandler(dispatcher, processor, registry, controller, defaults, logger, nil)
	return NewRouter(handler, logger, RouterConfig{JWTSecret: secret}), transport
}

func signToken(t *testing.T, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestDispatchEndpoint(t *testing.T) {
	router, transport := newTestRouter(t, "", &stubLeadStore{})

	body := `{
		"from": "15555550100",
		"message": "Hey, it's Sam from Acme Properties. Open to an offer on your property?",
		"destinations": [
			{"address": "15556660001", "line_type": "mobile"},
			{"address": "15556660002", "line_type": "mobile"}
		]
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/dispatch", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var result dispatch.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.False(t, result.Rejected)
	assert.Equal(t, 2, result.Sent)
	assert.Equal(t, 2, transport.calls)
}

func TestDispatchEndpoint_RejectedStillOK(t *testing.T) {
	router, transport := newTestRouter(t, "", &stubLeadStore{})

	body := `{
		"from": "15555550100",
		"message": "FREE money, act now!",
		"destinations": [{"address": "15556660001", "line_type": "mobile"}]
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/dispatch", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var result dispatch.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Rejected)
	assert.Equal(t, dispatch.RejectCodeContentRejected, result.RejectCode)
	assert.Equal(t, 0, transport.calls)
}

func TestDispatchEndpoint_MissingFields(t *testing.T) {
	router, _ := newTestRouter(t, "", &stubLeadStore{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/dispatch",
		strings.NewReader(`{"message": "hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDispatchEndpoint_AuthRequired(t *testing.T) {
	const secret = "test-secret"
	router, _ := newTestRouter(t, secret, &stubLeadStore{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/dispatch", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/dispatch", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer "+signToken(t, secret))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	// Authenticated but structurally invalid.
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/dispatch", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer "+signToken(t, "wrong-secret"))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestInboundWebhook_Reply(t *testing.T) {
	lead := lifecycle.NewLead("team-1", values.MustNewPhoneNumber("15556667777"), "Jordan")
	lead.Stage = lifecycle.StageContacted
	router, _ := newTestRouter(t, "", &stubLeadStore{lead: lead})

	body := `{"team_id": "team-1", "from": "+15556667777", "body": "yes, tell me more"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/inbound", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp inboundResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "processed", resp.Status)
	require.NotNil(t, resp.Outcome)
	assert.Equal(t, lifecycle.StageResponded, resp.Outcome.Stage)
}

func TestInboundWebhook_UnknownSenderAcknowledged(t *testing.T) {
	router, _ := newTestRouter(t, "", &stubLeadStore{})

	body := `{"team_id": "team-1", "from": "15559998888", "body": "who is this?"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/inbound", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp inboundResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ignored", resp.Status)
}

func TestAdmissionEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, "", &stubLeadStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admission?identity=15555550100", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var usage admissionUsage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &usage))
	assert.Equal(t, "15555550100", usage.Identity)
	assert.Equal(t, "camp-cold", usage.Campaign)
	assert.Equal(t, 75, usage.Limits.PerMinute)
	assert.Equal(t, 2000, usage.Limits.PerDay)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/admission?identity=19990000000", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	router, _ := newTestRouter(t, "", &stubLeadStore{})

	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestRequestIDHeader(t *testing.T) {
	router, _ := newTestRouter(t, "", &stubLeadStore{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-abc")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "req-abc", rec.Header().Get("X-Request-ID"))
}
