package rest

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/nextiertech/outreach-messaging/internal/admission"
	"github.com/nextiertech/outreach-messaging/internal/domain/errors"
	"github.com/nextiertech/outreach-messaging/internal/domain/identity"
	"github.com/nextiertech/outreach-messaging/internal/domain/values"
	"github.com/nextiertech/outreach-messaging/internal/service/dispatch"
	"github.com/nextiertech/outreach-messaging/internal/service/pipeline"
)

// Handler carries the services the HTTP surface fronts.
type Handler struct {
	dispatcher *dispatch.Service
	processor  *pipeline.Processor
	registry   *identity.Registry
	admission  admission.Controller
	defaults   dispatch.Defaults
	validate   *validator.Validate
	logger     *zap.Logger

	// ready flips once startup wiring completes.
	ready func() bool
}

// NewHandler creates the HTTP handler set.
func NewHandler(
	dispatcher *dispatch.Service,
	processor *pipeline.Processor,
	registry *identity.Registry,
	controller admission.Controller,
	defaults dispatch.Defaults,
	logger *zap.Logger,
	ready func() bool,
) *Handler {
	if ready == nil {
		ready = func() bool { return true }
	}
	return &Handler{
		dispatcher: dispatcher,
		processor:  processor,
		registry:   registry,
		admission:  controller,
		defaults:   defaults,
		validate:   validator.New(),
		logger:     logger,
		ready:      ready,
	}
}

// From may be empty; the dispatcher falls back to the configured
// default sending identity.
type dispatchPayload struct {
	From         string                 `json:"from"`
	TeamID       string                 `json:"team_id"`
	Message      string                 `json:"message" validate:"required"`
	Destinations []dispatch.Destination `json:"destinations" validate:"required,min=1"`
	Options      dispatch.Options       `json:"options"`
}

// handleDispatch runs one bulk send. Gating failures come back 200
// with a rejected result; the call itself succeeded even when nothing
// was sent.
func (h *Handler) handleDispatch(w http.ResponseWriter, r *http.Request) {
	var payload dispatchPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_JSON", "malformed request body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	result, err := h.dispatcher.Dispatch(r.Context(), dispatch.Request{
		From:         payload.From,
		TeamID:       payload.TeamID,
		Message:      payload.Message,
		Destinations: payload.Destinations,
		Options:      payload.Options,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type inboundPayload struct {
	TeamID string `json:"team_id" validate:"required"`
	From   string `json:"from" validate:"required"`
	Body   string `json:"body"`
}

type inboundResponse struct {
	Status  string            `json:"status"`
	Outcome *pipeline.Outcome `json:"outcome,omitempty"`
}

// handleInbound receives vendor webhook deliveries for incoming
// messages. Unknown senders acknowledge with an ignored status; a
// non-2xx would make the vendor retry a message we will never match.
func (h *Handler) handleInbound(w http.ResponseWriter, r *http.Request) {
	var payload inboundPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_JSON", "malformed request body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	from, err := values.NewPhoneNumber(payload.From)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST", "unparseable sender number")
		return
	}

	outcome, err := h.processor.ProcessInbound(r.Context(), payload.TeamID, from, payload.Body)
	if err != nil {
		if appErr, ok := errors.AsAppError(err); ok && appErr.Type == errors.ErrorTypeNotFound {
			h.logger.Info("inbound from unknown number",
				zap.String("from", from.String()),
				zap.String("team_id", payload.TeamID))
			writeJSON(w, http.StatusOK, inboundResponse{Status: "ignored"})
			return
		}
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, inboundResponse{Status: "processed", Outcome: outcome})
}

type admissionUsage struct {
	Identity string             `json:"identity"`
	Campaign string             `json:"campaign"`
	Limits   admission.Limits   `json:"limits"`
	Usage    admission.Decision `json:"usage"`
}

// handleAdmission reports current usage against an identity's caps.
func (h *Handler) handleAdmission(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("identity")
	if raw == "" {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST", "identity query parameter is required")
		return
	}

	cfg, ok := h.registry.Lookup(raw)
	if !ok {
		writeErrorResponse(w, http.StatusNotFound, "NOT_FOUND", "identity is not registered")
		return
	}

	limits := admission.Limits{PerMinute: cfg.PerMinute, PerDay: cfg.PerDay}
	if limits.PerMinute == 0 {
		limits.PerMinute = h.defaults.PerMinute
	}
	if limits.PerDay == 0 {
		limits.PerDay = h.defaults.PerDay
	}

	usage, err := h.admission.Usage(r.Context(), cfg.Number.String(), limits)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, admissionUsage{
		Identity: cfg.Number.String(),
		Campaign: cfg.CampaignID,
		Limits:   limits,
		Usage:    usage,
	})
}

func (h *Handler) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	if !h.ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
