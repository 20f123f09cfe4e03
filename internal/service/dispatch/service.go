package dispatch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nextiertech/outreach-messaging/internal/admission"
	"github.com/nextiertech/outreach-messaging/internal/domain/identity"
	"github.com/nextiertech/outreach-messaging/internal/domain/template"
	"github.com/nextiertech/outreach-messaging/internal/domain/values"
	"github.com/nextiertech/outreach-messaging/internal/metrics"
)

const optOutSuffix = "\n\nReply STOP to opt out."

// Defaults are the configured batching parameters applied when a
// request leaves the corresponding Options field zero. From is the
// sending identity used when a request names none.
type Defaults struct {
	From       string
	BatchSize  int
	GroupSize  int
	GroupDelay time.Duration
	BatchDelay time.Duration
	PerMinute  int
	PerDay     int
}

// NewDefaults returns the standard batching parameters.
func NewDefaults() Defaults {
	return Defaults{
		BatchSize:  250,
		GroupSize:  10,
		GroupDelay: 100 * time.Millisecond,
		BatchDelay: 5 * time.Second,
	}
}

// Service is the batch dispatcher. It gates every send behind the
// compliance registry, the template validator, and the admission
// controller, then fans the admitted destinations out in bounded
// concurrent groups.
type Service struct {
	registry    *identity.Registry
	admission   admission.Controller
	transport   Transport
	suppression SuppressionChecker
	defaults    Defaults
	logger      *zap.Logger
	metrics     *metrics.Registry

	// sleep is swappable so tests run the pacing logic without
	// waiting out real inter-batch delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewService creates a batch dispatcher.
func NewService(
	registry *identity.Registry,
	controller admission.Controller,
	transport Transport,
	suppression SuppressionChecker,
	defaults Defaults,
	logger *zap.Logger,
	m *metrics.Registry,
) *Service {
	return &Service{
		registry:    registry,
		admission:   controller,
		transport:   transport,
		suppression: suppression,
		defaults:    defaults,
		logger:      logger,
		metrics:     m,
		sleep:       sleepCtx,
	}
}

// Dispatch runs one bulk send. Compliance, content, and admission
// failures reject the whole call before any network traffic; invalid,
// landline, and suppressed destinations are excluded and counted; a
// transport failure affects only its own destination. The returned
// error is non-nil only for context cancellation between batches.
func (s *Service) Dispatch(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	opts := s.resolveOptions(req.Options)

	result := &Result{
		BatchSize:  opts.BatchSize,
		GroupSize:  opts.GroupSize,
		GroupDelay: opts.GroupDelay,
		BatchDelay: opts.BatchDelay,
	}

	from := req.From
	if from == "" {
		from = s.defaults.From
	}

	// Compliance gate: the sending identity must be registered and the
	// sender role permitted on its lane.
	cfg, ok := s.registry.Lookup(from)
	if !ok {
		return s.reject(result, "", RejectCodeIdentityNotRegistered,
			"sending number "+values.Normalize(from)+" is not registered to a messaging campaign"), nil
	}
	campaign := cfg.CampaignID

	if role := opts.SenderRole; role != "" && !cfg.AllowsRole(role) {
		return s.reject(result, campaign, RejectCodeRoleNotPermitted,
			"role "+role+" may not send on lane "+cfg.Lane.String()), nil
	}

	// Content gate: one validation covers the whole batch, since the
	// message is identical for every destination.
	result.Validation = template.Validate(req.Message, cfg.Lane)
	if !result.Validation.Valid {
		return s.reject(result, campaign, RejectCodeContentRejected,
			strings.Join(result.Validation.Errors, "; ")), nil
	}

	sendable := s.screenDestinations(ctx, req, opts, campaign, result)
	if len(sendable) == 0 {
		s.observeDuration(start)
		return result, nil
	}

	// Admission gate: one reservation for the whole remaining set.
	decision, err := s.admission.CheckAndReserve(ctx, cfg.Number.String(), len(sendable), s.limits(cfg))
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		if s.metrics != nil {
			s.metrics.AdmissionRejections.WithLabelValues(campaign, decision.Reason).Inc()
		}
		return s.reject(result, campaign, RejectCodeAdmissionDenied, admissionReason(decision)), nil
	}

	body := req.Message
	if !template.HasOptOutLanguage(body) {
		body += optOutSuffix
	}

	batches := partition(sendable, opts.BatchSize)
	result.TotalBatches = len(batches)

	s.logger.Info("dispatch admitted",
		zap.String("campaign", campaign),
		zap.String("from", cfg.Number.String()),
		zap.Int("destinations", len(sendable)),
		zap.Int("batches", len(batches)))

	for i, batch := range batches {
		if i > 0 {
			if err := s.sleep(ctx, opts.BatchDelay); err != nil {
				s.observeDuration(start)
				return result, err
			}
		}
		// Cancellation is honored between batches only; in-flight
		// sends within a group always run to completion.
		if err := ctx.Err(); err != nil {
			s.observeDuration(start)
			return result, err
		}
		if err := s.sendBatch(ctx, cfg.Number.E164(), batch, body, opts, result); err != nil {
			s.observeDuration(start)
			return result, err
		}
	}

	if s.metrics != nil {
		s.metrics.MessagesSent.WithLabelValues(campaign).Add(float64(result.Sent))
		s.metrics.MessagesFailed.WithLabelValues(campaign).Add(float64(result.Failed))
	}

	s.logger.Info("dispatch complete",
		zap.String("campaign", campaign),
		zap.Int("sent", result.Sent),
		zap.Int("failed", result.Failed),
		zap.Int("batches", result.TotalBatches))

	s.observeDuration(start)
	return result, nil
}

// screenDestinations applies the per-destination exclusions: format
// validation, line type, and suppression. Excluded destinations are
// counted but never fail the call.
func (s *Service) screenDestinations(ctx context.Context, req Request, opts Options, campaign string, result *Result) []values.PhoneNumber {
	sendable := make([]values.PhoneNumber, 0, len(req.Destinations))

	for _, dest := range req.Destinations {
		number, err := values.NewPhoneNumber(dest.Address)
		if err != nil {
			result.SkippedInvalid++
			continue
		}

		if dest.LineType == LineTypeLandline && !opts.AllowLandlines {
			result.SkippedLandline++
			continue
		}

		if s.suppression != nil && dest.LeadID != "" {
			allowed, reason, err := s.suppression.CanContact(ctx, dest.LeadID, req.TeamID)
			if err != nil {
				// Fail closed: an unanswerable suppression check is
				// treated as suppressed.
				s.logger.Warn("suppression check failed",
					zap.String("lead_id", dest.LeadID),
					zap.Error(err))
				result.SkippedSuppressed++
				continue
			}
			if !allowed {
				s.logger.Debug("destination suppressed",
					zap.String("lead_id", dest.LeadID),
					zap.String("reason", reason))
				result.SkippedSuppressed++
				continue
			}
		}

		sendable = append(sendable, number)
	}

	if s.metrics != nil {
		s.metrics.DestinationsSkipped.WithLabelValues(campaign, "invalid").Add(float64(result.SkippedInvalid))
		s.metrics.DestinationsSkipped.WithLabelValues(campaign, "landline").Add(float64(result.SkippedLandline))
		s.metrics.DestinationsSkipped.WithLabelValues(campaign, "suppressed").Add(float64(result.SkippedSuppressed))
	}

	return sendable
}

// sendBatch fans one batch out in bounded concurrent groups with a
// pacing pause between groups.
func (s *Service) sendBatch(ctx context.Context, from string, batch []values.PhoneNumber, body string, opts Options, result *Result) error {
	for offset := 0; offset < len(batch); offset += opts.GroupSize {
		if offset > 0 {
			if err := s.sleep(ctx, opts.GroupDelay); err != nil {
				return err
			}
		}

		end := offset + opts.GroupSize
		if end > len(batch) {
			end = len(batch)
		}
		group := batch[offset:end]

		var mu sync.Mutex
		var wg sync.WaitGroup
		for _, number := range group {
			wg.Add(1)
			go func(number values.PhoneNumber) {
				defer wg.Done()

				outcome := SendOutcome{Destination: number.String()}
				providerID, err := s.transport.Send(ctx, from, number.E164(), body, opts.MediaURL)
				if err != nil {
					outcome.Error = err.Error()
				} else {
					outcome.Success = true
					outcome.ProviderMessageID = providerID
				}

				mu.Lock()
				if outcome.Success {
					result.Sent++
				} else {
					result.Failed++
				}
				result.Outcomes = append(result.Outcomes, outcome)
				mu.Unlock()
			}(number)
		}
		wg.Wait()
	}
	return nil
}

func (s *Service) resolveOptions(opts Options) Options {
	if opts.BatchSize <= 0 {
		opts.BatchSize = s.defaults.BatchSize
	}
	if opts.GroupSize <= 0 {
		opts.GroupSize = s.defaults.GroupSize
	}
	if opts.GroupDelay <= 0 {
		opts.GroupDelay = s.defaults.GroupDelay
	}
	if opts.BatchDelay <= 0 {
		opts.BatchDelay = s.defaults.BatchDelay
	}
	return opts
}

// limits resolves the identity's caps, falling back to the configured
// process-wide defaults when the registration leaves them unset.
func (s *Service) limits(cfg identity.Config) admission.Limits {
	limits := admission.Limits{PerMinute: cfg.PerMinute, PerDay: cfg.PerDay}
	if limits.PerMinute <= 0 {
		limits.PerMinute = s.defaults.PerMinute
	}
	if limits.PerDay <= 0 {
		limits.PerDay = s.defaults.PerDay
	}
	return limits
}

func (s *Service) reject(result *Result, campaign, code, reason string) *Result {
	result.Rejected = true
	result.RejectCode = code
	result.RejectReason = reason
	s.logger.Warn("dispatch rejected",
		zap.String("campaign", campaign),
		zap.String("code", code),
		zap.String("reason", reason))
	return result
}

func (s *Service) observeDuration(start time.Time) {
	if s.metrics != nil {
		s.metrics.DispatchDuration.Observe(time.Since(start).Seconds())
	}
}

func admissionReason(decision admission.Decision) string {
	switch decision.Reason {
	case admission.ReasonDailyLimit:
		return fmt.Sprintf("%s: %d sent today, %d remaining",
			decision.Reason, decision.DayUsed, decision.DayRemaining)
	case admission.ReasonRateLimit:
		return fmt.Sprintf("%s: %d sent in the last minute, %d remaining",
			decision.Reason, decision.MinuteUsed, decision.MinuteRemaining)
	default:
		return decision.Reason
	}
}

func partition(destinations []values.PhoneNumber, size int) [][]values.PhoneNumber {
	var batches [][]values.PhoneNumber
	for offset := 0; offset < len(destinations); offset += size {
		end := offset + size
		if end > len(destinations) {
			end = len(destinations)
		}
		batches = append(batches, destinations[offset:end])
	}
	return batches
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
