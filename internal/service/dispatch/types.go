package dispatch

import (
	"time"

	"github.com/nextiertech/outreach-messaging/internal/domain/template"
)

// LineType is the upstream best-effort classification of a phone line.
type LineType string

const (
	LineTypeMobile   LineType = "mobile"
	LineTypeLandline LineType = "landline"
	LineTypeVOIP     LineType = "voip"
	LineTypeUnknown  LineType = "unknown"
)

// Destination is one recipient of a dispatch. LeadID ties the number
// back to the suppression checker and lead storage; LineType is a hint
// from upstream data, trusted as-is.
type Destination struct {
	Address  string   `json:"address"`
	LeadID   string   `json:"lead_id,omitempty"`
	LineType LineType `json:"line_type,omitempty"`
}

// Options tunes batching and skip behavior for one dispatch call.
// Zero values take the configured defaults.
type Options struct {
	BatchSize      int           `json:"batch_size,omitempty"`
	GroupSize      int           `json:"group_size,omitempty"`
	GroupDelay     time.Duration `json:"group_delay,omitempty"`
	BatchDelay     time.Duration `json:"batch_delay,omitempty"`
	AllowLandlines bool          `json:"allow_landlines,omitempty"`
	SenderRole     string        `json:"sender_role,omitempty"`
	MediaURL       string        `json:"media_url,omitempty"`
}

// Request is one bulk-send invocation.
type Request struct {
	From         string        `json:"from"`
	TeamID       string        `json:"team_id,omitempty"`
	Message      string        `json:"message"`
	Destinations []Destination `json:"destinations"`
	Options      Options       `json:"options"`
}

// SendOutcome is the per-destination result, keyed by the canonical
// destination number rather than submission order.
type SendOutcome struct {
	Destination       string `json:"destination"`
	Success           bool   `json:"success"`
	ProviderMessageID string `json:"provider_message_id,omitempty"`
	Error             string `json:"error,omitempty"`
}

// Result aggregates a whole dispatch call: counts per category, the
// batching parameters actually used, and every per-destination outcome.
// Rejected dispatches (compliance, content, admission) carry the reason
// here instead of an error; zero messages were sent in that case.
type Result struct {
	Rejected     bool   `json:"rejected"`
	RejectCode   string `json:"reject_code,omitempty"`
	RejectReason string `json:"reject_reason,omitempty"`

	Sent              int `json:"sent"`
	Failed            int `json:"failed"`
	SkippedInvalid    int `json:"skipped_invalid"`
	SkippedLandline   int `json:"skipped_landline"`
	SkippedSuppressed int `json:"skipped_suppressed"`

	TotalBatches int           `json:"total_batches"`
	BatchSize    int           `json:"batch_size"`
	GroupSize    int           `json:"group_size"`
	GroupDelay   time.Duration `json:"group_delay"`
	BatchDelay   time.Duration `json:"batch_delay"`

	Validation template.Result `json:"validation"`
	Outcomes   []SendOutcome   `json:"outcomes"`
}

// Reject codes surfaced on Result.RejectCode.
const (
	RejectCodeIdentityNotRegistered = "IDENTITY_NOT_REGISTERED"
	RejectCodeRoleNotPermitted      = "ROLE_NOT_PERMITTED"
	RejectCodeContentRejected       = "CONTENT_REJECTED"
	RejectCodeAdmissionDenied       = "ADMISSION_DENIED"
)
