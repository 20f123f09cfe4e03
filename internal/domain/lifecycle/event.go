package lifecycle

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// EventType enumerates the triggers external collaborators feed into
// the state machine: outbound sends, inbound replies, call outcomes,
// qualification signals, deal movements, and suppression requests.
type EventType int

const (
	EventSMSSent EventType = iota
	EventSMSReceived
	EventCallCompleted
	EventQualifiedSignal
	EventAppointmentRequested
	EventAppointmentBooked
	EventDealCreated
	EventDealStageChanged
	EventDealWon
	EventDealLost
	EventOptOut
	EventDNCRequest
	eventUnknown
)

func (t EventType) String() string {
	switch t {
	case EventSMSSent:
		return "sms_sent"
	case EventSMSReceived:
		return "sms_received"
	case EventCallCompleted:
		return "call_completed"
	case EventQualifiedSignal:
		return "qualified_signal"
	case EventAppointmentRequested:
		return "appointment_requested"
	case EventAppointmentBooked:
		return "appointment_booked"
	case EventDealCreated:
		return "deal_created"
	case EventDealStageChanged:
		return "deal_stage_changed"
	case EventDealWon:
		return "deal_won"
	case EventDealLost:
		return "deal_lost"
	case EventOptOut:
		return "opt_out"
	case EventDNCRequest:
		return "dnc_request"
	default:
		return "unknown"
	}
}

// ParseEventType converts an event name to its enum value. Unknown
// names map to a sentinel the machine treats as a graceful no-op.
func ParseEventType(s string) (EventType, bool) {
	for t := EventSMSSent; t < eventUnknown; t++ {
		if t.String() == s {
			return t, true
		}
	}
	return eventUnknown, false
}

// Metadata is the tagged payload attached to an event. Each event kind
// carries its own concrete type so the machine can type-switch instead
// of probing optional fields.
type Metadata interface {
	isMetadata()
}

// Disposition is the outcome a caller records after a completed call.
type Disposition string

const (
	DispositionAppointmentSet Disposition = "appointment_set"
	DispositionQualified      Disposition = "qualified"
	DispositionNotInterested  Disposition = "not_interested"
)

// CallCompletedMetadata accompanies EventCallCompleted.
type CallCompletedMetadata struct {
	Disposition Disposition
	Notes       string
}

func (CallCompletedMetadata) isMetadata() {}

// QualifiedSignalMetadata accompanies EventQualifiedSignal.
type QualifiedSignalMetadata struct {
	AutoCreateDeal bool
	Lead           LeadProfile
}

func (QualifiedSignalMetadata) isMetadata() {}

// DealLostMetadata accompanies EventDealLost. ReopenLead sends the lead
// back to nurturing instead of closing it out.
type DealLostMetadata struct {
	ReopenLead bool
	Reason     string
}

func (DealLostMetadata) isMetadata() {}

// DealStageChangedMetadata accompanies EventDealStageChanged.
type DealStageChangedMetadata struct {
	DealStage string
}

func (DealStageChangedMetadata) isMetadata() {}

// Event is one lifecycle trigger with its typed payload. Metadata may
// be nil; events whose semantics need a payload degrade to a no-op
// rather than failing.
type Event struct {
	Type     EventType
	Metadata Metadata
}

// LeadProfile carries the lead attributes deal-type derivation reads.
type LeadProfile struct {
	PropertyType   string
	HasBusiness    bool
	B2BSignals     bool
	EstimatedValue decimal.Decimal
}

// DealType classifies an auto-created deal by the lead's attributes.
type DealType string

const (
	DealTypeB2BExit         DealType = "b2b_exit"
	DealTypeCommercial      DealType = "commercial"
	DealTypeDevelopment     DealType = "development"
	DealTypeResidentialHAOS DealType = "residential_haos"
	DealTypeBlueCollarExit  DealType = "blue_collar_exit"
)

// DeriveDealType computes the deal type for an auto-created deal.
func DeriveDealType(lead LeadProfile) DealType {
	if lead.B2BSignals {
		return DealTypeB2BExit
	}

	property := strings.ToLower(lead.PropertyType)
	switch {
	case property == "commercial" || property == "industrial" || property == "retail" || property == "office":
		return DealTypeCommercial
	case strings.Contains(property, "land"):
		return DealTypeDevelopment
	case lead.HasBusiness:
		return DealTypeBlueCollarExit
	default:
		return DealTypeResidentialHAOS
	}
}

// SideEffectType names a derived action the caller's persistence layer
// must execute. Side effects are returned as data, never performed by
// the machine itself.
type SideEffectType string

const (
	SideEffectCreateDeal SideEffectType = "create_deal"
)

// SideEffect is one derived action attached to a transition.
type SideEffect struct {
	Type SideEffectType
	Deal *DealRequest
}

// DealRequest asks the deal storage collaborator to create a record.
type DealRequest struct {
	DealType       DealType
	Source         string
	EstimatedValue decimal.Decimal
}

func (d *DealRequest) String() string {
	return fmt.Sprintf("create %s deal (est. %s)", d.DealType, d.EstimatedValue.StringFixed(0))
}
