package pipeline

import (
	"strings"

	"github.com/nextiertech/outreach-messaging/internal/domain/lifecycle"
)

// stopKeywords are the carrier-standard opt-out keywords. A message
// consisting of one of these (ignoring case and punctuation) is an
// opt-out, not a reply.
var stopKeywords = map[string]struct{}{
	"stop":        {},
	"stopall":     {},
	"unsubscribe": {},
	"cancel":      {},
	"end":         {},
	"quit":        {},
	"remove":      {},
}

// ClassifyInbound maps a raw inbound message body to a lifecycle event.
// Opt-out keywords win; everything else counts as a reply.
func ClassifyInbound(body string) lifecycle.EventType {
	normalized := strings.ToLower(strings.TrimSpace(body))
	normalized = strings.Trim(normalized, ".!?,")
	if _, ok := stopKeywords[normalized]; ok {
		return lifecycle.EventOptOut
	}
	return lifecycle.EventSMSReceived
}
