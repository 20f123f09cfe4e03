package dispatch

import (
	"context"
)

// Transport is the vendor SMS gateway boundary. Implementations own
// their per-attempt HTTP timeout and retry behavior; the dispatcher
// treats one Send as final.
type Transport interface {
	// Send delivers one message and returns the provider's message id.
	Send(ctx context.Context, from, to, body, mediaURL string) (string, error)
}

// SuppressionChecker answers whether a lead may be contacted. It is an
// external compliance collaborator consulted once per destination.
type SuppressionChecker interface {
	CanContact(ctx context.Context, leadID, teamID string) (bool, string, error)
}
