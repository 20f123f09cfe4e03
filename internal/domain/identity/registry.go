package identity

import (
	"fmt"

	"github.com/nextiertech/outreach-messaging/internal/domain/values"
)

// Registry maps sending phone numbers to their campaign registration.
// It is built once at startup and is a pure, side-effect-free map read
// afterwards; unknown identities come back as a not-found result rather
// than an error, so callers can produce an actionable compliance reason.
type Registry struct {
	byNumber map[string]Config
}

// NewRegistry builds a Registry from the configured identities.
// Duplicate numbers are rejected: two campaign registrations for the
// same sending number would make compliance lookups ambiguous.
func NewRegistry(configs []Config) (*Registry, error) {
	byNumber := make(map[string]Config, len(configs))
	for _, cfg := range configs {
		if cfg.Number.IsEmpty() {
			return nil, fmt.Errorf("sending identity with empty number (campaign %s)", cfg.CampaignID)
		}
		key := cfg.Number.String()
		if _, exists := byNumber[key]; exists {
			return nil, fmt.Errorf("duplicate sending identity: %s", key)
		}
		byNumber[key] = cfg
	}
	return &Registry{byNumber: byNumber}, nil
}

// Lookup resolves a phone-number-like string to its registration.
// The input is normalized to canonical digit form before the map read.
func (r *Registry) Lookup(raw string) (Config, bool) {
	cfg, ok := r.byNumber[values.Normalize(raw)]
	return cfg, ok
}

// IdentitiesForLane returns every identity registered under the lane.
func (r *Registry) IdentitiesForLane(lane Lane) []Config {
	var out []Config
	for _, cfg := range r.byNumber {
		if cfg.Lane == lane {
			out = append(out, cfg)
		}
	}
	return out
}

// IdentitiesForRole returns every identity the given role may send from.
func (r *Registry) IdentitiesForRole(role string) []Config {
	var out []Config
	for _, cfg := range r.byNumber {
		if cfg.AllowsRole(role) {
			out = append(out, cfg)
		}
	}
	return out
}

// Len returns the number of registered identities.
func (r *Registry) Len() int {
	return len(r.byNumber)
}
