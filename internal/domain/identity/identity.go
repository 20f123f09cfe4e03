package identity

import (
	"fmt"

	"github.com/nextiertech/outreach-messaging/internal/domain/values"
)

// Lane is the compliance regime a sending identity is registered under.
// The lane decides which content rules apply and which sender roles may
// use the number.
type Lane int

const (
	LaneColdOutreach Lane = iota
	LaneEngagedLeads
)

func (l Lane) String() string {
	switch l {
	case LaneColdOutreach:
		return "cold_outreach"
	case LaneEngagedLeads:
		return "engaged_leads"
	default:
		return "unknown"
	}
}

// ParseLane converts a lane name to its enum value.
func ParseLane(s string) (Lane, error) {
	switch s {
	case "cold_outreach":
		return LaneColdOutreach, nil
	case "engaged_leads":
		return LaneEngagedLeads, nil
	default:
		return 0, fmt.Errorf("unknown lane: %q", s)
	}
}

// Config describes one provisioned sending identity. Identities are
// provisioned vendor-side, loaded at process start, and immutable for
// the life of the process.
type Config struct {
	Number       values.PhoneNumber `json:"number"`
	CampaignID   string             `json:"campaign_id"`
	BrandID      string             `json:"brand_id"`
	Lane         Lane               `json:"lane"`
	AllowedRoles []string           `json:"allowed_roles"`
	PerMinute    int                `json:"per_minute"`
	PerDay       int                `json:"per_day"`
}

// AllowsRole reports whether the given sender role may use this identity.
// An empty role list means the identity is open to all roles.
func (c Config) AllowsRole(role string) bool {
	if len(c.AllowedRoles) == 0 {
		return true
	}
	for _, r := range c.AllowedRoles {
		if r == role {
			return true
		}
	}
	return false
}
