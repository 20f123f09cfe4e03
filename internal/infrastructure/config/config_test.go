package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextiertech/outreach-messaging/internal/domain/identity"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 250, cfg.Dispatch.BatchSize)
	assert.Equal(t, 10, cfg.Dispatch.GroupSize)
	assert.Equal(t, 100*time.Millisecond, cfg.Dispatch.GroupDelay)
	assert.Equal(t, 5*time.Second, cfg.Dispatch.BatchDelay)
	assert.Equal(t, 60, cfg.Dispatch.PerMinute)
	assert.Equal(t, 1500, cfg.Dispatch.PerDay)
	assert.False(t, cfg.IsProduction())
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
environment: production
server:
  port: 9000
dispatch:
  per_day: 2000
identities:
  - number: "15555550100"
    campaign_id: camp-cold
    lane: cold_outreach
    allowed_roles: [sdr]
    per_minute: 75
    per_day: 2000
  - number: "(555) 555-0101"
    campaign_id: camp-engaged
    lane: engaged_leads
`), 0o600))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 2000, cfg.Dispatch.PerDay)
	// Values the file does not mention keep their defaults.
	assert.Equal(t, 250, cfg.Dispatch.BatchSize)

	registry, err := cfg.BuildRegistry()
	require.NoError(t, err)
	assert.Equal(t, 2, registry.Len())

	cold, ok := registry.Lookup("15555550100")
	require.True(t, ok)
	assert.Equal(t, identity.LaneColdOutreach, cold.Lane)
	assert.Equal(t, 75, cold.PerMinute)

	// Formatted numbers in the file normalize to canonical form.
	engaged, ok := registry.Lookup("15555550101")
	require.True(t, ok)
	assert.Equal(t, identity.LaneEngagedLeads, engaged.Lane)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("OUTREACH_SERVER_PORT", "9999")
	t.Setenv("OUTREACH_LOG_LEVEL", "debug")

	cfg, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestBuildRegistry_BadNumber(t *testing.T) {
	cfg := &Config{Identities: []IdentityConfig{
		{Number: "12", CampaignID: "c", Lane: "cold_outreach"},
	}}

	_, err := cfg.BuildRegistry()
	assert.Error(t, err)
}

func TestValidate_UnknownLane(t *testing.T) {
	cfg, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	cfg.Vendor = VendorConfig{BaseURL: "https://sms.example.com", APIKey: "k", APIToken: "t"}
	cfg.Identities = []IdentityConfig{
		{Number: "15555550100", CampaignID: "c", Lane: "warm_leads"},
	}

	assert.Error(t, cfg.Validate())
}
