package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/nextiertech/outreach-messaging/internal/domain/identity"
	"github.com/nextiertech/outreach-messaging/internal/domain/values"
)

type Config struct {
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`

	Server     ServerConfig     `koanf:"server"`
	Database   DatabaseConfig   `koanf:"database"`
	Redis      RedisConfig      `koanf:"redis"`
	Vendor     VendorConfig     `koanf:"vendor"`
	Dispatch   DispatchConfig   `koanf:"dispatch"`
	Security   SecurityConfig   `koanf:"security"`
	Identities []IdentityConfig `koanf:"identities"`
}

type ServerConfig struct {
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxConns        int           `koanf:"max_conns"`
	MinConns        int           `koanf:"min_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type RedisConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// VendorConfig points at the SMS gateway.
type VendorConfig struct {
	BaseURL           string        `koanf:"base_url" validate:"required,url"`
	APIKey            string        `koanf:"api_key" validate:"required"`
	APIToken          string        `koanf:"api_token" validate:"required"`
	Timeout           time.Duration `koanf:"timeout"`
	RequestsPerSecond int           `koanf:"requests_per_second"`
}

// DispatchConfig sets batching and the fallback caps for identities
// that do not declare their own.
type DispatchConfig struct {
	// DefaultFrom is the sending identity used when a dispatch request
	// names none. Must be one of the registered identities when set.
	DefaultFrom string `koanf:"default_from"`

	BatchSize  int           `koanf:"batch_size" validate:"min=1"`
	GroupSize  int           `koanf:"group_size" validate:"min=1"`
	GroupDelay time.Duration `koanf:"group_delay"`
	BatchDelay time.Duration `koanf:"batch_delay"`
	PerMinute  int           `koanf:"per_minute" validate:"min=1"`
	PerDay     int           `koanf:"per_day" validate:"min=1"`
}

type SecurityConfig struct {
	JWTSecret   string        `koanf:"jwt_secret"`
	TokenExpiry time.Duration `koanf:"token_expiry"`
}

// IdentityConfig is one registered sending number as it appears in the
// config file.
type IdentityConfig struct {
	Number       string   `koanf:"number" validate:"required"`
	CampaignID   string   `koanf:"campaign_id" validate:"required"`
	BrandID      string   `koanf:"brand_id"`
	Lane         string   `koanf:"lane" validate:"required"`
	AllowedRoles []string `koanf:"allowed_roles"`
	PerMinute    int      `koanf:"per_minute"`
	PerDay       int      `koanf:"per_day"`
}

// Load reads configuration in layers: built-in defaults, then an
// optional configs/config.yaml, then OUTREACH_-prefixed environment
// variables.
func Load() (*Config, error) {
	return LoadFromFile("configs/config.yaml")
}

// LoadFromFile is Load with an explicit config file path.
func LoadFromFile(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := &Config{
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			MaxConns:        25,
			MinConns:        5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Vendor: VendorConfig{
			Timeout:           15 * time.Second,
			RequestsPerSecond: 25,
		},
		Dispatch: DispatchConfig{
			BatchSize:  250,
			GroupSize:  10,
			GroupDelay: 100 * time.Millisecond,
			BatchDelay: 5 * time.Second,
			PerMinute:  60,
			PerDay:     1500,
		},
		Security: SecurityConfig{
			TokenExpiry: 24 * time.Hour,
		},
	}

	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	// The config file is optional; environments that configure purely
	// through the environment skip it.
	_ = k.Load(file.Provider(path), yaml.Parser())

	if err := k.Load(env.Provider("OUTREACH_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "OUTREACH_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the structural constraints the tags declare.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	for i := range c.Identities {
		if _, err := identity.ParseLane(c.Identities[i].Lane); err != nil {
			return fmt.Errorf("identity %s: %w", c.Identities[i].Number, err)
		}
	}
	return nil
}

// IsProduction reports whether the environment is production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// BuildRegistry converts the configured identities into the runtime
// registry the dispatcher consults.
func (c *Config) BuildRegistry() (*identity.Registry, error) {
	configs := make([]identity.Config, 0, len(c.Identities))
	for _, entry := range c.Identities {
		number, err := values.NewPhoneNumber(entry.Number)
		if err != nil {
			return nil, fmt.Errorf("identity %s: %w", entry.Number, err)
		}
		lane, err := identity.ParseLane(entry.Lane)
		if err != nil {
			return nil, fmt.Errorf("identity %s: %w", entry.Number, err)
		}
		configs = append(configs, identity.Config{
			Number:       number,
			CampaignID:   entry.CampaignID,
			BrandID:      entry.BrandID,
			Lane:         lane,
			AllowedRoles: entry.AllowedRoles,
			PerMinute:    entry.PerMinute,
			PerDay:       entry.PerDay,
		})
	}
	return identity.NewRegistry(configs)
}
