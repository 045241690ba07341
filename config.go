package authcenter

import (
	"errors"
	"strings"
	"time"
)

// Config defines a public type used by authcenter APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Token    TokenConfig
	Registry RegistryConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig controls token shape and lifetime.
type TokenConfig struct {
	// TTL is how long a stored authToken stays valid after its timestamp.
	TTL time.Duration
	// RefreshThreshold is the age after which a successful check slides the
	// stored timestamp to now. Must be below TTL.
	RefreshThreshold time.Duration
	// Separator joins record uuid and random id. It must not occur in either.
	Separator string
}

/*
====================================
REGISTRY CONFIG
====================================
*/

// RegistryConfig names the device registry and the user category.
type RegistryConfig struct {
	Service    string // resolver key, "services.device_manager"
	UserTypeID string // type.id of user records
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig defines a public type used by authcenter APIs.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig defines a public type used by authcenter APIs.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

const (
	// DefaultRegistryService is the resolver key of the device registry.
	DefaultRegistryService = "services.device_manager"
	// DefaultUserTypeID tags user records in the registry.
	DefaultUserTypeID = "060A08000000"
	// DefaultTokenTTL is the lifetime of an unrefreshed token.
	DefaultTokenTTL = 30 * 24 * time.Hour
	// DefaultRefreshThreshold is two-thirds of DefaultTokenTTL.
	DefaultRefreshThreshold = 20 * 24 * time.Hour
	// DefaultSeparator joins the two token parts.
	DefaultSeparator = "_"
)

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			TTL:              DefaultTokenTTL,
			RefreshThreshold: DefaultRefreshThreshold,
			Separator:        DefaultSeparator,
		},
		Registry: RegistryConfig{
			Service:    DefaultRegistryService,
			UserTypeID: DefaultUserTypeID,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	return cfg
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration error, or nil.
func (c *Config) Validate() error {
	// Token
	if c.Token.TTL <= 0 {
		return errors.New("Token TTL must be > 0")
	}
	if c.Token.RefreshThreshold <= 0 {
		return errors.New("Token RefreshThreshold must be > 0")
	}
	if c.Token.RefreshThreshold >= c.Token.TTL {
		return errors.New("Token RefreshThreshold must be < TTL")
	}
	if c.Token.Separator == "" {
		return errors.New("Token Separator must not be empty")
	}
	// uuids are hex and dashes; a separator made of those would split them
	if strings.Trim(c.Token.Separator, "0123456789abcdefABCDEF-") == "" {
		return errors.New("Token Separator must not consist of uuid characters")
	}

	// Registry
	if strings.TrimSpace(c.Registry.Service) == "" {
		return errors.New("Registry Service must not be empty")
	}
	if strings.TrimSpace(c.Registry.UserTypeID) == "" {
		return errors.New("Registry UserTypeID must not be empty")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}
