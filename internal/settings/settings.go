// Package settings loads binary configuration from flags, the environment and
// an optional .env file using Viper.
package settings

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MrEthical07/authcenter"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Settings holds process configuration for the authcenter binaries.
type Settings struct {
	// RedisAddr is the bus Redis address (host:port).
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	// BusPrefix namespaces every inbox and reply key.
	BusPrefix string `mapstructure:"BUS_PREFIX"`
	// Inbox is the endpoint this process serves.
	Inbox string `mapstructure:"INBOX"`
	// ServiceUUID is this service's own mesh identity, used as assertion subject.
	ServiceUUID string `mapstructure:"SERVICE_UUID"`
	// RegistryService is the logical service name of the device registry.
	RegistryService string `mapstructure:"REGISTRY_SERVICE"`
	// RegistryEndpoints is a comma-separated list of registry inbox candidates.
	RegistryEndpoints string `mapstructure:"REGISTRY_ENDPOINTS"`
	UserTypeID        string `mapstructure:"USER_TYPE_ID"`
	// CallTimeout bounds each registry round-trip (e.g. "5s").
	CallTimeout string `mapstructure:"CALL_TIMEOUT"`
	TokenTTL    string `mapstructure:"TOKEN_TTL"`
	// RefreshThreshold is the token age after which CheckToken slides the timestamp.
	RefreshThreshold string `mapstructure:"REFRESH_THRESHOLD"`
	// AssertionKey is the base64 ed25519 seed (or HS256 secret). Empty disables assertions.
	AssertionKey    string `mapstructure:"ASSERTION_KEY"`
	AssertionMethod string `mapstructure:"ASSERTION_METHOD"`
	// AllowedCallers is a comma-separated list of caller uuids accepted on the inbox.
	AllowedCallers string `mapstructure:"ALLOWED_CALLERS"`
	// HTTPAddr enables the HTTP gateway when non-empty.
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// OTLPEndpoint enables OTLP metric export when non-empty.
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	LogLevel     string `mapstructure:"LOG_LEVEL"`
	AuditEnabled bool   `mapstructure:"AUDIT_ENABLED"`
	// SeedFile is a JSON seed for cmd/registry-dev.
	SeedFile string `mapstructure:"SEED_FILE"`
}

type flagDef struct {
	key   string
	name  string
	usage string
}

var flagDefs = []flagDef{
	{"REDIS_ADDR", "redis-addr", "bus Redis address"},
	{"BUS_PREFIX", "bus-prefix", "bus key prefix"},
	{"INBOX", "inbox", "endpoint served by this process"},
	{"SERVICE_UUID", "service-uuid", "this service's mesh identity"},
	{"REGISTRY_ENDPOINTS", "registry-endpoints", "comma-separated registry inbox candidates"},
	{"CALL_TIMEOUT", "call-timeout", "registry call timeout"},
	{"HTTP_ADDR", "http-addr", "HTTP gateway listen address (empty disables)"},
	{"OTLP_ENDPOINT", "otlp-endpoint", "OTLP gRPC metrics endpoint (empty disables)"},
	{"LOG_LEVEL", "log-level", "debug, info, warn or error"},
	{"SEED_FILE", "seed-file", "registry seed file (registry-dev only)"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("BUS_PREFIX", "mesh")
	v.SetDefault("INBOX", "authcenter")
	v.SetDefault("SERVICE_UUID", "")
	v.SetDefault("REGISTRY_SERVICE", authcenter.DefaultRegistryService)
	v.SetDefault("REGISTRY_ENDPOINTS", "device-manager")
	v.SetDefault("USER_TYPE_ID", authcenter.DefaultUserTypeID)
	v.SetDefault("CALL_TIMEOUT", "5s")
	v.SetDefault("TOKEN_TTL", authcenter.DefaultTokenTTL.String())
	v.SetDefault("REFRESH_THRESHOLD", authcenter.DefaultRefreshThreshold.String())
	v.SetDefault("ASSERTION_KEY", "")
	v.SetDefault("ASSERTION_METHOD", "ed25519")
	v.SetDefault("ALLOWED_CALLERS", "")
	v.SetDefault("HTTP_ADDR", "")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("AUDIT_ENABLED", false)
	v.SetDefault("SEED_FILE", "")
}

// Flags returns a flag set whose values override the environment.
func Flags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	for _, def := range flagDefs {
		fs.String(def.name, "", def.usage)
	}
	fs.String("env-file", ".env", "optional dotenv file")
	return fs
}

// Load reads the env file named by --env-file (if present), the environment
// and any flags set on fs, in increasing priority. fs may be nil.
func Load(fs *pflag.FlagSet) (*Settings, error) {
	v := viper.New()

	envFile := ".env"
	if fs != nil {
		if f := fs.Lookup("env-file"); f != nil && f.Value.String() != "" {
			envFile = f.Value.String()
		}
	}
	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	_ = v.ReadInConfig() // a missing file is fine

	v.AutomaticEnv()
	setDefaults(v)

	if fs != nil {
		for _, def := range flagDefs {
			f := fs.Lookup(def.name)
			if f == nil || !f.Changed {
				continue
			}
			v.Set(def.key, f.Value.String())
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, err
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Settings) validate() error {
	if strings.TrimSpace(s.RedisAddr) == "" {
		return errors.New("settings: REDIS_ADDR must be set")
	}
	if strings.TrimSpace(s.Inbox) == "" {
		return errors.New("settings: INBOX must be set")
	}
	if _, err := s.ParseCallTimeout(); err != nil {
		return err
	}
	if _, err := s.EngineConfig(); err != nil {
		return err
	}
	if s.AssertionKey != "" {
		if strings.TrimSpace(s.ServiceUUID) == "" {
			return errors.New("settings: SERVICE_UUID must be set when ASSERTION_KEY is set")
		}
		if _, err := s.AssertionKeyBytes(); err != nil {
			return err
		}
	}
	if _, err := s.Level(); err != nil {
		return err
	}
	return nil
}

// Endpoints returns the registry inbox candidates.
func (s *Settings) Endpoints() []string {
	return splitList(s.RegistryEndpoints)
}

// Callers returns the allowed caller uuids; nil means any verified caller.
func (s *Settings) Callers() []string {
	return splitList(s.AllowedCallers)
}

// ParseCallTimeout parses CallTimeout.
func (s *Settings) ParseCallTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(s.CallTimeout)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("settings: invalid CALL_TIMEOUT %q", s.CallTimeout)
	}
	return d, nil
}

// EngineConfig builds and validates the engine configuration.
func (s *Settings) EngineConfig() (authcenter.Config, error) {
	cfg := authcenter.DefaultConfig()

	ttl, err := time.ParseDuration(s.TokenTTL)
	if err != nil {
		return cfg, fmt.Errorf("settings: invalid TOKEN_TTL %q", s.TokenTTL)
	}
	threshold, err := time.ParseDuration(s.RefreshThreshold)
	if err != nil {
		return cfg, fmt.Errorf("settings: invalid REFRESH_THRESHOLD %q", s.RefreshThreshold)
	}

	cfg.Token.TTL = ttl
	cfg.Token.RefreshThreshold = threshold
	cfg.Registry.Service = s.RegistryService
	cfg.Registry.UserTypeID = s.UserTypeID
	cfg.Audit.Enabled = s.AuditEnabled
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("settings: %w", err)
	}
	return cfg, nil
}

// AssertionKeyBytes decodes AssertionKey.
func (s *Settings) AssertionKeyBytes() ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s.AssertionKey))
	if err != nil {
		return nil, fmt.Errorf("settings: ASSERTION_KEY is not base64: %w", err)
	}
	return key, nil
}

// Level parses LogLevel.
func (s *Settings) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return level, fmt.Errorf("settings: invalid LOG_LEVEL %q", s.LogLevel)
	}
	return level, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
