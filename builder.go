package authcenter

import (
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/authcenter/internal"
	"github.com/MrEthical07/authcenter/internal/audit"
	"github.com/MrEthical07/authcenter/registry"
)

// Builder assembles an Engine. A Builder can be used for one Build only.
type Builder struct {
	config Config

	caller    registry.Caller
	resolver  registry.Resolver
	endpoints []string

	auditSink AuditSink
	logger    *slog.Logger
	clock     func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRegistry sets the message caller used to reach the device registry,
// typically a *bus.Client.
func (b *Builder) WithRegistry(caller registry.Caller) *Builder {
	b.caller = caller
	return b
}

// WithResolver sets how registry endpoints are picked per call.
func (b *Builder) WithResolver(resolver registry.Resolver) *Builder {
	b.resolver = resolver
	return b
}

// WithEndpoints is shorthand for a StaticResolver serving the configured
// registry service from endpoints. WithResolver takes precedence.
func (b *Builder) WithEndpoints(endpoints ...string) *Builder {
	b.endpoints = append([]string(nil), endpoints...)
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger describes the withlogger operation and its observable behavior.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the time source used for token timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.caller == nil {
		return nil, errors.New("registry caller required")
	}
	resolver := b.resolver
	if resolver == nil && len(b.endpoints) > 0 {
		resolver = registry.NewStaticResolver(map[string][]string{
			cfg.Registry.Service: b.endpoints,
		})
	}
	if resolver == nil {
		return nil, errors.New("registry resolver required")
	}

	// -------- REGISTRY CLIENT --------
	client, err := registry.NewClient(b.caller, resolver, registry.Config{
		Service:    cfg.Registry.Service,
		UserTypeID: cfg.Registry.UserTypeID,
	})
	if err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	engine := &Engine{
		config:      cfg,
		registry:    client,
		metrics:     NewMetrics(cfg.Metrics),
		logger:      logger.With("component", "authcenter"),
		clock:       b.clock,
		newRandomID: internal.NewRandomID,
	}
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)
	engine.flows = engine.buildFlowDeps()

	b.built = true

	return engine, nil
}
