package authcenter

import (
	"context"
	"log/slog"
	"time"

	"github.com/MrEthical07/authcenter/internal/audit"
	internalflows "github.com/MrEthical07/authcenter/internal/flows"
	"github.com/MrEthical07/authcenter/registry"
)

// Engine runs the login and token check operations against the device
// registry.
//
// Engine instances are built once through [Builder.Build] and are safe for
// concurrent use.
type Engine struct {
	config      Config
	registry    *registry.Client
	audit       *audit.Dispatcher
	metrics     *Metrics
	logger      *slog.Logger
	clock       func() time.Time
	newRandomID func() (string, error)
	flows       internalflows.Deps
}

// TokenStatus describes a token that passed CheckToken.
type TokenStatus struct {
	UUID      string
	IssuedAt  time.Time
	ExpiresAt time.Time
	// Refreshed is true when this check slid the stored timestamp.
	Refreshed bool
}

// Close stops the audit dispatcher after draining queued events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports audit events dropped under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:      map[MetricID]uint64{},
			Histograms:    map[MetricID][]uint64{},
			HistogramSums: map[MetricID]float64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return cloneConfig(e.config)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) observe(id MetricID, start time.Time) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(id, time.Since(start))
}

// Login checks userName and password against the registry and returns a new
// token "<uuid><sep><randomId>". Registry failures are returned as
// *registry.Error (reply codes) or wrapped registry.ErrUnavailable.
func (e *Engine) Login(ctx context.Context, userName, password string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}
	start := time.Now()
	defer e.observe(MetricLoginLatency, start)

	res, err := internalflows.RunLogin(ctx, userName, password, e.flows.Login)
	if err != nil {
		return "", err
	}
	return res.Token, nil
}

// CheckToken validates token against its registry record and slides the
// stored timestamp when the token is older than the refresh threshold. A
// failed slide is logged and does not fail the check.
func (e *Engine) CheckToken(ctx context.Context, token string) (*TokenStatus, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	start := time.Now()
	defer e.observe(MetricCheckTokenLatency, start)

	res, err := internalflows.RunCheckToken(ctx, token, e.flows.CheckToken)
	if err != nil {
		return nil, err
	}
	return &TokenStatus{
		UUID:      res.UUID,
		IssuedAt:  res.IssuedAt,
		ExpiresAt: res.IssuedAt.Add(e.config.Token.TTL),
		Refreshed: res.Refreshed,
	}, nil
}

func (e *Engine) buildFlowDeps() internalflows.Deps {
	return internalflows.Deps{
		Login:      e.loginFlowDeps(),
		CheckToken: e.checkTokenFlowDeps(),
	}
}

func (e *Engine) loginFlowDeps() internalflows.LoginDeps {
	deps := internalflows.LoginDeps{
		Separator:   e.config.Token.Separator,
		Now:         e.now,
		NewRandomID: e.newRandomID,
		MetricInc: func(id int) {
			e.metricInc(MetricID(id))
		},
		EmitAudit: e.emitAudit,
		Warn:      e.logger.WarnContext,
		Metrics: internalflows.LoginMetrics{
			LoginSuccess:       int(MetricLoginSuccess),
			LoginFailure:       int(MetricLoginFailure),
			LoginRegistryError: int(MetricLoginRegistryError),
		},
		Events: internalflows.LoginEvents{
			LoginSuccess: auditEventLoginSuccess,
			LoginFailure: auditEventLoginFailure,
		},
		Errors: internalflows.LoginErrors{
			EngineNotReady:     ErrEngineNotReady,
			InvalidCredentials: ErrInvalidCredentials,
			TokenMintFailed:    ErrTokenMintFailed,
		},
	}

	if e.registry != nil {
		deps.FindUser = func(ctx context.Context, userName string) (internalflows.UserRecord, bool, error) {
			dev, found, err := e.registry.FindUser(ctx, userName)
			if err != nil || !found {
				return internalflows.UserRecord{}, false, err
			}
			return toFlowUserRecord(dev), true, nil
		}
		deps.StoreToken = func(ctx context.Context, uuid string, tok internalflows.TokenRecord) error {
			return e.registry.SetAuthToken(ctx, uuid, registry.AuthToken{
				Token:     tok.Token,
				Timestamp: tok.IssuedAt.UnixMilli(),
			})
		}
	}
	return deps
}

func (e *Engine) checkTokenFlowDeps() internalflows.CheckTokenDeps {
	deps := internalflows.CheckTokenDeps{
		Separator:        e.config.Token.Separator,
		TTL:              e.config.Token.TTL,
		RefreshThreshold: e.config.Token.RefreshThreshold,
		Now:              e.now,
		MetricInc: func(id int) {
			e.metricInc(MetricID(id))
		},
		EmitAudit: e.emitAudit,
		Warn:      e.logger.WarnContext,
		Metrics: internalflows.CheckTokenMetrics{
			TokenValid:         int(MetricTokenValid),
			TokenInvalid:       int(MetricTokenInvalid),
			TokenExpired:       int(MetricTokenExpired),
			TokenMalformed:     int(MetricTokenMalformed),
			TokenRegistryError: int(MetricTokenRegistryError),
			TokenRefreshed:     int(MetricTokenRefreshed),
			TokenRefreshFailed: int(MetricTokenRefreshFailed),
		},
		Events: internalflows.CheckTokenEvents{
			TokenValid:         auditEventTokenValid,
			TokenInvalid:       auditEventTokenInvalid,
			TokenRefreshed:     auditEventTokenRefreshed,
			TokenRefreshFailed: auditEventTokenRefreshFailed,
		},
		Errors: internalflows.CheckTokenErrors{
			EngineNotReady: ErrEngineNotReady,
			TokenMalformed: ErrTokenMalformed,
			TokenInvalid:   ErrTokenInvalid,
			TokenExpired:   ErrTokenExpired,
			RefreshFailed:  ErrRefreshFailed,
		},
	}

	if e.registry != nil {
		deps.GetRecord = func(ctx context.Context, uuid string) (internalflows.UserRecord, bool, error) {
			dev, found, err := e.registry.GetDevice(ctx, uuid)
			if err != nil || !found {
				return internalflows.UserRecord{}, false, err
			}
			return toFlowUserRecord(dev), true, nil
		}
		deps.TouchToken = e.registry.TouchAuthToken
	}
	return deps
}

func toFlowUserRecord(dev registry.Device) internalflows.UserRecord {
	rec := internalflows.UserRecord{
		UUID:     dev.UUID,
		Password: dev.Extra.Password,
	}
	if at := dev.Extra.AuthToken; at != nil {
		rec.AuthToken = &internalflows.TokenRecord{
			Token:    at.Token,
			IssuedAt: at.IssuedAt(),
		}
	}
	return rec
}
