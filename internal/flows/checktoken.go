package flows

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/MrEthical07/authcenter/internal"
)

// CheckTokenResult describes a token that passed validation.
type CheckTokenResult struct {
	UUID      string
	IssuedAt  time.Time
	Refreshed bool
	// RefreshErr holds the swallowed error when a due refresh failed.
	RefreshErr error
}

// CheckTokenMetrics carries metric IDs needed by the token check flow.
type CheckTokenMetrics struct {
	TokenValid         int
	TokenInvalid       int
	TokenExpired       int
	TokenMalformed     int
	TokenRegistryError int
	TokenRefreshed     int
	TokenRefreshFailed int
}

// CheckTokenEvents carries audit event names used by the token check flow.
type CheckTokenEvents struct {
	TokenValid         string
	TokenInvalid       string
	TokenRefreshed     string
	TokenRefreshFailed string
}

// CheckTokenErrors carries host-level sentinel errors used by the token check flow.
type CheckTokenErrors struct {
	EngineNotReady error
	TokenMalformed error
	TokenInvalid   error
	TokenExpired   error
	RefreshFailed  error
}

// CheckTokenDeps captures token check dependencies.
type CheckTokenDeps struct {
	Separator        string
	TTL              time.Duration
	RefreshThreshold time.Duration

	Now func() time.Time

	GetRecord  func(ctx context.Context, uuid string) (UserRecord, bool, error)
	TouchToken func(ctx context.Context, uuid string, at time.Time) error

	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, uuid string, err error, metadata func() map[string]string)
	Warn      func(ctx context.Context, msg string, args ...any)

	Metrics CheckTokenMetrics
	Events  CheckTokenEvents
	Errors  CheckTokenErrors
}

// RunCheckToken validates token against the stored authToken of its record.
//
// The order is fixed: split (no remote call on failure), lookup, then
// missing token, value mismatch, and expiry. A token older than
// RefreshThreshold slides its timestamp to now; a failed slide is reported
// through Warn, metrics, and audit but never fails the check.
func RunCheckToken(ctx context.Context, token string, deps CheckTokenDeps) (*CheckTokenResult, error) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	if deps.Warn == nil {
		deps.Warn = func(context.Context, string, ...any) {}
	}
	if deps.GetRecord == nil || deps.TouchToken == nil || deps.Separator == "" || deps.TTL <= 0 {
		return nil, deps.Errors.EngineNotReady
	}

	reject := func(metric int, uuid, reason string, err error) (*CheckTokenResult, error) {
		deps.MetricInc(metric)
		deps.EmitAudit(ctx, deps.Events.TokenInvalid, false, uuid, err, func() map[string]string {
			return map[string]string{
				"reason": reason,
			}
		})
		return nil, err
	}

	uuid, randomID, ok := internal.SplitToken(token, deps.Separator)
	if !ok {
		return reject(deps.Metrics.TokenMalformed, "", "malformed", deps.Errors.TokenMalformed)
	}

	record, found, err := deps.GetRecord(ctx, uuid)
	if err != nil {
		deps.Warn(ctx, "token lookup failed", "uuid", uuid, "error", err)
		return reject(deps.Metrics.TokenRegistryError, uuid, "lookup_failed", err)
	}
	if !found {
		return reject(deps.Metrics.TokenInvalid, uuid, "record_not_found", deps.Errors.TokenInvalid)
	}

	stored := record.AuthToken
	if stored == nil {
		return reject(deps.Metrics.TokenInvalid, uuid, "no_active_token", deps.Errors.TokenInvalid)
	}
	if subtle.ConstantTimeCompare([]byte(stored.Token), []byte(randomID)) != 1 {
		return reject(deps.Metrics.TokenInvalid, uuid, "token_mismatch", deps.Errors.TokenInvalid)
	}

	now := deps.Now()
	if stored.IssuedAt.Add(deps.TTL).Before(now) {
		return reject(deps.Metrics.TokenExpired, uuid, "expired", deps.Errors.TokenExpired)
	}

	result := &CheckTokenResult{
		UUID:     uuid,
		IssuedAt: stored.IssuedAt,
	}

	if deps.RefreshThreshold > 0 && stored.IssuedAt.Add(deps.RefreshThreshold).Before(now) {
		if err := deps.TouchToken(ctx, uuid, now); err != nil {
			deps.MetricInc(deps.Metrics.TokenRefreshFailed)
			deps.Warn(ctx, "token refresh failed", "uuid", uuid, "error", err)
			deps.EmitAudit(ctx, deps.Events.TokenRefreshFailed, false, uuid, deps.Errors.RefreshFailed, func() map[string]string {
				return map[string]string{
					"cause": err.Error(),
				}
			})
			result.RefreshErr = err
		} else {
			deps.MetricInc(deps.Metrics.TokenRefreshed)
			deps.EmitAudit(ctx, deps.Events.TokenRefreshed, true, uuid, nil, nil)
			result.Refreshed = true
			result.IssuedAt = now
		}
	}

	deps.MetricInc(deps.Metrics.TokenValid)
	deps.EmitAudit(ctx, deps.Events.TokenValid, true, uuid, nil, nil)
	return result, nil
}
