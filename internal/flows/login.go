package flows

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/MrEthical07/authcenter/internal"
)

// UserRecord is the flow-local view of a registry user record.
type UserRecord struct {
	UUID      string
	Password  *string
	AuthToken *TokenRecord
}

// TokenRecord is the session marker stored on a user record.
type TokenRecord struct {
	Token    string
	IssuedAt time.Time
}

// LoginResult is the flow-local login response shape.
type LoginResult struct {
	UUID     string
	Token    string
	IssuedAt time.Time
}

// LoginMetrics carries metric IDs needed by the login flow.
type LoginMetrics struct {
	LoginSuccess       int
	LoginFailure       int
	LoginRegistryError int
}

// LoginEvents carries audit event names used by the login flow.
type LoginEvents struct {
	LoginSuccess string
	LoginFailure string
}

// LoginErrors carries host-level sentinel errors used by the login flow.
type LoginErrors struct {
	EngineNotReady     error
	InvalidCredentials error
	TokenMintFailed    error
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	Separator string

	Now         func() time.Time
	NewRandomID func() (string, error)

	FindUser   func(ctx context.Context, userName string) (UserRecord, bool, error)
	StoreToken func(ctx context.Context, uuid string, token TokenRecord) error

	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, uuid string, err error, metadata func() map[string]string)
	Warn      func(ctx context.Context, msg string, args ...any)

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

// RunLogin checks userName/password against the registry and, on a match,
// mints and persists a new token. Registry failures are returned unchanged.
// Unknown user, missing password, and wrong password all return
// Errors.InvalidCredentials; only the audit reason tells them apart.
func RunLogin(ctx context.Context, userName, password string, deps LoginDeps) (*LoginResult, error) {
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
	if deps.FindUser == nil || deps.StoreToken == nil || deps.NewRandomID == nil || deps.Separator == "" {
		return nil, deps.Errors.EngineNotReady
	}

	fail := func(uuid, reason string, err error) (*LoginResult, error) {
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, uuid, err, func() map[string]string {
			return map[string]string{
				"identifier": userName,
				"reason":     reason,
			}
		})
		return nil, err
	}

	user, found, err := deps.FindUser(ctx, userName)
	if err != nil {
		deps.MetricInc(deps.Metrics.LoginRegistryError)
		deps.Warn(ctx, "login lookup failed", "identifier", userName, "error", err)
		return fail("", "lookup_failed", err)
	}
	if !found {
		return fail("", "user_not_found", deps.Errors.InvalidCredentials)
	}
	if user.Password == nil {
		return fail(user.UUID, "password_missing", deps.Errors.InvalidCredentials)
	}
	if subtle.ConstantTimeCompare([]byte(*user.Password), []byte(password)) != 1 {
		return fail(user.UUID, "password_mismatch", deps.Errors.InvalidCredentials)
	}
	password = ""

	randomID, err := deps.NewRandomID()
	if err != nil {
		deps.Warn(ctx, "token mint failed", "uuid", user.UUID, "error", err)
		return fail(user.UUID, "token_mint_failed", deps.Errors.TokenMintFailed)
	}

	issued := deps.Now()
	if err := deps.StoreToken(ctx, user.UUID, TokenRecord{Token: randomID, IssuedAt: issued}); err != nil {
		deps.MetricInc(deps.Metrics.LoginRegistryError)
		deps.Warn(ctx, "login token persist failed", "uuid", user.UUID, "error", err)
		return fail(user.UUID, "token_persist_failed", err)
	}

	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, user.UUID, nil, func() map[string]string {
		return map[string]string{
			"identifier": userName,
		}
	})

	return &LoginResult{
		UUID:     user.UUID,
		Token:    internal.JoinToken(user.UUID, randomID, deps.Separator),
		IssuedAt: issued,
	}, nil
}
