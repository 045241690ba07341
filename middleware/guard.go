package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/MrEthical07/authcenter"
	"github.com/MrEthical07/authcenter/registry"
)

// TokenChecker validates a bearer token. *authcenter.Engine satisfies it.
type TokenChecker interface {
	CheckToken(ctx context.Context, token string) (*authcenter.TokenStatus, error)
}

type tokenStatusContextKey struct{}

// TokenStatusFromContext returns the status stored by Guard.
func TokenStatusFromContext(ctx context.Context) (*authcenter.TokenStatus, bool) {
	res, ok := ctx.Value(tokenStatusContextKey{}).(*authcenter.TokenStatus)
	return res, ok
}

// UUIDFromContext returns the record uuid of the authenticated caller.
func UUIDFromContext(ctx context.Context) (string, bool) {
	res, ok := TokenStatusFromContext(ctx)
	if !ok || res == nil {
		return "", false
	}
	return res.UUID, true
}

// Guard rejects requests whose bearer token does not pass CheckToken with
// 401 and passes the rest on with the token status in their context. A
// registry that cannot be reached answers 503; a registry error reply 502.
func Guard(checker TokenChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if checker == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := authcenter.WithClientIP(r.Context(), clientIP(r))
			res, err := checker.CheckToken(ctx, token)
			if err != nil {
				status := statusFor(err)
				http.Error(w, strings.ToLower(http.StatusText(status)), status)
				return
			}

			ctx = context.WithValue(r.Context(), tokenStatusContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func statusFor(err error) int {
	if _, ok := registry.AsError(err); ok {
		return http.StatusBadGateway
	}
	switch {
	case errors.Is(err, registry.ErrUnavailable),
		errors.Is(err, registry.ErrNoEndpoint),
		errors.Is(err, registry.ErrMalformedReply):
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnauthorized
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

func clientIP(r *http.Request) string {
	host := r.RemoteAddr
	if i := strings.LastIndexByte(host, ':'); i > 0 {
		host = host[:i]
	}
	return strings.Trim(host, "[]")
}
