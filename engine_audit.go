package authcenter

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authcenter/bus"
	"github.com/MrEthical07/authcenter/registry"
)

const (
	auditEventLoginSuccess       = "login_success"
	auditEventLoginFailure       = "login_failure"
	auditEventTokenValid         = "token_valid"
	auditEventTokenInvalid       = "token_invalid"
	auditEventTokenRefreshed     = "token_refreshed"
	auditEventTokenRefreshFailed = "token_refresh_failed"
	auditEventSchemaRejected     = "schema_rejected"
)

// AuditErrorCode is the stable error label written into AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrTokenMalformed     AuditErrorCode = "token_malformed"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrTokenExpired       AuditErrorCode = "token_expired"
	auditErrRefreshFailed      AuditErrorCode = "refresh_failed"
	auditErrSchema             AuditErrorCode = "schema_invalid"
	auditErrRegistry           AuditErrorCode = "registry_error"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrTokenMint          AuditErrorCode = "token_mint_failed"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	uuid string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UUID:      uuid,
		Caller:    bus.CallerFromContext(ctx),
		RequestID: requestIDFromContext(ctx),
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}
	if _, ok := registry.AsError(err); ok {
		return auditErrRegistry
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrTokenMalformed):
		return auditErrTokenMalformed
	case errors.Is(err, ErrTokenInvalid):
		return auditErrInvalidToken
	case errors.Is(err, ErrTokenExpired):
		return auditErrTokenExpired
	case errors.Is(err, ErrRefreshFailed):
		return auditErrRefreshFailed
	case errors.Is(err, ErrSchemaInvalid):
		return auditErrSchema
	case errors.Is(err, ErrTokenMintFailed):
		return auditErrTokenMint
	case errors.Is(err, registry.ErrUnavailable),
		errors.Is(err, registry.ErrNoEndpoint),
		errors.Is(err, registry.ErrMalformedReply):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}

func (e *Engine) now() time.Time {
	if e == nil || e.clock == nil {
		return time.Now()
	}
	return e.clock()
}
