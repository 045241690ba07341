package authcenter

import (
	"errors"

	"github.com/MrEthical07/authcenter/registry"
)

var (
	// ErrInvalidCredentials is returned by Login for an unknown user, a record
	// without a password, or a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTokenMalformed is returned by CheckToken when the token does not split
	// into exactly two non-empty parts.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenInvalid is returned by CheckToken when the record is missing, has
	// no active token, or holds a different token.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenExpired is returned by CheckToken when the stored token is older
	// than the configured TTL.
	ErrTokenExpired = errors.New("token expired")
	// ErrRefreshFailed marks a swallowed refresh write in audit events.
	ErrRefreshFailed = errors.New("token refresh failed")
	// ErrTokenMintFailed is returned when no random token value could be drawn.
	ErrTokenMintFailed = errors.New("token mint failed")
	// ErrSchemaInvalid wraps input validation failures.
	ErrSchemaInvalid = errors.New("schema validation failed")
	// ErrUnknownCommand is returned for command names the engine does not serve.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrEngineNotReady is returned by operations on a nil or unbuilt Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// Result codes carried in Result.RetCode. Registry failures keep the
// registry's own code instead.
const (
	CodeSuccess             = 200
	CodeInternal            = 500
	CodeInvalidCredentials  = 205001
	CodeSchemaInvalid       = 206001
	CodeUnknownCommand      = 206002
	CodeInvalidToken        = 207010
	CodeRegistryUnavailable = 208001
)

var descriptions = map[int]string{
	CodeSuccess:             "Success.",
	CodeInternal:            "Internal error.",
	CodeInvalidCredentials:  "Invalid user name or password.",
	CodeSchemaInvalid:       "Message does not match the operation schema.",
	CodeUnknownCommand:      "Unknown command.",
	CodeInvalidToken:        "Invalid or expired token.",
	CodeRegistryUnavailable: "Device registry unavailable.",
}

// Describe returns the fixed description for a local result code, or an
// empty string for codes this package does not own.
func Describe(code int) string {
	return descriptions[code]
}

// resultFor maps an operation error onto its envelope. Registry replies keep
// their own code and description.
func resultFor(err error) Result {
	if regErr, ok := registry.AsError(err); ok {
		return failure(regErr.Code, regErr.Description)
	}

	switch {
	case errors.Is(err, registry.ErrUnavailable),
		errors.Is(err, registry.ErrNoEndpoint),
		errors.Is(err, registry.ErrMalformedReply):
		return failure(CodeRegistryUnavailable, "")
	case errors.Is(err, ErrSchemaInvalid):
		return failure(CodeSchemaInvalid, "")
	case errors.Is(err, ErrInvalidCredentials):
		return failure(CodeInvalidCredentials, "")
	case errors.Is(err, ErrTokenMalformed),
		errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrTokenExpired):
		return failure(CodeInvalidToken, "")
	case errors.Is(err, ErrUnknownCommand):
		return failure(CodeUnknownCommand, "")
	default:
		return failure(CodeInternal, "")
	}
}
