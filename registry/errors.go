package registry

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable wraps transport failures where the registry never replied.
	ErrUnavailable = errors.New("registry: unavailable")
	// ErrNoEndpoint is returned when the resolver has no candidate for the service.
	ErrNoEndpoint = errors.New("registry: no endpoint configured")
	// ErrMalformedReply is returned when a 200 reply carries undecodable data.
	ErrMalformedReply = errors.New("registry: malformed reply")
)

// Error is a non-success reply from the registry. Code and Description are
// passed through unchanged.
type Error struct {
	Code        int
	Description string
}

func (e *Error) Error() string {
	return fmt.Sprintf("registry: %d %s", e.Code, e.Description)
}

// AsError reports whether err carries a registry reply code.
func AsError(err error) (*Error, bool) {
	var regErr *Error
	if errors.As(err, &regErr) {
		return regErr, true
	}
	return nil, false
}
