package bus

import "errors"

var (
	// ErrCallTimeout is returned when no reply arrives within the call timeout.
	ErrCallTimeout = errors.New("bus: call timed out")
	// ErrTransport wraps Redis failures while pushing or popping envelopes.
	ErrTransport = errors.New("bus: transport failure")
	// ErrNilRedis is returned by constructors given a nil Redis client.
	ErrNilRedis = errors.New("bus: nil redis client")
	// ErrEmptyEndpoint is returned when a call or server has no endpoint name.
	ErrEmptyEndpoint = errors.New("bus: empty endpoint")
	// ErrNilHandler is returned by NewServer given a nil handler.
	ErrNilHandler = errors.New("bus: nil handler")
)
