// Package audit relays authentication decisions (login attempts, token
// checks, refreshes) to pluggable sinks.
//
// # Components
//
//   - [Sink]: event consumer (channel, JSON lines, slog, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full or block-if-full semantics.
//   - [Event]: one decision: type, record uuid, caller, request id, IP, error code, metadata.
//
// # What this package must NOT do
//
//   - Decide which events to emit. The Engine and flow functions own that.
//   - Import authcenter or any sibling internal package.
//   - Carry passwords or token values in events.
package audit
