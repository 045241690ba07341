// Package authcenter is the authentication front-end of a device-oriented
// service mesh. It checks user credentials, issues opaque bearer tokens, and
// validates them with a sliding refresh window. All user state lives in the
// device registry, reached through [registry.Client].
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Operations
//
//   - login: {userName, password} → data.token = "<uuid>_<randomId>".
//   - checkToken: {token} → valid, invalid, or expired; refreshes the stored
//     timestamp once the token is older than the refresh threshold.
//
// Both reply with a [Result] envelope {retCode, description, data}. [Engine.Handle]
// guarantees exactly one reply per request.
//
// # Architecture boundaries
//
// authcenter is the public surface. It exposes [Engine], [Builder], [Config], and value
// types (Result, MetricsSnapshot). Flow orchestration and token helpers live under
// internal/. Transport is the caller's concern: mount [Engine.ServeMessage] on a
// bus.Server, or call [Engine.Handle] from any other boundary.
//
// # What this package must NOT do
//
//   - Store tokens or user records itself.
//   - Retry registry calls.
//   - Rate limit, hash passwords, or run multi-factor flows.
//   - Import any sub-package that re-imports authcenter (no import cycles).
package authcenter
