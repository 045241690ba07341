// Package middleware exposes net/http middleware that authenticates requests
// with an authcenter token.
//
// # Guards
//
//   - [Guard]: reads "Authorization: Bearer <token>", runs CheckToken, and
//     injects the resulting [authcenter.TokenStatus] into the request context.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT implement
// authentication logic itself. All decisions are delegated to Engine.CheckToken.
//
// # What this package must NOT do
//
//   - Split or compare tokens directly.
//   - Talk to the registry or the bus.
//   - Make authorization decisions beyond pass/reject from CheckToken.
package middleware
