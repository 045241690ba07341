// Package flows contains pure-function orchestrators for the Engine operations.
//
// Each flow function (RunLogin, RunCheckToken) accepts a typed dependency
// struct and returns results without side-effects beyond those dependencies.
// Registry calls, clocks, random IDs, metrics, and audit all arrive as
// closures, so every branch can be driven from a unit test.
//
// # Architecture boundaries
//
// Flow functions decide the order of registry calls and which branch a
// request takes. They do NOT own the registry client, metrics, or audit
// dispatcher; ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import authcenter (to avoid import cycles).
//   - Retry a failed registry call.
package flows
