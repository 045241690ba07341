// Package bus implements request/response messaging between mesh services over
// Redis lists, with CBOR-encoded envelopes.
//
// # Wire model
//
// Every service owns an inbox list keyed by its endpoint name. A caller pushes
// a [Request] onto the callee's inbox and blocks on a per-call reply list
// until the callee pushes back a [Response]. Requests carry a correlation ID,
// the reply key, the caller's identity, and an optional signed assertion.
//
//   - [Client]: issues calls and waits for replies, bounded by CallTimeout.
//   - [Server]: drains one inbox, runs each request in its own goroutine,
//     and waits for in-flight handlers on shutdown.
//   - [Marshal] / [Unmarshal]: the deterministic CBOR codec for envelopes.
//
// # Architecture boundaries
//
// This package moves envelopes. It does NOT interpret command names or
// parameters; that belongs to the [Handler] mounted on a [Server].
//
// # What this package must NOT do
//
//   - Retry failed calls.
//   - Import authcenter or registry packages.
//   - Persist requests beyond the reply TTL.
package bus
