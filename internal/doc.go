// Package internal holds the token format helpers shared by the engine and its
// flows: random id minting and the "<uuid>_<randomId>" join and split.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: pure-function orchestrators for Login and CheckToken
//   - gateway: gin HTTP front for the engine commands
//   - settings: Viper-backed binary configuration
//   - telemetry: OTLP MeterProvider setup
//
// # What this package must NOT do
//
//   - Export types that appear in the public authcenter API.
//   - Talk to the registry.
package internal
