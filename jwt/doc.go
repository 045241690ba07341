// Package jwt mints and verifies caller assertions for mesh requests.
//
// An assertion is a short-lived signed token that binds the calling
// service (sub) to one target endpoint (aud) and one command (cmd). The bus
// client attaches it through [Manager.Sign]; the serving side checks it
// through [Manager.Verify] before the handler runs.
package jwt
