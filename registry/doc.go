// Package registry is the client side of the device registry: the mesh
// service that owns user and device records.
//
// Records are addressed by dotted field paths ("type.id", "extra.phoneNumber",
// "extra.authToken.timestamp"). Two commands are used:
//
//   - getDevice (cmdCode 0003) selects records whose fields equal the given
//     parameters.
//   - deviceUpdate (cmdCode 0004) sets dotted-path fields on the record named
//     by the "uuid" parameter.
//
// Each call picks an endpoint for the registry service through a [Resolver],
// then sends it through a [Caller]. A non-200 reply becomes an [*Error] that
// keeps the registry's code and description intact.
package registry
