// Package transport groups the wire level pieces of the bridge:
//
//   - resp: Decodes redis protocol requests into dispatch operations and encodes
//     outcomes as replies.
//
//   - tcp: Opens the listener and applies socket options to accepted connections.
package transport
