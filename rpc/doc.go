// Package rpc contains the network facing side of scired.
//
// The package is organized into several subpackages:
//
//   - common: Server configuration and logger setup.
//
//   - transport: The RESP codec (transport/resp) and the TCP listener with its
//     socket options (transport/tcp).
//
//   - server: Accept loop, per connection handlers, graceful shutdown and the
//     admin endpoint.
package rpc
