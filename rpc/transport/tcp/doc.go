// Package tcp implements the TCP socket handling of the bridge server.
//
// Key Components:
//
//   - Listen: Opens the listener on the configured endpoint.
//
//   - UpgradeConnection: Applies TCP_NODELAY and keep-alive settings from
//     common.ServerConfig to every accepted connection.
package tcp
