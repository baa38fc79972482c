package tcp

import (
	"fmt"
	"net"
	"time"

	"github.com/ValentinKolb/scired/rpc/common"
)

// Listen creates the TCP listener for the configured endpoint
func Listen(config common.ServerConfig) (net.Listener, error) {
	listener, err := net.Listen("tcp", config.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", config.Endpoint, err)
	}
	return listener, nil
}

// UpgradeConnection applies the configured socket options to an accepted connection.
// Connections that are not TCP (e.g. in tests) are left untouched.
func UpgradeConnection(conn net.Conn, config common.ServerConfig) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil // Not a TCP connection, nothing to upgrade
	}

	// Disable Nagle's algorithm if configured, responses are small and latency bound
	if err := tcpConn.SetNoDelay(config.TCPNoDelay); err != nil {
		return err
	}

	// Enable TCP keep-alive if configured
	if config.TCPKeepAliveSec > 0 {
		if err := tcpConn.SetKeepAlive(true); err != nil {
			return err
		}

		keepAlivePeriod := time.Duration(config.TCPKeepAliveSec) * time.Second
		if err := tcpConn.SetKeepAlivePeriod(keepAlivePeriod); err != nil {
			return err
		}
	}

	return nil
}
