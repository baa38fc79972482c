// Package server implements the redis protocol front end of scired.
// It accepts client connections, serves each of them with its own handler and
// coordinates a graceful stop across all of them.
//
// Key Components:
//
//   - Server: Owns the accept loop. Failing accepts are retried with a capped
//     exponential backoff; once the delay would exceed the ceiling, Serve gives up
//     with an *AcceptError.
//
//   - handler: Serves one connection. Requests are read, dispatched and answered one
//     at a time. While waiting for the next request the handler also watches the stop
//     notification, so idle connections are closed right away while a request that is
//     already being dispatched is answered first.
//
//   - NewAdminHandler: Optional HTTP endpoint with health, prometheus metrics,
//     dispatch latencies and the list of live connections.
//
//   - Run: Wires configuration, store session, dispatcher, listener and server
//     and blocks until the context is canceled.
//
// Usage Example:
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//
//	config := common.DefaultServerConfig()
//	config.StoreHosts = []string{"10.0.0.1:9042", "10.0.0.2:9042"}
//
//	if err := server.Run(ctx, config); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Shutdown:
//
//	Canceling the context (or calling Shutdown) closes the listener and notifies every
//	handler. Serve returns only after each handler has closed its connection.
package server
