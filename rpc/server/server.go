package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/scired/lib/dispatch"
	"github.com/ValentinKolb/scired/lib/shutdown"
	"github.com/ValentinKolb/scired/rpc/common"
	"github.com/ValentinKolb/scired/rpc/transport/tcp"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	gometrics "github.com/rcrowley/go-metrics"
)

var Logger = logger.GetLogger("server")

// AcceptError is returned by Serve when accepting kept failing until the backoff ceiling was reached
type AcceptError struct {
	Failures int
	Err      error
}

// Error implements the error interface.
func (e *AcceptError) Error() string {
	return fmt.Sprintf("giving up accepting connections after %d consecutive failures: %v", e.Failures, e.Err)
}

// Unwrap returns the last accept error
func (e *AcceptError) Unwrap() error {
	return e.Err
}

// Server accepts redis protocol connections and serves each of them with its own handler.
// A Server is single use: once Serve returned it can not be started again.
//
// Usage:
//
//	s := server.NewServer(config, dispatcher)
//	listener, _ := tcp.Listen(config)
//
//	// blocks until ctx is canceled (or s.Shutdown is called) and all connections are drained
//	if err := s.Serve(ctx, listener); err != nil {
//		panic(err)
//	}
type Server struct {
	config      common.ServerConfig
	dispatcher  *dispatch.Dispatcher
	coordinator *shutdown.Coordinator
	conns       *xsync.MapOf[uint64, *handler]
	nextID      atomic.Uint64
	metrics     *serverMetrics
}

// NewServer creates a new server that dispatches all requests to the given dispatcher
func NewServer(config common.ServerConfig, dispatcher *dispatch.Dispatcher) *Server {
	s := &Server{
		config:      config,
		dispatcher:  dispatcher,
		coordinator: shutdown.NewCoordinator(),
		conns:       xsync.NewMapOf[uint64, *handler](),
	}
	s.metrics = newServerMetrics(func() float64 {
		return float64(s.coordinator.Active())
	})
	return s
}

// Serve accepts connections on listener until ctx is canceled, Shutdown is called or
// accepting fails permanently. Before returning it waits until every connection handler
// has finished. The listener is closed by Serve.
//
// A nil error means a requested stop; a permanent accept failure is returned as *AcceptError.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	Logger.Infof("accepting connections on %s", listener.Addr())

	// Closing the listener is the only way to interrupt a blocked Accept
	loopDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			Logger.Infof("stop requested: %v", context.Cause(ctx))
			s.coordinator.RequestStop()
		case <-s.coordinator.Done():
		case <-loopDone:
		}
		_ = listener.Close()
	}()

	err := s.acceptLoop(listener)
	close(loopDone)
	if err != nil {
		Logger.Errorf("accept loop failed: %v", err)
	}

	// Phase one: notify all handlers. Phase two: wait until they are closed.
	s.coordinator.RequestStop()
	Logger.Infof("waiting for %d connections to finish", s.coordinator.Active())
	_ = s.coordinator.AwaitDrained(context.Background())

	s.logSummary()
	Logger.Infof("server stopped")
	return err
}

// Shutdown requests a stop. Serve returns once all connections are drained.
func (s *Server) Shutdown() {
	s.coordinator.RequestStop()
}

// ActiveConnections returns the number of connections currently being served
func (s *Server) ActiveConnections() int64 {
	return s.coordinator.Active()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// acceptLoop accepts connections until a stop is requested or the backoff ceiling is exceeded
func (s *Server) acceptLoop(listener net.Listener) error {
	backoff := s.config.AcceptBackoffBase
	failures := 0

	for {
		conn, err := listener.Accept()
		if err != nil {
			// Case stop: the listener was closed on purpose
			if s.coordinator.Stopped() {
				return nil
			}

			failures++
			s.metrics.acceptErrors.Inc()

			// Case closed listener: retrying can not help
			if errors.Is(err, net.ErrClosed) {
				return &AcceptError{Failures: failures, Err: err}
			}

			// Case too many failures: give up
			if backoff > s.config.AcceptBackoffMax {
				return &AcceptError{Failures: failures, Err: err}
			}

			Logger.Warningf("accept failed (%d in a row), retrying in %s: %v", failures, backoff, err)

			timer := time.NewTimer(backoff)
			select {
			case <-timer.C:
			case <-s.coordinator.Done():
				timer.Stop()
				return nil
			}
			backoff *= 2
			continue
		}

		backoff = s.config.AcceptBackoffBase
		failures = 0
		s.spawn(conn)
	}
}

// spawn starts a handler for an accepted connection without waiting for it
func (s *Server) spawn(conn net.Conn) {
	sub, err := s.coordinator.Subscribe()
	if err != nil {
		// stop was requested while this connection was accepted
		_ = conn.Close()
		return
	}

	if err := tcp.UpgradeConnection(conn, s.config); err != nil {
		Logger.Warningf("failed to apply socket options to %s: %v", conn.RemoteAddr(), err)
	}

	id := s.nextID.Add(1)
	h := newHandler(id, conn, s.dispatcher, sub, s.config.WriteTimeout, s.metrics)
	h.onClosed = func() { s.conns.Delete(id) }

	s.conns.Store(id, h)
	s.metrics.accepted.Inc()

	go h.run()
}

// logSummary logs the dispatch latencies collected during the lifetime of the server
func (s *Server) logSummary() {
	s.dispatcher.Stats().Each(func(name string, m interface{}) {
		switch m := m.(type) {
		case gometrics.Timer:
			t := m.Snapshot()
			Logger.Infof("%-4s count=%d mean=%s p99=%s max=%s", name, t.Count(),
				time.Duration(t.Mean()), time.Duration(t.Percentile(0.99)), time.Duration(t.Max()))
		case gometrics.Counter:
			Logger.Infof("%-4s count=%d", name, m.Count())
		}
	})
}
