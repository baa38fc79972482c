package server

import (
	"context"
	"errors"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/scired/lib/dispatch"
	"github.com/ValentinKolb/scired/lib/shutdown"
	"github.com/ValentinKolb/scired/rpc/transport/resp"
)

// connState is the lifecycle state of a connection handler
type connState int32

const (
	stateActive  connState = iota // serving requests
	stateClosing                  // no further requests are read, the connection is being closed
	stateClosed                   // terminal, the completion token was returned
)

// String returns the string representation of a connState.
func (s connState) String() string {
	switch s {
	case stateActive:
		return "active"
	case stateClosing:
		return "closing"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// decodeResult carries one decoded request (or the decode error) from the read loop
type decodeResult struct {
	op  dispatch.Operation
	err error
}

// handler serves a single client connection.
// Requests are strictly serialized: the next request is not decoded before the
// response to the previous one was written.
type handler struct {
	id           uint64
	conn         net.Conn
	dispatcher   *dispatch.Dispatcher
	sub          *shutdown.Subscription
	writeTimeout time.Duration
	metrics      *serverMetrics
	onClosed     func()

	dec *resp.Decoder
	enc *resp.Encoder

	state    atomic.Int32
	requests atomic.Uint64
	opened   time.Time
}

func newHandler(
	id uint64,
	conn net.Conn,
	dispatcher *dispatch.Dispatcher,
	sub *shutdown.Subscription,
	writeTimeout time.Duration,
	metrics *serverMetrics,
) *handler {
	return &handler{
		id:           id,
		conn:         conn,
		dispatcher:   dispatcher,
		sub:          sub,
		writeTimeout: writeTimeout,
		metrics:      metrics,
		dec:          resp.NewDecoder(conn),
		enc:          resp.NewEncoder(conn),
		opened:       time.Now(),
	}
}

// run serves the connection until it is closed and releases the completion token afterwards
func (h *handler) run() {
	defer h.sub.Release()
	if h.onClosed != nil {
		defer h.onClosed()
	}

	Logger.Debugf("conn %d: opened from %s", h.id, h.conn.RemoteAddr())

	next := make(chan struct{})
	results := make(chan decodeResult, 1)
	readerDone := make(chan struct{})
	go h.readLoop(next, results, readerDone)

	reason := h.serve(next, results)

	// Closing: stop the read loop and close the socket, which also aborts a pending read
	h.state.Store(int32(stateClosing))
	close(next)
	if err := h.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		Logger.Debugf("conn %d: error closing connection: %v", h.id, err)
	}
	<-readerDone

	h.state.Store(int32(stateClosed))
	h.metrics.closed.Inc()
	Logger.Debugf("conn %d: closed after %d requests (%s)", h.id, h.requests.Load(), reason)
}

// readLoop decodes one request per signal on next
func (h *handler) readLoop(next <-chan struct{}, results chan<- decodeResult, done chan<- struct{}) {
	defer close(done)

	for range next {
		op, err := h.dec.Next()
		results <- decodeResult{op: op, err: err}
		if err != nil {
			return
		}
	}
}

// serve runs the request loop and returns why it ended
func (h *handler) serve(next chan<- struct{}, results <-chan decodeResult) string {
	for {
		if h.sub.Stopped() {
			return "shutdown"
		}

		next <- struct{}{}

		// Race the next request against the stop notification
		var res decodeResult
		select {
		case res = <-results:
		case <-h.sub.Done():
			// a request that was fully decoded in the meantime is still answered
			select {
			case res = <-results:
			default:
				return "shutdown"
			}
		}

		if res.err != nil {
			return h.handleDecodeError(res.err)
		}

		out := h.dispatcher.Dispatch(context.Background(), res.op)
		h.requests.Add(1)
		h.metrics.request(res.op.Type, out.Type)

		if err := h.writeOutcome(out); err != nil {
			Logger.Warningf("conn %d: failed to write response: %v", h.id, err)
			return "write failed"
		}
	}
}

// handleDecodeError logs a decode error and returns the close reason
func (h *handler) handleDecodeError(err error) string {
	var unsupported *resp.UnsupportedOperationError

	switch {
	// Case EOF: connection closed by client
	case errors.Is(err, io.EOF):
		return "closed by client"

	// Case unsupported command: reject it and close the connection
	case errors.As(err, &unsupported):
		h.metrics.unsupported.Inc()
		Logger.Warningf("conn %d: %v, closing connection", h.id, err)
		h.setWriteDeadline()
		if werr := h.enc.WriteError(unsupported.Error()); werr != nil {
			Logger.Debugf("conn %d: failed to write rejection: %v", h.id, werr)
		}
		return "unsupported command"

	// Case malformed input: close the connection
	case errors.Is(err, resp.ErrMalformedRequest):
		h.metrics.malformed.Inc()
		Logger.Warningf("conn %d: %v, closing connection", h.id, err)
		return "malformed request"

	default:
		Logger.Debugf("conn %d: read failed: %v", h.id, err)
		return "read failed"
	}
}

// writeOutcome writes one response, bounded by the write timeout
func (h *handler) writeOutcome(out dispatch.Outcome) error {
	h.setWriteDeadline()
	return h.enc.WriteOutcome(out)
}

func (h *handler) setWriteDeadline() {
	if h.writeTimeout <= 0 {
		return
	}
	if err := h.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout)); err != nil {
		Logger.Debugf("conn %d: failed to set write deadline: %v", h.id, err)
	}
}

// info returns a snapshot of the handler for the admin endpoint
func (h *handler) info() connInfo {
	return connInfo{
		ID:       h.id,
		Remote:   h.conn.RemoteAddr().String(),
		State:    connState(h.state.Load()).String(),
		Requests: h.requests.Load(),
		Since:    h.opened.UTC().Format(time.RFC3339),
	}
}
