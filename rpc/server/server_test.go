package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/scired/lib/dispatch"
	"github.com/ValentinKolb/scired/lib/store"
	"github.com/ValentinKolb/scired/lib/store/lstore"
	"github.com/ValentinKolb/scired/rpc/common"
)

// --------------------------------------------------------------------------
// Test Helpers
// --------------------------------------------------------------------------

var testSchema = dispatch.Schema{Keyspace: "scired", Table: "strings"}

func testConfig() common.ServerConfig {
	config := common.DefaultServerConfig()
	config.Endpoint = "127.0.0.1:0"
	config.StoreType = common.StoreTypeMemory
	config.AcceptBackoffBase = time.Millisecond
	config.AcceptBackoffMax = 4 * time.Millisecond
	config.WriteTimeout = time.Second
	return config
}

func newTestDispatcher(t *testing.T, session store.ISession) *dispatch.Dispatcher {
	t.Helper()
	d, err := dispatch.NewDispatcher(context.Background(), session, testSchema, store.NewConsistencyPolicy("one", "one"))
	if err != nil {
		t.Fatalf("Failed to create dispatcher: %v", err)
	}
	return d
}

// runningServer is a server serving on a loopback port
type runningServer struct {
	*Server
	addr   string
	cancel context.CancelFunc
	done   chan error
}

func startServer(t *testing.T, session store.ISession) *runningServer {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	rs := &runningServer{
		Server: NewServer(testConfig(), newTestDispatcher(t, session)),
		addr:   listener.Addr().String(),
		cancel: cancel,
		done:   make(chan error, 1),
	}
	go func() { rs.done <- rs.Serve(ctx, listener) }()

	t.Cleanup(func() {
		cancel()
		select {
		case <-rs.done:
		case <-time.After(5 * time.Second):
			t.Error("Server did not stop")
		}
	})
	return rs
}

// waitStopped waits for Serve to return and fails the test on timeout
func (rs *runningServer) waitStopped(t *testing.T) error {
	t.Helper()
	select {
	case err := <-rs.done:
		rs.done <- err // keep it for the cleanup
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
		return nil
	}
}

// testClient speaks RESP over a real connection
type testClient struct {
	conn net.Conn
	rd   *bufio.Reader
}

func dial(t *testing.T, addr string) *testClient {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &testClient{conn: conn, rd: bufio.NewReader(conn)}
}

// send writes a command as RESP array
func (c *testClient) send(t *testing.T, args ...string) {
	t.Helper()
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("*%d\r\n", len(args)))
	for _, a := range args {
		sb.WriteString(fmt.Sprintf("$%d\r\n%s\r\n", len(a), a))
	}
	if _, err := c.conn.Write([]byte(sb.String())); err != nil {
		t.Fatalf("Failed to send %v: %v", args, err)
	}
}

// reply reads one reply and returns it in raw form (e.g. "+OK", "$-1", "$1 1", "-ERR ...")
func (c *testClient) reply() (string, error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := c.rd.ReadString('\n')
	if err != nil {
		return "", err
	}
	line = strings.TrimSuffix(line, "\r\n")

	if !strings.HasPrefix(line, "$") || line == "$-1" {
		return line, nil
	}

	n, err := strconv.Atoi(line[1:])
	if err != nil {
		return "", err
	}
	buf := make([]byte, n+2)
	if _, err := io.ReadFull(c.rd, buf); err != nil {
		return "", err
	}
	return line + " " + string(buf[:n]), nil
}

func (c *testClient) expect(t *testing.T, want string) {
	t.Helper()
	got, err := c.reply()
	if err != nil {
		t.Fatalf("Failed to read reply (want %q): %v", want, err)
	}
	if got != want {
		t.Errorf("Reply = %q, want %q", got, want)
	}
}

// expectClosed asserts that the server closed the connection without sending anything
func (c *testClient) expectClosed(t *testing.T) {
	t.Helper()
	got, err := c.reply()
	if err == nil {
		t.Fatalf("Expected closed connection, got reply %q", got)
	}
	if !errors.Is(err, io.EOF) && !strings.Contains(err.Error(), "reset") {
		t.Errorf("Expected EOF, got %v", err)
	}
}

// waitFor polls cond until it holds or the timeout elapses
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("Timeout waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// --------------------------------------------------------------------------
// Blocking session: executions wait until released
// --------------------------------------------------------------------------

type blockingSession struct {
	entered chan struct{}
	release chan struct{}
}

func newBlockingSession() *blockingSession {
	return &blockingSession{
		entered: make(chan struct{}, 16),
		release: make(chan struct{}),
	}
}

func (s *blockingSession) Prepare(context.Context, store.Statement) (store.IPrepared, error) {
	return s, nil
}

func (s *blockingSession) Close() {}

func (s *blockingSession) Execute(context.Context, ...interface{}) (store.IRows, error) {
	s.entered <- struct{}{}
	<-s.release
	return emptyRows{}, nil
}

// failingSession fails every execution
type failingSession struct{}

func (failingSession) Prepare(context.Context, store.Statement) (store.IPrepared, error) {
	return failingSession{}, nil
}
func (failingSession) Close() {}
func (failingSession) Execute(context.Context, ...interface{}) (store.IRows, error) {
	return nil, errors.New("no hosts available")
}

type emptyRows struct{}

func (emptyRows) Scan(...interface{}) bool { return false }
func (emptyRows) Close() error            { return nil }

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

// TestRequestScenario tests a complete client session against the in-memory store
func TestRequestScenario(t *testing.T) {
	rs := startServer(t, lstore.NewLocalSession(testSchema.String()))
	c := dial(t, rs.addr)

	c.send(t, "SET", "a", "1")
	c.expect(t, "+OK")

	c.send(t, "GET", "a")
	c.expect(t, "$1 1")

	c.send(t, "GET", "missing")
	c.expect(t, "$-1")

	c.send(t, "PING")
	c.expect(t, "-ERR unsupported command 'ping'")
	c.expectClosed(t)

	// the server keeps serving other clients
	other := dial(t, rs.addr)
	other.send(t, "GET", "a")
	other.expect(t, "$1 1")
}

// TestPipelinedRequests tests that pipelined requests are answered in order
func TestPipelinedRequests(t *testing.T) {
	rs := startServer(t, lstore.NewLocalSession(testSchema.String()))
	c := dial(t, rs.addr)

	const n = 50
	var sb strings.Builder
	for i := 0; i < n; i++ {
		v := strconv.Itoa(i)
		sb.WriteString(fmt.Sprintf("*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$%d\r\n%s\r\n", len(v), v))
		sb.WriteString("*2\r\n$3\r\nGET\r\n$1\r\nk\r\n")
	}
	if _, err := c.conn.Write([]byte(sb.String())); err != nil {
		t.Fatalf("Failed to write pipeline: %v", err)
	}

	for i := 0; i < n; i++ {
		v := strconv.Itoa(i)
		c.expect(t, "+OK")
		c.expect(t, fmt.Sprintf("$%d %s", len(v), v))
	}
}

// TestConcurrentClients tests that clients are served independently
func TestConcurrentClients(t *testing.T) {
	rs := startServer(t, lstore.NewLocalSession(testSchema.String()))

	const numClients = 20
	var wg sync.WaitGroup
	errs := make(chan error, numClients)

	for i := 0; i < numClients; i++ {
		c := dial(t, rs.addr)
		wg.Add(1)
		go func(i int, c *testClient) {
			defer wg.Done()
			key := fmt.Sprintf("client-%d", i)
			for j := 0; j < 20; j++ {
				val := fmt.Sprintf("%d", j)
				fmt.Fprintf(c.conn, "*3\r\n$3\r\nSET\r\n$%d\r\n%s\r\n$%d\r\n%s\r\n", len(key), key, len(val), val)
				if r, err := c.reply(); err != nil || r != "+OK" {
					errs <- fmt.Errorf("client %d: set reply %q, %v", i, r, err)
					return
				}
				fmt.Fprintf(c.conn, "*2\r\n$3\r\nGET\r\n$%d\r\n%s\r\n", len(key), key)
				want := fmt.Sprintf("$%d %s", len(val), val)
				if r, err := c.reply(); err != nil || r != want {
					errs <- fmt.Errorf("client %d: get reply %q, want %q, %v", i, r, want, err)
					return
				}
			}
		}(i, c)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

// TestStoreFailureKeepsConnection tests that store errors are reported and the connection stays open
func TestStoreFailureKeepsConnection(t *testing.T) {
	rs := startServer(t, failingSession{})
	c := dial(t, rs.addr)

	c.send(t, "SET", "a", "1")
	c.expect(t, "-ERR no hosts available")

	c.send(t, "GET", "a")
	c.expect(t, "-ERR no hosts available")
}

// TestInvalidUTF8Value tests that binary values are rejected per request
func TestInvalidUTF8Value(t *testing.T) {
	rs := startServer(t, lstore.NewLocalSession(testSchema.String()))
	c := dial(t, rs.addr)

	c.send(t, "SET", "bin", "\xff\xfe")
	c.expect(t, "-ERR value is not valid UTF-8")

	c.send(t, "GET", "bin")
	c.expect(t, "$-1")
}

// TestMalformedRequestClosesConnection tests that protocol errors only affect one connection
func TestMalformedRequestClosesConnection(t *testing.T) {
	rs := startServer(t, lstore.NewLocalSession(testSchema.String()))

	bad := dial(t, rs.addr)
	good := dial(t, rs.addr)

	if _, err := bad.conn.Write([]byte("*2\r\n$x\r\n")); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}
	bad.expectClosed(t)

	good.send(t, "SET", "k", "v")
	good.expect(t, "+OK")
}

// TestShutdownIdleConnections tests that idle connections are closed without a further response
func TestShutdownIdleConnections(t *testing.T) {
	rs := startServer(t, lstore.NewLocalSession(testSchema.String()))

	const numClients = 5
	clients := make([]*testClient, 0, numClients)
	for i := 0; i < numClients; i++ {
		c := dial(t, rs.addr)
		c.send(t, "SET", "k", "v")
		c.expect(t, "+OK")
		clients = append(clients, c)
	}

	waitFor(t, "all connections active", func() bool { return rs.ActiveConnections() == numClients })

	rs.cancel()
	if err := rs.waitStopped(t); err != nil {
		t.Errorf("Serve returned %v", err)
	}

	if got := rs.ActiveConnections(); got != 0 {
		t.Errorf("ActiveConnections() = %d after shutdown, want 0", got)
	}
	for _, c := range clients {
		c.expectClosed(t)
	}

	// the listener is closed
	if conn, err := net.DialTimeout("tcp", rs.addr, 200*time.Millisecond); err == nil {
		conn.Close()
		t.Error("Expected listener to be closed")
	}
}

// TestShutdownWaitsForPendingRequest tests that draining waits for in-flight requests
func TestShutdownWaitsForPendingRequest(t *testing.T) {
	sess := newBlockingSession()
	rs := startServer(t, sess)

	busy := dial(t, rs.addr)
	idle := dial(t, rs.addr)
	waitFor(t, "both connections active", func() bool { return rs.ActiveConnections() == 2 })

	busy.send(t, "GET", "slow")
	select {
	case <-sess.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("Request did not reach the store")
	}

	rs.Shutdown()

	// the idle connection is closed right away
	idle.expectClosed(t)

	// Serve must not return while the request is pending
	select {
	case err := <-rs.done:
		rs.done <- err
		t.Fatal("Serve returned while a request was pending")
	case <-time.After(100 * time.Millisecond):
	}
	if got := rs.ActiveConnections(); got != 1 {
		t.Errorf("ActiveConnections() = %d, want 1", got)
	}

	close(sess.release)

	// the pending request is answered before the connection is closed
	busy.expect(t, "$-1")
	busy.expectClosed(t)

	if err := rs.waitStopped(t); err != nil {
		t.Errorf("Serve returned %v", err)
	}
}

// TestShutdownBeforeServe tests that an already canceled context stops immediately
func TestShutdownBeforeServe(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewServer(testConfig(), newTestDispatcher(t, lstore.NewLocalSession(testSchema.String())))
	if err := s.Serve(ctx, listener); err != nil {
		t.Errorf("Serve returned %v", err)
	}
}

// --------------------------------------------------------------------------
// Accept backoff
// --------------------------------------------------------------------------

// flakyListener fails a number of Accept calls before handing out queued connections
type flakyListener struct {
	mu        sync.Mutex
	failures  int
	attempts  int
	conns     chan net.Conn
	closed    chan struct{}
	closeOnce sync.Once
}

func newFlakyListener(failures int) *flakyListener {
	return &flakyListener{
		failures: failures,
		conns:    make(chan net.Conn, 4),
		closed:   make(chan struct{}),
	}
}

func (l *flakyListener) Accept() (net.Conn, error) {
	l.mu.Lock()
	l.attempts++
	if l.failures > 0 {
		l.failures--
		l.mu.Unlock()
		return nil, errors.New("accept: too many open files")
	}
	l.mu.Unlock()

	select {
	case conn := <-l.conns:
		return conn, nil
	case <-l.closed:
		return nil, net.ErrClosed
	}
}

func (l *flakyListener) Close() error {
	l.closeOnce.Do(func() { close(l.closed) })
	return nil
}

func (l *flakyListener) Addr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)}
}

// TestAcceptBackoff tests the capped exponential backoff of the accept loop
func TestAcceptBackoff(t *testing.T) {
	t.Run("recovers after three failures", func(t *testing.T) {
		listener := newFlakyListener(3)
		s := NewServer(testConfig(), newTestDispatcher(t, lstore.NewLocalSession(testSchema.String())))

		clientConn, serverConn := net.Pipe()
		defer clientConn.Close()
		listener.conns <- serverConn

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- s.Serve(ctx, listener) }()

		c := &testClient{conn: clientConn, rd: bufio.NewReader(clientConn)}
		c.send(t, "GET", "a")
		c.expect(t, "$-1")

		select {
		case err := <-done:
			t.Fatalf("Serve returned early: %v", err)
		default:
		}

		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Serve returned %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Serve did not return")
		}
	})

	t.Run("gives up once the ceiling is exceeded", func(t *testing.T) {
		listener := newFlakyListener(100)
		s := NewServer(testConfig(), newTestDispatcher(t, lstore.NewLocalSession(testSchema.String())))

		done := make(chan error, 1)
		go func() { done <- s.Serve(context.Background(), listener) }()

		select {
		case err := <-done:
			var acceptErr *AcceptError
			if !errors.As(err, &acceptErr) {
				t.Fatalf("Expected *AcceptError, got %v", err)
			}
			// delays 1ms, 2ms, 4ms, then 8ms exceeds the 4ms ceiling
			if acceptErr.Failures != 4 {
				t.Errorf("Expected 4 failures, got %d", acceptErr.Failures)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Serve did not give up")
		}
	})

	t.Run("stop interrupts backoff", func(t *testing.T) {
		config := testConfig()
		config.AcceptBackoffBase = time.Hour
		config.AcceptBackoffMax = 2 * time.Hour

		listener := newFlakyListener(1)
		s := NewServer(config, newTestDispatcher(t, lstore.NewLocalSession(testSchema.String())))

		done := make(chan error, 1)
		go func() { done <- s.Serve(context.Background(), listener) }()

		waitFor(t, "first accept attempt", func() bool {
			listener.mu.Lock()
			defer listener.mu.Unlock()
			return listener.attempts > 0
		})
		s.Shutdown()

		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Serve returned %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Serve did not return during backoff")
		}
	})
}
