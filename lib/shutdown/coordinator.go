package shutdown

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrStopped is returned by Subscribe once a stop was requested
var ErrStopped = errors.New("shutdown: stop already requested")

// Coordinator broadcasts a one-shot stop notification to all subscriptions
// and tracks how many of them are still working.
//
// The protocol has two explicit phases: RequestStop notifies every subscriber,
// AwaitDrained blocks until all of them called Release.
type Coordinator struct {
	mu      sync.Mutex
	stopped bool
	stop    chan struct{}
	wg      sync.WaitGroup
	active  atomic.Int64
}

// NewCoordinator creates a coordinator in the running state
func NewCoordinator() *Coordinator {
	return &Coordinator{
		stop: make(chan struct{}),
	}
}

// Subscribe registers a new worker and hands out its completion token.
// After RequestStop no new subscriptions are accepted, so AwaitDrained
// can never be raced by a late worker.
func (c *Coordinator) Subscribe() (*Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return nil, ErrStopped
	}

	c.wg.Add(1)
	c.active.Add(1)
	return &Subscription{coordinator: c}, nil
}

// RequestStop notifies all subscriptions. Calling it more than once has no further effect.
func (c *Coordinator) RequestStop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return
	}
	c.stopped = true
	close(c.stop)
}

// Done returns a channel that is closed once a stop was requested
func (c *Coordinator) Done() <-chan struct{} {
	return c.stop
}

// Stopped reports whether a stop was requested
func (c *Coordinator) Stopped() bool {
	select {
	case <-c.stop:
		return true
	default:
		return false
	}
}

// Active returns the number of subscriptions that did not release their token yet
func (c *Coordinator) Active() int64 {
	return c.active.Load()
}

// AwaitDrained blocks until every subscription released its token or ctx is done.
// It does not request a stop by itself.
func (c *Coordinator) AwaitDrained(ctx context.Context) error {
	drained := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// --------------------------------------------------------------------------
// Subscription
// --------------------------------------------------------------------------

// Subscription is the per-worker view of a Coordinator
type Subscription struct {
	coordinator *Coordinator
	once        sync.Once
}

// Done returns a channel that is closed once a stop was requested
func (s *Subscription) Done() <-chan struct{} {
	return s.coordinator.stop
}

// Stopped reports whether a stop was requested
func (s *Subscription) Stopped() bool {
	return s.coordinator.Stopped()
}

// Release returns the completion token. Only the first call counts.
func (s *Subscription) Release() {
	s.once.Do(func() {
		s.coordinator.active.Add(-1)
		s.coordinator.wg.Done()
	})
}
