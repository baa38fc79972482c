// Package shutdown provides the stop-and-drain primitive shared by the server
// and its connection handlers.
//
// A Coordinator combines a one-shot broadcast (a channel that is closed exactly
// once) with a completion count. Every worker takes a Subscription when it
// starts and calls Release when it is finished. Stopping is a two-phase protocol:
//
//	c.RequestStop()                   // all Subscription.Done() channels close
//	err := c.AwaitDrained(ctx)        // returns once every token is released
//
// The stop flag is monotonic. Once RequestStop was called, Subscribe fails with
// ErrStopped, which keeps the completion count from growing while it is awaited.
//
// The package adds no timeout of its own; a worker that never releases blocks
// AwaitDrained until ctx is done.
package shutdown
