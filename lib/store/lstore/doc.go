// Package lstore implements a local, in-memory store.ISession that emulates the
// bridge table of a CQL cluster. Data is held in xsync.MapOf maps and is lost
// when the process exits.
//
// The session only understands the two statements the bridge declares
// (store.StatementSelectValue and store.StatementUpsertValue), identified by their
// Kind rather than by parsing the query text. Declaring a statement against a
// table that was not registered with NewLocalSession fails, which mirrors a
// cluster without the expected schema.
//
// Thread Safety:
//
//	All operations are safe for concurrent use. Reads and writes go straight to
//	the underlying xsync.MapOf without additional locking.
//
// Usage Example:
//
//	sess := lstore.NewLocalSession("scired.strings")
//	defer sess.Close()
//
// Suitable Use Cases:
//
//	- Running the bridge without a cluster (serve --store=memory)
//	- Tests of the dispatcher and the server
package lstore
