// Package store defines the contract between the bridge and its backing store.
// The bridge never talks to a concrete database directly: it declares a small,
// fixed set of parameterized statements against an ISession and executes the
// returned IPrepared handles with bound values.
//
// The package focuses on:
//   - A session abstraction (ISession, IPrepared, IRows) that mirrors the shape of
//     CQL drivers, so a driver iterator can be handed out without wrapping
//   - Consistency levels and the per-operation ConsistencyPolicy
//
// Key Components:
//
//   - Statement: A query template plus the keyspace, table and consistency level it
//     is declared with. The Kind field identifies which bridge statement it is, which
//     lets emulating sessions serve it without parsing CQL.
//
//   - Consistency: One, Two or Quorum. Level names are parsed case-insensitively and
//     anything unknown resolves to Quorum.
//
//   - ConsistencyPolicy: Maps the logical operation names "get" and "set" to a level.
//     Built once at startup and read-only afterwards.
//
// Implementations:
//
//	- Cluster Store (cstore): A gocql session against a Cassandra/Scylla cluster.
//
//	- Local Store (lstore): An in-memory emulation of the bridge table for
//	  development and tests.
package store
