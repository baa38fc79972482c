// Package cstore implements store.ISession on top of a Cassandra/Scylla cluster
// using the gocql driver.
//
// Declaring a statement checks the keyspace metadata of the cluster for the
// target table, so a missing schema is reported at startup instead of on the
// first request. The returned handle keeps the query text and the driver
// consistency level; gocql prepares the statement on first use per host and
// caches it, so every later execution only binds values.
//
// Expected schema:
//
//	CREATE KEYSPACE scired WITH replication = {'class': 'SimpleStrategy', 'replication_factor': 3};
//	CREATE TABLE scired.strings (key text PRIMARY KEY, value text);
//
// Driver log output is forwarded to the "store" logger.
package cstore
