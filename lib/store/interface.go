package store

import (
	"context"
	"fmt"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// StatementKind tells a session which of the two bridge statements it is asked to declare.
// Sessions that speak CQL only need the query text, emulating sessions use the kind instead.
type StatementKind uint8

const (
	StatementSelectValue StatementKind = iota // SELECT value FROM ks.table WHERE key = ?
	StatementUpsertValue                      // INSERT INTO ks.table (key, value) VALUES (?, ?)
)

// String returns the string representation of a StatementKind.
func (k StatementKind) String() string {
	switch k {
	case StatementSelectValue:
		return "select-value"
	case StatementUpsertValue:
		return "upsert-value"
	default:
		return "unknown"
	}
}

// Statement describes a parameterized operation to be declared against the store.
type Statement struct {
	Kind        StatementKind
	Keyspace    string
	Table       string
	Query       string
	Consistency Consistency
}

// String returns the query text together with the consistency it is declared with
func (s Statement) String() string {
	return fmt.Sprintf("%s [%s]", s.Query, s.Consistency)
}

// ISession is a connected client handle to the backing store.
// Implementations must be safe for concurrent use.
type ISession interface {
	// Prepare declares a parameterized statement and returns a reusable handle for it.
	// An error means the statement can never be executed (missing schema, no reachable node, ...).
	Prepare(ctx context.Context, stmt Statement) (IPrepared, error)
	// Close releases all resources held by the session.
	Close()
}

// IPrepared is a declared statement. It is immutable and may be executed concurrently.
type IPrepared interface {
	// Execute runs the statement with the given values bound to its markers.
	// Execution errors may be reported either here or by IRows.Close.
	Execute(ctx context.Context, values ...interface{}) (IRows, error)
}

// IRows iterates the result set of an executed statement.
// The method set matches *gocql.Iter so driver iterators can be returned directly.
type IRows interface {
	// Scan copies the columns of the next row into dest. It returns false when
	// no row is left or an error occurred.
	Scan(dest ...interface{}) bool
	// Close finishes the iteration and returns the execution error, if any.
	Close() error
}
