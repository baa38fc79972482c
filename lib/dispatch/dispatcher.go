package dispatch

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/ValentinKolb/scired/lib/store"
	"github.com/lni/dragonboat/v4/logger"
	gometrics "github.com/rcrowley/go-metrics"
)

var (
	Logger = logger.GetLogger("dispatch")
)

// Query templates, formatted with keyspace and table
const (
	selectValueQuery = "SELECT value FROM %s.%s WHERE key = ?"
	upsertValueQuery = "INSERT INTO %s.%s (key, value) VALUES (?, ?)"
)

// Schema names the table holding the key-value pairs
type Schema struct {
	Keyspace string
	Table    string
}

// String returns keyspace.table
func (s Schema) String() string {
	return s.Keyspace + "." + s.Table
}

// cachedOperation is a declared statement together with the level it was declared with
type cachedOperation struct {
	prepared    store.IPrepared
	consistency store.Consistency
	timer       gometrics.Timer
}

// Dispatcher translates operations into executions of cached statements.
// It is immutable after NewDispatcher returns and safe for concurrent use.
type Dispatcher struct {
	schema   Schema
	ops      map[OperationType]*cachedOperation
	stats    gometrics.Registry
	failures gometrics.Counter
}

// NewDispatcher declares the select and upsert statements against the session.
// Every statement is bound to the level the policy assigns to its operation.
// A failing declaration is returned as *InitializationError.
func NewDispatcher(ctx context.Context, session store.ISession, schema Schema, policy store.ConsistencyPolicy) (*Dispatcher, error) {
	stats := gometrics.NewRegistry()

	d := &Dispatcher{
		schema:   schema,
		ops:      make(map[OperationType]*cachedOperation, 2),
		stats:    stats,
		failures: gometrics.NewRegisteredCounter("failures", stats),
	}

	declare := func(op OperationType, kind store.StatementKind, template string) error {
		stmt := store.Statement{
			Kind:        kind,
			Keyspace:    schema.Keyspace,
			Table:       schema.Table,
			Query:       fmt.Sprintf(template, schema.Keyspace, schema.Table),
			Consistency: policy.Level(op.String()),
		}

		prepared, err := session.Prepare(ctx, stmt)
		if err != nil {
			return &InitializationError{Operation: op, Query: stmt.Query, Err: err}
		}

		d.ops[op] = &cachedOperation{
			prepared:    prepared,
			consistency: stmt.Consistency,
			timer:       gometrics.NewRegisteredTimer(op.String(), stats),
		}
		Logger.Infof("declared %s statement %s", op, stmt)
		return nil
	}

	if err := declare(OpTGet, store.StatementSelectValue, selectValueQuery); err != nil {
		return nil, err
	}
	if err := declare(OpTSet, store.StatementUpsertValue, upsertValueQuery); err != nil {
		return nil, err
	}

	return d, nil
}

// Dispatch executes a single operation
func (d *Dispatcher) Dispatch(ctx context.Context, op Operation) Outcome {
	switch op.Type {
	case OpTGet:
		return d.Get(ctx, op.Key)
	case OpTSet:
		return d.Set(ctx, op.Key, op.Value)
	default:
		return Failure(fmt.Sprintf("unsupported operation %s", op.Type))
	}
}

// Get reads the value stored for key. Every call is a round trip to the store.
func (d *Dispatcher) Get(ctx context.Context, key string) Outcome {
	op := d.ops[OpTGet]
	defer op.timer.UpdateSince(time.Now())

	rows, err := op.prepared.Execute(ctx, key)
	if err != nil {
		return d.fail(OpTGet, err)
	}

	// a null column scans into a nil pointer, an empty string into a pointer to ""
	var value *string
	found := rows.Scan(&value)
	if err := rows.Close(); err != nil {
		return d.fail(OpTGet, err)
	}

	if !found || value == nil {
		return Absent()
	}
	return Value([]byte(*value))
}

// Set stores value for key. The value must be valid UTF-8 since the column is text.
func (d *Dispatcher) Set(ctx context.Context, key string, value []byte) Outcome {
	if !utf8.Valid(value) {
		d.failures.Inc(1)
		return Failure("value is not valid UTF-8")
	}

	op := d.ops[OpTSet]
	defer op.timer.UpdateSince(time.Now())

	rows, err := op.prepared.Execute(ctx, key, string(value))
	if err != nil {
		return d.fail(OpTSet, err)
	}
	if err := rows.Close(); err != nil {
		return d.fail(OpTSet, err)
	}
	return Acknowledged()
}

// Consistency returns the level an operation was declared with
func (d *Dispatcher) Consistency(op OperationType) (store.Consistency, bool) {
	c, ok := d.ops[op]
	if !ok {
		return store.ConsistencyQuorum, false
	}
	return c.consistency, true
}

// Schema returns the table the dispatcher operates on
func (d *Dispatcher) Schema() Schema {
	return d.schema
}

// Stats returns the latency timers (one per operation) and the failure counter
func (d *Dispatcher) Stats() gometrics.Registry {
	return d.stats
}

// fail converts a store error into a Failure outcome
func (d *Dispatcher) fail(op OperationType, err error) Outcome {
	d.failures.Inc(1)
	Logger.Debugf("%s failed: %v", op, err)
	return Failure(err.Error())
}
