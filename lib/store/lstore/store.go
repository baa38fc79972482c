package lstore

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/scired/lib/store"
	"github.com/puzpuzpuz/xsync/v3"
)

// table holds the rows of one emulated keyspace.table (key -> value)
type table = *xsync.MapOf[string, string]

type sessionImpl struct {
	tables *xsync.MapOf[string, table]
}

// NewLocalSession creates an in-memory session that knows the given tables.
// Table names are given as "keyspace.table". Statements against any other table
// fail at declaration time, the same way a cluster without the schema would.
func NewLocalSession(tables ...string) store.ISession {
	s := &sessionImpl{
		tables: xsync.NewMapOf[string, table](),
	}
	for _, name := range tables {
		s.tables.Store(name, xsync.NewMapOf[string, string]())
	}
	return s
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *sessionImpl) Prepare(ctx context.Context, stmt store.Statement) (store.IPrepared, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := stmt.Keyspace + "." + stmt.Table
	t, ok := s.tables.Load(name)
	if !ok {
		return nil, fmt.Errorf("unconfigured table %s", name)
	}

	switch stmt.Kind {
	case store.StatementSelectValue, store.StatementUpsertValue:
		return &preparedImpl{kind: stmt.Kind, table: t}, nil
	default:
		return nil, fmt.Errorf("unsupported statement kind %s", stmt.Kind)
	}
}

func (s *sessionImpl) Close() {}

// --------------------------------------------------------------------------
// Prepared Statements
// --------------------------------------------------------------------------

type preparedImpl struct {
	kind  store.StatementKind
	table table
}

func (p *preparedImpl) Execute(ctx context.Context, values ...interface{}) (store.IRows, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch p.kind {
	case store.StatementSelectValue:
		if len(values) != 1 {
			return nil, fmt.Errorf("expected 1 value, got %d", len(values))
		}
		key, err := asString(values[0])
		if err != nil {
			return nil, err
		}
		if val, ok := p.table.Load(key); ok {
			return &rowsImpl{rows: []string{val}}, nil
		}
		return &rowsImpl{}, nil

	default: // store.StatementUpsertValue
		if len(values) != 2 {
			return nil, fmt.Errorf("expected 2 values, got %d", len(values))
		}
		key, err := asString(values[0])
		if err != nil {
			return nil, err
		}
		val, err := asString(values[1])
		if err != nil {
			return nil, err
		}
		p.table.Store(key, val)
		return &rowsImpl{}, nil
	}
}

// asString converts a bound value to text, like a text column would accept it
func asString(v interface{}) (string, error) {
	switch v := v.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", fmt.Errorf("can not marshal %T into text", v)
	}
}

// --------------------------------------------------------------------------
// Result Rows
// --------------------------------------------------------------------------

// rowsImpl is a single column result set
type rowsImpl struct {
	rows []string
	pos  int
	err  error
}

func (r *rowsImpl) Scan(dest ...interface{}) bool {
	if r.err != nil || r.pos >= len(r.rows) {
		return false
	}
	if len(dest) != 1 {
		r.err = fmt.Errorf("expected 1 scan destination, got %d", len(dest))
		return false
	}

	val := r.rows[r.pos]
	switch d := dest[0].(type) {
	case *string:
		*d = val
	case **string:
		v := val
		*d = &v
	case *[]byte:
		*d = []byte(val)
	default:
		r.err = fmt.Errorf("can not unmarshal text into %T", dest[0])
		return false
	}
	r.pos++
	return true
}

func (r *rowsImpl) Close() error {
	return r.err
}
