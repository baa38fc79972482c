package cstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ValentinKolb/scired/lib/store"
	"github.com/gocql/gocql"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	log = logger.GetLogger("store")
)

// Config holds the parameters used to connect to the cluster
type Config struct {
	// Hosts are the entry nodes (host or host:port)
	Hosts []string
	// ConnectTimeout bounds the initial connection to a node
	ConnectTimeout time.Duration
	// Timeout bounds a single query round trip
	Timeout time.Duration
}

// sessionImpl wraps a gocql session.
type sessionImpl struct {
	sess *gocql.Session
}

// NewClusterSession connects to the cluster described by config.
// The returned session resolves keyspace metadata on Prepare to make sure
// the declared statements can be served.
func NewClusterSession(config Config) (store.ISession, error) {
	if len(config.Hosts) == 0 {
		return nil, errors.New("no store hosts configured")
	}

	cluster := gocql.NewCluster(config.Hosts...)
	if config.ConnectTimeout > 0 {
		cluster.ConnectTimeout = config.ConnectTimeout
	}
	if config.Timeout > 0 {
		cluster.Timeout = config.Timeout
	}
	cluster.Logger = &driverLogger{log: log}

	sess, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", strings.Join(config.Hosts, ","), err)
	}

	log.Infof("connected to cluster %s", strings.Join(config.Hosts, ","))
	return &sessionImpl{sess: sess}, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *sessionImpl) Prepare(ctx context.Context, stmt store.Statement) (store.IPrepared, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ks, err := s.sess.KeyspaceMetadata(stmt.Keyspace)
	if err != nil {
		return nil, fmt.Errorf("failed to load keyspace %s: %w", stmt.Keyspace, err)
	}
	if err := checkSchema(ks, stmt); err != nil {
		return nil, err
	}

	log.Debugf("declared statement %s", stmt)

	// gocql prepares the query on first execution per host and keeps it in its
	// statement cache, so the handle only needs the query text and the level.
	return &preparedImpl{
		sess:        s.sess,
		query:       stmt.Query,
		consistency: toGocqlConsistency(stmt.Consistency),
	}, nil
}

func (s *sessionImpl) Close() {
	s.sess.Close()
}

// --------------------------------------------------------------------------
// Prepared Statements
// --------------------------------------------------------------------------

type preparedImpl struct {
	sess        *gocql.Session
	query       string
	consistency gocql.Consistency
}

func (p *preparedImpl) Execute(ctx context.Context, values ...interface{}) (store.IRows, error) {
	// *gocql.Iter already satisfies store.IRows, execution errors are reported by Close
	return p.sess.Query(p.query, values...).
		WithContext(ctx).
		Consistency(p.consistency).
		Iter(), nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// checkSchema verifies that the statement's table exists and is keyed by a
// "key" column with a "value" column next to it
func checkSchema(ks *gocql.KeyspaceMetadata, stmt store.Statement) error {
	name := stmt.Keyspace + "." + stmt.Table
	if ks == nil {
		return fmt.Errorf("keyspace %s does not exist", stmt.Keyspace)
	}

	tbl, ok := ks.Tables[stmt.Table]
	if !ok || tbl == nil {
		return fmt.Errorf("table %s does not exist", name)
	}

	for _, col := range []string{"key", "value"} {
		if _, ok := tbl.Columns[col]; !ok {
			return fmt.Errorf("table %s has no column %q", name, col)
		}
	}

	if len(tbl.PartitionKey) != 1 || tbl.PartitionKey[0].Name != "key" {
		return fmt.Errorf("table %s must have \"key\" as its only partition key column", name)
	}
	return nil
}

// toGocqlConsistency maps a store level to the driver constant
func toGocqlConsistency(c store.Consistency) gocql.Consistency {
	switch c {
	case store.ConsistencyOne:
		return gocql.One
	case store.ConsistencyTwo:
		return gocql.Two
	default:
		return gocql.Quorum
	}
}
