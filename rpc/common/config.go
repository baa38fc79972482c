package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ValentinKolb/scired/lib/dispatch"
	"github.com/ValentinKolb/scired/lib/store"
)

// --------------------------------------------------------------------------
// Server configuration struct
// --------------------------------------------------------------------------

type StoreType string

const (
	StoreTypeCluster StoreType = "cql"
	StoreTypeMemory  StoreType = "memory"
)

// ServerConfig holds all configuration parameters for the bridge server.
type ServerConfig struct {
	// Listen address of the redis protocol endpoint
	Endpoint string

	// TCP socket options applied to accepted connections
	TCPNoDelay      bool
	TCPKeepAliveSec int

	// Accept loop backoff: starts at AcceptBackoffBase, doubles per consecutive
	// failure and gives up once the next delay would exceed AcceptBackoffMax
	AcceptBackoffBase time.Duration
	AcceptBackoffMax  time.Duration

	// WriteTimeout bounds a single response write (0 disables the deadline)
	WriteTimeout time.Duration

	// Backing store
	StoreType      StoreType
	StoreHosts     []string
	Keyspace       string
	Table          string
	ConnectTimeout time.Duration
	StoreTimeout   time.Duration

	// Consistency level names per operation (one, two, quorum)
	ConsistencyGet string
	ConsistencySet string

	// Admin HTTP endpoint (health, metrics), empty disables it
	AdminEndpoint string

	// Logging configuration
	LogLevel string
}

// DefaultServerConfig returns the configuration used when no flags are given
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Endpoint:          "127.0.0.1:6379",
		TCPNoDelay:        true,
		AcceptBackoffBase: time.Second,
		AcceptBackoffMax:  64 * time.Second,
		WriteTimeout:      10 * time.Second,
		StoreType:         StoreTypeCluster,
		StoreHosts:        []string{"127.0.0.1:9042"},
		Keyspace:          "scired",
		Table:             "strings",
		ConnectTimeout:    2 * time.Second,
		StoreTimeout:      5 * time.Second,
		ConsistencyGet:    "one",
		ConsistencySet:    "one",
		LogLevel:          "info",
	}
}

// ConsistencyPolicy builds the per-operation consistency policy
func (c *ServerConfig) ConsistencyPolicy() store.ConsistencyPolicy {
	return store.NewConsistencyPolicy(c.ConsistencyGet, c.ConsistencySet)
}

// Schema returns the table the bridge reads and writes
func (c *ServerConfig) Schema() dispatch.Schema {
	return dispatch.Schema{Keyspace: c.Keyspace, Table: c.Table}
}

// Validate checks the configuration for values the server can not work with
func (c *ServerConfig) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint must not be empty")
	}
	if c.AcceptBackoffBase <= 0 {
		return fmt.Errorf("accept backoff base must be positive")
	}
	if c.AcceptBackoffMax < c.AcceptBackoffBase {
		return fmt.Errorf("accept backoff max (%s) must not be below base (%s)", c.AcceptBackoffMax, c.AcceptBackoffBase)
	}
	if c.Keyspace == "" || c.Table == "" {
		return fmt.Errorf("keyspace and table must not be empty")
	}
	switch c.StoreType {
	case StoreTypeCluster:
		if len(c.StoreHosts) == 0 {
			return fmt.Errorf("at least one store host is required for store type %s", c.StoreType)
		}
	case StoreTypeMemory:
	default:
		return fmt.Errorf("invalid store type: %s (expected one of: cql, memory)", c.StoreType)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// Server settings
	addSection("Server")
	addField("Endpoint", c.Endpoint)
	addField("TCP No Delay", strconv.FormatBool(c.TCPNoDelay))
	addField("TCP Keep Alive", fmt.Sprintf("%d sec", c.TCPKeepAliveSec))
	addField("Accept Backoff", fmt.Sprintf("%s .. %s", c.AcceptBackoffBase, c.AcceptBackoffMax))
	addField("Write Timeout", c.WriteTimeout.String())

	// Store settings
	addSection("Store")
	addField("Type", string(c.StoreType))
	if c.StoreType == StoreTypeCluster {
		for i, host := range c.StoreHosts {
			addField(fmt.Sprintf("Host %d", i), host)
		}
		addField("Connect Timeout", c.ConnectTimeout.String())
		addField("Query Timeout", c.StoreTimeout.String())
	}
	addField("Table", c.Schema().String())

	// Consistency
	policy := c.ConsistencyPolicy()
	addSection("Consistency")
	addField("Get", policy.Level(store.OpGet).String())
	addField("Set", policy.Level(store.OpSet).String())

	// Admin
	addSection("Admin")
	if c.AdminEndpoint == "" {
		addField("Endpoint", "disabled")
	} else {
		addField("Endpoint", c.AdminEndpoint)
	}

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}
