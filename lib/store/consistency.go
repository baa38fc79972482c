package store

import (
	"strings"
)

// --------------------------------------------------------------------------
// Consistency Levels
// --------------------------------------------------------------------------

// Consistency is the agreement level requested from the cluster for a single statement.
type Consistency uint8

const (
	ConsistencyQuorum Consistency = iota // default for unknown input
	ConsistencyOne
	ConsistencyTwo
)

// String returns the string representation of a Consistency.
func (c Consistency) String() string {
	switch c {
	case ConsistencyOne:
		return "one"
	case ConsistencyTwo:
		return "two"
	default:
		return "quorum"
	}
}

// ParseConsistency converts a level name (case-insensitive) into a Consistency.
// Unrecognized names fall back to ConsistencyQuorum.
func ParseConsistency(level string) Consistency {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "one":
		return ConsistencyOne
	case "two":
		return ConsistencyTwo
	default:
		return ConsistencyQuorum
	}
}

// --------------------------------------------------------------------------
// Consistency Policy
// --------------------------------------------------------------------------

// Operation names known to the policy
const (
	OpGet = "get"
	OpSet = "set"
)

// ConsistencyPolicy maps logical operation names to consistency levels.
// It is built once at startup and never modified afterwards.
type ConsistencyPolicy struct {
	levels map[string]Consistency
}

// NewConsistencyPolicy parses the configured level names for the get and set operations
func NewConsistencyPolicy(getLevel, setLevel string) ConsistencyPolicy {
	return ConsistencyPolicy{
		levels: map[string]Consistency{
			OpGet: ParseConsistency(getLevel),
			OpSet: ParseConsistency(setLevel),
		},
	}
}

// Level returns the consistency for an operation name. Unknown names resolve to ConsistencyQuorum.
func (p ConsistencyPolicy) Level(op string) Consistency {
	if c, ok := p.levels[strings.ToLower(op)]; ok {
		return c
	}
	return ConsistencyQuorum
}
