package dispatch

import (
	"fmt"
)

// --------------------------------------------------------------------------
// Operation
// --------------------------------------------------------------------------

// OperationType defines the kind of a decoded client request
type OperationType uint8

const (
	OpTGet OperationType = iota // Get a value by key
	OpTSet                      // Set a key-value pair
)

// String returns the string representation of an OperationType.
// The names match the keys of store.ConsistencyPolicy.
func (t OperationType) String() string {
	switch t {
	case OpTGet:
		return "get"
	case OpTSet:
		return "set"
	default:
		return "unknown"
	}
}

// Operation is the internal representation of a client request.
// Which fields are used depends on the type.
type Operation struct {
	Type  OperationType
	Key   string // Used for: Get, Set
	Value []byte // Used for: Set
}

// NewGetOperation creates a new Get operation
func NewGetOperation(key string) Operation {
	return Operation{
		Type: OpTGet,
		Key:  key,
	}
}

// NewSetOperation creates a new Set operation
func NewSetOperation(key string, value []byte) Operation {
	return Operation{
		Type:  OpTSet,
		Key:   key,
		Value: value,
	}
}

// --------------------------------------------------------------------------
// Outcome
// --------------------------------------------------------------------------

// OutcomeType defines the kind of a normalized store result
type OutcomeType uint8

const (
	OutTValue        OutcomeType = iota // A value was found
	OutTAbsent                          // No value exists for the key
	OutTAcknowledged                    // A write was accepted
	OutTFailure                         // The store reported an error
)

// String returns the string representation of an OutcomeType.
func (t OutcomeType) String() string {
	switch t {
	case OutTValue:
		return "value"
	case OutTAbsent:
		return "absent"
	case OutTAcknowledged:
		return "acknowledged"
	case OutTFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Outcome is the normalized result of dispatching an Operation.
type Outcome struct {
	Type  OutcomeType
	Value []byte // Used for: Value
	Err   string // Used for: Failure
}

// Value creates a Value outcome
func Value(v []byte) Outcome {
	return Outcome{Type: OutTValue, Value: v}
}

// Absent creates an Absent outcome
func Absent() Outcome {
	return Outcome{Type: OutTAbsent}
}

// Acknowledged creates an Acknowledged outcome
func Acknowledged() Outcome {
	return Outcome{Type: OutTAcknowledged}
}

// Failure creates a Failure outcome
func Failure(msg string) Outcome {
	return Outcome{Type: OutTFailure, Err: msg}
}

// String returns a short representation for logs
func (o Outcome) String() string {
	switch o.Type {
	case OutTValue:
		return fmt.Sprintf("value(%d bytes)", len(o.Value))
	case OutTFailure:
		return fmt.Sprintf("failure(%s)", o.Err)
	default:
		return o.Type.String()
	}
}

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

// InitializationError is returned when a statement can not be declared against the store.
// The bridge must not serve requests after this error.
type InitializationError struct {
	Operation OperationType
	Query     string
	Err       error
}

// Error implements the error interface.
func (e *InitializationError) Error() string {
	return fmt.Sprintf("failed to declare %s statement %q: %v", e.Operation, e.Query, e.Err)
}

// Unwrap returns the underlying store error
func (e *InitializationError) Unwrap() error {
	return e.Err
}
