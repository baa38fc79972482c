// Package dispatch translates decoded client requests into executions of
// pre-declared store statements and normalizes the results.
//
// Key Components:
//
//   - Operation: A decoded request, either Get{key} or Set{key, value}.
//
//   - Outcome: The normalized result, one of Value, Absent, Acknowledged or Failure.
//     Store errors never escape as Go errors; they become Failure outcomes so the
//     caller has a single path for every result.
//
//   - Dispatcher: Declares "select value by key" and "upsert key/value" once at
//     startup, each bound to the consistency level of a store.ConsistencyPolicy,
//     and executes them for every request. A declaration failure is an
//     *InitializationError and the caller must not start serving.
//
// Thread Safety:
//
//	The Dispatcher is never modified after NewDispatcher returns and can be shared
//	by any number of connection handlers without locking. Latency timers and the
//	failure counter (go-metrics) are synchronized internally.
//
// Values are not cached: every Get is a live round trip to the store.
package dispatch
