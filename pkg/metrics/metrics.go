package metrics

import (
	"time"
)

// Collector receives measurements from every component of the service.
// Implementations export them to a backend (Prometheus) or keep them in memory for tests.
type Collector interface {
	// Payment gateway
	RecordGatewayCall(op string, outcome Outcome, duration time.Duration)

	// Ledger status transitions (type is deposit|withdrawal, status is the new status)
	RecordTransition(txType, status string)

	// Circuit breakers, keyed by breaker name
	RecordCircuitState(name string, state CircuitState)

	// Cache layers
	RecordCacheGet(layer string, hit bool, duration time.Duration)
	RecordCacheSet(layer string, success bool, duration time.Duration)

	// Async warm-up writer
	RecordQueueDepth(layer string, depth int)
	RecordWriteDropped(layer string)
	RecordAsyncWrite(layer string, success bool, duration time.Duration)

	// HTTP surface, route is the mux path template
	RecordHTTPRequest(method, route string, status int, duration time.Duration)
}

// Outcome classifies a gateway call.
type Outcome string

const (
	// OutcomeOK means the processor accepted the request.
	OutcomeOK Outcome = "ok"
	// OutcomeRejected means the processor answered but refused (4xx or status=false).
	OutcomeRejected Outcome = "rejected"
	// OutcomeError means transport failure, 5xx or an undecodable body.
	OutcomeError Outcome = "error"
	// OutcomeUnavailable means the breaker refused the call.
	OutcomeUnavailable Outcome = "unavailable"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed means the circuit breaker is allowing requests through.
	CircuitClosed CircuitState = iota
	// CircuitOpen means the circuit breaker is blocking requests.
	CircuitOpen
	// CircuitHalfOpen means the circuit breaker is testing if the service has recovered.
	CircuitHalfOpen
)

// String returns the string representation of the circuit state.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// NoOpCollector discards everything. It is the default when no collector is configured.
type NoOpCollector struct{}

func (NoOpCollector) RecordGatewayCall(op string, outcome Outcome, duration time.Duration)     {}
func (NoOpCollector) RecordTransition(txType, status string)                                   {}
func (NoOpCollector) RecordCircuitState(name string, state CircuitState)                       {}
func (NoOpCollector) RecordCacheGet(layer string, hit bool, duration time.Duration)            {}
func (NoOpCollector) RecordCacheSet(layer string, success bool, duration time.Duration)        {}
func (NoOpCollector) RecordQueueDepth(layer string, depth int)                                 {}
func (NoOpCollector) RecordWriteDropped(layer string)                                          {}
func (NoOpCollector) RecordAsyncWrite(layer string, success bool, duration time.Duration)      {}
func (NoOpCollector) RecordHTTPRequest(method, route string, status int, dur time.Duration)    {}

// OrNoOp returns c, or a NoOpCollector when c is nil.
func OrNoOp(c Collector) Collector {
	if c == nil {
		return NoOpCollector{}
	}
	return c
}
