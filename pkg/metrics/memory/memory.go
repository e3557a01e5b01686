package memory

import (
	"fmt"
	"sync"
	"time"

	"money-saver/pkg/metrics"
)

// Collector implements metrics.Collector in memory. Tests use it to assert on
// what a component reported.
type Collector struct {
	mu sync.Mutex

	gatewayCalls  map[string]int64 // "op/outcome"
	transitions   map[string]int64 // "type/status"
	circuitStates map[string]metrics.CircuitState
	circuitOpens  map[string]int64
	layers        map[string]*LayerMetrics
	httpRequests  map[string]int64 // "METHOD route status"
}

// LayerMetrics holds cache counters for one layer.
type LayerMetrics struct {
	Hits          int64
	Misses        int64
	Sets          int64
	SetErrors     int64
	QueueDepth    int
	DroppedWrites int64
	AsyncWrites   int64
	AsyncErrors   int64
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	c := &Collector{}
	c.Reset()
	return c
}

func (c *Collector) layer(name string) *LayerMetrics {
	lm, ok := c.layers[name]
	if !ok {
		lm = &LayerMetrics{}
		c.layers[name] = lm
	}
	return lm
}

// RecordGatewayCall records one processor round trip.
func (c *Collector) RecordGatewayCall(op string, outcome metrics.Outcome, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gatewayCalls[op+"/"+string(outcome)]++
}

// RecordTransition records a ledger status change.
func (c *Collector) RecordTransition(txType, status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transitions[txType+"/"+status]++
}

// RecordCircuitState records the breaker state, counting transitions into open.
func (c *Collector) RecordCircuitState(name string, state metrics.CircuitState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.circuitStates[name] != metrics.CircuitOpen && state == metrics.CircuitOpen {
		c.circuitOpens[name]++
	}
	c.circuitStates[name] = state
}

// RecordCacheGet records a cache lookup.
func (c *Collector) RecordCacheGet(layer string, hit bool, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	lm := c.layer(layer)
	if hit {
		lm.Hits++
	} else {
		lm.Misses++
	}
}

// RecordCacheSet records a cache write.
func (c *Collector) RecordCacheSet(layer string, success bool, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	lm := c.layer(layer)
	lm.Sets++
	if !success {
		lm.SetErrors++
	}
}

// RecordQueueDepth records the warm-up queue depth.
func (c *Collector) RecordQueueDepth(layer string, depth int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.layer(layer).QueueDepth = depth
}

// RecordWriteDropped records a dropped warm-up write.
func (c *Collector) RecordWriteDropped(layer string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.layer(layer).DroppedWrites++
}

// RecordAsyncWrite records a completed warm-up write.
func (c *Collector) RecordAsyncWrite(layer string, success bool, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	lm := c.layer(layer)
	lm.AsyncWrites++
	if !success {
		lm.AsyncErrors++
	}
}

// RecordHTTPRequest records a served request.
func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.httpRequests[fmt.Sprintf("%s %s %d", method, route, status)]++
}

// GatewayCalls returns how many calls to op ended with outcome.
func (c *Collector) GatewayCalls(op string, outcome metrics.Outcome) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gatewayCalls[op+"/"+string(outcome)]
}

// Transitions returns how many txType rows moved into status.
func (c *Collector) Transitions(txType, status string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transitions[txType+"/"+status]
}

// CircuitState returns the last reported state for breaker name.
func (c *Collector) CircuitState(name string) metrics.CircuitState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.circuitStates[name]
}

// CircuitOpens returns how many times breaker name opened.
func (c *Collector) CircuitOpens(name string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.circuitOpens[name]
}

// Layer returns a copy of the counters for a cache layer, or nil if never reported.
func (c *Collector) Layer(name string) *LayerMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	lm, ok := c.layers[name]
	if !ok {
		return nil
	}
	cp := *lm
	return &cp
}

// HTTPRequests returns how many requests matched method, route and status.
func (c *Collector) HTTPRequests(method, route string, status int) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.httpRequests[fmt.Sprintf("%s %s %d", method, route, status)]
}

// Reset clears all collected metrics.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gatewayCalls = make(map[string]int64)
	c.transitions = make(map[string]int64)
	c.circuitStates = make(map[string]metrics.CircuitState)
	c.circuitOpens = make(map[string]int64)
	c.layers = make(map[string]*LayerMetrics)
	c.httpRequests = make(map[string]int64)
}
