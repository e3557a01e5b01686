package memory

import (
	"testing"
	"time"

	"money-saver/pkg/metrics"
)

var _ metrics.Collector = (*Collector)(nil)

func TestCollectorCountsCircuitOpensOnTransitionOnly(t *testing.T) {
	c := NewCollector()
	c.RecordCircuitState("paystack", metrics.CircuitOpen)
	c.RecordCircuitState("paystack", metrics.CircuitOpen)
	c.RecordCircuitState("paystack", metrics.CircuitHalfOpen)
	c.RecordCircuitState("paystack", metrics.CircuitOpen)

	if got := c.CircuitOpens("paystack"); got != 2 {
		t.Errorf("CircuitOpens = %d, want 2", got)
	}
	if got := c.CircuitState("paystack"); got != metrics.CircuitOpen {
		t.Errorf("CircuitState = %v, want open", got)
	}
}

func TestCollectorLayerCounters(t *testing.T) {
	c := NewCollector()
	c.RecordCacheGet("L1", true, time.Millisecond)
	c.RecordCacheGet("L1", false, time.Millisecond)
	c.RecordCacheSet("L1", false, time.Millisecond)
	c.RecordWriteDropped("L1")

	lm := c.Layer("L1")
	if lm == nil {
		t.Fatal("expected metrics for L1")
	}
	if lm.Hits != 1 || lm.Misses != 1 || lm.Sets != 1 || lm.SetErrors != 1 || lm.DroppedWrites != 1 {
		t.Errorf("unexpected layer metrics %+v", *lm)
	}
	if c.Layer("L2") != nil {
		t.Error("L2 was never reported")
	}
}

func TestCollectorReset(t *testing.T) {
	c := NewCollector()
	c.RecordGatewayCall("initialize_charge", metrics.OutcomeOK, time.Second)
	c.RecordTransition("deposit", "completed")
	c.RecordHTTPRequest("GET", "/api/balance", 200, time.Millisecond)
	c.Reset()

	if c.GatewayCalls("initialize_charge", metrics.OutcomeOK) != 0 ||
		c.Transitions("deposit", "completed") != 0 ||
		c.HTTPRequests("GET", "/api/balance", 200) != 0 {
		t.Error("Reset did not clear counters")
	}
}
