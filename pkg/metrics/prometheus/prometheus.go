package prometheus

import (
	"strconv"
	"time"

	"money-saver/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector implements metrics.Collector on top of client_golang vectors.
type Collector struct {
	namespace string

	// Gateway
	gatewayCalls   *prometheus.CounterVec
	gatewayLatency *prometheus.HistogramVec

	// Ledger
	transitions *prometheus.CounterVec

	// Circuit breaker
	circuitOpens *prometheus.CounterVec
	circuitState *prometheus.GaugeVec

	// Cache
	cacheHits    *prometheus.CounterVec
	cacheMisses  *prometheus.CounterVec
	cacheSets    *prometheus.CounterVec
	cacheErrors  *prometheus.CounterVec
	cacheLatency *prometheus.HistogramVec

	// Async writer
	queueDepth    *prometheus.GaugeVec
	droppedWrites *prometheus.CounterVec
	asyncWrites   *prometheus.CounterVec

	// HTTP
	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
}

// NewCollector creates the vectors under namespace. Call Register before use.
func NewCollector(namespace string) *Collector {
	return &Collector{
		namespace: namespace,
		gatewayCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gateway_calls_total",
				Help:      "Payment gateway calls by operation and outcome",
			},
			[]string{"op", "outcome"},
		),
		gatewayLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "gateway_call_duration_seconds",
				Help:      "Payment gateway call latency",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15},
			},
			[]string{"op"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transaction_transitions_total",
				Help:      "Ledger status transitions by transaction type and new status",
			},
			[]string{"type", "status"},
		),
		circuitOpens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_opens_total",
				Help:      "Total number of circuit breaker opens",
			},
			[]string{"breaker"},
		),
		circuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_state",
				Help:      "Current circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
			[]string{"breaker"},
		),
		cacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Cache hits per layer",
			},
			[]string{"layer"},
		),
		cacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Cache misses per layer",
			},
			[]string{"layer"},
		),
		cacheSets: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_sets_total",
				Help:      "Cache set operations per layer",
			},
			[]string{"layer"},
		),
		cacheErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_errors_total",
				Help:      "Cache errors per layer and operation",
			},
			[]string{"layer", "operation"},
		),
		cacheLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "cache_duration_seconds",
				Help:      "Cache operation latency",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 15), // 0.1ms to ~3s
			},
			[]string{"layer", "operation"},
		),
		queueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "warmup_queue_depth",
				Help:      "Current warm-up writer queue depth per layer",
			},
			[]string{"layer"},
		),
		droppedWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "warmup_dropped_total",
				Help:      "Warm-up writes dropped per layer",
			},
			[]string{"layer"},
		),
		asyncWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "warmup_writes_total",
				Help:      "Warm-up writes per layer and status",
			},
			[]string{"layer", "status"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		httpLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// Register registers every vector with registerer.
func (c *Collector) Register(registerer prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		c.gatewayCalls,
		c.gatewayLatency,
		c.transitions,
		c.circuitOpens,
		c.circuitState,
		c.cacheHits,
		c.cacheMisses,
		c.cacheSets,
		c.cacheErrors,
		c.cacheLatency,
		c.queueDepth,
		c.droppedWrites,
		c.asyncWrites,
		c.httpRequests,
		c.httpLatency,
	}
	for _, collector := range collectors {
		if err := registerer.Register(collector); err != nil {
			return err
		}
	}
	return nil
}

// RecordGatewayCall records one processor round trip.
func (c *Collector) RecordGatewayCall(op string, outcome metrics.Outcome, duration time.Duration) {
	c.gatewayCalls.WithLabelValues(op, string(outcome)).Inc()
	c.gatewayLatency.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordTransition records a ledger status change.
func (c *Collector) RecordTransition(txType, status string) {
	c.transitions.WithLabelValues(txType, status).Inc()
}

// RecordCircuitState records the current circuit breaker state.
func (c *Collector) RecordCircuitState(name string, state metrics.CircuitState) {
	c.circuitState.WithLabelValues(name).Set(float64(state))
	if state == metrics.CircuitOpen {
		c.circuitOpens.WithLabelValues(name).Inc()
	}
}

// RecordCacheGet records a cache lookup.
func (c *Collector) RecordCacheGet(layer string, hit bool, duration time.Duration) {
	if hit {
		c.cacheHits.WithLabelValues(layer).Inc()
	} else {
		c.cacheMisses.WithLabelValues(layer).Inc()
	}
	c.cacheLatency.WithLabelValues(layer, "get").Observe(duration.Seconds())
}

// RecordCacheSet records a cache write.
func (c *Collector) RecordCacheSet(layer string, success bool, duration time.Duration) {
	c.cacheSets.WithLabelValues(layer).Inc()
	if !success {
		c.cacheErrors.WithLabelValues(layer, "set").Inc()
	}
	c.cacheLatency.WithLabelValues(layer, "set").Observe(duration.Seconds())
}

// RecordQueueDepth records the current warm-up queue depth.
func (c *Collector) RecordQueueDepth(layer string, depth int) {
	c.queueDepth.WithLabelValues(layer).Set(float64(depth))
}

// RecordWriteDropped records a dropped warm-up write.
func (c *Collector) RecordWriteDropped(layer string) {
	c.droppedWrites.WithLabelValues(layer).Inc()
}

// RecordAsyncWrite records a completed warm-up write.
func (c *Collector) RecordAsyncWrite(layer string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	c.asyncWrites.WithLabelValues(layer, status).Inc()
	c.cacheLatency.WithLabelValues(layer, "warmup").Observe(duration.Seconds())
}

// RecordHTTPRequest records a served request.
func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}
