package resilience

import (
	"time"
)

// Config configures a Breaker.
type Config struct {
	// Timeout bounds every call made through the breaker. Zero means no timeout.
	Timeout time.Duration

	// MaxRequests is the number of requests allowed through while half-open. Default: 1
	MaxRequests uint32

	// Interval is the cyclic period of the closed state after which counts are cleared.
	// Zero never clears.
	Interval time.Duration

	// OpenTimeout is how long the breaker stays open before going half-open. Default: 60s
	OpenTimeout time.Duration

	// ReadyToTrip decides, from the current counts, whether to open the breaker.
	// If nil the breaker opens after 5 consecutive failures.
	ReadyToTrip func(counts Counts) bool

	// IsFailure decides whether an error returned by the protected call counts
	// against the breaker. If nil every non-nil error is a failure.
	IsFailure func(err error) bool
}

// Counts holds the numbers of requests and their successes/failures.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// DefaultConfig suits cache layers: short timeout, trips on a 15% failure rate
// once at least 20 requests have been seen.
func DefaultConfig() Config {
	return Config{
		Timeout:     2 * time.Second,
		MaxRequests: 5,
		Interval:    60 * time.Second,
		OpenTimeout: 30 * time.Second,
		ReadyToTrip: func(counts Counts) bool {
			if counts.Requests < 20 {
				return false
			}
			failureRate := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRate >= 0.15
		},
	}
}

// GatewayConfig suits the payment processor: a generous per-call timeout and
// a breaker that opens after 5 consecutive failures.
func GatewayConfig() Config {
	return Config{
		Timeout:     15 * time.Second,
		MaxRequests: 1,
		Interval:    2 * time.Minute,
		OpenTimeout: 30 * time.Second,
		ReadyToTrip: func(counts Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
}

// WithTimeout returns a copy of the config with the specified timeout.
func (c Config) WithTimeout(timeout time.Duration) Config {
	c.Timeout = timeout
	return c
}

// WithOpenTimeout returns a copy of the config with the specified open-state duration.
func (c Config) WithOpenTimeout(timeout time.Duration) Config {
	c.OpenTimeout = timeout
	return c
}

// WithFailureFilter returns a copy of the config that only counts errors matching isFailure.
func (c Config) WithFailureFilter(isFailure func(err error) bool) Config {
	c.IsFailure = isFailure
	return c
}
