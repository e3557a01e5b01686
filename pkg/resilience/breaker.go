package resilience

import (
	"context"
	"errors"
	"time"

	"money-saver/pkg/logging"
	"money-saver/pkg/metrics"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

var (
	// ErrCircuitOpen is returned when the breaker refuses a call.
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")
	// ErrTimeout is returned when a call exceeds the configured timeout.
	ErrTimeout = errors.New("resilience: operation timed out")
)

// Breaker protects calls to a dependency with a circuit breaker and a per-call timeout.
type Breaker struct {
	name    string
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
	metrics metrics.Collector
	logger  *logging.Logger
}

// NewBreaker creates a breaker called name. collector and logger may be nil.
func NewBreaker(name string, config Config, collector metrics.Collector, logger *logging.Logger) *Breaker {
	b := &Breaker{
		name:    name,
		timeout: config.Timeout,
		metrics: metrics.OrNoOp(collector),
		logger:  logging.OrNoOp(logger).Named("breaker").With(zap.String("breaker", name)),
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if config.ReadyToTrip != nil {
				return config.ReadyToTrip(Counts{
					Requests:             counts.Requests,
					TotalSuccesses:       counts.TotalSuccesses,
					TotalFailures:        counts.TotalFailures,
					ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
					ConsecutiveFailures:  counts.ConsecutiveFailures,
				})
			}
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			b.logger.Warn("circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			b.metrics.RecordCircuitState(name, toCircuitState(to))
		},
	}
	if config.IsFailure != nil {
		isFailure := config.IsFailure
		settings.IsSuccessful = func(err error) bool {
			return err == nil || !isFailure(err)
		}
	}

	b.cb = gobreaker.NewCircuitBreaker(settings)
	return b
}

// Name returns the breaker name.
func (b *Breaker) Name() string {
	return b.name
}

// State reports the current breaker state.
func (b *Breaker) State() metrics.CircuitState {
	return toCircuitState(b.cb.State())
}

// Execute runs fn through the breaker. The context handed to fn carries the
// configured timeout. An open breaker yields ErrCircuitOpen without calling fn;
// an exceeded timeout yields ErrTimeout. Other errors from fn are returned as-is.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn(ctx)
	})
	if err == nil {
		return nil
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		b.logger.Debug("call rejected by open circuit")
		return ErrCircuitOpen
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		b.logger.Warn("call timed out", zap.Duration("timeout", b.timeout))
		return ErrTimeout
	}
	return err
}

func toCircuitState(s gobreaker.State) metrics.CircuitState {
	switch s {
	case gobreaker.StateOpen:
		return metrics.CircuitOpen
	case gobreaker.StateHalfOpen:
		return metrics.CircuitHalfOpen
	default:
		return metrics.CircuitClosed
	}
}
