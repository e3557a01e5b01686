package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"money-saver/pkg/cache"
	"money-saver/pkg/logging"
	"money-saver/pkg/metrics"
	"money-saver/pkg/resilience"
	"money-saver/pkg/writer"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Loader produces the value for a key on a full miss.
type Loader func(ctx context.Context) ([]byte, error)

// Config configures a Chain. Zero values pick sensible defaults.
type Config struct {
	// TTL spreads a write's TTL across layers. Default: UniformTTL
	TTL TTLStrategy

	// FirstLayerTimeout bounds calls to layer 0. Default: 100ms
	FirstLayerTimeout time.Duration

	// LayerTimeout bounds calls to deeper layers. Default: 1s
	LayerTimeout time.Duration

	// Writer configures the warm-up writer of every layer.
	Writer writer.Config

	Metrics metrics.Collector
	Logger  *logging.Logger
}

type tier struct {
	layer   cache.Layer
	breaker *resilience.Breaker
	warmer  *writer.AsyncWriter
}

// Chain reads through ordered cache layers, fastest first. A hit in a deeper
// layer is copied into the faster layers in the background. Each layer sits
// behind its own circuit breaker so an unreachable Redis degrades to misses.
type Chain struct {
	tiers   []tier
	ttl     TTLStrategy
	sf      singleflight.Group
	metrics metrics.Collector
	logger  *logging.Logger
}

// New builds a chain over layers, ordered L1 to LN.
func New(config Config, layers ...cache.Layer) (*Chain, error) {
	if len(layers) == 0 {
		return nil, errors.New("chain: at least one layer required")
	}
	if config.TTL == nil {
		config.TTL = UniformTTL{}
	}
	if config.FirstLayerTimeout <= 0 {
		config.FirstLayerTimeout = 100 * time.Millisecond
	}
	if config.LayerTimeout <= 0 {
		config.LayerTimeout = time.Second
	}

	c := &Chain{
		ttl:     config.TTL,
		metrics: metrics.OrNoOp(config.Metrics),
		logger:  logging.OrNoOp(config.Logger).Named("chain"),
	}

	for i, layer := range layers {
		timeout := config.LayerTimeout
		if i == 0 {
			timeout = config.FirstLayerTimeout
		}
		breakerConfig := resilience.DefaultConfig().
			WithTimeout(timeout).
			WithFailureFilter(cache.IsFailure)

		c.tiers = append(c.tiers, tier{
			layer:   layer,
			breaker: resilience.NewBreaker("cache:"+layer.Name(), breakerConfig, c.metrics, c.logger),
			warmer:  writer.New(layer, config.Writer, c.metrics, c.logger),
		})
	}
	return c, nil
}

// Get walks the layers and returns the first hit together with the index of
// the layer that answered. It returns cache.ErrMiss when every layer missed or failed.
func (c *Chain) Get(ctx context.Context, key string) ([]byte, int, error) {
	for i, t := range c.tiers {
		if err := ctx.Err(); err != nil {
			return nil, -1, err
		}

		value, err := c.get(ctx, t, key)
		if err != nil {
			if !cache.IsMiss(err) {
				c.logger.Debug("layer lookup failed",
					zap.String("layer", t.layer.Name()),
					zap.String("key", key),
					zap.Error(err),
				)
			}
			continue
		}

		c.warm(ctx, t, key, value, i)
		return value, i, nil
	}
	return nil, -1, cache.ErrMiss
}

func (c *Chain) get(ctx context.Context, t tier, key string) ([]byte, error) {
	start := time.Now()
	var value []byte
	err := t.breaker.Execute(ctx, func(ctx context.Context) error {
		v, err := t.layer.Get(ctx, key)
		value = v
		return err
	})
	c.metrics.RecordCacheGet(t.layer.Name(), err == nil, time.Since(start))
	return value, err
}

// warm copies a value found at hitIndex into every faster layer. The copies
// never outlive the entry they came from: the remaining lifetime is read from
// the answering layer and the TTL strategy is applied to it. When the layer
// cannot report a lifetime, nothing is copied.
func (c *Chain) warm(ctx context.Context, from tier, key string, value []byte, hitIndex int) {
	if hitIndex == 0 {
		return
	}
	remaining, ok := c.remainingTTL(ctx, from, key)
	if !ok {
		return
	}
	for i := hitIndex - 1; i >= 0; i-- {
		ttl := c.ttl.TTL(i, len(c.tiers), remaining)
		if ttl > remaining {
			ttl = remaining
		}
		if err := c.tiers[i].warmer.Enqueue(key, value, ttl); err != nil {
			c.logger.Debug("warm-up skipped",
				zap.String("layer", c.tiers[i].layer.Name()),
				zap.Error(err),
			)
		}
	}
}

// remainingTTL asks t how long key has left. Keys without expiry are copied
// for an hour.
func (c *Chain) remainingTTL(ctx context.Context, t tier, key string) (time.Duration, bool) {
	reader, ok := t.layer.(cache.TTLReader)
	if !ok {
		return 0, false
	}
	var remaining time.Duration
	err := t.breaker.Execute(ctx, func(ctx context.Context) error {
		d, err := reader.TTL(ctx, key)
		remaining = d
		return err
	})
	if err != nil {
		c.logger.Debug("remaining ttl unknown, not warming",
			zap.String("layer", t.layer.Name()),
			zap.String("key", key),
			zap.Error(err),
		)
		return 0, false
	}
	if remaining < 0 {
		return time.Hour, true
	}
	return remaining, remaining > 0
}

// Set writes value to every layer. All layers are attempted; failures are joined.
func (c *Chain) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var errs []error
	for i, t := range c.tiers {
		layerTTL := c.ttl.TTL(i, len(c.tiers), ttl)
		start := time.Now()
		err := t.breaker.Execute(ctx, func(ctx context.Context) error {
			return t.layer.Set(ctx, key, value, layerTTL)
		})
		c.metrics.RecordCacheSet(t.layer.Name(), err == nil, time.Since(start))
		if err != nil {
			errs = append(errs, cache.WrapError(err, t.layer.Name(), "set"))
		}
	}
	return errors.Join(errs...)
}

// Delete removes key from every layer.
func (c *Chain) Delete(ctx context.Context, key string) error {
	var errs []error
	for _, t := range c.tiers {
		err := t.breaker.Execute(ctx, func(ctx context.Context) error {
			return t.layer.Delete(ctx, key)
		})
		if err != nil {
			errs = append(errs, cache.WrapError(err, t.layer.Name(), "delete"))
		}
	}
	return errors.Join(errs...)
}

// Load is a read-through Get. On a full miss it runs load once per key across
// concurrent callers, stores the result in every layer and returns it. A failed
// store is logged and does not fail the load.
func (c *Chain) Load(ctx context.Context, key string, ttl time.Duration, load Loader) ([]byte, error) {
	if value, _, err := c.Get(ctx, key); err == nil {
		return value, nil
	} else if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	v, err, _ := c.sf.Do(key, func() (interface{}, error) {
		value, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.Set(ctx, key, value, ttl); err != nil {
			c.logger.Warn("storing loaded value failed", zap.String("key", key), zap.Error(err))
		}
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Flush waits for pending warm-up writes.
func (c *Chain) Flush(ctx context.Context) error {
	for _, t := range c.tiers {
		if err := t.warmer.Flush(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close stops the warm-up writers, then closes the layers.
func (c *Chain) Close() error {
	var errs []error
	for _, t := range c.tiers {
		if err := t.warmer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, t := range c.tiers {
		if err := t.layer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of layers.
func (c *Chain) Len() int {
	return len(c.tiers)
}

// String returns "chain(memory -> redis)".
func (c *Chain) String() string {
	names := make([]string, len(c.tiers))
	for i, t := range c.tiers {
		names[i] = t.layer.Name()
	}
	return fmt.Sprintf("chain(%s)", strings.Join(names, " -> "))
}
