package bloom

import (
	"context"
	"errors"
	"sync"
	"time"

	"money-saver/pkg/cache"

	"github.com/bits-and-blooms/bloom/v3"
)

// Layer puts a bloom filter in front of another layer. Keys that were never
// written through this process are answered as misses without a round trip.
// After a restart the filter is empty, so the first lookup of every key goes
// to the loader again and re-arms the filter.
type Layer struct {
	next     cache.Layer
	mu       sync.RWMutex
	filter   *bloom.BloomFilter
	capacity uint
	fpRate   float64

	queries        uint64
	rejected       uint64
	falsePositives uint64
}

// Stats reports filter effectiveness.
type Stats struct {
	Queries        uint64
	Rejected       uint64
	FalsePositives uint64
	Capacity       uint
}

// New wraps next with a filter sized for expectedItems at falsePositiveRate.
func New(next cache.Layer, expectedItems uint, falsePositiveRate float64) *Layer {
	if expectedItems == 0 {
		expectedItems = 10000
	}
	if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		falsePositiveRate = 0.01
	}
	return &Layer{
		next:     next,
		filter:   bloom.NewWithEstimates(expectedItems, falsePositiveRate),
		capacity: expectedItems,
		fpRate:   falsePositiveRate,
	}
}

// Name returns "bloom(<inner>)".
func (l *Layer) Name() string {
	return "bloom(" + l.next.Name() + ")"
}

// Get consults the filter before the wrapped layer.
func (l *Layer) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.queries++
	if !l.filter.TestString(key) {
		l.rejected++
		l.mu.Unlock()
		return nil, cache.ErrMiss
	}
	l.mu.Unlock()

	value, err := l.next.Get(ctx, key)
	if cache.IsMiss(err) {
		l.mu.Lock()
		l.falsePositives++
		l.mu.Unlock()
	}
	return value, err
}

// Set records key in the filter, then writes through.
func (l *Layer) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	l.filter.AddString(key)
	l.mu.Unlock()

	return l.next.Set(ctx, key, value, ttl)
}

// Delete writes through. Bloom filters cannot forget a key, so the next Get
// of a deleted key still reaches the wrapped layer.
func (l *Layer) Delete(ctx context.Context, key string) error {
	return l.next.Delete(ctx, key)
}

// TTL reports the wrapped layer's remaining lifetime for key.
func (l *Layer) TTL(ctx context.Context, key string) (time.Duration, error) {
	r, ok := l.next.(cache.TTLReader)
	if !ok {
		return 0, errors.ErrUnsupported
	}
	return r.TTL(ctx, key)
}

// Close closes the wrapped layer.
func (l *Layer) Close() error {
	return l.next.Close()
}

// Reset empties the filter and its counters.
func (l *Layer) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.filter = bloom.NewWithEstimates(l.capacity, l.fpRate)
	l.queries, l.rejected, l.falsePositives = 0, 0, 0
}

// Stats returns a snapshot of the counters.
func (l *Layer) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Stats{
		Queries:        l.queries,
		Rejected:       l.rejected,
		FalsePositives: l.falsePositives,
		Capacity:       uint(l.filter.Cap()),
	}
}
