package mock

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"money-saver/pkg/cache"
)

// Layer is a scriptable cache.Layer for tests. Hooks override behaviour; with
// no hook set it behaves like a plain map without expiry.
type Layer struct {
	GetFunc    func(ctx context.Context, key string) ([]byte, error)
	SetFunc    func(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeleteFunc func(ctx context.Context, key string) error
	CloseFunc  func() error

	name string

	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration

	getCalls    int64
	setCalls    int64
	deleteCalls int64
	closeCalls  int64
}

// NewLayer returns a map-backed layer called name.
func NewLayer(name string) *Layer {
	return &Layer{
		name: name,
		data: make(map[string][]byte),
		ttls: make(map[string]time.Duration),
	}
}

// NewFailingLayer returns a layer whose every operation returns err.
func NewFailingLayer(name string, err error) *Layer {
	l := NewLayer(name)
	l.GetFunc = func(context.Context, string) ([]byte, error) { return nil, err }
	l.SetFunc = func(context.Context, string, []byte, time.Duration) error { return err }
	l.DeleteFunc = func(context.Context, string) error { return err }
	return l
}

// Get implements cache.Layer.
func (l *Layer) Get(ctx context.Context, key string) ([]byte, error) {
	atomic.AddInt64(&l.getCalls, 1)
	if l.GetFunc != nil {
		return l.GetFunc(ctx, key)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.data[key]
	if !ok {
		return nil, cache.ErrMiss
	}
	return v, nil
}

// Set implements cache.Layer.
func (l *Layer) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	atomic.AddInt64(&l.setCalls, 1)
	if l.SetFunc != nil {
		return l.SetFunc(ctx, key, value, ttl)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.data[key] = value
	l.ttls[key] = ttl
	return nil
}

// Delete implements cache.Layer.
func (l *Layer) Delete(ctx context.Context, key string) error {
	atomic.AddInt64(&l.deleteCalls, 1)
	if l.DeleteFunc != nil {
		return l.DeleteFunc(ctx, key)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.data, key)
	delete(l.ttls, key)
	return nil
}

// Name implements cache.Layer.
func (l *Layer) Name() string {
	return l.name
}

// Close implements cache.Layer.
func (l *Layer) Close() error {
	atomic.AddInt64(&l.closeCalls, 1)
	if l.CloseFunc != nil {
		return l.CloseFunc()
	}
	return nil
}

// Stored returns what the default map holds for key and the ttl it was written with.
func (l *Layer) Stored(key string) ([]byte, time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.data[key]
	return v, l.ttls[key], ok
}

// GetCalls returns the number of Get calls.
func (l *Layer) GetCalls() int { return int(atomic.LoadInt64(&l.getCalls)) }

// SetCalls returns the number of Set calls.
func (l *Layer) SetCalls() int { return int(atomic.LoadInt64(&l.setCalls)) }

// DeleteCalls returns the number of Delete calls.
func (l *Layer) DeleteCalls() int { return int(atomic.LoadInt64(&l.deleteCalls)) }

// CloseCalls returns the number of Close calls.
func (l *Layer) CloseCalls() int { return int(atomic.LoadInt64(&l.closeCalls)) }

// TTL implements cache.TTLReader with the ttl key was written with. A zero
// write ttl reads as no expiry.
func (l *Layer) TTL(ctx context.Context, key string) (time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.data[key]; !ok {
		return 0, cache.ErrMiss
	}
	if ttl := l.ttls[key]; ttl > 0 {
		return ttl, nil
	}
	return -1, nil
}
