package chain

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"money-saver/pkg/cache"
	"money-saver/pkg/cache/mock"
	metricsmem "money-saver/pkg/metrics/memory"
)

func newTestChain(t *testing.T, config Config, layers ...cache.Layer) *Chain {
	t.Helper()
	c, err := New(config, layers...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func flush(t *testing.T, c *Chain) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}

func TestNewRequiresLayers(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for empty chain")
	}
}

func TestChainString(t *testing.T) {
	c := newTestChain(t, Config{}, mock.NewLayer("memory"), mock.NewLayer("redis"))
	if c.String() != "chain(memory -> redis)" {
		t.Errorf("String = %q", c.String())
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d", c.Len())
	}
}

func TestGetFallsThroughAndWarms(t *testing.T) {
	l1 := mock.NewLayer("memory")
	l2 := mock.NewLayer("redis")
	ctx := context.Background()
	_ = l2.Set(ctx, "banks:nigeria", []byte("[]"), time.Hour)

	c := newTestChain(t, Config{}, l1, l2)

	value, idx, err := c.Get(ctx, "banks:nigeria")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if idx != 1 || string(value) != "[]" {
		t.Errorf("Get = %q from layer %d", value, idx)
	}

	flush(t, c)
	if _, _, ok := l1.Stored("banks:nigeria"); !ok {
		t.Error("L1 should have been warmed")
	}

	_, idx, _ = c.Get(ctx, "banks:nigeria")
	if idx != 0 {
		t.Errorf("second Get should hit L1, hit layer %d", idx)
	}
}

func TestGetSkipsFailingLayer(t *testing.T) {
	broken := mock.NewFailingLayer("redis", errors.New("connection refused"))
	l2 := mock.NewLayer("postgres-backed")
	_ = l2.Set(context.Background(), "k", []byte("v"), 0)

	c := newTestChain(t, Config{}, broken, l2)

	value, idx, err := c.Get(context.Background(), "k")
	if err != nil || idx != 1 || string(value) != "v" {
		t.Fatalf("Get = %q, %d, %v", value, idx, err)
	}
}

func TestGetAllMiss(t *testing.T) {
	c := newTestChain(t, Config{}, mock.NewLayer("memory"), mock.NewLayer("redis"))
	if _, _, err := c.Get(context.Background(), "missing"); !errors.Is(err, cache.ErrMiss) {
		t.Fatalf("expected ErrMiss, got %v", err)
	}
}

func TestSetAppliesTTLStrategy(t *testing.T) {
	l1 := mock.NewLayer("memory")
	l2 := mock.NewLayer("redis")
	c := newTestChain(t, Config{TTL: DecayingTTL{Factor: 0.25}}, l1, l2)

	if err := c.Set(context.Background(), "k", []byte("v"), 24*time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ttl, _ := l1.Stored("k"); ttl != 6*time.Hour {
		t.Errorf("L1 ttl = %v, want 6h", ttl)
	}
	if _, ttl, _ := l2.Stored("k"); ttl != 24*time.Hour {
		t.Errorf("L2 ttl = %v, want 24h", ttl)
	}
}

func TestSetJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	l1 := mock.NewLayer("memory")
	l2 := mock.NewFailingLayer("redis", boom)
	c := newTestChain(t, Config{}, l1, l2)

	err := c.Set(context.Background(), "k", []byte("v"), time.Minute)
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined boom, got %v", err)
	}
	if _, _, ok := l1.Stored("k"); !ok {
		t.Error("healthy layer should still be written")
	}
}

func TestDelete(t *testing.T) {
	l1 := mock.NewLayer("memory")
	l2 := mock.NewLayer("redis")
	c := newTestChain(t, Config{}, l1, l2)
	ctx := context.Background()

	_ = c.Set(ctx, "k", []byte("v"), time.Minute)
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, _, err := c.Get(ctx, "k"); !errors.Is(err, cache.ErrMiss) {
		t.Errorf("expected miss after delete, got %v", err)
	}
}

func TestLoadDeduplicatesConcurrentMisses(t *testing.T) {
	c := newTestChain(t, Config{}, mock.NewLayer("memory"))

	var calls int32
	release := make(chan struct{})
	loader := func(ctx context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return []byte("loaded"), nil
	}

	var wg sync.WaitGroup
	results := make([]string, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.Load(context.Background(), "banks:nigeria", time.Hour, loader)
			if err != nil {
				t.Errorf("Load: %v", err)
				return
			}
			results[i] = string(v)
		}(i)
	}

	time.Sleep(30 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("loader called %d times, want 1", n)
	}
	for i, r := range results {
		if r != "loaded" {
			t.Errorf("result %d = %q", i, r)
		}
	}

	if _, err := c.Load(context.Background(), "banks:nigeria", time.Hour, loader); err != nil {
		t.Fatalf("cached Load: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("cached value should be served, loader calls = %d", n)
	}
}

func TestLoadPropagatesLoaderError(t *testing.T) {
	l1 := mock.NewLayer("memory")
	c := newTestChain(t, Config{}, l1)
	boom := errors.New("gateway down")

	_, err := c.Load(context.Background(), "k", time.Hour, func(context.Context) ([]byte, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected loader error, got %v", err)
	}
	if l1.SetCalls() != 0 {
		t.Error("failed load must not be cached")
	}
}

func TestChainRecordsMetrics(t *testing.T) {
	collector := metricsmem.NewCollector()
	l1 := mock.NewLayer("memory")
	c := newTestChain(t, Config{Metrics: collector}, l1)
	ctx := context.Background()

	_, _, _ = c.Get(ctx, "k")
	_ = c.Set(ctx, "k", []byte("v"), time.Minute)
	_, _, _ = c.Get(ctx, "k")

	lm := collector.Layer("memory")
	if lm == nil || lm.Hits != 1 || lm.Misses != 1 || lm.Sets != 1 {
		t.Errorf("layer metrics = %+v", lm)
	}
}

func TestGetHonoursCancelledContext(t *testing.T) {
	l1 := mock.NewLayer("memory")
	c := newTestChain(t, Config{}, l1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := c.Get(ctx, "k"); !errors.Is(err, context.Canceled) {
		t.Errorf("Get = %v, want context.Canceled", err)
	}
	if l1.GetCalls() != 0 {
		t.Error("cancelled Get should not reach layers")
	}
}

func TestWarmKeepsRemainingTTL(t *testing.T) {
	l1 := mock.NewLayer("memory")
	l2 := mock.NewLayer("redis")
	ctx := context.Background()
	_ = l2.Set(ctx, "k", []byte("v"), 2*time.Minute)

	c := newTestChain(t, Config{TTL: DecayingTTL{Factor: 0.5}}, l1, l2)
	if _, _, err := c.Get(ctx, "k"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	flush(t, c)

	if _, ttl, ok := l1.Stored("k"); !ok || ttl != time.Minute {
		t.Errorf("L1 stored=%v ttl=%v, want 1m", ok, ttl)
	}
}
