package writer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"money-saver/pkg/cache"
	"money-saver/pkg/logging"
	"money-saver/pkg/metrics"

	"go.uber.org/zap"
)

var (
	// ErrQueueFull is returned when the queue stayed full for MaxWait and the write was dropped.
	ErrQueueFull = errors.New("writer: queue full, write dropped")

	// ErrClosed is returned by Enqueue after Close.
	ErrClosed = errors.New("writer: closed")
)

// Config configures an AsyncWriter.
type Config struct {
	// QueueSize bounds pending writes. Default: 256
	QueueSize int

	// Workers is the number of goroutines applying writes. Default: 2
	Workers int

	// MaxWait is how long Enqueue waits on a full queue before dropping.
	// Zero drops immediately.
	MaxWait time.Duration

	// WriteTimeout bounds each Set against the layer. Default: 2s
	WriteTimeout time.Duration

	// DepthInterval is how often queue depth is reported. Default: 5s
	DepthInterval time.Duration
}

// Stats is a point-in-time view of an AsyncWriter.
type Stats struct {
	Pending int64
	Written int64
	Dropped int64
	Failed  int64
}

type writeOp struct {
	key   string
	value []byte
	ttl   time.Duration
}

// AsyncWriter applies cache writes in the background so that warming an upper
// layer never delays the request that found the value lower down.
type AsyncWriter struct {
	layer   cache.Layer
	config  Config
	queue   chan writeOp
	metrics metrics.Collector
	logger  *logging.Logger

	mu     sync.RWMutex // guards closed against concurrent sends on queue
	closed bool
	wg     sync.WaitGroup
	stop   chan struct{}

	pending int64
	written int64
	dropped int64
	failed  int64
}

// New starts an AsyncWriter for layer.
func New(layer cache.Layer, config Config, collector metrics.Collector, logger *logging.Logger) *AsyncWriter {
	if config.QueueSize <= 0 {
		config.QueueSize = 256
	}
	if config.Workers <= 0 {
		config.Workers = 2
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 2 * time.Second
	}
	if config.DepthInterval <= 0 {
		config.DepthInterval = 5 * time.Second
	}

	w := &AsyncWriter{
		layer:   layer,
		config:  config,
		queue:   make(chan writeOp, config.QueueSize),
		metrics: metrics.OrNoOp(collector),
		logger:  logging.OrNoOp(logger).Named("writer").With(zap.String("layer", layer.Name())),
		stop:    make(chan struct{}),
	}

	for i := 0; i < config.Workers; i++ {
		w.wg.Add(1)
		go w.work()
	}
	w.wg.Add(1)
	go w.reportDepth()

	return w
}

// Enqueue schedules a write. It never blocks longer than MaxWait.
func (w *AsyncWriter) Enqueue(key string, value []byte, ttl time.Duration) error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		return ErrClosed
	}

	op := writeOp{key: key, value: value, ttl: ttl}
	atomic.AddInt64(&w.pending, 1)

	select {
	case w.queue <- op:
		return nil
	default:
	}

	if w.config.MaxWait > 0 {
		timer := time.NewTimer(w.config.MaxWait)
		defer timer.Stop()
		select {
		case w.queue <- op:
			return nil
		case <-timer.C:
		}
	}

	atomic.AddInt64(&w.pending, -1)
	atomic.AddInt64(&w.dropped, 1)
	w.metrics.RecordWriteDropped(w.layer.Name())
	return ErrQueueFull
}

func (w *AsyncWriter) work() {
	defer w.wg.Done()
	for op := range w.queue {
		w.apply(op)
	}
}

func (w *AsyncWriter) apply(op writeOp) {
	defer atomic.AddInt64(&w.pending, -1)

	ctx, cancel := context.WithTimeout(context.Background(), w.config.WriteTimeout)
	defer cancel()

	start := time.Now()
	err := w.layer.Set(ctx, op.key, op.value, op.ttl)
	w.metrics.RecordAsyncWrite(w.layer.Name(), err == nil, time.Since(start))

	if err != nil {
		atomic.AddInt64(&w.failed, 1)
		w.logger.Debug("warm-up write failed", zap.String("key", op.key), zap.Error(err))
		return
	}
	atomic.AddInt64(&w.written, 1)
}

func (w *AsyncWriter) reportDepth() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.config.DepthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			w.metrics.RecordQueueDepth(w.layer.Name(), len(w.queue))
		case <-w.stop:
			return
		}
	}
}

// Flush waits until every accepted write has been applied or ctx is done.
func (w *AsyncWriter) Flush(ctx context.Context) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for atomic.LoadInt64(&w.pending) > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Close stops accepting writes, applies what is queued and waits for the workers.
func (w *AsyncWriter) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.queue)
	close(w.stop)
	w.mu.Unlock()

	w.wg.Wait()
	return nil
}

// Stats returns current counters.
func (w *AsyncWriter) Stats() Stats {
	return Stats{
		Pending: atomic.LoadInt64(&w.pending),
		Written: atomic.LoadInt64(&w.written),
		Dropped: atomic.LoadInt64(&w.dropped),
		Failed:  atomic.LoadInt64(&w.failed),
	}
}
