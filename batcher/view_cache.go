package batcher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"shop-api/logger"
	"shop-api/metrics"
)

const (
	DefaultFlushInterval = 5 * time.Second
	DefaultMaxBufferSize = 1000
	DefaultFlushTimeout  = 10 * time.Second
)

// Options configures a ViewCache. Zero values take the defaults above.
type Options struct {
	FlushInterval time.Duration
	MaxBufferSize int
	FlushTimeout  time.Duration

	// OnError is called after a batch failed to persist and was dropped.
	OnError func(err error, dropped int)
}

// ViewCache buffers product views in memory and writes them to storage in
// batches (write-behind). A failed batch is dropped, never re-queued.
type ViewCache struct {
	persister ViewPersister
	opts      Options
	now       func() time.Time

	mu       sync.Mutex
	events   []ViewEvent
	flushing bool

	// background flushes started by RecordView
	inflight sync.WaitGroup
	running  atomic.Int32

	timerMu   sync.Mutex
	stopCh    chan struct{}
	timerDone chan struct{}
}

// NewViewCache returns an empty ViewCache writing batches to persister.
func NewViewCache(persister ViewPersister, opts Options) *ViewCache {
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = DefaultFlushInterval
	}
	if opts.MaxBufferSize <= 0 {
		opts.MaxBufferSize = DefaultMaxBufferSize
	}
	if opts.FlushTimeout <= 0 {
		opts.FlushTimeout = DefaultFlushTimeout
	}
	return &ViewCache{
		persister: persister,
		opts:      opts,
		now:       time.Now,
		events:    make([]ViewEvent, 0, opts.MaxBufferSize),
	}
}

// RecordView appends a view to the buffer. It never performs I/O. When the
// buffer reaches MaxBufferSize the batch is detached before RecordView returns
// and persisted on a background goroutine.
func (c *ViewCache) RecordView(productID int, userID *uint, ipAddress *string) {
	c.mu.Lock()
	c.events = append(c.events, ViewEvent{
		ProductID: productID,
		UserID:    userID,
		IPAddress: ipAddress,
		ViewedAt:  c.now(),
	})
	var batch []ViewEvent
	if len(c.events) >= c.opts.MaxBufferSize {
		batch = c.detachLocked()
	}
	size := len(c.events)
	c.mu.Unlock()

	metrics.ViewsRecorded.Inc()
	metrics.ViewBufferSize.Set(float64(size))

	if batch == nil {
		return
	}
	logger.Debug.Printf("ViewCache buffer reached its limit (%d), flushing now", c.opts.MaxBufferSize)
	c.inflight.Add(1)
	c.running.Add(1)
	go func() {
		defer c.inflight.Done()
		defer c.running.Add(-1)
		c.persist(context.Background(), batch)
	}()
}

// Flush writes the buffered views as one batch. It is a no-op when the buffer
// is empty or another flush is still running. Views recorded while the batch
// is being written stay in the buffer for the next flush.
func (c *ViewCache) Flush(ctx context.Context) {
	c.mu.Lock()
	batch := c.detachLocked()
	c.mu.Unlock()
	if batch == nil {
		return
	}
	metrics.ViewBufferSize.Set(0)
	c.persist(ctx, batch)
}

// detachLocked swaps the buffer for a fresh one and marks a flush in
// progress. It returns nil when there is nothing to flush. c.mu must be held.
func (c *ViewCache) detachLocked() []ViewEvent {
	if c.flushing || len(c.events) == 0 {
		return nil
	}
	c.flushing = true
	batch := c.events
	c.events = make([]ViewEvent, 0, c.opts.MaxBufferSize)
	return batch
}

// persist writes batch and clears the in-progress flag whatever happens.
func (c *ViewCache) persist(ctx context.Context, batch []ViewEvent) {
	defer func() {
		c.mu.Lock()
		c.flushing = false
		c.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, c.opts.FlushTimeout)
	defer cancel()

	if err := c.write(ctx, batch); err != nil {
		logger.Error.Printf("ViewCache batch insert of %d views failed, dropping batch: %v", len(batch), err)
		metrics.ViewFlushes.WithLabelValues("error").Inc()
		metrics.ViewsDropped.Add(float64(len(batch)))
		if c.opts.OnError != nil {
			c.opts.OnError(err, len(batch))
		}
		return
	}

	metrics.ViewFlushes.WithLabelValues("ok").Inc()
	metrics.ViewsPersisted.Add(float64(len(batch)))
	logger.Debug.Printf("ViewCache flush: %d events persisted", len(batch))
}

// write calls the persister, turning a panic into an error.
func (c *ViewCache) write(ctx context.Context, batch []ViewEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("persister panic: %v", r)
		}
	}()
	return c.persister.BatchRecordViews(ctx, batch)
}

// StartFlushTimer flushes the buffer every FlushInterval until
// StopFlushTimer. Calling it again while running only logs a warning.
func (c *ViewCache) StartFlushTimer() {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()

	if c.stopCh != nil {
		logger.Warn.Printf("ViewCache flush timer is already running")
		return
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	c.stopCh, c.timerDone = stop, done

	ticker := time.NewTicker(c.opts.FlushInterval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.Flush(context.Background())
			case <-stop:
				return
			}
		}
	}()
	logger.Debug.Printf("ViewCache flush timer started (every %s)", c.opts.FlushInterval)
}

// StopFlushTimer cancels the periodic flush, waits for flushes already
// running, then writes whatever is left in the buffer. Safe to call when no
// timer is running. ctx only bounds the wait for running flushes; the final
// flush ignores its cancellation and is limited by FlushTimeout instead. A
// failing final flush is logged and does not block shutdown.
func (c *ViewCache) StopFlushTimer(ctx context.Context) {
	c.timerMu.Lock()
	stop, done := c.stopCh, c.timerDone
	c.stopCh, c.timerDone = nil, nil
	c.timerMu.Unlock()

	if stop != nil {
		close(stop)
		<-done
		logger.Debug.Printf("ViewCache flush timer stopped")
	}

	c.waitInflight(ctx)

	if n := c.BufferSize(); n > 0 {
		logger.Debug.Printf("ViewCache shutdown: flushing %d remaining views", n)
		c.Flush(context.WithoutCancel(ctx))
	}
}

func (c *ViewCache) waitInflight(ctx context.Context) {
	if c.running.Load() == 0 {
		return
	}
	idle := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(idle)
	}()
	select {
	case <-idle:
	case <-ctx.Done():
		logger.Warn.Printf("ViewCache shutdown: gave up waiting for running flush: %v", ctx.Err())
	}
}

// BufferSize reports how many views are waiting to be flushed.
func (c *ViewCache) BufferSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}
