package service

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"

	"docvault/internal/storage"
)

// Janitor removes orphaned blobs after a document deletion has committed.
// Database consistency never depends on it: unlink failures are retried,
// logged and counted, but never surfaced to the deleting caller.
type Janitor struct {
	store      storage.Storage
	log        hclog.Logger
	queue      chan []string
	wg         sync.WaitGroup
	maxRetries uint64
	failures   prometheus.Counter

	startOnce sync.Once
	stopOnce  sync.Once
}

// JanitorConfig tunes the cleanup queue.
type JanitorConfig struct {
	// QueueSize bounds how many pending deletion batches can be queued
	// before Enqueue starts dropping (with a logged warning).
	QueueSize int
	// MaxRetries bounds the unlink attempts per path.
	MaxRetries int
}

// NewJanitor creates a cleanup worker. Call Start to begin draining the
// queue and Stop to flush and shut it down.
func NewJanitor(store storage.Storage, log hclog.Logger, reg prometheus.Registerer, cfg JanitorConfig) (*Janitor, error) {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 4
	}

	failures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "docvault_cleanup_failures_total",
		Help: "Number of orphaned files that could not be removed after retries.",
	})
	if reg != nil {
		if err := reg.Register(failures); err != nil {
			return nil, err
		}
	}

	return &Janitor{
		store:      store,
		log:        log.Named("janitor"),
		queue:      make(chan []string, cfg.QueueSize),
		maxRetries: uint64(cfg.MaxRetries),
		failures:   failures,
	}, nil
}

var _ Cleaner = (*Janitor)(nil)

// Enqueue hands a batch of orphaned paths to the worker. It never blocks:
// when the queue is full the batch is dropped with a warning, since the
// database delete has already committed and must not be held up.
func (j *Janitor) Enqueue(paths []string) {
	if len(paths) == 0 {
		return
	}
	select {
	case j.queue <- paths:
	default:
		j.failures.Add(float64(len(paths)))
		j.log.Warn("cleanup queue full, dropping batch", "paths", len(paths))
	}
}

// Start launches the worker goroutine. The context bounds each unlink
// attempt; closing the queue via Stop ends the worker.
func (j *Janitor) Start(ctx context.Context) {
	j.startOnce.Do(func() {
		j.wg.Add(1)
		go func() {
			defer j.wg.Done()
			for batch := range j.queue {
				if err := j.sweep(ctx, batch); err != nil {
					j.log.Warn("cleanup batch finished with failures", "error", err)
				}
			}
		}()
	})
}

// Stop flushes pending batches and waits for the worker to exit.
func (j *Janitor) Stop() {
	j.stopOnce.Do(func() {
		close(j.queue)
	})
	j.wg.Wait()
}

// sweep unlinks every path in the batch, retrying each with exponential
// backoff and aggregating the permanent failures.
func (j *Janitor) sweep(ctx context.Context, paths []string) error {
	var result *multierror.Error
	for _, p := range paths {
		bo := backoff.WithMaxRetries(newBackOff(), j.maxRetries)
		err := backoff.Retry(func() error {
			return j.store.Delete(ctx, p)
		}, backoff.WithContext(bo, ctx))
		if err != nil {
			j.failures.Inc()
			j.log.Warn("failed to remove orphaned file", "path", p, "error", err)
			result = multierror.Append(result, err)
			continue
		}
		j.log.Debug("removed orphaned file", "path", p)
	}
	return result.ErrorOrNil()
}

func newBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	return bo
}
