// Package persistence implements the batching sink adapter (spec §4.6): it
// ingests the execution stream as a sequencer.Sink, batches it in memory,
// and commits each batch to a durable Store with retry+backoff, never
// applying backpressure on the matching path under transient store
// failure.
package persistence

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"fenrir/internal/report"
)

// Config tunes the adapter's batching and retry behavior (spec §4.6).
type Config struct {
	BatchSize      int
	BatchInterval  time.Duration
	QueueCapacity  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	MaxRetries     int
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.BatchInterval <= 0 {
		c.BatchInterval = 100 * time.Millisecond
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = 10000
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = time.Second
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = 30 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 5
	}
	return c
}

type retryItem struct {
	batch   Batch
	attempt int
	notBefore time.Time
}

// Sink is the persistence sink adapter (spec §4.6). It implements
// sequencer.Sink via Publish.
type Sink struct {
	cfg     Config
	store   Store
	dead    DeadLetterSink
	metrics *Metrics
	log     zerolog.Logger

	queue chan report.Execution
	retry chan retryItem
}

// New builds a Sink. dead may be nil, in which case exhausted batches are
// only logged. metrics may be nil, in which case an unregistered Metrics
// set is used, so nothing is exported.
func New(cfg Config, store Store, dead DeadLetterSink, metrics *Metrics) *Sink {
	cfg = cfg.withDefaults()
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Sink{
		cfg:     cfg,
		store:   store,
		dead:    dead,
		metrics: metrics,
		log:     log.With().Str("component", "persistence").Logger(),
		queue:   make(chan report.Execution, cfg.QueueCapacity),
		retry:   make(chan retryItem, cfg.QueueCapacity),
	}
}

// Publish implements sequencer.Sink. It enqueues every report onto a
// buffered queue of QueueCapacity entries; while the queue has room it
// does not block. When the queue is full, Publish blocks until Run has
// drained an entry; nothing is dropped.
func (s *Sink) Publish(symbol string, reports []report.Execution) {
	for _, r := range reports {
		s.queue <- r
		if s.metrics != nil {
			s.metrics.QueueDepth.Inc()
		}
	}
}

// Run drives the batcher and retry drain loops until t is dying. Start it
// with t.Go(func() error { return sink.Run(t) }).
func (s *Sink) Run(t *tomb.Tomb) error {
	s.log.Info().Msg("persistence sink running")
	ticker := time.NewTicker(s.cfg.BatchInterval)
	defer ticker.Stop()

	retryTicker := time.NewTicker(s.cfg.RetryBaseDelay)
	defer retryTicker.Stop()

	var pending []report.Execution
	for {
		select {
		case <-t.Dying():
			if len(pending) > 0 {
				s.commit(deriveBatch(pending), 0)
			}
			s.log.Info().Msg("persistence sink stopping")
			return nil

		case r := <-s.queue:
			pending = append(pending, r)
			if s.metrics != nil {
				s.metrics.QueueDepth.Dec()
			}
			if len(pending) >= s.cfg.BatchSize {
				batch := pending
				pending = nil
				s.commit(deriveBatch(batch), 0)
			}

		case <-ticker.C:
			if len(pending) == 0 {
				continue
			}
			batch := pending
			pending = nil
			s.commit(deriveBatch(batch), 0)

		case <-retryTicker.C:
			s.drainDueRetries()
		}
	}
}

// commit attempts to write batch to the durable store, measuring latency
// and routing failures to the retry queue (spec §4.6).
func (s *Sink) commit(batch Batch, attempt int) {
	if len(batch.Executions) == 0 {
		return
	}

	start := time.Now()
	err := s.store.CommitBatch(batch)
	if s.metrics != nil {
		s.metrics.BatchLatency.Observe(time.Since(start).Seconds())
	}

	if err == nil {
		if s.metrics != nil {
			s.metrics.RecordsTotal.Add(float64(len(batch.Executions)))
		}
		return
	}

	s.log.Warn().Err(err).Int("attempt", attempt).Int("size", len(batch.Executions)).Msg("batch commit failed, scheduling retry")

	if attempt >= s.cfg.MaxRetries {
		s.log.Error().Err(err).Int("size", len(batch.Executions)).Msg("batch exhausted retries, dead-lettering")
		if s.dead != nil {
			s.dead.DeadLetter(batch, err)
		}
		if s.metrics != nil {
			s.metrics.DeadLetters.Inc()
		}
		return
	}

	delay := backoff(s.cfg.RetryBaseDelay, s.cfg.RetryMaxDelay, attempt)
	select {
	case s.retry <- retryItem{batch: batch, attempt: attempt + 1, notBefore: time.Now().Add(delay)}:
		if s.metrics != nil {
			s.metrics.RetryDepth.Inc()
		}
	default:
		// Retry queue saturated; dead-letter immediately rather than block
		// the batcher loop, which would eventually backpressure Publish.
		s.log.Error().Msg("retry queue saturated, dead-lettering early")
		if s.dead != nil {
			s.dead.DeadLetter(batch, err)
		}
		if s.metrics != nil {
			s.metrics.DeadLetters.Inc()
		}
	}
}

// drainDueRetries pulls every retry item whose backoff has elapsed and
// re-attempts its commit.
func (s *Sink) drainDueRetries() {
	now := time.Now()
	var requeue []retryItem

	for {
		select {
		case item := <-s.retry:
			if s.metrics != nil {
				s.metrics.RetryDepth.Dec()
			}
			if item.notBefore.After(now) {
				requeue = append(requeue, item)
				continue
			}
			s.commit(item.batch, item.attempt)
		default:
			for _, item := range requeue {
				s.retry <- item
				if s.metrics != nil {
					s.metrics.RetryDepth.Inc()
				}
			}
			return
		}
	}
}

// backoff computes the exponential delay for attempt, capped at max
// (spec §4.6: "base e.g. 1s, capped at 30s").
func backoff(base, max time.Duration, attempt int) time.Duration {
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	return d
}

// Drain blocks until the queue and retry queue are both empty or ctx is
// done. Intended for tests and graceful shutdown.
func (s *Sink) Drain(ctx context.Context) error {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		if len(s.queue) == 0 && len(s.retry) == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
