// Package worker drains the audit queue into the structured log.
//
// Full rejection detail (failing check, reason text) is recorded here,
// server-side only; clients never see more than a coarse category.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/okian/hopguard/internal/adapters/mq/queue"
	"github.com/okian/hopguard/internal/domain/model"
	"github.com/okian/hopguard/pkg/logger"
	"github.com/okian/hopguard/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerCount    = 2
	workerShutdownTimeout = 5 * time.Second
)

// Record is what workers read off the queue.
type Record = model.AuditRecord

// Queue defines how workers receive records.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Record
}

// Sink receives fully processed audit records.
type Sink interface {
	Write(ctx context.Context, rec Record) error
}

// AuditWorker processes audit records from the queue into the sink.
type AuditWorker struct {
	queue queue.Queue
	sink  Sink
	name  string

	// Shutdown control
	shutdown chan struct{}
	done     chan struct{}

	// Logging
	logger logger.Logger
}

// NewAuditWorker creates a new worker with configuration options.
func NewAuditWorker(q queue.Queue, sink Sink, opts ...Option) *AuditWorker {
	w := &AuditWorker{
		queue:    q,
		sink:     sink,
		name:     "audit-worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("audit-worker"),
	}

	// Apply all options
	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Run starts the worker loop until ctx is canceled.
func (w *AuditWorker) Run(ctx context.Context) {
	defer close(w.done)

	recordChan := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case rec, ok := <-recordChan:
			if !ok {
				// Channel closed, worker should stop
				return
			}

			if err := w.process(ctx, rec); err != nil {
				w.logger.Error(ctx, "error writing audit record", logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *AuditWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process handles a single record.
func (w *AuditWorker) process(ctx context.Context, rec Record) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	if err := w.sink.Write(ctx, rec); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("audit_worker", "sink_error")
		return fmt.Errorf("audit sink write failed: %w", err)
	}
	return nil
}

// LogSink writes audit records to the structured log.
type LogSink struct {
	logger logger.Logger
}

// NewLogSink constructs a LogSink.
func NewLogSink(l logger.Logger) *LogSink {
	if l == nil {
		l = logger.Get().Named("audit")
	}
	return &LogSink{logger: l}
}

// Write implements Sink.
func (s *LogSink) Write(ctx context.Context, rec Record) error {
	fields := []logger.Field{
		logger.String("owner", rec.Owner),
		logger.String("session_id", rec.SessionID),
		logger.Int64("score", rec.Score),
		logger.String("outcome", rec.Outcome),
		logger.Duration("validation_elapsed", rec.Elapsed),
	}
	if rec.Outcome == "rejected" {
		fields = append(fields,
			logger.String("category", rec.Category),
			logger.String("check", rec.Check),
			logger.String("reason", rec.Reason),
		)
		s.logger.Warn(ctx, "submission rejected", fields...)
		return nil
	}
	s.logger.Info(ctx, "submission audited", fields...)
	return nil
}

// Pool manages multiple audit workers.
type Pool struct {
	workers []*AuditWorker
	queue   queue.Queue
	sink    Sink

	// Shutdown control
	shutdown chan struct{}

	// Logging
	logger logger.Logger
}

// NewPool creates a new worker pool.
func NewPool(workerCount int, q queue.Queue, sink Sink) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}

	pool := &Pool{
		workers:  make([]*AuditWorker, workerCount),
		queue:    q,
		sink:     sink,
		shutdown: make(chan struct{}),
		logger:   logger.Get().Named("audit-pool"),
	}

	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewAuditWorker(
			q,
			sink,
			WithName("audit-worker-"+strconv.Itoa(i)),
		)
	}

	metrics.UpdateWorkerActiveCount(workerCount)

	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, worker := range p.workers {
		go worker.Run(ctx)
	}
}

// Stop gracefully stops all workers.
func (p *Pool) Stop() {
	close(p.shutdown)

	ctx, cancel := context.WithTimeout(context.Background(), workerShutdownTimeout)
	defer cancel()
	for _, worker := range p.workers {
		_ = worker.Shutdown(ctx)
	}
}
