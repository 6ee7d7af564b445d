package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rl1809/inventory-ledger/internal/core/domain"
	"github.com/rl1809/inventory-ledger/internal/port"
)

const (
	restockRestored  = "restored"
	restockSkipped   = "skipped"
	restockRetried   = "retried"
	restockExhausted = "exhausted"
	restockDropped   = "dropped"
	restockAbandoned = "abandoned"
)

// RestockJob is a stock restoration that failed inline and is retried in the background.
type RestockJob struct {
	OrderID string
	Items   []domain.Item
	Attempt int
}

func (j RestockJob) String() string {
	return fmt.Sprintf("restock %s (%d items, attempt %d)", j.OrderID, len(j.Items), j.Attempt)
}

type stockRestorer interface {
	IncrementBatch(ctx context.Context, items []domain.Item, opts ...BatchOption) (domain.BatchResult, error)
}

type RestockOptions struct {
	QueueSize   int
	MaxAttempts int
	Backoff     time.Duration
	MaxBackoff  time.Duration
	// JobTimeout bounds a single restoration attempt.
	JobTimeout time.Duration
}

// RestockQueue retries failed cancellation restorations with the order's
// operation key, so a retry after an unseen commit is a replay.
type RestockQueue struct {
	restorer stockRestorer
	alerts   port.AlertPublisher
	metrics  *Metrics
	log      zerolog.Logger
	opts     RestockOptions
	jobs     chan RestockJob

	mu     sync.RWMutex
	closed bool
}

func NewRestockQueue(restorer stockRestorer, alerts port.AlertPublisher, metrics *Metrics, log zerolog.Logger, opts RestockOptions) *RestockQueue {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1000
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 500 * time.Millisecond
	}
	if opts.MaxBackoff < opts.Backoff {
		opts.MaxBackoff = opts.Backoff
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 10 * time.Second
	}
	if alerts == nil {
		alerts = nopPublisher{}
	}

	return &RestockQueue{
		restorer: restorer,
		alerts:   alerts,
		metrics:  metrics,
		log:      log.With().Str("component", "restock").Logger(),
		opts:     opts,
		jobs:     make(chan RestockJob, opts.QueueSize),
	}
}

// Enqueue never blocks. A full or closed queue drops the job and raises a
// critical alert, as the stock would otherwise stay deducted silently.
func (q *RestockQueue) Enqueue(ctx context.Context, job RestockJob) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if !q.closed {
		select {
		case q.jobs <- job:
			return true
		default:
		}
	}

	q.metrics.restockJob(restockDropped)
	q.log.Error().Stringer("job", job).Interface("items", job.Items).Msg("restock queue full, job dropped")
	q.critical(ctx, job, "restock queue full, restoration dropped")
	return false
}

func (q *RestockQueue) Len() int {
	return len(q.jobs)
}

// Close stops accepting jobs. Workers drain what is already queued.
func (q *RestockQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
}

// Run processes jobs with the given number of workers until the queue is
// closed and drained, or ctx is cancelled.
func (q *RestockQueue) Run(ctx context.Context, workers int) {
	if workers <= 0 {
		workers = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			q.workerLoop(ctx, id)
		}(i)
	}
	q.log.Info().Int("workers", workers).Msg("restock workers started")
	wg.Wait()
	q.log.Info().Msg("restock workers stopped")
}

func (q *RestockQueue) workerLoop(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-q.jobs:
			if !ok {
				return
			}
			q.process(ctx, id, job)
		}
	}
}

func (q *RestockQueue) process(ctx context.Context, worker int, job RestockJob) {
	log := q.log.With().Int("worker", worker).Str("order_id", job.OrderID).Logger()

	for job.Attempt < q.opts.MaxAttempts {
		job.Attempt++

		attemptCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), q.opts.JobTimeout)
		result, err := q.restorer.IncrementBatch(attemptCtx, job.Items, WithOperationKey(job.OrderID))
		cancel()

		if err != nil {
			// Validation errors cannot be fixed by retrying.
			q.metrics.restockJob(restockSkipped)
			log.Error().Err(err).Msg("restock job rejected")
			return
		}
		if result.Success {
			q.metrics.restockJob(restockRestored)
			log.Info().Int("attempt", job.Attempt).Bool("replayed", result.Replayed).Msg("stock restored")
			return
		}
		if !retryable(result) {
			q.metrics.restockJob(restockSkipped)
			log.Error().Interface("failed_items", result.FailedItems).Msg("restock finished with unknown products")
			return
		}

		q.metrics.restockJob(restockRetried)
		wait := q.backoff(job.Attempt)
		log.Warn().Int("attempt", job.Attempt).Dur("backoff", wait).Msg("restock attempt failed")

		select {
		case <-ctx.Done():
			q.metrics.restockJob(restockAbandoned)
			log.Error().Msg("restock abandoned at shutdown")
			q.critical(ctx, job, "restock abandoned at shutdown")
			return
		case <-time.After(wait):
		}
	}

	q.metrics.restockJob(restockExhausted)
	log.Error().Int("attempts", job.Attempt).Msg("restock attempts exhausted")
	q.critical(ctx, job, fmt.Sprintf("stock restoration failed after %d attempts", job.Attempt))
}

func (q *RestockQueue) backoff(attempt int) time.Duration {
	wait := q.opts.Backoff
	for i := 1; i < attempt; i++ {
		wait *= 2
		if wait >= q.opts.MaxBackoff {
			return q.opts.MaxBackoff
		}
	}
	return wait
}

func (q *RestockQueue) critical(ctx context.Context, job RestockJob, reason string) {
	alert := domain.Alert{
		ID:           uuid.NewString(),
		Severity:     domain.SeverityCritical,
		Operation:    opIncrementBatch,
		OperationKey: job.OrderID,
		Items:        job.Items,
		Reason:       reason,
		OccurredAt:   time.Now().UTC(),
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), q.opts.JobTimeout)
	defer cancel()
	if err := q.alerts.Publish(pubCtx, alert); err != nil {
		q.log.Error().Err(err).Str("alert_id", alert.ID).Msg("critical alert delivery failed")
	}
}

func retryable(result domain.BatchResult) bool {
	for _, item := range result.FailedItems {
		if item.Reason == domain.FailureStorage {
			return true
		}
	}
	return false
}
