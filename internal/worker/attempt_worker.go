package worker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/quizcoach/internal/model"
	"github.com/stemsi/quizcoach/internal/repository"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
	FlushTimeout = 5 * time.Second
)

// AttemptSource is the queue the worker drains.
type AttemptSource interface {
	Pop(ctx context.Context, timeout time.Duration) (model.AttemptRecord, []byte, error)
	Requeue(ctx context.Context, recs []model.AttemptRecord) error
}

// AttemptStore persists graded attempts.
type AttemptStore interface {
	InsertBatch(ctx context.Context, batch []model.AttemptRecord) error
	Insert(ctx context.Context, rec model.AttemptRecord) error
}

// PersistRecorder counts persisted and requeued records.
type PersistRecorder interface {
	AttemptsPersisted(n int)
	AttemptsRequeued(n int)
}

// AttemptWorker moves graded attempts from the Redis queue into Postgres in
// batches.
type AttemptWorker struct {
	queue   AttemptSource
	store   AttemptStore
	metrics PersistRecorder
	log     zerolog.Logger

	retryDelay time.Duration
}

func NewAttemptWorker(queue AttemptSource, store AttemptStore, metrics PersistRecorder, log zerolog.Logger) *AttemptWorker {
	return &AttemptWorker{
		queue:      queue,
		store:      store,
		metrics:    metrics,
		log:        log.With().Str("component", "attempt_worker").Logger(),
		retryDelay: 2 * time.Second,
	}
}

// Start runs until ctx is cancelled, then flushes what it holds.
func (w *AttemptWorker) Start(ctx context.Context) {
	w.log.Info().Msg("AttemptWorker started")

	buffer := make([]model.AttemptRecord, 0, BatchSize)
	lastFlush := time.Now()

	for {
		if len(buffer) > 0 && (len(buffer) >= BatchSize || time.Since(lastFlush) >= BatchTimeout) {
			w.flush(ctx, buffer)
			buffer = buffer[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		rec, raw, err := w.queue.Pop(ctx, PollTimeout)
		switch {
		case err == nil:
			buffer = append(buffer, rec)
		case errors.Is(err, repository.ErrQueueEmpty):
		case errors.Is(err, repository.ErrMalformedRecord):
			// Cannot be retried.
			w.log.Error().Err(err).Bytes("data", raw).Msg("Discarding malformed attempt")
		case ctx.Err() != nil:
			w.shutdown(buffer)
			return
		default:
			w.log.Error().Err(err).Msg("Redis connection error, backing off")
			w.sleep(ctx, 3*time.Second)
		}
	}
}

// flush tries a bulk insert, then row-by-row, then requeues what still fails.
// Writes outlive cancellation of ctx; only the retry backoff honours it.
func (w *AttemptWorker) flush(ctx context.Context, batch []model.AttemptRecord) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), FlushTimeout)
	defer cancel()

	err := w.store.InsertBatch(wctx, batch)
	if err == nil {
		w.metrics.AttemptsPersisted(len(batch))
		w.log.Debug().Int("count", len(batch)).Msg("Attempts persisted")
		return
	}
	w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")

	var failed []model.AttemptRecord
	persisted := 0
	for _, rec := range batch {
		if err := w.store.Insert(wctx, rec); err != nil {
			w.log.Error().Err(err).Str("session_id", rec.SessionID.String()).Msg("Insert failed, requeueing")
			failed = append(failed, rec)
			continue
		}
		persisted++
	}
	w.metrics.AttemptsPersisted(persisted)

	if len(failed) == 0 {
		return
	}
	if err := w.queue.Requeue(wctx, failed); err != nil {
		w.log.Error().Err(err).Int("count", len(failed)).Msg("CRITICAL: failed to requeue attempts, data lost")
		return
	}
	w.metrics.AttemptsRequeued(len(failed))
	w.log.Info().Int("count", len(failed)).Msg("Requeued failed attempts")
	// Avoid thrashing while the database is down.
	w.sleep(ctx, w.retryDelay)
}

func (w *AttemptWorker) shutdown(buffer []model.AttemptRecord) {
	w.log.Info().Int("pending", len(buffer)).Msg("AttemptWorker stopping, flushing buffer")
	if len(buffer) == 0 {
		return
	}

	w.flush(context.Background(), buffer)
}

func (w *AttemptWorker) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
