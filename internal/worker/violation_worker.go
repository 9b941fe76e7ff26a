package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/eptportal/ept-backend/internal/config"
	"github.com/eptportal/ept-backend/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // redis rejects BLPOP timeouts below 1s
)

var errIncompleteEvent = errors.New("proctoring event without student or type")

// EventStore is where queued proctoring events end up.
type EventStore interface {
	CopyBatch(ctx context.Context, events []model.ProctoringEvent) error
	Insert(ctx context.Context, e model.ProctoringEvent) error
}

// ViolationWorker drains the proctoring event queue into the datastore in
// batches.
type ViolationWorker struct {
	store EventStore
	rdb   *redis.Client
	log   zerolog.Logger
}

func NewViolationWorker(store EventStore, rdb *redis.Client, log zerolog.Logger) *ViolationWorker {
	return &ViolationWorker{
		store: store,
		rdb:   rdb,
		log:   log.With().Str("component", "violation_worker").Logger(),
	}
}

// Start blocks until ctx is cancelled, then flushes what it holds.
func (w *ViolationWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ViolationWorker started")

	buffer := make([]model.ProctoringEvent, 0, BatchSize)
	lastFlush := time.Now()

	for {
		if len(buffer) > 0 && (len(buffer) >= BatchSize || time.Since(lastFlush) >= BatchTimeout) {
			w.flushSafe(ctx, buffer)
			buffer = buffer[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.PersistProctoringEventsQueue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				w.shutdown(buffer)
				return
			}
			w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			time.Sleep(3 * time.Second)
			continue
		}
		if len(result) < 2 {
			continue
		}

		ev, err := decodeEvent([]byte(result[1]))
		if err != nil {
			// Malformed entries can never succeed; retrying would loop forever.
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding proctoring event")
			continue
		}
		buffer = append(buffer, ev)
	}
}

func decodeEvent(raw []byte) (model.ProctoringEvent, error) {
	var ev model.ProctoringEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return ev, fmt.Errorf("decode: %w", err)
	}
	if ev.StudentID == "" || ev.Type == "" {
		return ev, errIncompleteEvent
	}
	return ev, nil
}

// flushSafe tries one COPY, then row inserts, then requeues what still fails.
func (w *ViolationWorker) flushSafe(ctx context.Context, batch []model.ProctoringEvent) {
	err := w.store.CopyBatch(ctx, batch)
	if err == nil {
		w.log.Debug().Int("count", len(batch)).Msg("Proctoring events persisted")
		return
	}
	w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")

	var failed []model.ProctoringEvent
	for _, ev := range batch {
		if err := w.store.Insert(ctx, ev); err != nil {
			w.log.Error().Err(err).Str("student_id", ev.StudentID).Msg("Insert failed, requeueing")
			failed = append(failed, ev)
		}
	}
	if len(failed) > 0 {
		w.requeue(ctx, failed)
	}
}

func (w *ViolationWorker) requeue(ctx context.Context, events []model.ProctoringEvent) {
	pipe := w.rdb.Pipeline()
	for _, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		pipe.RPush(ctx, config.WorkerKey.PersistProctoringEventsQueue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Error().Err(err).Int("count", len(events)).Msg("Failed to requeue proctoring events, data lost")
		return
	}
	w.log.Info().Int("count", len(events)).Msg("Requeued proctoring events")
	// Back off while the database is unavailable.
	time.Sleep(2 * time.Second)
}

func (w *ViolationWorker) shutdown(buffer []model.ProctoringEvent) {
	w.log.Info().Msg("Worker stopping, flushing remaining buffer")
	if len(buffer) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	w.flushSafe(ctx, buffer)
}
