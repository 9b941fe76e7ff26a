package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/eptportal/ept-backend/internal/config"
	"github.com/eptportal/ept-backend/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const recordTimeout = 2 * time.Second

// ViolationRecorder queues proctoring events for the violation worker.
type ViolationRecorder struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewViolationRecorder creates a new ViolationRecorder.
func NewViolationRecorder(rdb *redis.Client, log zerolog.Logger) *ViolationRecorder {
	return &ViolationRecorder{
		rdb: rdb,
		log: log.With().Str("component", "violation_recorder").Logger(),
	}
}

// Record pushes ev onto the persistence queue. Failures are logged and the
// event is dropped; the submission summary still carries the counts.
func (v *ViolationRecorder) Record(ev model.ProctoringEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		v.log.Error().Err(err).Msg("Failed to encode proctoring event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if err := v.rdb.RPush(ctx, config.WorkerKey.PersistProctoringEventsQueue, data).Err(); err != nil {
		v.log.Error().
			Err(err).
			Str("student_id", ev.StudentID).
			Str("type", ev.Type).
			Msg("Failed to queue proctoring event")
	}
}
