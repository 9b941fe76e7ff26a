package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/eptportal/ept-backend/internal/config"
	"github.com/eptportal/ept-backend/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ContentUpdate names a test form whose content changed.
type ContentUpdate struct {
	Date    string            `json:"date"`
	Section model.SectionType `json:"section"`
}

// Invalidator drops cached section content.
type Invalidator interface {
	Invalidate(date string, section model.SectionType)
}

// PublishContentUpdate announces a rewritten test form to every server.
func PublishContentUpdate(ctx context.Context, rdb *redis.Client, u ContentUpdate) error {
	payload, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return rdb.Publish(ctx, config.WorkerKey.ContentUpdatedChannel, payload).Err()
}

// ContentInvalidator applies published content updates to the local cache.
type ContentInvalidator struct {
	target Invalidator
	rdb    *redis.Client
	log    zerolog.Logger
}

func NewContentInvalidator(target Invalidator, rdb *redis.Client, log zerolog.Logger) *ContentInvalidator {
	return &ContentInvalidator{
		target: target,
		rdb:    rdb,
		log:    log.With().Str("component", "content_invalidator").Logger(),
	}
}

// Start blocks until ctx is cancelled.
func (w *ContentInvalidator) Start(ctx context.Context) {
	pubsub := w.rdb.Subscribe(ctx, config.WorkerKey.ContentUpdatedChannel)
	defer pubsub.Close()

	w.log.Info().Msg("ContentInvalidator started")
	ch := pubsub.Channel(redis.WithChannelHealthCheckInterval(30 * time.Second))

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("ContentInvalidator stopped")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.apply(msg.Payload)
		}
	}
}

func (w *ContentInvalidator) apply(payload string) {
	var u ContentUpdate
	if err := json.Unmarshal([]byte(payload), &u); err != nil || u.Date == "" || !u.Section.Valid() {
		w.log.Warn().Str("payload", payload).Msg("Ignoring malformed content update")
		return
	}
	w.target.Invalidate(u.Date, u.Section)
	w.log.Info().Str("date", u.Date).Str("section", string(u.Section)).Msg("Cached content invalidated")
}
