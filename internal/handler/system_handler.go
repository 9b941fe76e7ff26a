package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/eptportal/ept-backend/internal/config"
	"github.com/eptportal/ept-backend/internal/response"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const healthTimeout = 2 * time.Second

// CacheStats is the view of the content cache the health report exposes.
type CacheStats interface {
	Len() int
	Stats() (hits, misses uint64)
}

// SystemHandler reports liveness and the state of the backing stores.
type SystemHandler struct {
	pool      *pgxpool.Pool
	rdb       *redis.Client
	cache     CacheStats
	startTime time.Time
	log       zerolog.Logger
}

func NewSystemHandler(pool *pgxpool.Pool, rdb *redis.Client, cache CacheStats, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		pool:      pool,
		rdb:       rdb,
		cache:     cache,
		startTime: time.Now(),
		log:       log.With().Str("component", "system_handler").Logger(),
	}
}

type healthReport struct {
	Status   string `json:"status"`
	Uptime   string `json:"uptime"`
	Postgres string `json:"postgres"`
	Redis    string `json:"redis"`

	// ProctoringBacklog is the number of queued events not yet persisted.
	ProctoringBacklog int64       `json:"proctoring_backlog"`
	ContentCache      cacheReport `json:"content_cache"`
}

type cacheReport struct {
	Entries int    `json:"entries"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
}

// Health godoc
// GET /health
// 200 when both stores answer, 503 otherwise.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	report := healthReport{
		Status:   "ok",
		Uptime:   time.Since(h.startTime).Round(time.Second).String(),
		Postgres: "ok",
		Redis:    "ok",
	}

	if err := h.pool.Ping(ctx); err != nil {
		h.log.Warn().Err(err).Msg("Postgres health check failed")
		report.Postgres = "unreachable"
		report.Status = "degraded"
	}

	backlog, err := h.rdb.LLen(ctx, config.WorkerKey.PersistProctoringEventsQueue).Result()
	if err != nil {
		h.log.Warn().Err(err).Msg("Redis health check failed")
		report.Redis = "unreachable"
		report.Status = "degraded"
	}
	report.ProctoringBacklog = backlog

	if h.cache != nil {
		report.ContentCache.Entries = h.cache.Len()
		report.ContentCache.Hits, report.ContentCache.Misses = h.cache.Stats()
	}

	status := http.StatusOK
	if report.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	response.Success(c, status, report)
}
