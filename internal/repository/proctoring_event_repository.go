package repository

import (
	"context"

	"github.com/eptportal/ept-backend/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProctoringEventRepository persists the integrity audit trail.
type ProctoringEventRepository struct {
	pool *pgxpool.Pool
}

// NewProctoringEventRepository creates a new ProctoringEventRepository.
func NewProctoringEventRepository(pool *pgxpool.Pool) *ProctoringEventRepository {
	return &ProctoringEventRepository{pool: pool}
}

var proctoringEventColumns = []string{
	"student_id", "test_id", "section_type", "tab_id", "event_type", "detail", "recorded_at",
}

// CopyBatch bulk-loads events.
func (r *ProctoringEventRepository) CopyBatch(ctx context.Context, events []model.ProctoringEvent) error {
	rows := make([][]interface{}, 0, len(events))
	for _, e := range events {
		rows = append(rows, []interface{}{
			e.StudentID, e.TestID, string(e.SectionType), e.TabID, e.Type, e.Detail, e.RecordedAt(),
		})
	}
	_, err := r.pool.CopyFrom(ctx, pgx.Identifier{"proctoring_events"}, proctoringEventColumns, pgx.CopyFromRows(rows))
	return err
}

// Insert stores a single event.
func (r *ProctoringEventRepository) Insert(ctx context.Context, e model.ProctoringEvent) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO proctoring_events (student_id, test_id, section_type, tab_id, event_type, detail, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.StudentID, e.TestID, string(e.SectionType), e.TabID, e.Type, e.Detail, e.RecordedAt(),
	)
	return err
}
