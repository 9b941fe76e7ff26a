package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/eptportal/ept-backend/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrDuplicateSubmission = errors.New("submission already recorded for this test and student")

// SubmissionRepository handles the append-only submission log.
type SubmissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(pool *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{pool: pool}
}

// LatestBySection returns the student's most recent submission of a
// section type on any test date, or pgx.ErrNoRows.
func (r *SubmissionRepository) LatestBySection(ctx context.Context, studentID string, section model.SectionType) (*model.Submission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+submissionColumns+`
		 FROM submissions WHERE student_id = $1 AND section_type = $2
		 ORDER BY submitted_at DESC LIMIT 1`, studentID, section,
	)
	if err != nil {
		return nil, err
	}
	s, err := pgx.CollectOneRow(rows, scanSubmission)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetByTestAndStudent returns the submission for a test form, or
// pgx.ErrNoRows.
func (r *SubmissionRepository) GetByTestAndStudent(ctx context.Context, testID, studentID string) (*model.Submission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+submissionColumns+`
		 FROM submissions WHERE test_id = $1 AND student_id = $2`, testID, studentID,
	)
	if err != nil {
		return nil, err
	}
	return pgx.CollectOneRow(rows, scanSubmission)
}

// ListLatestByStudent returns the newest submission of every section type
// the student has submitted.
func (r *SubmissionRepository) ListLatestByStudent(ctx context.Context, studentID string) ([]*model.Submission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT ON (section_type) `+submissionColumns+`
		 FROM submissions WHERE student_id = $1
		 ORDER BY section_type, submitted_at DESC`, studentID,
	)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanSubmission)
}

// Create records a submission. The (test_id, student_id) constraint is the
// final duplicate backstop: a conflicting row yields ErrDuplicateSubmission.
func (r *SubmissionRepository) Create(ctx context.Context, s *model.Submission) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO submissions (id, test_id, student_id, section_type, score, total_points, percentage,
		                          responses, time_remaining_ms, proctoring_summary, flagged, submitted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (test_id, student_id) DO NOTHING
		 RETURNING submitted_at`,
		s.ID, s.TestID, s.StudentID, s.SectionType, s.Score, s.TotalPoints, s.Percentage,
		s.Responses, s.TimeRemainingMs, s.Proctoring, s.Proctoring.Flagged, s.SubmittedAt,
	).Scan(&s.SubmittedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrDuplicateSubmission
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateSubmission
		}
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

const submissionColumns = `id, test_id, student_id, section_type, score, total_points, percentage,
	responses, time_remaining_ms, proctoring_summary, submitted_at`

func scanSubmission(row pgx.CollectableRow) (*model.Submission, error) {
	s := &model.Submission{}
	err := row.Scan(&s.ID, &s.TestID, &s.StudentID, &s.SectionType, &s.Score, &s.TotalPoints, &s.Percentage,
		&s.Responses, &s.TimeRemainingMs, &s.Proctoring, &s.SubmittedAt)
	return s, err
}
