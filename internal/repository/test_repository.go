package repository

import (
	"context"

	"github.com/eptportal/ept-backend/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TestRepository handles test form data access.
type TestRepository struct {
	pool *pgxpool.Pool
}

// NewTestRepository creates a new TestRepository.
func NewTestRepository(pool *pgxpool.Pool) *TestRepository {
	return &TestRepository{pool: pool}
}

// GetByDateAndType retrieves the test form of a section on a test date.
func (r *TestRepository) GetByDateAndType(ctx context.Context, date string, section model.SectionType) (*model.Test, error) {
	t := &model.Test{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, type, title, test_date, total_points
		 FROM tests WHERE test_date = $1 AND type = $2`, date, section,
	).Scan(&t.ID, &t.Type, &t.Title, &t.Date, &t.TotalPoints)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// GetByID retrieves a test form by its id.
func (r *TestRepository) GetByID(ctx context.Context, id string) (*model.Test, error) {
	t := &model.Test{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, type, title, test_date, total_points FROM tests WHERE id = $1`, id,
	).Scan(&t.ID, &t.Type, &t.Title, &t.Date, &t.TotalPoints)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListDates returns every date with at least one test form, ordered.
func (r *TestRepository) ListDates(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT test_date FROM tests ORDER BY test_date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// Upsert inserts or replaces a test form's header.
func (r *TestRepository) Upsert(ctx context.Context, t *model.Test) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO tests (id, type, title, test_date, total_points)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET
		   type = EXCLUDED.type, title = EXCLUDED.title,
		   test_date = EXCLUDED.test_date, total_points = EXCLUDED.total_points`,
		t.ID, t.Type, t.Title, t.Date, t.TotalPoints,
	)
	return err
}
