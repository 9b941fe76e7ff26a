package repository

import (
	"context"

	"github.com/eptportal/ept-backend/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StudentRepository handles student data access.
type StudentRepository struct {
	pool *pgxpool.Pool
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(pool *pgxpool.Pool) *StudentRepository {
	return &StudentRepository{pool: pool}
}

// GetByEptID retrieves a student by their EPT id.
func (r *StudentRepository) GetByEptID(ctx context.Context, eptID string) (*model.Student, error) {
	s := &model.Student{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, ept_id, name, email, created_at
		 FROM students WHERE ept_id = $1`, eptID,
	).Scan(&s.ID, &s.EptID, &s.Name, &s.Email, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Upsert inserts a student or refreshes the name and email of an existing one.
func (r *StudentRepository) Upsert(ctx context.Context, s *model.Student) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO students (ept_id, name, email)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (ept_id) DO UPDATE SET name = EXCLUDED.name, email = EXCLUDED.email
		 RETURNING id, created_at`,
		s.EptID, s.Name, s.Email,
	).Scan(&s.ID, &s.CreatedAt)
}
