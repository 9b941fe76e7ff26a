package repository

import (
	"context"
	"errors"

	"github.com/eptportal/ept-backend/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrDuplicateBooking = errors.New("a booking already exists for this EPT id")
	ErrDateFull         = errors.New("no seats left on this date")
)

// BookingRepository handles test date reservations.
type BookingRepository struct {
	pool *pgxpool.Pool
}

// NewBookingRepository creates a new BookingRepository.
func NewBookingRepository(pool *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

// GetByEptID retrieves the booking of a student.
func (r *BookingRepository) GetByEptID(ctx context.Context, eptID string) (*model.Booking, error) {
	b := &model.Booking{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, email, ept_id, is_refugee, has_laptop, selected_date, created_at
		 FROM bookings WHERE ept_id = $1`, eptID,
	).Scan(&b.ID, &b.Name, &b.Email, &b.EptID, &b.IsRefugee, &b.HasLaptop, &b.SelectedDate, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// CountsByDate returns seat usage for every booked date.
func (r *BookingRepository) CountsByDate(ctx context.Context) (map[string]model.DateCapacity, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT selected_date, COUNT(*) FILTER (WHERE has_laptop), COUNT(*) FILTER (WHERE NOT has_laptop)
		 FROM bookings GROUP BY selected_date`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]model.DateCapacity)
	for rows.Next() {
		var c model.DateCapacity
		if err := rows.Scan(&c.Date, &c.WithLaptop, &c.WithoutLaptop); err != nil {
			return nil, err
		}
		out[c.Date] = c
	}
	return out, rows.Err()
}

// CreateWithin inserts a booking unless the laptop group of its date has
// reached capacity. The count and insert share a transaction that locks
// the date's rows. A capacity of zero or less means unlimited.
func (r *BookingRepository) CreateWithin(ctx context.Context, b *model.Booking, capacity int) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, b.SelectedDate); err != nil {
		return err
	}

	if capacity > 0 {
		var taken int
		if err := tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM bookings WHERE selected_date = $1 AND has_laptop = $2`,
			b.SelectedDate, b.HasLaptop,
		).Scan(&taken); err != nil {
			return err
		}
		if taken >= capacity {
			return ErrDateFull
		}
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO bookings (name, email, ept_id, is_refugee, has_laptop, selected_date)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		b.Name, b.Email, b.EptID, b.IsRefugee, b.HasLaptop, b.SelectedDate,
	).Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateBooking
		}
		return err
	}
	return tx.Commit(ctx)
}
