package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eptportal/ept-backend/internal/clock"
	"github.com/eptportal/ept-backend/internal/config"
	"github.com/eptportal/ept-backend/internal/model"
	"github.com/eptportal/ept-backend/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// Registration errors.
var (
	ErrNoBooking           = errors.New("no booking found for this EPT id")
	ErrUnknownTestDate     = errors.New("selected date is not offered")
	ErrAttendanceRequired  = errors.New("attendance must be confirmed")
	ErrRefugeeDateMismatch = errors.New("refugee dates are reserved for refugee candidates")
)

// BookingStore reads and writes test date reservations.
type BookingStore interface {
	GetByEptID(ctx context.Context, eptID string) (*model.Booking, error)
	CountsByDate(ctx context.Context) (map[string]model.DateCapacity, error)
	CreateWithin(ctx context.Context, b *model.Booking, capacity int) error
}

// StudentWriter registers the identity behind a booking.
type StudentWriter interface {
	Upsert(ctx context.Context, s *model.Student) error
}

// TestDates is the public date catalogue with live seat usage.
type TestDates struct {
	RegularDates []model.DateCapacity `json:"regular_dates"`
	RefugeeDates []config.RefugeeDate `json:"refugee_dates"`
}

// AvailabilityStatus tells a student whether their booked test is open.
type AvailabilityStatus struct {
	SelectedDate string                 `json:"selected_date"`
	Availability clock.TestAvailability `json:"availability"`
	StartHour    int                    `json:"start_hour"`
	TestMode     bool                   `json:"test_mode"`
}

// RegistrationService handles bookings and the test date catalogue.
type RegistrationService struct {
	bookings BookingStore
	students StudentWriter
	policy   config.Policy
	clock    clock.Clock
	testMode bool
	log      zerolog.Logger
}

// NewRegistrationService creates a new RegistrationService. testMode makes
// every booked test available immediately.
func NewRegistrationService(bookings BookingStore, students StudentWriter, policy config.Policy, clk clock.Clock, testMode bool, log zerolog.Logger) *RegistrationService {
	return &RegistrationService{
		bookings: bookings,
		students: students,
		policy:   policy,
		clock:    clk,
		testMode: testMode,
		log:      log.With().Str("component", "registration_service").Logger(),
	}
}

// Check looks up the booking of eptID.
func (s *RegistrationService) Check(ctx context.Context, eptID string) (*model.RegistrationStatus, error) {
	b, err := s.bookings.GetByEptID(ctx, eptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &model.RegistrationStatus{HasRegistration: false}, nil
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return &model.RegistrationStatus{HasRegistration: true, Registration: b}, nil
}

// Book reserves a date for a student and registers their identity. Regular
// dates enforce the seat capacity of the student's laptop group.
func (s *RegistrationService) Book(ctx context.Context, req model.CreateBookingRequest) (*model.Booking, error) {
	if !req.ConfirmedAttendance {
		return nil, ErrAttendanceRequired
	}

	b := &model.Booking{
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		EptID:        strings.TrimSpace(req.EptID),
		IsRefugee:    req.IsRefugee,
		HasLaptop:    req.HasLaptop,
		SelectedDate: strings.TrimSpace(req.SelectedDate),
	}

	capacity := 0
	switch {
	case s.policy.IsRefugeeDate(b.SelectedDate):
		if !b.IsRefugee {
			return nil, ErrRefugeeDateMismatch
		}
	default:
		d, ok := s.policy.RegularDate(b.SelectedDate)
		if !ok {
			return nil, ErrUnknownTestDate
		}
		capacity = d.CapacityNoLaptop
		if b.HasLaptop {
			capacity = d.CapacityLaptop
		}
	}

	if err := s.bookings.CreateWithin(ctx, b, capacity); err != nil {
		if errors.Is(err, repository.ErrDuplicateBooking) || errors.Is(err, repository.ErrDateFull) {
			return nil, err
		}
		return nil, fmt.Errorf("create booking: %w", err)
	}

	student := &model.Student{EptID: b.EptID, Name: b.Name, Email: b.Email}
	if err := s.students.Upsert(ctx, student); err != nil {
		return nil, fmt.Errorf("register student: %w", err)
	}

	s.log.Info().
		Str("ept_id", b.EptID).
		Str("date", b.SelectedDate).
		Bool("has_laptop", b.HasLaptop).
		Bool("is_refugee", b.IsRefugee).
		Msg("Booking created")
	return b, nil
}

// Dates returns the date catalogue with seats taken per laptop group.
func (s *RegistrationService) Dates(ctx context.Context) (*TestDates, error) {
	counts, err := s.bookings.CountsByDate(ctx)
	if err != nil {
		return nil, fmt.Errorf("count bookings: %w", err)
	}

	out := &TestDates{
		RegularDates: make([]model.DateCapacity, 0, len(s.policy.Schedule.RegularDates)),
		RefugeeDates: s.policy.Schedule.RefugeeDates,
	}
	if out.RefugeeDates == nil {
		out.RefugeeDates = []config.RefugeeDate{}
	}
	for _, d := range s.policy.Schedule.RegularDates {
		c := counts[d.Date]
		out.RegularDates = append(out.RegularDates, model.DateCapacity{
			Date:             d.Date,
			WithLaptop:       c.WithLaptop,
			WithoutLaptop:    c.WithoutLaptop,
			CapacityLaptop:   d.CapacityLaptop,
			CapacityNoLaptop: d.CapacityNoLaptop,
		})
	}
	return out, nil
}

// Availability reports whether the student's booked test can be taken now.
func (s *RegistrationService) Availability(ctx context.Context, eptID string) (*AvailabilityStatus, error) {
	b, err := s.bookings.GetByEptID(ctx, eptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoBooking
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return s.availabilityOf(b.SelectedDate, s.clock.Now())
}

func (s *RegistrationService) availabilityOf(date string, now time.Time) (*AvailabilityStatus, error) {
	a, err := clock.Availability(date, now, s.testMode, s.policy.Schedule.StartHour)
	if err != nil {
		return nil, err
	}
	return &AvailabilityStatus{
		SelectedDate: date,
		Availability: a,
		StartHour:    s.policy.Schedule.StartHour,
		TestMode:     s.testMode,
	}, nil
}
