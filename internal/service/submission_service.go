package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eptportal/ept-backend/internal/model"
	"github.com/eptportal/ept-backend/internal/repository"
	"github.com/eptportal/ept-backend/internal/scoring"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// ErrInvalidSubmission reports a payload the service refuses to record.
var ErrInvalidSubmission = errors.New("invalid submission")

// TestByID reads a test form by id.
type TestByID interface {
	GetByID(ctx context.Context, id string) (*model.Test, error)
}

// SubmissionStore is the append-only submission log.
type SubmissionStore interface {
	GetByTestAndStudent(ctx context.Context, testID, studentID string) (*model.Submission, error)
	Create(ctx context.Context, s *model.Submission) error
}

// SubmissionService records section submissions exactly once per test
// form and student, grading objective sections on the server.
type SubmissionService struct {
	tests       TestByID
	content     ContentStore
	submissions SubmissionStore
	now         func() time.Time
	log         zerolog.Logger
}

// NewSubmissionService creates a new SubmissionService.
func NewSubmissionService(tests TestByID, content ContentStore, submissions SubmissionStore, log zerolog.Logger) *SubmissionService {
	return &SubmissionService{
		tests:       tests,
		content:     content,
		submissions: submissions,
		now:         time.Now,
		log:         log.With().Str("component", "submission_service").Logger(),
	}
}

// Submit validates and stores p. A second submission of the same test by
// the same student yields model.ErrAlreadySubmitted and leaves the first
// one untouched.
func (s *SubmissionService) Submit(ctx context.Context, p model.SubmissionPayload) (model.SubmitResult, error) {
	if err := validatePayload(p); err != nil {
		return model.SubmitResult{}, err
	}

	test, err := s.tests.GetByID(ctx, p.TestID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.SubmitResult{}, model.ErrTestNotFound
		}
		return model.SubmitResult{}, fmt.Errorf("get test: %w", err)
	}
	if test.Type != p.SectionType {
		return model.SubmitResult{}, fmt.Errorf("%w: test %s is a %s test", ErrInvalidSubmission, test.ID, test.Type)
	}

	if _, err := s.submissions.GetByTestAndStudent(ctx, p.TestID, p.StudentID); err == nil {
		return model.SubmitResult{}, model.ErrAlreadySubmitted
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return model.SubmitResult{}, fmt.Errorf("check duplicate: %w", err)
	}

	sub := &model.Submission{
		ID:              uuid.New(),
		TestID:          p.TestID,
		StudentID:       p.StudentID,
		SectionType:     p.SectionType,
		TotalPoints:     p.TotalPoints,
		Responses:       p.Responses,
		TimeRemainingMs: p.TimeRemainingMs,
		SubmittedAt:     s.now().UTC(),
	}
	if !p.SubmissionTimestamp.IsZero() {
		sub.SubmittedAt = p.SubmissionTimestamp.UTC()
	}
	// The flagged bit is derived, never taken from the client.
	sub.Proctoring = p.ProctoringSummary.Derive()

	if p.SectionType != model.SectionWriting {
		questions, err := s.content.ListByTest(ctx, p.TestID)
		if err != nil {
			return model.SubmitResult{}, fmt.Errorf("list questions: %w", err)
		}
		r := scoring.Calculate(questions, p.Responses)
		sub.Score = &r.Score
		sub.Percentage = &r.Percentage
		sub.TotalPoints = r.TotalPoints

		if p.Score != nil && *p.Score != r.Score {
			s.log.Warn().
				Str("test_id", p.TestID).
				Str("student_id", p.StudentID).
				Int("client_score", *p.Score).
				Int("server_score", r.Score).
				Msg("Client score disagrees with server grading")
		}
	} else if sub.TotalPoints == 0 {
		sub.TotalPoints = test.TotalPoints
	}

	if err := s.submissions.Create(ctx, sub); err != nil {
		if errors.Is(err, repository.ErrDuplicateSubmission) {
			return model.SubmitResult{}, model.ErrAlreadySubmitted
		}
		return model.SubmitResult{}, err
	}

	s.log.Info().
		Str("submission_id", sub.ID.String()).
		Str("test_id", sub.TestID).
		Str("student_id", sub.StudentID).
		Str("section", string(sub.SectionType)).
		Bool("flagged", sub.Proctoring.Flagged).
		Msg("Submission recorded")

	return model.SubmitResult{
		Status:      model.SubmitAccepted,
		SubmittedAt: sub.SubmittedAt,
		Score:       sub.Score,
		TotalPoints: sub.TotalPoints,
	}, nil
}

func validatePayload(p model.SubmissionPayload) error {
	switch {
	case p.TestID == "":
		return fmt.Errorf("%w: test id is required", ErrInvalidSubmission)
	case p.StudentID == "":
		return fmt.Errorf("%w: student id is required", ErrInvalidSubmission)
	case !p.SectionType.Valid():
		return fmt.Errorf("%w: unknown section %q", ErrInvalidSubmission, p.SectionType)
	case p.Responses == nil:
		return fmt.Errorf("%w: responses are required", ErrInvalidSubmission)
	case p.TimeRemainingMs < 0:
		return fmt.Errorf("%w: negative remaining time", ErrInvalidSubmission)
	}
	return nil
}
