package service

import (
	"context"
	"fmt"

	"github.com/eptportal/ept-backend/internal/model"
)

// ResultStore lists the newest submission per section of a student.
type ResultStore interface {
	ListLatestByStudent(ctx context.Context, studentID string) ([]*model.Submission, error)
}

// ResultService builds the student's results page.
type ResultService struct {
	submissions ResultStore
}

// NewResultService creates a new ResultService.
func NewResultService(submissions ResultStore) *ResultService {
	return &ResultService{submissions: submissions}
}

// Results returns one entry per submitted section type, keyed by type.
func (s *ResultService) Results(ctx context.Context, studentID string) (map[model.SectionType]model.SectionResult, error) {
	subs, err := s.submissions.ListLatestByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}

	out := make(map[model.SectionType]model.SectionResult, len(subs))
	for _, sub := range subs {
		out[sub.SectionType] = model.SectionResult{
			SectionType: sub.SectionType,
			TestID:      sub.TestID,
			Score:       sub.Score,
			TotalPoints: sub.TotalPoints,
			Percentage:  sub.Percentage,
			Completed:   true,
			Flagged:     sub.Proctoring.Flagged,
			SubmittedAt: sub.SubmittedAt,
		}
	}
	return out, nil
}
