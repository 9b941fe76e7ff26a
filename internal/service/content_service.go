package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/eptportal/ept-backend/internal/cache"
	"github.com/eptportal/ept-backend/internal/config"
	"github.com/eptportal/ept-backend/internal/model"
	"github.com/eptportal/ept-backend/internal/runner"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// TestStore reads test forms and their content.
type TestStore interface {
	GetByDateAndType(ctx context.Context, date string, section model.SectionType) (*model.Test, error)
}

// ContentStore reads the questions and prompts of a test form.
type ContentStore interface {
	ListByTest(ctx context.Context, testID string) ([]model.Question, error)
	ListPromptsByTest(ctx context.Context, testID string) ([]model.WritingPrompt, error)
}

// SubmissionHistory answers whether a student already submitted a section.
type SubmissionHistory interface {
	LatestBySection(ctx context.Context, studentID string, section model.SectionType) (*model.Submission, error)
}

// ContentService delivers the content of one section to a student.
type ContentService struct {
	tests       TestStore
	content     ContentStore
	submissions SubmissionHistory
	cache       *cache.RequestCache[*runner.Content]
	log         zerolog.Logger
}

// NewContentService creates a new ContentService. Content reads are cached
// per (date, section) in c; submission checks never are.
func NewContentService(tests TestStore, content ContentStore, submissions SubmissionHistory, c *cache.RequestCache[*runner.Content], log zerolog.Logger) *ContentService {
	return &ContentService{
		tests:       tests,
		content:     content,
		submissions: submissions,
		cache:       c,
		log:         log.With().Str("component", "content_service").Logger(),
	}
}

// Fetch returns the section's test form with its questions or prompts,
// answer keys included. It fails with model.ErrAlreadySubmitted when the
// student has any submission of the section type.
func (s *ContentService) Fetch(ctx context.Context, req runner.ContentRequest) (*runner.Content, error) {
	if !req.Section.Valid() {
		return nil, fmt.Errorf("unknown section %q", req.Section)
	}

	if req.StudentID != "" {
		_, err := s.submissions.LatestBySection(ctx, req.StudentID, req.Section)
		switch {
		case err == nil:
			return nil, model.ErrAlreadySubmitted
		case !errors.Is(err, pgx.ErrNoRows):
			return nil, fmt.Errorf("check submission: %w", err)
		}
	}

	key := config.CacheKey.TestContentKey(req.Date, string(req.Section))
	if s.cache != nil {
		if c, ok := s.cache.Get(key); ok {
			return c, nil
		}
	}

	test, err := s.tests.GetByDateAndType(ctx, req.Date, req.Section)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrTestNotFound
		}
		return nil, fmt.Errorf("get test: %w", err)
	}

	c := &runner.Content{Test: *test}
	if req.Section == model.SectionWriting {
		c.Prompts, err = s.content.ListPromptsByTest(ctx, test.ID)
		if err != nil {
			return nil, fmt.Errorf("list prompts: %w", err)
		}
	} else {
		c.Questions, err = s.content.ListByTest(ctx, test.ID)
		if err != nil {
			return nil, fmt.Errorf("list questions: %w", err)
		}
	}

	if s.cache != nil {
		s.cache.Set(key, c)
	}
	s.log.Debug().
		Str("test_id", test.ID).
		Str("section", string(req.Section)).
		Int("questions", len(c.Questions)).
		Int("prompts", len(c.Prompts)).
		Msg("Section content loaded")
	return c, nil
}

// Deliver returns the student-facing rendering of a section, keys stripped.
func (s *ContentService) Deliver(ctx context.Context, req runner.ContentRequest) (*model.ContentView, error) {
	c, err := s.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	return runner.ContentViewOf(c), nil
}

// Invalidate drops the cached content of a section.
func (s *ContentService) Invalidate(date string, section model.SectionType) {
	if s.cache != nil {
		s.cache.Delete(config.CacheKey.TestContentKey(date, string(section)))
	}
}
