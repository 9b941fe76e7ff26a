package runner

import (
	"context"

	"github.com/eptportal/ept-backend/internal/model"
)

// ContentRequest identifies the section to deliver.
type ContentRequest struct {
	Date      string
	Section   model.SectionType
	StudentID string
}

// Content is one section's deliverable, answer keys included. Questions is
// set for reading and listening, Prompts for writing.
type Content struct {
	Test      model.Test
	Questions []model.Question
	Prompts   []model.WritingPrompt
}

// ContentService delivers section content. It returns
// model.ErrAlreadySubmitted when the student has already submitted the
// section and model.ErrTestNotFound when no test is scheduled.
type ContentService interface {
	Fetch(ctx context.Context, req ContentRequest) (*Content, error)
}

// SubmissionService records a section submission. A duplicate yields
// model.ErrAlreadySubmitted.
type SubmissionService interface {
	Submit(ctx context.Context, payload model.SubmissionPayload) (model.SubmitResult, error)
}

// AuditSink receives every integrity observation of the session.
type AuditSink interface {
	Record(ev model.ProctoringEvent)
}

// Observer receives a fresh View after every state change.
type Observer interface {
	OnState(v View)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(View)

func (f ObserverFunc) OnState(v View) { f(v) }

// Session identifies the student and tab a runner serves.
type Session struct {
	StudentID string
	Date      string
	TabID     string
}
