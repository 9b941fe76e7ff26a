package model

import (
	"time"

	"github.com/google/uuid"
)

// FocusEvent is one entry of the integrity log carried in a summary.
type FocusEvent struct {
	Type      string    `json:"type"`
	Action    string    `json:"action,omitempty"`
	Key       string    `json:"key,omitempty"`
	Modifier  string    `json:"modifier,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ProctoringSummary is the integrity digest attached to every submission:
// the monitor's snapshot at submit time plus the derived flagged bit.
type ProctoringSummary struct {
	FullscreenExits          int          `json:"fullscreen_exits"`
	WindowBlurs              int          `json:"window_blurs"`
	CopyPasteAttempts        int          `json:"copy_paste_attempts"`
	MultipleMonitorsDetected bool         `json:"multiple_monitors_detected"`
	FocusEvents              []FocusEvent `json:"focus_events"`
	HasStartedTest           bool         `json:"has_started_test"`
	ShouldForceSubmit        bool         `json:"should_force_submit"`
	Timestamp                time.Time    `json:"timestamp"`
	ForceSubmitTriggered     bool         `json:"force_submit_triggered"`
	Flagged                  bool         `json:"flagged"`
}

// MaxFocusEvents bounds the log entries a summary may carry.
const MaxFocusEvents = 50

// Derive returns s with the flagged bit recomputed and the event log
// trimmed to its most recent MaxFocusEvents entries. Flagged means more
// than one fullscreen exit or blur, any copy/paste attempt, a second
// monitor, or a forced submission.
func (s ProctoringSummary) Derive() ProctoringSummary {
	if len(s.FocusEvents) > MaxFocusEvents {
		s.FocusEvents = s.FocusEvents[len(s.FocusEvents)-MaxFocusEvents:]
	}
	s.FocusEvents = append(make([]FocusEvent, 0, len(s.FocusEvents)), s.FocusEvents...)
	s.Flagged = s.FullscreenExits > 1 || s.WindowBlurs > 1 || s.CopyPasteAttempts > 0 ||
		s.MultipleMonitorsDetected || s.ForceSubmitTriggered
	return s
}

// SubmissionPayload is what a section hands to the submission service.
// Score and Percentage are nil for writing sections.
type SubmissionPayload struct {
	TestID              string            `json:"test_id" binding:"required,max=64"`
	StudentID           string            `json:"student_id" binding:"required,eptid"`
	SectionType         SectionType       `json:"section_type" binding:"required,section"`
	Responses           map[string]string `json:"responses" binding:"required"`
	Score               *int              `json:"score"`
	TotalPoints         int               `json:"total_points" binding:"min=0"`
	Percentage          *int              `json:"percentage"`
	TimeRemainingMs     int64             `json:"time_remaining_ms" binding:"min=0"`
	SubmissionTimestamp time.Time         `json:"submission_timestamp"`
	ProctoringSummary   ProctoringSummary `json:"proctoring_summary"`
}

// SubmitStatus is the outcome reported by the submission service.
type SubmitStatus string

const (
	SubmitAccepted         SubmitStatus = "accepted"
	SubmitAlreadySubmitted SubmitStatus = "already_submitted"
)

// SubmitResult is returned for an accepted or duplicate submission.
type SubmitResult struct {
	Status      SubmitStatus `json:"status"`
	SubmittedAt time.Time    `json:"submitted_at"`
	Score       *int         `json:"score"`
	TotalPoints int          `json:"total_points"`
}

// Submission is the durable record of one submitted section.
type Submission struct {
	ID              uuid.UUID         `json:"id"`
	TestID          string            `json:"test_id"`
	StudentID       string            `json:"student_id"`
	SectionType     SectionType       `json:"section_type"`
	Score           *int              `json:"score"`
	TotalPoints     int               `json:"total_points"`
	Percentage      *int              `json:"percentage"`
	Responses       map[string]string `json:"responses"`
	TimeRemainingMs int64             `json:"time_remaining_ms"`
	Proctoring      ProctoringSummary `json:"proctoring_summary"`
	SubmittedAt     time.Time         `json:"submitted_at"`
}

// SectionResult is one row of the student's results page.
type SectionResult struct {
	SectionType SectionType `json:"section_type"`
	TestID      string      `json:"test_id"`
	Score       *int        `json:"score"`
	TotalPoints int         `json:"total_points"`
	Percentage  *int        `json:"percentage"`
	Completed   bool        `json:"completed"`
	Flagged     bool        `json:"flagged"`
	SubmittedAt time.Time   `json:"submitted_at"`
}
