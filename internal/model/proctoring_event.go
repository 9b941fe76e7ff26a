package model

import "time"

// ProctoringEvent is one audited observation queued for durable storage.
type ProctoringEvent struct {
	StudentID   string      `json:"student_id"`
	TestID      string      `json:"test_id"`
	SectionType SectionType `json:"section_type"`
	TabID       string      `json:"tab_id"`
	Type        string      `json:"type"`
	Detail      string      `json:"detail"`
	Timestamp   int64       `json:"timestamp"`
}

// RecordedAt converts the millisecond timestamp.
func (e ProctoringEvent) RecordedAt() time.Time {
	return time.UnixMilli(e.Timestamp)
}
