package model

import (
	"encoding/json"
	"strings"
)

// SectionType identifies one timed part of the placement test.
type SectionType string

const (
	SectionReading   SectionType = "reading"
	SectionWriting   SectionType = "writing"
	SectionListening SectionType = "listening"
)

// Valid reports whether s is a known section type.
func (s SectionType) Valid() bool {
	switch s {
	case SectionReading, SectionWriting, SectionListening:
		return true
	}
	return false
}

// Test is one deliverable test form: a section type on a test date.
type Test struct {
	ID          string      `json:"test_id"`
	Type        SectionType `json:"type"`
	Title       string      `json:"title"`
	Date        string      `json:"date"`
	TotalPoints int         `json:"total_points"`
}

// Question is a single gradable item of a reading or listening test.
// SectionNumber is 1-based; Options keeps the order the author wrote.
type Question struct {
	TestID         string   `json:"test_id"`
	SectionNumber  int      `json:"section_number"`
	SectionTitle   string   `json:"section_title"`
	SectionBody    string   `json:"section_body"`
	Number         int      `json:"question_number"`
	Text           string   `json:"text"`
	Options        []string `json:"options"`
	CorrectAnswers []string `json:"correct_answers"`
	Points         int      `json:"points"`
}

// WritingPrompt is one essay task of a writing test.
type WritingPrompt struct {
	TestID    string `json:"test_id"`
	Label     string `json:"label"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	WordLimit int    `json:"word_limit"`
}

// ParseAnswerKey decodes the stored answer-key cell. A JSON array lists
// alternative accepted answers, anything else is a single answer.
func ParseAnswerKey(raw string) []string {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "[") {
		var many []string
		if err := json.Unmarshal([]byte(trimmed), &many); err == nil {
			return many
		}
	}
	if trimmed == "" {
		return nil
	}
	return []string{trimmed}
}

// ParseOptions decodes the stored options cell (a JSON array of strings).
// Malformed or empty cells yield no options.
func ParseOptions(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var opts []string
	if err := json.Unmarshal([]byte(raw), &opts); err != nil {
		return nil
	}
	return opts
}

// ─── Student-facing views ──────────────────────────────────────────

// QuestionView is a question as delivered to a student, without its key.
type QuestionView struct {
	Key     string   `json:"key"`
	Number  int      `json:"question_number"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
	Points  int      `json:"points"`
}

// SectionView groups questions of one passage/part for rendering.
type SectionView struct {
	Number    int            `json:"section_number"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Questions []QuestionView `json:"questions"`
}

// PromptView is a writing prompt as delivered to a student.
type PromptView struct {
	Key       string `json:"key"`
	Label     string `json:"label"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	WordLimit int    `json:"word_limit"`
}

// ContentView is the whole student-facing content of one section.
type ContentView struct {
	TestID      string        `json:"test_id"`
	Type        SectionType   `json:"type"`
	TotalPoints int           `json:"total_points"`
	Sections    []SectionView `json:"sections,omitempty"`
	Prompts     []PromptView  `json:"prompts,omitempty"`
}
