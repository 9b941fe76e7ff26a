// Package scoring grades objective sections against their answer keys.
package scoring

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/eptportal/ept-backend/internal/model"
)

// Result is the outcome of grading one section.
type Result struct {
	Score       int `json:"score"`
	TotalPoints int `json:"total_points"`
	Percentage  int `json:"percentage"`
}

// ResponseKey addresses a question by 0-based section index and 0-based
// position within that section.
func ResponseKey(sectionIndex, position int) string {
	return fmt.Sprintf("%d-%d", sectionIndex, position)
}

// PromptKey addresses a writing prompt by its 0-based position.
func PromptKey(position int) string {
	return fmt.Sprintf("prompt-%d", position)
}

// Keys returns the response key of every question, in input order. Position
// is the order of appearance within a section number.
func Keys(questions []model.Question) []string {
	seen := make(map[int]int)
	keys := make([]string, len(questions))
	for i, q := range questions {
		pos := seen[q.SectionNumber]
		seen[q.SectionNumber] = pos + 1
		keys[i] = ResponseKey(q.SectionNumber-1, pos)
	}
	return keys
}

// Matches reports whether response equals any accepted answer, ignoring
// case and surrounding whitespace.
func Matches(response string, accepted []string) bool {
	got := normalize(response)
	if got == "" {
		return false
	}
	for _, a := range accepted {
		if normalize(a) == got {
			return true
		}
	}
	return false
}

// Calculate grades responses. Unanswered questions score nothing; a
// question without a point value is worth one point.
func Calculate(questions []model.Question, responses map[string]string) Result {
	var r Result
	for i, key := range Keys(questions) {
		q := questions[i]
		points := q.Points
		if points <= 0 {
			points = 1
		}
		r.TotalPoints += points
		if resp, ok := responses[key]; ok && Matches(resp, q.CorrectAnswers) {
			r.Score += points
		}
	}
	r.Percentage = Percentage(r.Score, r.TotalPoints)
	return r
}

// Percentage rounds score/total to the nearest whole percent; 0 when total is 0.
func Percentage(score, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(score) / float64(total) * 100))
}

// WordCount counts whitespace-separated words. Informational only.
func WordCount(text string) int {
	return len(strings.FieldsFunc(text, unicode.IsSpace))
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
