package scoring

import (
	"testing"

	"github.com/eptportal/ept-backend/internal/model"
)

func TestCalculate(t *testing.T) {
	t.Parallel()

	twoQuestions := []model.Question{
		{SectionNumber: 1, Number: 1, CorrectAnswers: []string{"B"}, Points: 5},
		{SectionNumber: 1, Number: 2, CorrectAnswers: []string{"A", "C"}, Points: 3},
	}

	tests := []struct {
		name      string
		questions []model.Question
		responses map[string]string
		want      Result
	}{
		{
			name:      "case-insensitive and alternative answers",
			questions: twoQuestions,
			responses: map[string]string{"0-0": "b", "0-1": "C"},
			want:      Result{Score: 8, TotalPoints: 8, Percentage: 100},
		},
		{
			name:      "whitespace is trimmed",
			questions: twoQuestions,
			responses: map[string]string{"0-0": "  B \n", "0-1": "x"},
			want:      Result{Score: 5, TotalPoints: 8, Percentage: 63},
		},
		{
			name:      "no responses",
			questions: twoQuestions,
			responses: map[string]string{},
			want:      Result{Score: 0, TotalPoints: 8, Percentage: 0},
		},
		{
			name:      "empty test",
			questions: nil,
			responses: map[string]string{"0-0": "A"},
			want:      Result{},
		},
		{
			name: "missing points default to one",
			questions: []model.Question{
				{SectionNumber: 1, CorrectAnswers: []string{"A"}},
				{SectionNumber: 2, CorrectAnswers: []string{"D"}},
			},
			responses: map[string]string{"0-0": "a", "1-0": "d"},
			want:      Result{Score: 2, TotalPoints: 2, Percentage: 100},
		},
		{
			name: "blank response never matches a blank key",
			questions: []model.Question{
				{SectionNumber: 1, CorrectAnswers: []string{""}, Points: 2},
			},
			responses: map[string]string{"0-0": " "},
			want:      Result{Score: 0, TotalPoints: 2, Percentage: 0},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Calculate(tt.questions, tt.responses); got != tt.want {
				t.Errorf("Calculate() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestKeysFollowSectionPosition(t *testing.T) {
	t.Parallel()

	questions := []model.Question{
		{SectionNumber: 1, Number: 1},
		{SectionNumber: 1, Number: 2},
		{SectionNumber: 2, Number: 3},
		{SectionNumber: 1, Number: 4},
		{SectionNumber: 2, Number: 5},
	}
	want := []string{"0-0", "0-1", "1-0", "0-2", "1-1"}

	got := Keys(questions)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Keys() = %v, want %v", got, want)
		}
	}
}

func TestPercentage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		score, total, want int
	}{
		{0, 0, 0},
		{1, 3, 33},
		{2, 3, 67},
		{1, 2, 50},
		{1, 8, 13},
		{8, 8, 100},
	}
	for _, tt := range tests {
		if got := Percentage(tt.score, tt.total); got != tt.want {
			t.Errorf("Percentage(%d, %d) = %d, want %d", tt.score, tt.total, got, tt.want)
		}
	}
}

func TestWordCount(t *testing.T) {
	t.Parallel()

	tests := map[string]int{
		"":                           0,
		"   ":                        0,
		"one":                        1,
		"Dear  Sir,\n\tI am writing": 5,
	}
	for text, want := range tests {
		if got := WordCount(text); got != want {
			t.Errorf("WordCount(%q) = %d, want %d", text, got, want)
		}
	}
}
