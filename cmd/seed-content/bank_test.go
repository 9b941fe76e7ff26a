package main

import (
	"reflect"
	"strings"
	"testing"
)

const sampleBank = `
tests:
  - id: R-OCT3
    type: reading
    title: Reading
    date: "Friday, 03 October"
    sections:
      - title: Passage 1
        body: The river rose.
        questions:
          - text: What rose?
            options: [The river, The sun]
            answer: The river
            points: 2
          - text: Pick both
            options: [A, B, C]
            answer: [A, C]
  - id: W-OCT3
    type: writing
    date: "Friday, 03 October"
    total_points: 20
    prompts:
      - label: Task 1
        title: Opinion
        body: Discuss.
        word_limit: 250
students:
  - ept_id: " EPT-001 "
    name: Ana
    email: " Ana@Example.COM "
`

func TestParseBank(t *testing.T) {
	t.Parallel()

	b, err := parseBank([]byte(sampleBank))
	if err != nil {
		t.Fatalf("parseBank: %v", err)
	}
	if len(b.Tests) != 2 || len(b.Students) != 1 {
		t.Fatalf("got %d tests, %d students", len(b.Tests), len(b.Students))
	}

	reading := b.Tests[0]
	form := reading.toModel()
	if form.TotalPoints != 3 {
		t.Errorf("expected derived total 3, got %d", form.TotalPoints)
	}
	questions, prompts := reading.content()
	if len(prompts) != 0 || len(questions) != 2 {
		t.Fatalf("got %d questions, %d prompts", len(questions), len(prompts))
	}
	if questions[1].Number != 2 || questions[1].SectionNumber != 1 || questions[1].Points != 1 {
		t.Errorf("unexpected numbering %+v", questions[1])
	}
	if !reflect.DeepEqual(questions[1].CorrectAnswers, []string{"A", "C"}) {
		t.Errorf("expected multi-answer key, got %v", questions[1].CorrectAnswers)
	}

	writing := b.Tests[1]
	if got := writing.toModel().TotalPoints; got != 20 {
		t.Errorf("expected authored total 20, got %d", got)
	}
	_, prompts = writing.content()
	if len(prompts) != 1 || prompts[0].WordLimit != 250 || prompts[0].TestID != "W-OCT3" {
		t.Errorf("unexpected prompts %+v", prompts)
	}

	st := b.Students[0].toModel()
	if st.EptID != "EPT-001" || st.Email != "ana@example.com" {
		t.Errorf("expected normalised student, got %+v", st)
	}
}

func TestParseBankRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing id", "tests:\n  - type: reading\n    date: x\n", "id is required"},
		{"bad type", "tests:\n  - id: A\n    type: speaking\n    date: x\n", "unknown type"},
		{"no date", "tests:\n  - id: A\n    type: reading\n", "date is required"},
		{"duplicate", "tests:\n  - {id: A, type: reading, date: x}\n  - {id: A, type: listening, date: x}\n", "duplicate id"},
		{"prompts on reading", "tests:\n  - id: A\n    type: reading\n    date: x\n    prompts: [{label: T}]\n", "only writing"},
		{"map answer", "tests:\n  - id: A\n    type: reading\n    date: x\n    sections:\n      - questions:\n          - text: q\n            answer: {a: b}\n", "answer must be"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := parseBank([]byte(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestPointsDefaultToOne(t *testing.T) {
	t.Parallel()

	if points(bankQuestion{}) != 1 || points(bankQuestion{Points: -2}) != 1 || points(bankQuestion{Points: 3}) != 3 {
		t.Fatal("unexpected point defaults")
	}
}
