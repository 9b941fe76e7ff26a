package main

import (
	"fmt"
	"strings"

	"github.com/eptportal/ept-backend/internal/model"
	"gopkg.in/yaml.v3"
)

// bank is the authoring format of test content.
type bank struct {
	Tests    []bankTest    `yaml:"tests"`
	Students []bankStudent `yaml:"students"`
}

type bankTest struct {
	ID          string            `yaml:"id"`
	Type        model.SectionType `yaml:"type"`
	Title       string            `yaml:"title"`
	Date        string            `yaml:"date"`
	TotalPoints int               `yaml:"total_points"`
	Sections    []bankSection     `yaml:"sections"`
	Prompts     []bankPrompt      `yaml:"prompts"`
}

// bankSection is a passage or recording with its questions.
type bankSection struct {
	Title     string         `yaml:"title"`
	Body      string         `yaml:"body"`
	Questions []bankQuestion `yaml:"questions"`
}

type bankQuestion struct {
	Text    string   `yaml:"text"`
	Options []string `yaml:"options"`
	// Answer is one accepted answer or a list of them.
	Answer yaml.Node `yaml:"answer"`
	Points int       `yaml:"points"`
}

type bankPrompt struct {
	Label     string `yaml:"label"`
	Title     string `yaml:"title"`
	Body      string `yaml:"body"`
	WordLimit int    `yaml:"word_limit"`
}

type bankStudent struct {
	EptID string `yaml:"ept_id"`
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

func parseBank(raw []byte) (*bank, error) {
	var b bank
	if err := yaml.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("decode bank: %w", err)
	}

	seen := make(map[string]bool, len(b.Tests))
	for i, t := range b.Tests {
		switch {
		case t.ID == "":
			return nil, fmt.Errorf("tests[%d]: id is required", i)
		case seen[t.ID]:
			return nil, fmt.Errorf("tests[%d]: duplicate id %q", i, t.ID)
		case !t.Type.Valid():
			return nil, fmt.Errorf("test %s: unknown type %q", t.ID, t.Type)
		case strings.TrimSpace(t.Date) == "":
			return nil, fmt.Errorf("test %s: date is required", t.ID)
		case t.Type == model.SectionWriting && len(t.Sections) > 0:
			return nil, fmt.Errorf("test %s: writing tests carry prompts, not questions", t.ID)
		case t.Type != model.SectionWriting && len(t.Prompts) > 0:
			return nil, fmt.Errorf("test %s: only writing tests carry prompts", t.ID)
		}
		seen[t.ID] = true

		for si, s := range t.Sections {
			for qi, q := range s.Questions {
				if _, err := decodeAnswer(q.Answer); err != nil {
					return nil, fmt.Errorf("test %s section %d question %d: %w", t.ID, si+1, qi+1, err)
				}
			}
		}
	}
	return &b, nil
}

// decodeAnswer accepts a scalar or a sequence of scalars.
func decodeAnswer(n yaml.Node) ([]string, error) {
	switch n.Kind {
	case 0:
		return nil, nil
	case yaml.ScalarNode:
		return []string{n.Value}, nil
	case yaml.SequenceNode:
		var many []string
		if err := n.Decode(&many); err != nil {
			return nil, fmt.Errorf("answer: %w", err)
		}
		return many, nil
	}
	return nil, fmt.Errorf("answer must be a string or a list of strings")
}

func (t bankTest) toModel() model.Test {
	form := model.Test{
		ID:          t.ID,
		Type:        t.Type,
		Title:       t.Title,
		Date:        t.Date,
		TotalPoints: t.TotalPoints,
	}
	if form.TotalPoints == 0 && t.Type != model.SectionWriting {
		for _, s := range t.Sections {
			for _, q := range s.Questions {
				form.TotalPoints += points(q)
			}
		}
	}
	return form
}

// content numbers sections and questions in authoring order.
func (t bankTest) content() ([]model.Question, []model.WritingPrompt) {
	var questions []model.Question
	number := 0
	for si, s := range t.Sections {
		for _, q := range s.Questions {
			number++
			answers, _ := decodeAnswer(q.Answer)
			questions = append(questions, model.Question{
				TestID:         t.ID,
				SectionNumber:  si + 1,
				SectionTitle:   s.Title,
				SectionBody:    s.Body,
				Number:         number,
				Text:           q.Text,
				Options:        q.Options,
				CorrectAnswers: answers,
				Points:         points(q),
			})
		}
	}

	prompts := make([]model.WritingPrompt, 0, len(t.Prompts))
	for _, p := range t.Prompts {
		prompts = append(prompts, model.WritingPrompt{
			TestID:    t.ID,
			Label:     p.Label,
			Title:     p.Title,
			Body:      p.Body,
			WordLimit: p.WordLimit,
		})
	}
	return questions, prompts
}

func points(q bankQuestion) int {
	if q.Points <= 0 {
		return 1
	}
	return q.Points
}

func (s bankStudent) toModel() model.Student {
	return model.Student{
		EptID: strings.TrimSpace(s.EptID),
		Name:  strings.TrimSpace(s.Name),
		Email: strings.ToLower(strings.TrimSpace(s.Email)),
	}
}
