package runner

import (
	"github.com/eptportal/ept-backend/internal/model"
	"github.com/eptportal/ept-backend/internal/proctor"
	"github.com/eptportal/ept-backend/internal/scoring"
)

// Phase of the current section.
type Phase string

const (
	PhaseLoading       Phase = "loading"
	PhaseAwaitingStart Phase = "awaiting_start"
	PhaseActive        Phase = "active"
	PhaseSubmitting    Phase = "submitting"
	PhaseConfirmed     Phase = "confirmed"
	PhaseError         Phase = "error"
	PhaseDone          Phase = "done"
	PhaseClosed        Phase = "closed"
)

// Redirect targets announced to the tab.
const (
	RedirectTestComplete = "test-complete"
	RedirectHome         = "home"
)

// View is what the tab renders. Content is only set on the first view
// after a section loads; Seq orders views so stale ones can be dropped.
type View struct {
	Seq          uint64            `json:"seq"`
	Phase        Phase             `json:"phase"`
	Section      model.SectionType `json:"section"`
	SectionIndex int               `json:"section_index"`
	SectionCount int               `json:"section_count"`
	IsLast       bool              `json:"is_last_section"`

	RemainingMs    int64 `json:"remaining_ms"`
	Warning        bool  `json:"warning"`
	AutoSubmitting bool  `json:"auto_submitting"`
	// Countdown is the force-submit countdown in seconds, or -1.
	Countdown int `json:"countdown"`

	Proctoring              bool             `json:"proctoring"`
	Fullscreen              bool             `json:"fullscreen"`
	NeedsFullscreenRecovery bool             `json:"needs_fullscreen_recovery"`
	ExitWarning             bool             `json:"exit_warning"`
	Warnings                proctor.Warnings `json:"warnings"`

	Content    *model.ContentView `json:"content,omitempty"`
	Responses  map[string]string  `json:"responses,omitempty"`
	WordCounts map[string]int     `json:"word_counts,omitempty"`

	Error           string              `json:"error,omitempty"`
	SubmissionError string              `json:"submission_error,omitempty"`
	Result          *model.SubmitResult `json:"result,omitempty"`
	Redirect        string              `json:"redirect,omitempty"`
}

// ContentViewOf strips answer keys from c and assigns each question and
// prompt the response key it is answered under.
func ContentViewOf(c *Content) *model.ContentView {
	v := &model.ContentView{
		TestID:      c.Test.ID,
		Type:        c.Test.Type,
		TotalPoints: c.Test.TotalPoints,
	}

	if c.Test.Type == model.SectionWriting {
		for i, p := range c.Prompts {
			v.Prompts = append(v.Prompts, model.PromptView{
				Key:       scoring.PromptKey(i),
				Label:     p.Label,
				Title:     p.Title,
				Body:      p.Body,
				WordLimit: p.WordLimit,
			})
		}
		return v
	}

	keys := scoring.Keys(c.Questions)
	index := make(map[int]int)
	for i, q := range c.Questions {
		at, ok := index[q.SectionNumber]
		if !ok {
			at = len(v.Sections)
			index[q.SectionNumber] = at
			v.Sections = append(v.Sections, model.SectionView{
				Number: q.SectionNumber,
				Title:  q.SectionTitle,
				Body:   q.SectionBody,
			})
		}
		v.Sections[at].Questions = append(v.Sections[at].Questions, model.QuestionView{
			Key:     keys[i],
			Number:  q.Number,
			Text:    q.Text,
			Options: q.Options,
			Points:  q.Points,
		})
	}
	return v
}

// addressableKeys returns the set of response keys c accepts.
func addressableKeys(c *Content) map[string]bool {
	known := make(map[string]bool)
	if c.Test.Type == model.SectionWriting {
		for i := range c.Prompts {
			known[scoring.PromptKey(i)] = true
		}
		return known
	}
	for _, k := range scoring.Keys(c.Questions) {
		known[k] = true
	}
	return known
}
