package config

import (
	"fmt"
	"os"
	"time"

	"github.com/eptportal/ept-backend/internal/model"
	"gopkg.in/yaml.v3"
)

// Policy is the exam policy: what is delivered, for how long, and how
// strictly integrity is enforced.
type Policy struct {
	Sections    []SectionPolicy   `yaml:"sections"`
	Proctoring  ProctoringPolicy  `yaml:"proctoring"`
	Timer       TimerPolicy       `yaml:"timer"`
	Persistence PersistencePolicy `yaml:"persistence"`
	Schedule    SchedulePolicy    `yaml:"schedule"`
}

// SectionPolicy is one entry of the fixed section sequence.
type SectionPolicy struct {
	Type     model.SectionType `yaml:"type"`
	Duration time.Duration     `yaml:"duration"`
}

// ProctoringPolicy holds the force-submit thresholds and monitor tuning.
type ProctoringPolicy struct {
	MaxFullscreenExits   int           `yaml:"max_fullscreen_exits"`
	MaxWindowBlurs       int           `yaml:"max_window_blurs"`
	MaxCopyPaste         int           `yaml:"max_copy_paste"`
	ForceSubmitCountdown time.Duration `yaml:"force_submit_countdown"`
	EventLogCapacity     int           `yaml:"event_log_capacity"`
	SnapshotEvents       int           `yaml:"snapshot_events"`
	ResizeDebounce       time.Duration `yaml:"resize_debounce"`
	WideScreenWidth      int           `yaml:"wide_screen_width"`
	WindowFillRatio      float64       `yaml:"window_fill_ratio"`
}

// TimerPolicy tunes the countdown of every section.
type TimerPolicy struct {
	Tick       time.Duration `yaml:"tick"`
	Warning    time.Duration `yaml:"warning"`
	AutoSubmit time.Duration `yaml:"auto_submit"`
}

// PersistencePolicy sets the debounce windows of tab-scoped persistence.
type PersistencePolicy struct {
	ResponsesDebounce time.Duration `yaml:"responses_debounce"`
	TimeDebounce      time.Duration `yaml:"time_debounce"`
	TTL               time.Duration `yaml:"ttl"`
}

// SchedulePolicy is the test date catalogue.
type SchedulePolicy struct {
	StartHour    int           `yaml:"start_hour"`
	RegularDates []RegularDate `yaml:"regular_dates"`
	RefugeeDates []RefugeeDate `yaml:"refugee_dates"`
}

// RegularDate is an on-site test day with per-laptop seat capacity.
type RegularDate struct {
	Date             string `yaml:"date" json:"date"`
	Venues           int    `yaml:"venues" json:"venues"`
	CapacityLaptop   int    `yaml:"capacity_with_laptop" json:"capacity_with_laptop"`
	CapacityNoLaptop int    `yaml:"capacity_without_laptop" json:"capacity_without_laptop"`
}

// RefugeeDate is a remote-capable test day.
type RefugeeDate struct {
	Date     string `yaml:"date" json:"date"`
	Location string `yaml:"location" json:"location"`
}

// DefaultPolicy returns the built-in policy: reading, writing, listening
// at one hour each, three strikes per violation category.
func DefaultPolicy() Policy {
	return Policy{
		Sections: []SectionPolicy{
			{Type: model.SectionReading, Duration: 60 * time.Minute},
			{Type: model.SectionWriting, Duration: 60 * time.Minute},
			{Type: model.SectionListening, Duration: 60 * time.Minute},
		},
		Proctoring: ProctoringPolicy{
			MaxFullscreenExits:   3,
			MaxWindowBlurs:       3,
			MaxCopyPaste:         3,
			ForceSubmitCountdown: 10 * time.Second,
			EventLogCapacity:     200,
			SnapshotEvents:       50,
			ResizeDebounce:       300 * time.Millisecond,
			WideScreenWidth:      2560,
			WindowFillRatio:      0.95,
		},
		Timer: TimerPolicy{
			Tick:       time.Second,
			Warning:    5 * time.Minute,
			AutoSubmit: 30 * time.Second,
		},
		Persistence: PersistencePolicy{
			ResponsesDebounce: time.Second,
			TimeDebounce:      5 * time.Second,
			TTL:               12 * time.Hour,
		},
		Schedule: SchedulePolicy{
			StartHour: 10,
		},
	}
}

// LoadPolicy reads path over DefaultPolicy. An empty path returns the
// defaults unchanged.
func LoadPolicy(path string) (Policy, error) {
	p := DefaultPolicy()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read policy %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parse policy: %w", err)
	}
	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("validate policy: %w", err)
	}
	return p, nil
}

// Validate checks the policy for values the exam engine cannot run with.
func (p Policy) Validate() error {
	if len(p.Sections) == 0 {
		return fmt.Errorf("at least one section is required")
	}
	seen := make(map[model.SectionType]bool, len(p.Sections))
	for i, s := range p.Sections {
		if !s.Type.Valid() {
			return fmt.Errorf("section %d has unknown type %q", i, s.Type)
		}
		if seen[s.Type] {
			return fmt.Errorf("section %q listed twice", s.Type)
		}
		seen[s.Type] = true
		if s.Duration <= 0 {
			return fmt.Errorf("section %q must have a positive duration", s.Type)
		}
	}

	pr := p.Proctoring
	if pr.MaxFullscreenExits <= 0 || pr.MaxWindowBlurs <= 0 || pr.MaxCopyPaste <= 0 {
		return fmt.Errorf("violation thresholds must be positive")
	}
	if pr.ForceSubmitCountdown < 0 {
		return fmt.Errorf("force_submit_countdown cannot be negative")
	}
	if pr.EventLogCapacity <= 0 || pr.SnapshotEvents <= 0 {
		return fmt.Errorf("event log sizes must be positive")
	}
	if pr.WindowFillRatio <= 0 || pr.WindowFillRatio > 1 {
		return fmt.Errorf("window_fill_ratio must be in (0, 1]")
	}

	if p.Timer.Tick <= 0 {
		return fmt.Errorf("timer tick must be positive")
	}
	if p.Timer.AutoSubmit > p.Timer.Warning {
		return fmt.Errorf("auto_submit (%s) must not exceed warning (%s)", p.Timer.AutoSubmit, p.Timer.Warning)
	}

	if p.Schedule.StartHour < 0 || p.Schedule.StartHour > 23 {
		return fmt.Errorf("start_hour must be within 0-23")
	}
	return nil
}

// SectionTypes lists the section sequence in delivery order.
func (p Policy) SectionTypes() []model.SectionType {
	out := make([]model.SectionType, len(p.Sections))
	for i, s := range p.Sections {
		out[i] = s.Type
	}
	return out
}

// DurationOf returns the time budget for a section, zero when unknown.
func (p Policy) DurationOf(t model.SectionType) time.Duration {
	for _, s := range p.Sections {
		if s.Type == t {
			return s.Duration
		}
	}
	return 0
}

// RegularDate returns the catalogue entry for date, if any.
func (p Policy) RegularDate(date string) (RegularDate, bool) {
	for _, d := range p.Schedule.RegularDates {
		if d.Date == date {
			return d, true
		}
	}
	return RegularDate{}, false
}

// IsRefugeeDate reports whether date is a remote test day.
func (p Policy) IsRefugeeDate(date string) bool {
	for _, d := range p.Schedule.RefugeeDates {
		if d.Date == date {
			return true
		}
	}
	return false
}
