package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/eptportal/ept-backend/internal/model"
)

func writePolicy(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	return path
}

func TestDefaultPolicyIsValid(t *testing.T) {
	t.Parallel()

	p := DefaultPolicy()
	if err := p.Validate(); err != nil {
		t.Fatalf("DefaultPolicy().Validate() = %v", err)
	}
	want := []model.SectionType{model.SectionReading, model.SectionWriting, model.SectionListening}
	got := p.SectionTypes()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("SectionTypes() = %v, want %v", got, want)
		}
	}
	if d := p.DurationOf(model.SectionWriting); d != time.Hour {
		t.Errorf("DurationOf(writing) = %s, want 1h", d)
	}
}

func TestLoadPolicyOverlaysDefaults(t *testing.T) {
	t.Parallel()

	path := writePolicy(t, `
sections:
  - type: listening
    duration: 45m
timer:
  warning: 10m
schedule:
  regular_dates:
    - { date: "Friday, 03 October", capacity_with_laptop: 2, capacity_without_laptop: 1 }
`)

	p, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("LoadPolicy() error = %v", err)
	}
	if len(p.Sections) != 1 || p.Sections[0].Duration != 45*time.Minute {
		t.Errorf("sections = %+v", p.Sections)
	}
	if p.Timer.Warning != 10*time.Minute {
		t.Errorf("warning = %s, want 10m", p.Timer.Warning)
	}
	if p.Timer.AutoSubmit != 30*time.Second {
		t.Errorf("auto_submit default lost: %s", p.Timer.AutoSubmit)
	}
	if p.Proctoring.MaxWindowBlurs != 3 {
		t.Errorf("max_window_blurs default lost: %d", p.Proctoring.MaxWindowBlurs)
	}
	if d, ok := p.RegularDate("Friday, 03 October"); !ok || d.CapacityLaptop != 2 {
		t.Errorf("RegularDate() = %+v, %v", d, ok)
	}
}

func TestLoadPolicyRejectsInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"unknown section", "sections:\n  - {type: speaking, duration: 10m}\n", "unknown type"},
		{"duplicate section", "sections:\n  - {type: reading, duration: 10m}\n  - {type: reading, duration: 10m}\n", "listed twice"},
		{"zero duration", "sections:\n  - {type: reading, duration: 0s}\n", "positive duration"},
		{"zero threshold", "proctoring:\n  max_copy_paste: 0\n", "thresholds"},
		{"auto submit after warning", "timer:\n  warning: 10s\n  auto_submit: 30s\n", "must not exceed"},
		{"bad hour", "schedule:\n  start_hour: 24\n", "start_hour"},
		{"bad yaml", "sections: [", "parse policy"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := LoadPolicy(writePolicy(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("LoadPolicy() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadPolicyEmptyPath(t *testing.T) {
	t.Parallel()

	p, err := LoadPolicy("")
	if err != nil {
		t.Fatalf("LoadPolicy(\"\") error = %v", err)
	}
	if len(p.Sections) != 3 {
		t.Errorf("expected default sections, got %d", len(p.Sections))
	}
}
