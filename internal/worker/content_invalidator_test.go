package worker

import (
	"testing"

	"github.com/eptportal/ept-backend/internal/model"
	"github.com/rs/zerolog"
)

type recordingInvalidator struct {
	calls []ContentUpdate
}

func (r *recordingInvalidator) Invalidate(date string, section model.SectionType) {
	r.calls = append(r.calls, ContentUpdate{Date: date, Section: section})
}

func TestContentInvalidatorApply(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		want    []ContentUpdate
	}{
		{
			name:    "valid update",
			payload: `{"date":"Friday, 03 October","section":"listening"}`,
			want:    []ContentUpdate{{Date: "Friday, 03 October", Section: model.SectionListening}},
		},
		{name: "garbage", payload: `not json`},
		{name: "unknown section", payload: `{"date":"Friday, 03 October","section":"speaking"}`},
		{name: "missing date", payload: `{"section":"reading"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			target := &recordingInvalidator{}
			w := NewContentInvalidator(target, nil, zerolog.Nop())
			w.apply(tt.payload)

			if len(target.calls) != len(tt.want) {
				t.Fatalf("expected %d invalidations, got %v", len(tt.want), target.calls)
			}
			for i := range tt.want {
				if target.calls[i] != tt.want[i] {
					t.Errorf("call %d: expected %+v, got %+v", i, tt.want[i], target.calls[i])
				}
			}
		})
	}
}
