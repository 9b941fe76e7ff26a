package worker

import (
	"errors"
	"testing"
)

func TestDecodeEvent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		wantErr error
		wantAny bool
	}{
		{
			name: "complete event",
			raw:  `{"student_id":"S100","test_id":"R-1","section_type":"reading","tab_id":"tab-1","type":"blur","detail":"","timestamp":1759485600000}`,
		},
		{
			name:    "missing student",
			raw:     `{"type":"blur","timestamp":1}`,
			wantErr: errIncompleteEvent,
		},
		{
			name:    "missing type",
			raw:     `{"student_id":"S100"}`,
			wantErr: errIncompleteEvent,
		},
		{
			name:    "not json",
			raw:     `blur`,
			wantAny: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ev, err := decodeEvent([]byte(tt.raw))
			switch {
			case tt.wantAny:
				if err == nil {
					t.Fatal("expected an error")
				}
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
			default:
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if ev.StudentID != "S100" || ev.Type != "blur" || ev.RecordedAt().UnixMilli() != 1759485600000 {
					t.Fatalf("decoded %+v", ev)
				}
			}
		})
	}
}
