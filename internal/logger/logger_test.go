package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestBuildWritesJSONWithService(t *testing.T) {
	var buf bytes.Buffer
	log := build(&buf, "warn", "json")
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	log.Info().Msg("dropped")
	log.Warn().Str("component", "test_runner").Msg("kept")

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("expected exactly one JSON line, got %q: %v", buf.String(), err)
	}
	if line["service"] != "ept-backend" || line["component"] != "test_runner" || line["message"] != "kept" {
		t.Fatalf("unexpected line %v", line)
	}
}
