package persistence

import (
	"testing"
	"time"
)

func TestRedisBackendKeysAreScopedToStudent(t *testing.T) {
	t.Parallel()

	first := NewRedisBackend(nil, "S100", "tab-1", time.Hour)
	second := NewRedisBackend(nil, "S200", "tab-1", time.Hour)

	if got, want := first.key("responses:reading"), "exam:tab:S100:tab-1:responses:reading"; got != want {
		t.Fatalf("key() = %q, want %q", got, want)
	}
	if first.key("responses:reading") == second.key("responses:reading") {
		t.Fatal("two students sharing a tab id resolve to the same key")
	}
}
