package utils

import (
	"regexp"
	"testing"
)

var streamKeyPattern = regexp.MustCompile(`^[0-9a-f]{16}$`)

func TestNewStreamKeyFormat(t *testing.T) {
	seen := make(map[string]struct{})
	for range 1000 {
		key := NewStreamKey()
		if !streamKeyPattern.MatchString(key) {
			t.Fatalf("unexpected stream key format: %q", key)
		}
		if _, dup := seen[key]; dup {
			t.Fatalf("duplicate stream key %q", key)
		}
		seen[key] = struct{}{}
	}
}

func TestNewIDUnique(t *testing.T) {
	if a, b := NewID(), NewID(); a == "" || a == b {
		t.Fatalf("expected distinct non-empty ids, got %q and %q", a, b)
	}
}
