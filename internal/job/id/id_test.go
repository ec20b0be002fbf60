package id

import (
	"strings"
	"testing"
)

func TestGenerate(t *testing.T) {
	id := Generate()

	if !strings.HasPrefix(id, Prefix) {
		t.Errorf("expected ID to start with %q, got %s", Prefix, id)
	}
	if !Valid(id) {
		t.Errorf("generated ID %s is not valid", id)
	}

	id2 := Generate()
	if id == id2 {
		t.Error("expected different IDs for consecutive calls")
	}
}

func TestGenerate_Uniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := Generate()
		if seen[id] {
			t.Errorf("duplicate ID generated: %s", id)
		}
		seen[id] = true
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"job-1701432000-a1b2c3d4", true},
		{"job-1701432000", true},
		{"job-", false},
		{"job-abc-a1b2c3d4", false},
		{"job-1701432000-a1b2", false},
		{"job-1701432000-zzzzzzzz", false},
		{"job-1701432000-a1b2c3d4/..", false},
		{"../job-1", false},
		{"nonexistent", false},
	}

	for _, tt := range tests {
		if got := Valid(tt.in); got != tt.want {
			t.Errorf("Valid(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
