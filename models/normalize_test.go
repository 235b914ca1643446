// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import (
	"strings"
	"testing"
)

func TestNormalizeSessionName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"already normal", "sprint-42", "sprint-42"},
		{"uppercase", "Sprint 42", "sprint-42"},
		{"punctuation collapses", "team!!planning??week", "team-planning-week"},
		{"leading separator stripped", "--retro", "retro"},
		{"trailing separator stripped", "retro--", "retro"},
		{"unicode dropped", "café session", "caf-session"},
		{"empty", "", ""},
		{"only separators", "!!!", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeSessionName(tt.input); got != tt.want {
				t.Errorf("NormalizeSessionName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeSessionName_LengthCap(t *testing.T) {
	long := strings.Repeat("abc-", 40)
	got := NormalizeSessionName(long)
	if len(got) > 64 {
		t.Errorf("normalized name too long: %d bytes", len(got))
	}
	if strings.HasSuffix(got, "-") {
		t.Errorf("capped name should not end in a separator: %q", got)
	}
}
