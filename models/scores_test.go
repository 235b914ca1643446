// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import (
	"reflect"
	"testing"
)

func TestScoreLess(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"numeric order", "5", "8", true},
		{"numeric not reversed", "8", "5", false},
		{"two digit vs one digit", "13", "8", false},
		{"fraction before one", "½", "1", true},
		{"quarter before half", "¼", "½", true},
		{"infinity after numbers", "21", "∞", true},
		{"question mark last", "∞", "?", true},
		{"question mark after word", "coffee", "?", true},
		{"word after numeric", "13", "coffee", true},
		{"words lexical", "coffee", "tea", true},
		{"decimal", "0.5", "1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ScoreLess(tt.a, tt.b); got != tt.want {
				t.Errorf("ScoreLess(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSortScores_DefaultDeckIsCanonical(t *testing.T) {
	shuffled := []string{"?", "8", "∞", "0", "21", "3", "1", "13", "5", "2"}
	SortScores(shuffled)

	if !reflect.DeepEqual(shuffled, DefaultScores) {
		t.Errorf("SortScores() = %v, want %v", shuffled, DefaultScores)
	}
}

func TestMergeScores(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
		add      []string
		want     []string
	}{
		{
			name:     "insert among numerics before terminal tokens",
			existing: []string{"5", "8", "21", "∞", "?"},
			add:      []string{"13"},
			want:     []string{"5", "8", "13", "21", "∞", "?"},
		},
		{
			name:     "duplicate is dropped",
			existing: []string{"5", "8", "?"},
			add:      []string{"8"},
			want:     []string{"5", "8", "?"},
		},
		{
			name:     "fraction glyph sorts by value",
			existing: []string{"1", "2", "?"},
			add:      []string{"½"},
			want:     []string{"½", "1", "2", "?"},
		},
		{
			name:     "empty labels ignored",
			existing: []string{"1"},
			add:      []string{"", "3"},
			want:     []string{"1", "3"},
		},
		{
			name:     "word sorts between numerics and question mark",
			existing: []string{"1", "2", "?"},
			add:      []string{"coffee"},
			want:     []string{"1", "2", "coffee", "?"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergeScores(tt.existing, tt.add...)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("MergeScores(%v, %v) = %v, want %v", tt.existing, tt.add, got, tt.want)
			}
		})
	}
}

func TestMergeScores_DoesNotMutateInput(t *testing.T) {
	existing := []string{"8", "5"}
	MergeScores(existing, "3")
	if !reflect.DeepEqual(existing, []string{"8", "5"}) {
		t.Errorf("MergeScores mutated its input: %v", existing)
	}
}

func TestRemoveScore(t *testing.T) {
	got := RemoveScore([]string{"5", "8", "13"}, "8")
	want := []string{"5", "13"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("RemoveScore() = %v, want %v", got, want)
	}

	// Removing an absent label is a no-op
	got = RemoveScore([]string{"5"}, "99")
	if !reflect.DeepEqual(got, []string{"5"}) {
		t.Errorf("RemoveScore() of absent label = %v, want [5]", got)
	}
}

func TestContainsScore(t *testing.T) {
	deck := []string{"5", "8", "?"}
	if !ContainsScore(deck, "8") {
		t.Error("ContainsScore() should find 8")
	}
	if ContainsScore(deck, "13") {
		t.Error("ContainsScore() should not find 13")
	}
}
