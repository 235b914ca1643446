// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import (
	"math"
	"sort"
	"strconv"
)

// Score label classes for canonical ordering. Numeric labels come first
// ordered by value, then plain words lexically, and "?" always sorts last.
const (
	classNumeric = iota
	classWord
	classSpecial
)

// fractionValues maps single-glyph fractions to their numeric value.
var fractionValues = map[string]float64{
	"¼": 0.25,
	"½": 0.5,
	"¾": 0.75,
}

func scoreSortKey(score string) (class int, value float64) {
	if score == "?" {
		return classSpecial, 0
	}
	if score == "∞" {
		return classNumeric, math.Inf(1)
	}
	if v, ok := fractionValues[score]; ok {
		return classNumeric, v
	}
	if v, err := strconv.ParseFloat(score, 64); err == nil {
		return classNumeric, v
	}
	return classWord, 0
}

// ScoreLess reports whether a sorts before b in the canonical score order.
func ScoreLess(a, b string) bool {
	ca, va := scoreSortKey(a)
	cb, vb := scoreSortKey(b)
	if ca != cb {
		return ca < cb
	}
	if ca == classNumeric && va != vb {
		return va < vb
	}
	return a < b
}

// SortScores sorts labels in place into the canonical order.
func SortScores(scores []string) {
	sort.Slice(scores, func(i, j int) bool {
		return ScoreLess(scores[i], scores[j])
	})
}

// MergeScores merges new labels into an existing deck, de-duplicates, and
// returns a fresh slice in canonical order. The input slices are not modified.
func MergeScores(existing []string, add ...string) []string {
	seen := make(map[string]bool, len(existing)+len(add))
	merged := make([]string, 0, len(existing)+len(add))
	for _, s := range existing {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		merged = append(merged, s)
	}
	for _, s := range add {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		merged = append(merged, s)
	}
	SortScores(merged)
	return merged
}

// RemoveScore returns a fresh deck without the given label. Votes pointing
// at the removed label are left alone; each affected client degrades its
// own vote when it observes the new deck.
func RemoveScore(existing []string, score string) []string {
	out := make([]string, 0, len(existing))
	for _, s := range existing {
		if s != score {
			out = append(out, s)
		}
	}
	return out
}

// ContainsScore reports whether the deck contains the label.
func ContainsScore(scores []string, score string) bool {
	for _, s := range scores {
		if s == score {
			return true
		}
	}
	return false
}
