// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import "sort"

// TallyGroup is one cluster of voters who settled on the same score.
type TallyGroup struct {
	Score  string   `json:"score"`
	Voters []string `json:"voters"`
}

// Tally is the derived result view of a session. It is recomputed from
// scratch on every snapshot; it is never patched incrementally.
type Tally struct {
	Complete bool         `json:"complete"`
	Groups   []TallyGroup `json:"groups"`
}

// ComputeTally derives the tally for a session document.
//
// A round is complete when every current voter has a non-empty LastScore.
// Groups are ordered by descending size, ties broken by the canonical score
// order; voters within a group are ordered by vote timestamp ascending.
// The computation is pure and deterministic for a given document.
func ComputeTally(data SessionData) Tally {
	tally := Tally{Complete: len(data.Votes) > 0}

	byScore := map[string][]string{}
	for userID, vote := range data.Votes {
		if !vote.Voted() {
			tally.Complete = false
			continue
		}
		byScore[vote.LastScore] = append(byScore[vote.LastScore], userID)
	}

	for score, voters := range byScore {
		sort.Slice(voters, func(i, j int) bool {
			a := data.Votes[voters[i]]
			b := data.Votes[voters[j]]
			switch {
			case a.Timestamp == nil && b.Timestamp == nil:
				return voters[i] < voters[j]
			case a.Timestamp == nil:
				return true
			case b.Timestamp == nil:
				return false
			case a.Timestamp.Equal(*b.Timestamp):
				return voters[i] < voters[j]
			default:
				return a.Timestamp.Before(*b.Timestamp)
			}
		})
		tally.Groups = append(tally.Groups, TallyGroup{Score: score, Voters: voters})
	}

	sort.Slice(tally.Groups, func(i, j int) bool {
		a, b := tally.Groups[i], tally.Groups[j]
		if len(a.Voters) != len(b.Voters) {
			return len(a.Voters) > len(b.Voters)
		}
		return ScoreLess(a.Score, b.Score)
	})

	return tally
}
