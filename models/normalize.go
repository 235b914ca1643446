// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import "strings"

// maxSessionNameLen caps normalized session names so store keys stay short.
const maxSessionNameLen = 64

// NormalizeSessionName reduces arbitrary input to the URL-safe lower-case
// token used as the session's store key: runs of non-alphanumeric characters
// collapse to a single '-', leading and trailing separators are stripped,
// and the result is length-capped.
func NormalizeSessionName(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	pendingSep := false
	for _, r := range strings.ToLower(name) {
		alnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !alnum {
			pendingSep = b.Len() > 0
			continue
		}
		if pendingSep {
			b.WriteByte('-')
			pendingSep = false
		}
		b.WriteRune(r)
	}

	out := b.String()
	if len(out) > maxSessionNameLen {
		out = strings.TrimRight(out[:maxSessionNameLen], "-")
	}
	return out
}
