// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DecodeDoc parses a stored JSON document into a generic field tree.
func DecodeDoc(data []byte) (map[string]any, error) {
	if len(data) == 0 {
		return map[string]any{}, nil
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("store: decode document: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return doc, nil
}

// EncodeDoc serializes a field tree back to its stored JSON form.
func EncodeDoc(doc map[string]any) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("store: encode document: %w", err)
	}
	return data, nil
}

// ApplyUpdates applies field-path writes to a decoded document in place.
// Intermediate objects are created as needed; now substitutes for the
// ServerTimestamp sentinel. Backends share this so every implementation
// resolves paths and sentinels identically.
func ApplyUpdates(doc map[string]any, now time.Time, updates ...Update) error {
	for _, u := range updates {
		if len(u.Path) == 0 {
			return errors.New("store: empty field path")
		}

		m := doc
		for _, seg := range u.Path[:len(u.Path)-1] {
			child, ok := m[seg]
			if !ok {
				next := map[string]any{}
				m[seg] = next
				m = next
				continue
			}
			next, ok := child.(map[string]any)
			if !ok {
				return fmt.Errorf("store: field %q is not an object", seg)
			}
			m = next
		}

		leaf := u.Path[len(u.Path)-1]
		switch u.Value {
		case DeleteField:
			delete(m, leaf)
		case ServerTimestamp:
			m[leaf] = now.UTC().Format(time.RFC3339Nano)
		default:
			v, err := normalizeValue(u.Value)
			if err != nil {
				return err
			}
			m[leaf] = v
		}
	}
	return nil
}

// normalizeValue round-trips a value through JSON so struct writes land in
// the document as plain field trees, same as they would over the wire.
func normalizeValue(value any) (any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("store: encode field value: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("store: decode field value: %w", err)
	}
	return out, nil
}
