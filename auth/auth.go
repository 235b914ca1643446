// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/google/uuid"
)

var ErrInvalidAdminKey = errors.New("invalid admin key")

// GenerateAdminKey creates an HMAC-based admin key for a session.
// This is deterministic and verifiable
func GenerateAdminKey(sessionName, salt string) string {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(sessionName))
	sum := h.Sum(nil)
	// Use URL-safe base64 and trim padding for cleaner keys
	return strings.TrimRight(base64.URLEncoding.EncodeToString(sum), "=")
}

// ValidateAdminKey checks if the provided admin key is valid for the session
func ValidateAdminKey(sessionName, adminKey, salt string) error {
	expected := GenerateAdminKey(sessionName, salt)
	if !hmac.Equal([]byte(adminKey), []byte(expected)) {
		return ErrInvalidAdminKey
	}
	return nil
}

// NewParticipantToken creates the opaque token a participant presents on
// every mutating request after joining.
func NewParticipantToken() string {
	return uuid.NewString()
}
