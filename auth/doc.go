// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides authentication and token generation utilities.

# Admin Keys

Admin keys use HMAC-SHA256 to create deterministic, verifiable keys:

	adminKey := auth.GenerateAdminKey(sessionName, salt)
	err := auth.ValidateAdminKey(sessionName, adminKey, salt)

The key is URL-safe base64 encoded without padding. Since it's deterministic,
the same session name and salt always produce the same key. This allows
validation without storing the key in the database. The creator of a session
receives its admin key in the join response; privileged operations require it.

# Participant Tokens

Each participant receives a random UUID token on join:

	token := auth.NewParticipantToken()

The token identifies the participant on mutating requests.
*/
package auth
