// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package session

import (
	"errors"

	"github.com/samber/oops"
)

// Error codes for login and session lookup.
const (
	CodeAuthFailed      = "AUTH_FAILED"
	CodeUserSuspended   = "USER_SUSPENDED"
	CodeLoginFailed     = "AUTH_LOGIN_FAILED"
	CodeSessionNotFound = "SESSION_NOT_FOUND"
	CodeSessionExpired  = "SESSION_EXPIRED"
	CodeTokenGenerate   = "SESSION_TOKEN_GENERATE_FAILED"
)

// ErrAuthFailed is matched by every credential rejection.
var ErrAuthFailed = errors.New("authentication failed")

// ErrSessionNotFound is returned for unknown, expired or logged-out sessions.
var ErrSessionNotFound = errors.New("session not found")

func authFailed() error {
	return oops.Code(CodeAuthFailed).Wrapf(ErrAuthFailed, "invalid username or password")
}

func userSuspended(username string) error {
	return oops.Code(CodeUserSuspended).
		With("username", username).
		Wrapf(ErrAuthFailed, "user %s is suspended", username)
}

func sessionNotFound() error {
	return oops.Code(CodeSessionNotFound).Wrap(ErrSessionNotFound)
}

func sessionExpired(s Session) error {
	return oops.Code(CodeSessionExpired).
		With("session_id", s.ID.String()).
		With("username", s.Username).
		With("expired_at", s.ExpiresAt).
		Wrap(ErrSessionNotFound)
}
