// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package dispatch

import (
	"errors"

	"github.com/samber/oops"
)

// Error codes for call setup failures.
const (
	CodeSessionInvalid = "SESSION_INVALID"
	CodeCallCancelled  = "CALL_CANCELLED"
	CodeCallSetup      = "CALL_SETUP_FAILED"
	CodeNilDependency  = "NIL_DEPENDENCY"
)

// Sentinels matched with errors.Is.
var (
	ErrSessionInvalid = errors.New("session no longer valid")
	ErrCancelled      = errors.New("call cancelled")
)

func sessionInvalid(username, reason string) error {
	return oops.Code(CodeSessionInvalid).
		With("username", username).
		With("reason", reason).
		Wrapf(ErrSessionInvalid, "session of %s is no longer valid: %s", username, reason)
}

func cancelled(procedure string, cause error) error {
	return oops.Code(CodeCallCancelled).
		With("procedure", procedure).
		Wrap(errors.Join(ErrCancelled, cause))
}

func callSetup(operation string, cause error) error {
	return oops.Code(CodeCallSetup).
		With("operation", operation).
		Wrap(cause)
}
