// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package api

import (
	"errors"
	"net/http"

	"github.com/holomush/procauth/internal/dispatch"
	"github.com/holomush/procauth/internal/procedure"
	"github.com/holomush/procauth/internal/security"
	"github.com/holomush/procauth/internal/session"
	"github.com/holomush/procauth/pkg/errutil"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// statusFor maps a call error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrAuthFailed),
		errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, dispatch.ErrSessionInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, security.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, procedure.ErrProcedureNotFound):
		return http.StatusNotFound
	case errors.Is(err, procedure.ErrInvalidArgs),
		errutil.Code(err) == procedure.CodeInvalidPattern,
		errutil.Code(err) == security.CodeInvalidName,
		errutil.Code(err) == security.CodeInvalidPassword,
		errutil.Code(err) == security.CodePredefinedRole:
		return http.StatusBadRequest
	case errors.Is(err, security.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, security.ErrExists):
		return http.StatusConflict
	case errors.Is(err, dispatch.ErrCancelled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
