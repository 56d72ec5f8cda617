// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package security

import (
	"errors"
	"fmt"

	"github.com/samber/oops"
)

// Error codes for realm, procedure and startup failures.
const (
	CodeUserNotFound       = "USER_NOT_FOUND"
	CodeUserExists         = "USER_EXISTS"
	CodeRoleNotFound       = "ROLE_NOT_FOUND"
	CodeRoleExists         = "ROLE_EXISTS"
	CodeInvalidName        = "INVALID_NAME"
	CodePredefinedRole     = "PREDEFINED_ROLE"
	CodePermissionDenied   = "PERMISSION_DENIED"
	CodeInvalidPassword    = "INVALID_PASSWORD"
	CodeStartupFailed      = "STARTUP_FAILED"
	CodeAlreadyRegistered  = "ALREADY_REGISTERED"
	CodeAuthInvalidHash    = "AUTH_INVALID_HASH"
	CodeAuthEmptyPassword  = "AUTH_EMPTY_PASSWORD"
	CodeAuthSaltFailed     = "AUTH_SALT_FAILED"
	CodeNotAuthenticated   = "NOT_AUTHENTICATED"
	CodeRealmOperationFail = "REALM_OPERATION_FAILED"
)

// Sentinels matched with errors.Is through wraps.
var (
	ErrNotFound          = errors.New("not found")
	ErrExists            = errors.New("already exists")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrStartupFailed     = errors.New("security startup failed")
	ErrAlreadyRegistered = errors.New("security procedures already registered")
)

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code(CodeAuthEmptyPassword).Errorf("password cannot be empty")

// UserNotFound creates an error for an unknown username.
func UserNotFound(username string) error {
	return oops.Code(CodeUserNotFound).
		With("username", username).
		Wrapf(ErrNotFound, "user %s does not exist", username)
}

// UserExists creates an error for a username that is taken.
func UserExists(username string) error {
	return oops.Code(CodeUserExists).
		With("username", username).
		Wrapf(ErrExists, "user %s already exists", username)
}

// RoleNotFound creates an error for an unknown role.
func RoleNotFound(role string) error {
	return oops.Code(CodeRoleNotFound).
		With("role", role).
		Wrapf(ErrNotFound, "role %s does not exist", role)
}

// RoleExists creates an error for a role name that is taken.
func RoleExists(role string) error {
	return oops.Code(CodeRoleExists).
		With("role", role).
		Wrapf(ErrExists, "role %s already exists", role)
}

// ErrInvalidName creates an error for a malformed user or role name.
func ErrInvalidName(kind, name string) error {
	return oops.Code(CodeInvalidName).
		With("kind", kind).
		With("name", name).
		Errorf("%s %q contains illegal characters; use letters, digits and underscore", kind, name)
}

// PredefinedRoleError creates an error for an attempt to delete a
// predefined role.
func PredefinedRoleError(role string) error {
	return oops.Code(CodePredefinedRole).
		With("role", role).
		Errorf("role %s is predefined and cannot be deleted", role)
}

// PermissionDenied creates an error for a caller lacking the rights for
// action.
func PermissionDenied(action string) error {
	return oops.Code(CodePermissionDenied).
		With("action", action).
		Wrapf(ErrPermissionDenied, "permission denied: %s", action)
}

// SelfActionDenied creates an error for an admin acting against their own
// account in a way that would lock them out.
func SelfActionDenied(action, username string) error {
	return oops.Code(CodePermissionDenied).
		With("action", action).
		With("username", username).
		Wrapf(ErrPermissionDenied, "%s yourself (user '%s') is not allowed", action, username)
}

// NotAuthenticated creates an error for a call made by an anonymous subject.
func NotAuthenticated(procedure string) error {
	return oops.Code(CodeNotAuthenticated).
		With("procedure", procedure).
		Wrapf(ErrPermissionDenied, "%s requires an authenticated user", procedure)
}

// InvalidPassword creates an error for a rejected password value.
func InvalidPassword(reason string) error {
	return oops.Code(CodeInvalidPassword).Errorf("%s", reason)
}

// StartupFailed wraps any registration failure into the single fatal
// startup error. The original cause stays reachable through errors.Is.
func StartupFailed(step string, cause error) error {
	return oops.Code(CodeStartupFailed).
		With("step", step).
		Wrap(fmt.Errorf("%w: %s: %w", ErrStartupFailed, step, cause))
}

// RealmFailure wraps a storage failure of a realm implementation.
func RealmFailure(operation string, cause error) error {
	return oops.Code(CodeRealmOperationFail).
		With("operation", operation).
		Wrap(cause)
}
