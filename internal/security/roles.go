// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package security

import (
	"regexp"
	"slices"
)

// Predefined role names.
const (
	RoleAdmin     = "admin"
	RoleArchitect = "architect"
	RolePublisher = "publisher"
	RoleReader    = "reader"
)

// predefinedRoles maps each predefined role to the mode it grants. Custom
// roles grant nothing on their own.
var predefinedRoles = map[string]AccessMode{
	RoleAdmin:     ModeFull,
	RoleArchitect: ModeSchema,
	RolePublisher: ModeWrite,
	RoleReader:    ModeRead,
}

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// PredefinedRoles returns the predefined role names, sorted.
func PredefinedRoles() []string {
	roles := make([]string, 0, len(predefinedRoles))
	for r := range predefinedRoles {
		roles = append(roles, r)
	}
	slices.Sort(roles)
	return roles
}

// IsPredefinedRole reports whether role is one of the predefined roles.
func IsPredefinedRole(role string) bool {
	_, ok := predefinedRoles[role]
	return ok
}

// ModeForRoles unions the modes granted by roles.
func ModeForRoles(roles []string) AccessMode {
	mode := ModeNone
	for _, r := range roles {
		if m, ok := predefinedRoles[r]; ok {
			mode = mode.Union(m)
		}
	}
	return mode
}

// DeriveAccessMode returns the access mode of u. A user who must change their
// password gets no permissions until they do.
func DeriveAccessMode(u *User) AccessMode {
	if u.PasswordChangeRequired {
		return ModeCredentialsExpired
	}
	return ModeForRoles(u.Roles)
}

// ValidateUsername checks the username syntax.
func ValidateUsername(username string) error {
	if !namePattern.MatchString(username) {
		return ErrInvalidName("username", username)
	}
	return nil
}

// ValidateRoleName checks the role name syntax.
func ValidateRoleName(role string) error {
	if !namePattern.MatchString(role) {
		return ErrInvalidName("role", role)
	}
	return nil
}
