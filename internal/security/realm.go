// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package security

import (
	"context"
	"slices"
	"time"
)

// User flags reported by the listing procedures.
const (
	FlagPasswordChangeRequired = "password_change_required"
	FlagSuspended              = "is_suspended"
)

// User is a realm account.
type User struct {
	Username               string
	PasswordHash           string
	Roles                  []string
	PasswordChangeRequired bool
	Suspended              bool
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// Flags returns the user's flags, sorted.
func (u *User) Flags() []string {
	flags := make([]string, 0, 2)
	if u.Suspended {
		flags = append(flags, FlagSuspended)
	}
	if u.PasswordChangeRequired {
		flags = append(flags, FlagPasswordChangeRequired)
	}
	return flags
}

// Subject returns an authenticated subject snapshot of u.
func (u *User) Subject() AuthSubject {
	return NewAuthSubject(u.Username, u.Roles)
}

// Clone returns a deep copy of u.
func (u *User) Clone() *User {
	c := *u
	c.Roles = slices.Clone(u.Roles)
	return &c
}

// Realm stores users and their role memberships. Predefined roles always
// exist and cannot be deleted.
//
// Implementations return USER_NOT_FOUND / ROLE_NOT_FOUND (wrapping
// ErrNotFound) and USER_EXISTS / ROLE_EXISTS (wrapping ErrExists).
type Realm interface {
	// NewUser creates a user without roles.
	NewUser(ctx context.Context, username, passwordHash string, requirePasswordChange bool) (*User, error)
	// DeleteUser removes a user and its memberships.
	DeleteUser(ctx context.Context, username string) error
	// GetUser returns a copy of the user.
	GetUser(ctx context.Context, username string) (*User, error)
	// SetPassword replaces the password hash and the password change flag.
	SetPassword(ctx context.Context, username, passwordHash string, requirePasswordChange bool) error
	// SetSuspended suspends or reactivates a user.
	SetSuspended(ctx context.Context, username string, suspended bool) error
	// NewRole creates a custom role.
	NewRole(ctx context.Context, role string) error
	// DeleteRole removes a custom role and its memberships.
	DeleteRole(ctx context.Context, role string) error
	// AddRoleToUser grants role to username. Granting a held role is a no-op.
	AddRoleToUser(ctx context.Context, role, username string) error
	// RemoveRoleFromUser revokes role. Revoking an unheld role is a no-op.
	RemoveRoleFromUser(ctx context.Context, role, username string) error
	// ListUsers returns every user, sorted by username.
	ListUsers(ctx context.Context) ([]*User, error)
	// ListRoles returns every role name, sorted.
	ListRoles(ctx context.Context) ([]string, error)
	// UsersForRole returns the usernames holding role, sorted.
	UsersForRole(ctx context.Context, role string) ([]string, error)
}
