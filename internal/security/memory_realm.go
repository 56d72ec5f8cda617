// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package security

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"
)

// MemoryRealm implements Realm in process memory. It is safe for concurrent
// use.
type MemoryRealm struct {
	mu    sync.RWMutex
	users map[string]*User
	roles map[string]struct{} // custom roles only
	now   func() time.Time
}

// NewMemoryRealm creates an empty realm holding only the predefined roles.
func NewMemoryRealm() *MemoryRealm {
	return &MemoryRealm{
		users: make(map[string]*User),
		roles: make(map[string]struct{}),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryRealm) roleExists(role string) bool {
	if IsPredefinedRole(role) {
		return true
	}
	_, ok := r.roles[role]
	return ok
}

// NewUser implements Realm.
func (r *MemoryRealm) NewUser(_ context.Context, username, passwordHash string, requirePasswordChange bool) (*User, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[username]; ok {
		return nil, UserExists(username)
	}
	now := r.now()
	u := &User{
		Username:               username,
		PasswordHash:           passwordHash,
		Roles:                  []string{},
		PasswordChangeRequired: requirePasswordChange,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	r.users[username] = u
	return u.Clone(), nil
}

// DeleteUser implements Realm.
func (r *MemoryRealm) DeleteUser(_ context.Context, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[username]; !ok {
		return UserNotFound(username)
	}
	delete(r.users, username)
	return nil
}

// GetUser implements Realm.
func (r *MemoryRealm) GetUser(_ context.Context, username string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[username]
	if !ok {
		return nil, UserNotFound(username)
	}
	return u.Clone(), nil
}

// SetPassword implements Realm.
func (r *MemoryRealm) SetPassword(_ context.Context, username, passwordHash string, requirePasswordChange bool) error {
	return r.update(username, func(u *User) error {
		u.PasswordHash = passwordHash
		u.PasswordChangeRequired = requirePasswordChange
		return nil
	})
}

// SetSuspended implements Realm.
func (r *MemoryRealm) SetSuspended(_ context.Context, username string, suspended bool) error {
	return r.update(username, func(u *User) error {
		u.Suspended = suspended
		return nil
	})
}

// NewRole implements Realm.
func (r *MemoryRealm) NewRole(_ context.Context, role string) error {
	if err := ValidateRoleName(role); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.roleExists(role) {
		return RoleExists(role)
	}
	r.roles[role] = struct{}{}
	return nil
}

// DeleteRole implements Realm.
func (r *MemoryRealm) DeleteRole(_ context.Context, role string) error {
	if IsPredefinedRole(role) {
		return PredefinedRoleError(role)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.roles[role]; !ok {
		return RoleNotFound(role)
	}
	delete(r.roles, role)
	for _, u := range r.users {
		u.Roles = slices.DeleteFunc(u.Roles, func(held string) bool { return held == role })
	}
	return nil
}

// AddRoleToUser implements Realm.
func (r *MemoryRealm) AddRoleToUser(_ context.Context, role, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.roleExists(role) {
		return RoleNotFound(role)
	}
	return r.updateLocked(username, func(u *User) error {
		if !slices.Contains(u.Roles, role) {
			u.Roles = append(u.Roles, role)
			slices.Sort(u.Roles)
		}
		return nil
	})
}

// RemoveRoleFromUser implements Realm.
func (r *MemoryRealm) RemoveRoleFromUser(_ context.Context, role, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.roleExists(role) {
		return RoleNotFound(role)
	}
	return r.updateLocked(username, func(u *User) error {
		u.Roles = slices.DeleteFunc(u.Roles, func(held string) bool { return held == role })
		return nil
	})
}

// ListUsers implements Realm.
func (r *MemoryRealm) ListUsers(_ context.Context) ([]*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]*User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, u.Clone())
	}
	slices.SortFunc(users, func(a, b *User) int { return strings.Compare(a.Username, b.Username) })
	return users, nil
}

// ListRoles implements Realm.
func (r *MemoryRealm) ListRoles(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roles := PredefinedRoles()
	for role := range r.roles {
		roles = append(roles, role)
	}
	slices.Sort(roles)
	return roles, nil
}

// UsersForRole implements Realm.
func (r *MemoryRealm) UsersForRole(_ context.Context, role string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.roleExists(role) {
		return nil, RoleNotFound(role)
	}
	usernames := []string{}
	for name, u := range r.users {
		if slices.Contains(u.Roles, role) {
			usernames = append(usernames, name)
		}
	}
	slices.Sort(usernames)
	return usernames, nil
}

func (r *MemoryRealm) update(username string, fn func(*User) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updateLocked(username, fn)
}

func (r *MemoryRealm) updateLocked(username string, fn func(*User) error) error {
	u, ok := r.users[username]
	if !ok {
		return UserNotFound(username)
	}
	if err := fn(u); err != nil {
		return err
	}
	u.UpdatedAt = r.now()
	return nil
}
