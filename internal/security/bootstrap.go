// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package security

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/samber/oops"
)

// CodeBootstrapFailed reports a failure to seed the initial admin.
const CodeBootstrapFailed = "BOOTSTRAP_FAILED"

// BootstrapAdmin makes sure the realm has an administrator. When no user
// holds the admin role it creates username with that role; the account must
// change its password on first login. If username already exists without
// the role, as after a start that failed between creating and granting, the
// grant is completed instead. It returns false without touching the realm
// when an admin already exists, so it is safe to run on every start.
//
// A grant that fails right after creating the user deletes the user again,
// so the next start retries from scratch.
func BootstrapAdmin(ctx context.Context, realm Realm, hasher PasswordHasher, username, password string) (bool, error) {
	users, err := realm.ListUsers(ctx)
	if err != nil {
		return false, oops.Code(CodeBootstrapFailed).With("operation", "list users").Wrap(err)
	}

	var existing *User
	for _, u := range users {
		if slices.Contains(u.Roles, RoleAdmin) {
			return false, nil
		}
		if u.Username == username {
			existing = u
		}
	}

	if existing != nil {
		if err := realm.AddRoleToUser(ctx, RoleAdmin, username); err != nil {
			return false, oops.Code(CodeBootstrapFailed).
				With("operation", "grant admin").
				With("username", username).
				Wrap(err)
		}
		slog.WarnContext(ctx, "completed interrupted initial admin setup", "username", username)
		return true, nil
	}

	if err := ValidateUsername(username); err != nil {
		return false, err
	}
	hash, err := hasher.Hash(password)
	if err != nil {
		return false, oops.Code(CodeBootstrapFailed).With("operation", "hash password").Wrap(err)
	}

	if _, err := realm.NewUser(ctx, username, hash, true); err != nil {
		// another instance sharing the realm won the race
		if errors.Is(err, ErrExists) {
			slog.InfoContext(ctx, "initial admin already exists", "username", username)
			return false, nil
		}
		return false, oops.Code(CodeBootstrapFailed).With("operation", "create user").Wrap(err)
	}
	if err := realm.AddRoleToUser(ctx, RoleAdmin, username); err != nil {
		if delErr := realm.DeleteUser(ctx, username); delErr != nil {
			slog.WarnContext(ctx, "could not remove initial admin after failed grant; the next start completes it",
				"username", username,
				"error", delErr)
		}
		return false, oops.Code(CodeBootstrapFailed).
			With("operation", "grant admin").
			With("username", username).
			Wrap(err)
	}

	slog.InfoContext(ctx, "created initial admin", "username", username)
	return true, nil
}
