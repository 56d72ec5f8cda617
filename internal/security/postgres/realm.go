// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package postgres implements security.Realm on PostgreSQL.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/holomush/procauth/internal/security"
	"github.com/holomush/procauth/internal/store"
)

// Foreign keys of realm_user_roles, named by PostgreSQL's default scheme.
const (
	fkUserRolesUser = "realm_user_roles_username_fkey"
	fkUserRolesRole = "realm_user_roles_role_fkey"
)

// Names sort bytewise so both realms list in the same order.
const selectUsers = `
	SELECT u.username, u.password_hash, u.password_change_required, u.suspended,
	       u.created_at, u.updated_at,
	       COALESCE(array_agg(ur.role ORDER BY ur.role COLLATE "C")
	                FILTER (WHERE ur.role IS NOT NULL), '{}')
	FROM realm_users u
	LEFT JOIN realm_user_roles ur ON ur.username = u.username
`

// Realm implements security.Realm using the schema applied by
// store.Migrator.
type Realm struct {
	pool store.Pool
}

var _ security.Realm = (*Realm)(nil)

// NewRealm creates a Realm over pool.
func NewRealm(pool store.Pool) *Realm {
	return &Realm{pool: pool}
}

// NewUser implements security.Realm.
func (r *Realm) NewUser(ctx context.Context, username, passwordHash string, requirePasswordChange bool) (*security.User, error) {
	if err := security.ValidateUsername(username); err != nil {
		return nil, err
	}

	u := &security.User{
		Username:               username,
		PasswordHash:           passwordHash,
		Roles:                  []string{},
		PasswordChangeRequired: requirePasswordChange,
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO realm_users (username, password_hash, password_change_required)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at
	`, username, passwordHash, requirePasswordChange).Scan(&u.CreatedAt, &u.UpdatedAt)
	if isUniqueViolation(err) {
		return nil, security.UserExists(username)
	}
	if err != nil {
		return nil, security.RealmFailure("insert user", err)
	}
	return u, nil
}

// DeleteUser implements security.Realm. Memberships cascade.
func (r *Realm) DeleteUser(ctx context.Context, username string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM realm_users WHERE username = $1`, username)
	if err != nil {
		return security.RealmFailure("delete user", err)
	}
	if tag.RowsAffected() == 0 {
		return security.UserNotFound(username)
	}
	return nil
}

// GetUser implements security.Realm.
func (r *Realm) GetUser(ctx context.Context, username string) (*security.User, error) {
	row := r.pool.QueryRow(ctx, selectUsers+`
		WHERE u.username = $1
		GROUP BY u.username
	`, username)

	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, security.UserNotFound(username)
	}
	if err != nil {
		return nil, security.RealmFailure("get user", err)
	}
	return u, nil
}

// SetPassword implements security.Realm.
func (r *Realm) SetPassword(ctx context.Context, username, passwordHash string, requirePasswordChange bool) error {
	return r.updateUser(ctx, "set password", username, `
		UPDATE realm_users
		SET password_hash = $2, password_change_required = $3, updated_at = NOW()
		WHERE username = $1
	`, passwordHash, requirePasswordChange)
}

// SetSuspended implements security.Realm.
func (r *Realm) SetSuspended(ctx context.Context, username string, suspended bool) error {
	return r.updateUser(ctx, "set suspended", username, `
		UPDATE realm_users SET suspended = $2, updated_at = NOW()
		WHERE username = $1
	`, suspended)
}

func (r *Realm) updateUser(ctx context.Context, op, username, sql string, args ...any) error {
	tag, err := r.pool.Exec(ctx, sql, append([]any{username}, args...)...)
	if err != nil {
		return security.RealmFailure(op, err)
	}
	if tag.RowsAffected() == 0 {
		return security.UserNotFound(username)
	}
	return nil
}

// NewRole implements security.Realm.
func (r *Realm) NewRole(ctx context.Context, role string) error {
	if err := security.ValidateRoleName(role); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO realm_roles (name) VALUES ($1)`, role)
	if isUniqueViolation(err) {
		return security.RoleExists(role)
	}
	if err != nil {
		return security.RealmFailure("insert role", err)
	}
	return nil
}

// DeleteRole implements security.Realm. Memberships cascade.
func (r *Realm) DeleteRole(ctx context.Context, role string) error {
	if security.IsPredefinedRole(role) {
		return security.PredefinedRoleError(role)
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM realm_roles WHERE name = $1 AND NOT predefined`, role)
	if err != nil {
		return security.RealmFailure("delete role", err)
	}
	if tag.RowsAffected() == 0 {
		return security.RoleNotFound(role)
	}
	return nil
}

// AddRoleToUser implements security.Realm.
func (r *Realm) AddRoleToUser(ctx context.Context, role, username string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO realm_user_roles (username, role) VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, username, role)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
		if pgErr.ConstraintName == fkUserRolesRole {
			return security.RoleNotFound(role)
		}
		return security.UserNotFound(username)
	}
	if err != nil {
		return security.RealmFailure("add role to user", err)
	}
	return nil
}

// RemoveRoleFromUser implements security.Realm.
func (r *Realm) RemoveRoleFromUser(ctx context.Context, role, username string) error {
	var roleExists, userExists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM realm_roles WHERE name = $1),
		       EXISTS (SELECT 1 FROM realm_users WHERE username = $2)
	`, role, username).Scan(&roleExists, &userExists)
	if err != nil {
		return security.RealmFailure("check membership", err)
	}
	if !roleExists {
		return security.RoleNotFound(role)
	}
	if !userExists {
		return security.UserNotFound(username)
	}

	_, err = r.pool.Exec(ctx, `DELETE FROM realm_user_roles WHERE username = $1 AND role = $2`, username, role)
	if err != nil {
		return security.RealmFailure("remove role from user", err)
	}
	return nil
}

// ListUsers implements security.Realm.
func (r *Realm) ListUsers(ctx context.Context) ([]*security.User, error) {
	rows, err := r.pool.Query(ctx, selectUsers+`
		GROUP BY u.username
		ORDER BY u.username COLLATE "C"
	`)
	if err != nil {
		return nil, security.RealmFailure("list users", err)
	}
	defer rows.Close()

	users := []*security.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, security.RealmFailure("scan user", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, security.RealmFailure("iterate users", err)
	}
	return users, nil
}

// ListRoles implements security.Realm.
func (r *Realm) ListRoles(ctx context.Context) ([]string, error) {
	return r.names(ctx, "list roles", `SELECT name FROM realm_roles ORDER BY name COLLATE "C"`)
}

// UsersForRole implements security.Realm.
func (r *Realm) UsersForRole(ctx context.Context, role string) ([]string, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM realm_roles WHERE name = $1)`, role).Scan(&exists)
	if err != nil {
		return nil, security.RealmFailure("check role", err)
	}
	if !exists {
		return nil, security.RoleNotFound(role)
	}
	return r.names(ctx, "users for role", `
		SELECT username FROM realm_user_roles WHERE role = $1
		ORDER BY username COLLATE "C"
	`, role)
}

func (r *Realm) names(ctx context.Context, op, sql string, args ...any) ([]string, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, security.RealmFailure(op, err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, security.RealmFailure(op, err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

func scanUser(row pgx.Row) (*security.User, error) {
	var u security.User
	err := row.Scan(
		&u.Username,
		&u.PasswordHash,
		&u.PasswordChangeRequired,
		&u.Suspended,
		&u.CreatedAt,
		&u.UpdatedAt,
		&u.Roles,
	)
	if err != nil {
		return nil, err
	}
	if u.Roles == nil {
		u.Roles = []string{}
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
