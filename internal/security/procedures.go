// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package security

import (
	"context"

	"github.com/holomush/procauth/internal/procedure"
)

// Namespace is the namespace of the security procedures.
const Namespace = "dbms.security"

var (
	needsSubject = []procedure.Capability{procedure.CapabilityAuthSubject}
	needsMode    = []procedure.Capability{procedure.CapabilityAccessMode}
	needsBoth    = []procedure.Capability{procedure.CapabilityAuthSubject, procedure.CapabilityAccessMode}
)

// Procedures is the procedure class for user and role management. Every
// procedure reads the caller's identity and permissions from its injected
// components; none of them sees the session.
type Procedures struct {
	realm  Realm
	hasher PasswordHasher
}

// NewProcedures creates the security procedure class.
func NewProcedures(realm Realm, hasher PasswordHasher) *Procedures {
	if hasher == nil {
		hasher = NewArgon2idHasher()
	}
	return &Procedures{realm: realm, hasher: hasher}
}

// Namespace implements procedure.Class.
func (p *Procedures) Namespace() string { return Namespace }

// Procedures implements procedure.Class.
func (p *Procedures) Procedures() []procedure.Definition {
	str := func(name string) procedure.Param { return procedure.Param{Name: name, Type: procedure.ParamString} }
	optBool := func(name string, def bool) procedure.Param {
		return procedure.Param{Name: name, Type: procedure.ParamBoolean, Default: def}
	}

	return []procedure.Definition{
		{
			Name:        "showCurrentUser",
			Description: "Show the current user.",
			Requires:    needsSubject,
			Outputs:     []string{"username", "roles", "flags"},
			Func:        p.showCurrentUser,
		},
		{
			Name:        "changePassword",
			Description: "Change the current user's password.",
			Requires:    needsSubject,
			Params:      []procedure.Param{str("password"), optBool("requirePasswordChange", false)},
			Func:        p.changePassword,
		},
		{
			Name:        "listRoles",
			Description: "List roles with their users. Non-admins see their own roles only.",
			Requires:    needsBoth,
			Outputs:     []string{"role", "users"},
			Func:        p.listRoles,
		},
		{
			Name:        "listUsers",
			Description: "List all local users.",
			Requires:    needsMode,
			Outputs:     []string{"username", "roles", "flags"},
			Func:        p.listUsers,
		},
		{
			Name:        "listRolesForUser",
			Description: "List all roles assigned to the specified user.",
			Requires:    needsBoth,
			Params:      []procedure.Param{str("username")},
			Outputs:     []string{"value"},
			Func:        p.listRolesForUser,
		},
		{
			Name:        "listUsersForRole",
			Description: "List all users currently assigned the specified role.",
			Requires:    needsMode,
			Params:      []procedure.Param{str("roleName")},
			Outputs:     []string{"value"},
			Func:        p.listUsersForRole,
		},
		{
			Name:        "createUser",
			Description: "Create a new user.",
			Requires:    needsMode,
			Params:      []procedure.Param{str("username"), str("password"), optBool("requirePasswordChange", true)},
			Func:        p.createUser,
		},
		{
			Name:        "deleteUser",
			Description: "Delete the specified user.",
			Requires:    needsBoth,
			Params:      []procedure.Param{str("username")},
			Func:        p.deleteUser,
		},
		{
			Name:        "changeUserPassword",
			Description: "Change the given user's password.",
			Requires:    needsMode,
			Params:      []procedure.Param{str("username"), str("newPassword"), optBool("requirePasswordChange", true)},
			Func:        p.changeUserPassword,
		},
		{
			Name:        "suspendUser",
			Description: "Suspend the specified user.",
			Requires:    needsBoth,
			Params:      []procedure.Param{str("username")},
			Func:        p.suspendUser,
		},
		{
			Name:        "activateUser",
			Description: "Activate a suspended user.",
			Requires:    needsMode,
			Params:      []procedure.Param{str("username")},
			Func:        p.activateUser,
		},
		{
			Name:        "createRole",
			Description: "Create a new role.",
			Requires:    needsMode,
			Params:      []procedure.Param{str("roleName")},
			Func:        p.createRole,
		},
		{
			Name:        "deleteRole",
			Description: "Delete the specified role. Any role assignments will be removed.",
			Requires:    needsMode,
			Params:      []procedure.Param{str("roleName")},
			Func:        p.deleteRole,
		},
		{
			Name:        "addRoleToUser",
			Description: "Assign a role to the user.",
			Requires:    needsMode,
			Params:      []procedure.Param{str("roleName"), str("username")},
			Func:        p.addRoleToUser,
		},
		{
			Name:        "removeRoleFromUser",
			Description: "Unassign a role from the user.",
			Requires:    needsBoth,
			Params:      []procedure.Param{str("roleName"), str("username")},
			Func:        p.removeRoleFromUser,
		},
	}
}

// requireAdmin fails unless the injected access mode allows user and role
// management.
func requireAdmin(c *procedure.Components, action string) error {
	mode, err := AccessModeFrom(c)
	if err != nil {
		return err
	}
	if !mode.AllowsAdmin() {
		return PermissionDenied(action)
	}
	return nil
}

// authenticatedSubject returns the injected subject, refusing anonymous
// callers.
func authenticatedSubject(c *procedure.Components, procedureName string) (AuthSubject, error) {
	subject, err := SubjectFrom(c)
	if err != nil {
		return AuthSubject{}, err
	}
	if !subject.IsAuthenticated() {
		return AuthSubject{}, NotAuthenticated(procedureName)
	}
	return subject, nil
}

func (p *Procedures) showCurrentUser(ctx context.Context, c *procedure.Components, _ procedure.Args) ([]procedure.Record, error) {
	subject, err := authenticatedSubject(c, "showCurrentUser")
	if err != nil {
		return nil, err
	}
	if subject.Kind() != SubjectUser {
		return []procedure.Record{{"username": "", "roles": []string{}, "flags": []string{}}}, nil
	}
	u, err := p.realm.GetUser(ctx, subject.Username())
	if err != nil {
		return nil, err
	}
	return []procedure.Record{userRecord(u)}, nil
}

func (p *Procedures) changePassword(ctx context.Context, c *procedure.Components, args procedure.Args) ([]procedure.Record, error) {
	subject, err := authenticatedSubject(c, "changePassword")
	if err != nil {
		return nil, err
	}
	if subject.Kind() != SubjectUser {
		return nil, PermissionDenied("change password without a user")
	}
	return nil, p.setPassword(ctx, subject.Username(), args.String(0), args.Bool(1))
}

func (p *Procedures) setPassword(ctx context.Context, username, password string, requireChange bool) error {
	if password == "" {
		return InvalidPassword("a password cannot be empty")
	}
	u, err := p.realm.GetUser(ctx, username)
	if err != nil {
		return err
	}
	if same, err := p.hasher.Verify(password, u.PasswordHash); err == nil && same {
		return InvalidPassword("old password and new password cannot be the same")
	}
	hash, err := p.hasher.Hash(password)
	if err != nil {
		return err
	}
	return p.realm.SetPassword(ctx, username, hash, requireChange)
}

func (p *Procedures) listRoles(ctx context.Context, c *procedure.Components, _ procedure.Args) ([]procedure.Record, error) {
	subject, err := authenticatedSubject(c, "listRoles")
	if err != nil {
		return nil, err
	}
	mode, err := AccessModeFrom(c)
	if err != nil {
		return nil, err
	}

	if !mode.AllowsAdmin() {
		records := make([]procedure.Record, 0, len(subject.Roles()))
		for _, role := range subject.Roles() {
			records = append(records, procedure.Record{"role": role, "users": []string{subject.Username()}})
		}
		return records, nil
	}

	roles, err := p.realm.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]procedure.Record, 0, len(roles))
	for _, role := range roles {
		users, err := p.realm.UsersForRole(ctx, role)
		if err != nil {
			return nil, err
		}
		records = append(records, procedure.Record{"role": role, "users": users})
	}
	return records, nil
}

func (p *Procedures) listUsers(ctx context.Context, c *procedure.Components, _ procedure.Args) ([]procedure.Record, error) {
	if err := requireAdmin(c, "list users"); err != nil {
		return nil, err
	}
	users, err := p.realm.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]procedure.Record, 0, len(users))
	for _, u := range users {
		records = append(records, userRecord(u))
	}
	return records, nil
}

func (p *Procedures) listRolesForUser(ctx context.Context, c *procedure.Components, args procedure.Args) ([]procedure.Record, error) {
	subject, err := authenticatedSubject(c, "listRolesForUser")
	if err != nil {
		return nil, err
	}
	username := args.String(0)
	if !subject.HasUsername(username) {
		if err := requireAdmin(c, "list roles of another user"); err != nil {
			return nil, err
		}
	}
	u, err := p.realm.GetUser(ctx, username)
	if err != nil {
		return nil, err
	}
	return valueRecords(u.Roles), nil
}

func (p *Procedures) listUsersForRole(ctx context.Context, c *procedure.Components, args procedure.Args) ([]procedure.Record, error) {
	if err := requireAdmin(c, "list users for role"); err != nil {
		return nil, err
	}
	users, err := p.realm.UsersForRole(ctx, args.String(0))
	if err != nil {
		return nil, err
	}
	return valueRecords(users), nil
}

func (p *Procedures) createUser(ctx context.Context, c *procedure.Components, args procedure.Args) ([]procedure.Record, error) {
	if err := requireAdmin(c, "create user"); err != nil {
		return nil, err
	}
	username, password := args.String(0), args.String(1)
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, InvalidPassword("a password cannot be empty")
	}
	hash, err := p.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	_, err = p.realm.NewUser(ctx, username, hash, args.Bool(2))
	return nil, err
}

func (p *Procedures) deleteUser(ctx context.Context, c *procedure.Components, args procedure.Args) ([]procedure.Record, error) {
	if err := requireAdmin(c, "delete user"); err != nil {
		return nil, err
	}
	subject, err := SubjectFrom(c)
	if err != nil {
		return nil, err
	}
	username := args.String(0)
	if subject.HasUsername(username) {
		return nil, SelfActionDenied("deleting", username)
	}
	return nil, p.realm.DeleteUser(ctx, username)
}

func (p *Procedures) changeUserPassword(ctx context.Context, c *procedure.Components, args procedure.Args) ([]procedure.Record, error) {
	if err := requireAdmin(c, "change another user's password"); err != nil {
		return nil, err
	}
	return nil, p.setPassword(ctx, args.String(0), args.String(1), args.Bool(2))
}

func (p *Procedures) suspendUser(ctx context.Context, c *procedure.Components, args procedure.Args) ([]procedure.Record, error) {
	if err := requireAdmin(c, "suspend user"); err != nil {
		return nil, err
	}
	subject, err := SubjectFrom(c)
	if err != nil {
		return nil, err
	}
	username := args.String(0)
	if subject.HasUsername(username) {
		return nil, SelfActionDenied("suspending", username)
	}
	return nil, p.realm.SetSuspended(ctx, username, true)
}

func (p *Procedures) activateUser(ctx context.Context, c *procedure.Components, args procedure.Args) ([]procedure.Record, error) {
	if err := requireAdmin(c, "activate user"); err != nil {
		return nil, err
	}
	return nil, p.realm.SetSuspended(ctx, args.String(0), false)
}

func (p *Procedures) createRole(ctx context.Context, c *procedure.Components, args procedure.Args) ([]procedure.Record, error) {
	if err := requireAdmin(c, "create role"); err != nil {
		return nil, err
	}
	return nil, p.realm.NewRole(ctx, args.String(0))
}

func (p *Procedures) deleteRole(ctx context.Context, c *procedure.Components, args procedure.Args) ([]procedure.Record, error) {
	if err := requireAdmin(c, "delete role"); err != nil {
		return nil, err
	}
	return nil, p.realm.DeleteRole(ctx, args.String(0))
}

func (p *Procedures) addRoleToUser(ctx context.Context, c *procedure.Components, args procedure.Args) ([]procedure.Record, error) {
	if err := requireAdmin(c, "add role to user"); err != nil {
		return nil, err
	}
	return nil, p.realm.AddRoleToUser(ctx, args.String(0), args.String(1))
}

func (p *Procedures) removeRoleFromUser(ctx context.Context, c *procedure.Components, args procedure.Args) ([]procedure.Record, error) {
	if err := requireAdmin(c, "remove role from user"); err != nil {
		return nil, err
	}
	subject, err := SubjectFrom(c)
	if err != nil {
		return nil, err
	}
	role, username := args.String(0), args.String(1)
	if role == RoleAdmin && subject.HasUsername(username) {
		return nil, SelfActionDenied("removing the admin role from", username)
	}
	return nil, p.realm.RemoveRoleFromUser(ctx, role, username)
}

func userRecord(u *User) procedure.Record {
	roles := u.Roles
	if roles == nil {
		roles = []string{}
	}
	return procedure.Record{
		"username": u.Username,
		"roles":    roles,
		"flags":    u.Flags(),
	}
}

func valueRecords(values []string) []procedure.Record {
	records := make([]procedure.Record, len(values))
	for i, v := range values {
		records[i] = procedure.Record{"value": v}
	}
	return records
}
