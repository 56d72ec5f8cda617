// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package security

import "strings"

// Permission is one operation class an access mode can allow.
type Permission uint8

// Permission constants. Modes combine them as a bit set.
const (
	PermRead Permission = 1 << iota
	PermWrite
	PermSchema
	PermAdmin
)

var permissionNames = []struct {
	perm Permission
	name string
}{
	{PermRead, "read"},
	{PermWrite, "write"},
	{PermSchema, "schema"},
	{PermAdmin, "admin"},
}

// AccessMode is the permission envelope of one call. It is an immutable
// value; copies are independent.
type AccessMode struct {
	name  string
	perms Permission
}

// Predefined access modes.
var (
	ModeNone               = AccessMode{name: "none"}
	ModeRead               = AccessMode{name: "read", perms: PermRead}
	ModeWrite              = AccessMode{name: "write", perms: PermRead | PermWrite}
	ModeSchema             = AccessMode{name: "schema", perms: PermRead | PermWrite | PermSchema}
	ModeFull               = AccessMode{name: "full", perms: PermRead | PermWrite | PermSchema | PermAdmin}
	ModeCredentialsExpired = AccessMode{name: "credentials_expired"}
)

var namedModes = []AccessMode{ModeNone, ModeRead, ModeWrite, ModeSchema, ModeFull}

// NewAccessMode returns the mode granting perms. Permission sets matching a
// predefined mode get its name.
func NewAccessMode(perms Permission) AccessMode {
	for _, m := range namedModes {
		if m.perms == perms {
			return m
		}
	}
	names := make([]string, 0, len(permissionNames))
	for _, p := range permissionNames {
		if perms&p.perm != 0 {
			names = append(names, p.name)
		}
	}
	return AccessMode{name: strings.Join(names, "+"), perms: perms}
}

// Name returns the display name of the mode.
func (m AccessMode) Name() string { return m.name }

func (m AccessMode) String() string { return m.name }

// Permissions returns the permission bit set.
func (m AccessMode) Permissions() Permission { return m.perms }

// Allows reports whether every permission in p is granted.
func (m AccessMode) Allows(p Permission) bool { return p != 0 && m.perms&p == p }

// AllowsReads reports whether the mode permits reads.
func (m AccessMode) AllowsReads() bool { return m.Allows(PermRead) }

// AllowsWrites reports whether the mode permits data writes.
func (m AccessMode) AllowsWrites() bool { return m.Allows(PermWrite) }

// AllowsSchemaWrites reports whether the mode permits schema changes.
func (m AccessMode) AllowsSchemaWrites() bool { return m.Allows(PermSchema) }

// AllowsAdmin reports whether the mode permits user and role management.
func (m AccessMode) AllowsAdmin() bool { return m.Allows(PermAdmin) }

// Union returns a mode granting the permissions of both m and other.
func (m AccessMode) Union(other AccessMode) AccessMode {
	return NewAccessMode(m.perms | other.perms)
}
