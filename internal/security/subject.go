// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package security

import (
	"slices"
	"strings"
)

// SubjectKind distinguishes authenticated users from the special subjects.
type SubjectKind int

// SubjectKind constants.
const (
	SubjectAnonymous    SubjectKind = iota // no credentials presented
	SubjectUser                            // authenticated realm user
	SubjectAuthDisabled                    // authentication switched off
)

// AuthSubject identifies the caller for the duration of one call. It is an
// immutable value: the role list is copied in and out.
type AuthSubject struct {
	kind     SubjectKind
	username string
	roles    []string
}

// Anonymous is the subject of a caller that presented no credentials.
var Anonymous = AuthSubject{kind: SubjectAnonymous}

// AuthDisabled is the subject used for every call when authentication is
// switched off.
var AuthDisabled = AuthSubject{kind: SubjectAuthDisabled}

// NewAuthSubject returns an authenticated subject with a snapshot of roles.
func NewAuthSubject(username string, roles []string) AuthSubject {
	copied := slices.Clone(roles)
	slices.Sort(copied)
	return AuthSubject{kind: SubjectUser, username: username, roles: copied}
}

// Kind returns the subject kind.
func (s AuthSubject) Kind() SubjectKind { return s.kind }

// Username returns the authenticated username, or "" for the special subjects.
func (s AuthSubject) Username() string { return s.username }

// IsAuthenticated reports whether the caller may run procedures at all.
func (s AuthSubject) IsAuthenticated() bool {
	return s.kind == SubjectUser || s.kind == SubjectAuthDisabled
}

// Roles returns the role snapshot, sorted.
func (s AuthSubject) Roles() []string { return slices.Clone(s.roles) }

// HasRole reports whether the snapshot contains role.
func (s AuthSubject) HasRole(role string) bool {
	_, found := slices.BinarySearch(s.roles, role)
	return found
}

// HasUsername reports whether the subject is the user named username.
func (s AuthSubject) HasUsername(username string) bool {
	return s.kind == SubjectUser && s.username == username
}

func (s AuthSubject) String() string {
	switch s.kind {
	case SubjectUser:
		return "user:" + s.username + "[" + strings.Join(s.roles, ",") + "]"
	case SubjectAuthDisabled:
		return "auth_disabled"
	default:
		return "anonymous"
	}
}
