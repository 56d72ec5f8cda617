// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package security_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/procauth/internal/security"
	"github.com/holomush/procauth/pkg/errutil"
)

func TestAccessMode_Predefined(t *testing.T) {
	tests := []struct {
		mode                         security.AccessMode
		name                         string
		read, write, schema, isAdmin bool
	}{
		{security.ModeNone, "none", false, false, false, false},
		{security.ModeRead, "read", true, false, false, false},
		{security.ModeWrite, "write", true, true, false, false},
		{security.ModeSchema, "schema", true, true, true, false},
		{security.ModeFull, "full", true, true, true, true},
		{security.ModeCredentialsExpired, "credentials_expired", false, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.mode.Name())
			assert.Equal(t, tt.read, tt.mode.AllowsReads())
			assert.Equal(t, tt.write, tt.mode.AllowsWrites())
			assert.Equal(t, tt.schema, tt.mode.AllowsSchemaWrites())
			assert.Equal(t, tt.isAdmin, tt.mode.AllowsAdmin())
		})
	}
}

func TestAccessMode_Union(t *testing.T) {
	assert.Equal(t, security.ModeWrite, security.ModeRead.Union(security.ModeWrite))
	assert.Equal(t, security.ModeFull, security.ModeNone.Union(security.ModeFull))
	assert.False(t, security.ModeNone.Allows(0), "empty permission set is never allowed")
}

func TestAuthSubject(t *testing.T) {
	roles := []string{"reader", "admin"}
	alice := security.NewAuthSubject("alice", roles)
	roles[0] = "mutated"

	assert.Equal(t, security.SubjectUser, alice.Kind())
	assert.Equal(t, "alice", alice.Username())
	assert.Equal(t, []string{"admin", "reader"}, alice.Roles(), "roles are copied and sorted")
	assert.True(t, alice.HasRole("admin"))
	assert.False(t, alice.HasRole("mutated"))
	assert.True(t, alice.HasUsername("alice"))
	assert.False(t, alice.HasUsername("bob"))
	assert.Equal(t, "user:alice[admin,reader]", alice.String())

	got := alice.Roles()
	got[0] = "changed"
	assert.Equal(t, []string{"admin", "reader"}, alice.Roles())

	assert.False(t, security.Anonymous.IsAuthenticated())
	assert.True(t, security.AuthDisabled.IsAuthenticated())
	assert.False(t, security.AuthDisabled.HasUsername(""))
	assert.Equal(t, "anonymous", security.Anonymous.String())
}

func TestDeriveAccessMode(t *testing.T) {
	tests := []struct {
		name string
		user security.User
		want security.AccessMode
	}{
		{"no roles", security.User{}, security.ModeNone},
		{"reader", security.User{Roles: []string{"reader"}}, security.ModeRead},
		{"custom role only", security.User{Roles: []string{"auditor"}}, security.ModeNone},
		{"architect and reader", security.User{Roles: []string{"architect", "reader"}}, security.ModeSchema},
		{"admin", security.User{Roles: []string{"admin"}}, security.ModeFull},
		{
			"password change required",
			security.User{Roles: []string{"admin"}, PasswordChangeRequired: true},
			security.ModeCredentialsExpired,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, security.DeriveAccessMode(&tt.user))
		})
	}
}

func TestValidateNames(t *testing.T) {
	require.NoError(t, security.ValidateUsername("alice_01"))
	require.NoError(t, security.ValidateRoleName("Auditor"))

	for _, bad := range []string{"", "has space", "semi;colon", "dash-ed"} {
		err := security.ValidateUsername(bad)
		require.Error(t, err, bad)
		errutil.AssertErrorCode(t, err, security.CodeInvalidName)
	}
}

func TestPredefinedRoles(t *testing.T) {
	assert.Equal(t, []string{"admin", "architect", "publisher", "reader"}, security.PredefinedRoles())
	assert.True(t, security.IsPredefinedRole("admin"))
	assert.False(t, security.IsPredefinedRole("auditor"))
}
