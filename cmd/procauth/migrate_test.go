// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/procauth/internal/config"
	"github.com/holomush/procauth/internal/store"
	"github.com/holomush/procauth/pkg/errutil"
)

func runMigrate(t *testing.T, m *fakeMigrator, args ...string) (string, string, error) {
	t.Helper()
	var gotURL string
	deps := &AppDeps{
		Hasher: plainHasher{},
		NewMigrator: func(url string) (Migrator, error) {
			gotURL = url
			return m, nil
		},
	}
	out, err := execute(context.Background(), newTestRoot(deps, nil), nil, append([]string{"migrate"}, args...)...)
	return out, gotURL, err
}

func TestMigrate_Up(t *testing.T) {
	isolate(t)
	t.Setenv(config.EnvDatabaseURL, "postgres://env@db/realm")

	m := &fakeMigrator{}
	_, url, err := runMigrate(t, m, "up")
	require.NoError(t, err)
	assert.Equal(t, "postgres://env@db/realm", url)
	assert.Equal(t, []string{"up", "close"}, m.calls)
}

func TestMigrate_FlagOverridesEnv(t *testing.T) {
	isolate(t)
	t.Setenv(config.EnvDatabaseURL, "postgres://env@db/realm")

	m := &fakeMigrator{}
	_, url, err := runMigrate(t, m, "up", "--realm.database-url", "postgres://flag@db/realm")
	require.NoError(t, err)
	assert.Equal(t, "postgres://flag@db/realm", url)
}

func TestMigrate_RequiresDatabase(t *testing.T) {
	isolate(t)

	m := &fakeMigrator{}
	_, _, err := runMigrate(t, m, "up")
	errutil.AssertErrorCode(t, err, config.CodeConfigInvalid)
	errutil.AssertErrorContext(t, err, "key", "realm.database_url")
	assert.Empty(t, m.calls)
}

func TestMigrate_DownNeedsConfirmation(t *testing.T) {
	isolate(t)
	t.Setenv(config.EnvDatabaseURL, "postgres://env@db/realm")

	m := &fakeMigrator{}
	_, _, err := runMigrate(t, m, "down")
	errutil.AssertErrorCode(t, err, "CONFIRMATION_REQUIRED")
	assert.Empty(t, m.calls)

	_, _, err = runMigrate(t, m, "down", "--yes")
	require.NoError(t, err)
	assert.Equal(t, []string{"down", "close"}, m.calls)
}

func TestMigrate_Status(t *testing.T) {
	isolate(t)
	t.Setenv(config.EnvDatabaseURL, "postgres://env@db/realm")

	m := &fakeMigrator{status: store.Status{Version: 1, Name: "000001_realm", Pending: []uint{2}}}
	out, _, err := runMigrate(t, m, "status")
	require.NoError(t, err)
	assert.Equal(t, "version: 1 (000001_realm)\ndirty:   false\npending: 2\n", out)
}

func TestMigrate_Force(t *testing.T) {
	isolate(t)
	t.Setenv(config.EnvDatabaseURL, "postgres://env@db/realm")

	m := &fakeMigrator{}
	_, _, err := runMigrate(t, m, "force", "2")
	require.NoError(t, err)
	assert.Equal(t, 2, m.forced)

	m = &fakeMigrator{}
	_, _, err = runMigrate(t, m, "force", "two")
	errutil.AssertErrorCode(t, err, store.CodeInvalidVersion)
	assert.Empty(t, m.calls, "invalid version never opens the database")
}

func TestParseForceVersion(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{"3", 3, false},
		{"0", 0, false},
		{"  42 ", 42, false},
		{"-1", 0, true},
		{"1.5", 0, true},
		{"3abc", 0, true},
		{"", 0, true},
		{"   ", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseForceVersion(tt.input)
			if tt.wantErr {
				errutil.AssertErrorCode(t, err, store.CodeInvalidVersion)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatStatus(t *testing.T) {
	tests := []struct {
		name string
		st   store.Status
		want string
	}{
		{"fresh", store.Status{Pending: []uint{1, 2}}, "version: none\ndirty:   false\npending: 1, 2\n"},
		{"current", store.Status{Version: 2, Name: "000002_predefined_roles"}, "version: 2 (000002_predefined_roles)\ndirty:   false\npending: none\n"},
		{"dirty", store.Status{Version: 1, Name: "000001_realm", Dirty: true, Pending: []uint{2}}, "version: 1 (000001_realm)\ndirty:   true\npending: 2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatStatus(tt.st))
		})
	}
}
