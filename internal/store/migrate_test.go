// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/procauth/pkg/errutil"
)

// fakeMigrate implements migrateIface.
type fakeMigrate struct {
	upErr, downErr, forceErr error
	version                  uint
	dirty                    bool
	versionErr               error
	closeSrcErr, closeDBErr  error
	forced                   int
}

func (f *fakeMigrate) Up() error                    { return f.upErr }
func (f *fakeMigrate) Down() error                  { return f.downErr }
func (f *fakeMigrate) Version() (uint, bool, error) { return f.version, f.dirty, f.versionErr }
func (f *fakeMigrate) Close() (error, error)        { return f.closeSrcErr, f.closeDBErr }
func (f *fakeMigrate) Force(v int) error {
	f.forced = v
	return f.forceErr
}

func TestNewMigrator_BadURL(t *testing.T) {
	_, err := NewMigrator("badscheme://localhost:5432/realm")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, CodeMigrationInit)
}

func TestMigrateURL(t *testing.T) {
	tests := map[string]string{
		"postgres://u@h/db":   "pgx5://u@h/db",
		"postgresql://u@h/db": "pgx5://u@h/db",
		"pgx5://u@h/db":       "pgx5://u@h/db",
	}
	for in, want := range tests {
		assert.Equal(t, want, migrateURL(in), in)
	}
}

func TestMigrator_UpDown(t *testing.T) {
	tests := []struct {
		name     string
		fake     *fakeMigrate
		run      func(*Migrator) error
		wantCode string
	}{
		{"up applies", &fakeMigrate{}, (*Migrator).Up, ""},
		{"up no change", &fakeMigrate{upErr: migrate.ErrNoChange}, (*Migrator).Up, ""},
		{"up fails", &fakeMigrate{upErr: errors.New("locked")}, (*Migrator).Up, CodeMigrationUp},
		{"down no change", &fakeMigrate{downErr: migrate.ErrNoChange}, (*Migrator).Down, ""},
		{"down fails", &fakeMigrate{downErr: errors.New("fk")}, (*Migrator).Down, CodeMigrationDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run(&Migrator{m: tt.fake})
			if tt.wantCode == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, tt.wantCode)
		})
	}
}

func TestMigrator_Version(t *testing.T) {
	v, dirty, err := (&Migrator{m: &fakeMigrate{version: 2, dirty: true}}).Version()
	require.NoError(t, err)
	assert.Equal(t, uint(2), v)
	assert.True(t, dirty)

	v, _, err = (&Migrator{m: &fakeMigrate{versionErr: migrate.ErrNilVersion}}).Version()
	require.NoError(t, err, "a fresh database is version 0")
	assert.Zero(t, v)

	_, _, err = (&Migrator{m: &fakeMigrate{versionErr: errors.New("conn reset")}}).Version()
	errutil.AssertErrorCode(t, err, CodeMigrationVersion)
}

func TestMigrator_Force(t *testing.T) {
	fake := &fakeMigrate{}
	m := &Migrator{m: fake}
	require.NoError(t, m.Force(1))
	assert.Equal(t, 1, fake.forced)

	err := m.Force(-1)
	errutil.AssertErrorCode(t, err, CodeInvalidVersion)

	err = (&Migrator{m: &fakeMigrate{forceErr: errors.New("x")}}).Force(2)
	errutil.AssertErrorCode(t, err, CodeMigrationForce)
}

func TestMigrator_Close(t *testing.T) {
	require.NoError(t, (&Migrator{m: &fakeMigrate{}}).Close())

	err := (&Migrator{m: &fakeMigrate{closeSrcErr: errors.New("src"), closeDBErr: errors.New("db")}}).Close()
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, CodeMigrationClose)
	assert.Contains(t, err.Error(), "src")
	assert.Contains(t, err.Error(), "db")
}

func TestMigrator_Status(t *testing.T) {
	st, err := (&Migrator{m: &fakeMigrate{versionErr: migrate.ErrNilVersion}}).Status()
	require.NoError(t, err)
	assert.Zero(t, st.Version)
	assert.Equal(t, []uint{1, 2}, st.Pending)

	st, err = (&Migrator{m: &fakeMigrate{version: 1}}).Status()
	require.NoError(t, err)
	assert.Equal(t, "000001_realm", st.Name)
	assert.Equal(t, []uint{2}, st.Pending)

	st, err = (&Migrator{m: &fakeMigrate{version: 2}}).Status()
	require.NoError(t, err)
	assert.Equal(t, "000002_predefined_roles", st.Name)
	assert.Empty(t, st.Pending)
}

func TestMigrationName_Unknown(t *testing.T) {
	name, err := MigrationName(999)
	require.NoError(t, err)
	assert.Empty(t, name)
}

func TestMigrationVersions_ReturnsCopy(t *testing.T) {
	v1, err := migrationVersions()
	require.NoError(t, err)
	v1[0] = 42
	v2, err := migrationVersions()
	require.NoError(t, err)
	assert.Equal(t, uint(1), v2[0])
}
