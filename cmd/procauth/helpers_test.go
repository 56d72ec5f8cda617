// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/holomush/procauth/internal/config"
	"github.com/holomush/procauth/internal/security"
)

// plainHasher keeps command tests fast; argon2id is covered in security.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", security.ErrEmptyPassword
	}
	return "plain:" + password, nil
}

func (plainHasher) Verify(password, hash string) (bool, error) {
	return hash == "plain:"+password, nil
}

// isolate clears the environment the commands read and restores the global
// logger and config path afterwards.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv(config.EnvDatabaseURL, "")
	t.Setenv(EnvPassword, "")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	logger := slog.Default()
	t.Cleanup(func() {
		slog.SetDefault(logger)
		configFile = ""
	})
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "procauth.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// newTestRoot mirrors NewRootCmd with injected dependencies.
func newTestRoot(deps *AppDeps, serve *ServeDeps) *cobra.Command {
	root := &cobra.Command{Use: "procauth", SilenceUsage: true, SilenceErrors: true}
	root.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	root.AddCommand(
		NewServeCmd(serve),
		NewCallCmd(deps),
		NewProceduresCmd(deps),
		NewMigrateCmd(deps),
		NewHashPasswordCmd(deps),
	)
	return root
}

func execute(ctx context.Context, root *cobra.Command, stdin io.Reader, args ...string) (string, error) {
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	if stdin != nil {
		root.SetIn(stdin)
	}
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return execute(context.Background(), newTestRoot(&AppDeps{Hasher: plainHasher{}}, nil), nil, args...)
}
