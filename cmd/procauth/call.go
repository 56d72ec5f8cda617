// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/procauth/internal/config"
	"github.com/holomush/procauth/internal/procedure"
	"github.com/holomush/procauth/internal/session"
)

// EnvPassword supplies --password when the flag is not given.
const EnvPassword = "PROCAUTH_PASSWORD"

type callOptions struct {
	user     string
	password string
	output   string
}

// NewCallCmd creates the call subcommand.
func NewCallCmd(deps *AppDeps) *cobra.Command {
	opts := &callOptions{}

	cmd := &cobra.Command{
		Use:   "call PROCEDURE [ARG...]",
		Short: "Call a procedure against the configured realm",
		Long: `Call a procedure in-process against the configured realm. Arguments
are positional and converted to the procedure's parameter types; trailing
parameters with defaults may be omitted.

  procauth call dbms.security.createUser bob s3cret false --user admin`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(cmd, args, opts, deps)
		},
	}

	d := config.Default()
	fs := cmd.Flags()
	fs.StringVarP(&opts.user, "user", "u", "", "user to log in as (required when auth is enabled)")
	fs.StringVarP(&opts.password, "password", "p", "", "password for --user (default: $"+EnvPassword+")")
	fs.StringVarP(&opts.output, "output", "o", outputTable, "output format (table, json or yaml)")
	fs.Bool("server.auth-enabled", d.Server.AuthEnabled, "require login; when false the call runs with full access")
	addRealmFlags(fs)

	return cmd
}

func runCall(cmd *cobra.Command, args []string, opts *callOptions, deps *AppDeps) error {
	if err := validateOutput(opts.output); err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, deps)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := openSession(ctx, a, opts)
	if err != nil {
		return err
	}
	defer closeSession(a.sessions, s)

	name := args[0]
	desc, known := a.registry.Get(name)
	var callArgs []any
	if known {
		callArgs, err = procedure.ParseArgs(desc, args[1:])
		if err != nil {
			return err
		}
	} else {
		// the dispatcher reports the unknown name
		callArgs = make([]any, len(args)-1)
		for i, raw := range args[1:] {
			callArgs[i] = raw
		}
	}

	records, err := a.dispatcher.Call(ctx, s, name, callArgs)
	if err != nil {
		return err
	}
	return writeRecords(cmd.OutOrStdout(), opts.output, desc.Outputs(), records)
}

// openSession logs in as --user, or opens the auth-disabled session when
// authentication is off.
func openSession(ctx context.Context, a *app, opts *callOptions) (session.Session, error) {
	if !a.cfg.Server.AuthEnabled {
		return a.sessions.AuthDisabled(), nil
	}
	if opts.user == "" {
		return session.Session{}, oops.Code("LOGIN_REQUIRED").
			Errorf("authentication is enabled; pass --user, or set server.auth_enabled to false")
	}

	password := opts.password
	if password == "" {
		password = os.Getenv(EnvPassword)
	}
	return a.sessions.Login(ctx, opts.user, password)
}

// closeSession logs s out. Failures only matter for debugging since the
// process is about to exit.
func closeSession(m *session.Manager, s session.Session) {
	if s.AuthDisabled {
		return
	}
	if err := m.Logout(s.Token); err != nil {
		slog.Debug("failed to close call session", "username", s.Username, "error", err)
	}
}
