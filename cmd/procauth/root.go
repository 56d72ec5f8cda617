// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/holomush/procauth/internal/config"
	"github.com/holomush/procauth/internal/logging"
	"github.com/holomush/procauth/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the procauth CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "procauth",
		Short: "procauth - user, role and access mode administration",
		Long: `procauth hosts the dbms.security procedures: user and role management
backed by an in-memory or PostgreSQL realm, with every call checked
against the caller's access mode.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file path (default: $XDG_CONFIG_HOME/procauth/"+xdg.ConfigFileName+" when present)")

	cmd.AddCommand(NewServeCmd(nil))
	cmd.AddCommand(NewCallCmd(nil))
	cmd.AddCommand(NewProceduresCmd(nil))
	cmd.AddCommand(NewMigrateCmd(nil))
	cmd.AddCommand(NewHashPasswordCmd(nil))

	return cmd
}

// addRealmFlags registers the config-key flags shared by every command that
// opens the realm.
func addRealmFlags(fs *pflag.FlagSet) {
	d := config.Default()
	fs.String("realm.backend", d.Realm.Backend, "realm backend (memory or postgres)")
	fs.String("realm.database-url", "", "PostgreSQL connection string (default: $"+config.EnvDatabaseURL+")")
	fs.String("log.format", d.Log.Format, "log format (json or text)")
	fs.String("log.level", d.Log.Level, "log level (debug, info, warn, error)")
}

// loadConfig reads the configuration for cmd and installs the logger it
// describes.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path := configFile
	if path == "" {
		path = xdg.ConfigFile()
	}

	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return config.Config{}, err
	}

	err = logging.SetDefault(logging.Options{
		Service: "procauth",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
	})
	if err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
