// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads procauth settings.
//
// Values are layered: built-in defaults, then the YAML file, then the
// DATABASE_URL environment variable, then command line flags that were
// explicitly set. The file is checked against the JSON Schema generated from
// Config before it is merged.
package config

import (
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Error codes reported while loading configuration.
const (
	CodeConfigRead    = "CONFIG_READ_FAILED"
	CodeConfigSchema  = "CONFIG_SCHEMA_VIOLATION"
	CodeConfigInvalid = "CONFIG_INVALID"
)

// Realm backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// EnvDatabaseURL overrides realm.database_url.
const EnvDatabaseURL = "DATABASE_URL"

// Config is the complete procauth configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server" json:"server,omitempty" jsonschema:"description=Listener settings"`
	Realm     RealmConfig     `koanf:"realm" json:"realm,omitempty" jsonschema:"description=User and role storage"`
	Log       LogConfig       `koanf:"log" json:"log,omitempty" jsonschema:"description=Structured logging"`
	Bootstrap BootstrapConfig `koanf:"bootstrap" json:"bootstrap,omitempty" jsonschema:"description=Initial admin account"`
}

// ServerConfig configures the API and observability listeners.
type ServerConfig struct {
	APIAddr     string `koanf:"api_addr" json:"api_addr,omitempty" jsonschema:"description=Procedure API listen address,default=127.0.0.1:7474"`
	MetricsAddr string `koanf:"metrics_addr" json:"metrics_addr,omitempty" jsonschema:"description=Metrics and health listen address; empty disables it,default=127.0.0.1:9100"`
	AuthEnabled bool   `koanf:"auth_enabled" json:"auth_enabled,omitempty" jsonschema:"description=Require login; when false every call runs with full access,default=true"`
	// ShutdownSeconds bounds graceful shutdown.
	ShutdownSeconds int `koanf:"shutdown_seconds" json:"shutdown_seconds,omitempty" jsonschema:"minimum=1,default=5"`
	// SessionTTLMinutes is how long a login stays valid.
	SessionTTLMinutes int `koanf:"session_ttl_minutes" json:"session_ttl_minutes,omitempty" jsonschema:"minimum=1,default=1440"`
}

// RealmConfig selects and configures the realm backend.
type RealmConfig struct {
	Backend         string `koanf:"backend" json:"backend,omitempty" jsonschema:"enum=memory,enum=postgres,default=memory"`
	DatabaseURL     string `koanf:"database_url" json:"database_url,omitempty" jsonschema:"description=PostgreSQL connection string for the postgres backend"`
	MaxConns        int32  `koanf:"max_conns" json:"max_conns,omitempty" jsonschema:"minimum=1,default=10"`
	ConnectAttempts uint64 `koanf:"connect_attempts" json:"connect_attempts,omitempty" jsonschema:"minimum=1,default=5"`
	AutoMigrate     bool   `koanf:"auto_migrate" json:"auto_migrate,omitempty" jsonschema:"description=Apply pending migrations on serve,default=true"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Format string `koanf:"format" json:"format,omitempty" jsonschema:"enum=json,enum=text,default=json"`
	Level  string `koanf:"level" json:"level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error,default=info"`
}

// BootstrapConfig seeds an admin into an empty realm.
type BootstrapConfig struct {
	AdminUsername string `koanf:"admin_username" json:"admin_username,omitempty" jsonschema:"default=admin"`
	// AdminPassword enables seeding when non-empty. The account must change
	// it on first login.
	AdminPassword string `koanf:"admin_password" json:"admin_password,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			APIAddr:           "127.0.0.1:7474",
			MetricsAddr:       "127.0.0.1:9100",
			AuthEnabled:       true,
			ShutdownSeconds:   5,
			SessionTTLMinutes: 1440,
		},
		Realm: RealmConfig{
			Backend:         BackendMemory,
			MaxConns:        10,
			ConnectAttempts: 5,
			AutoMigrate:     true,
		},
		Log: LogConfig{
			Format: "json",
			Level:  "info",
		},
		Bootstrap: BootstrapConfig{
			AdminUsername: "admin",
		},
	}
}

// defaultsMap mirrors Default in koanf's flat key form.
func defaultsMap() map[string]any {
	d := Default()
	return map[string]any{
		"server.api_addr":            d.Server.APIAddr,
		"server.metrics_addr":        d.Server.MetricsAddr,
		"server.auth_enabled":        d.Server.AuthEnabled,
		"server.shutdown_seconds":    d.Server.ShutdownSeconds,
		"server.session_ttl_minutes": d.Server.SessionTTLMinutes,
		"realm.backend":              d.Realm.Backend,
		"realm.max_conns":            d.Realm.MaxConns,
		"realm.connect_attempts":     d.Realm.ConnectAttempts,
		"realm.auto_migrate":         d.Realm.AutoMigrate,
		"log.format":                 d.Log.Format,
		"log.level":                  d.Log.Level,
		"bootstrap.admin_username":   d.Bootstrap.AdminUsername,
	}
}

// Load builds the configuration. path may be empty, in which case only
// defaults, environment and flags apply. flags may be nil. Flag names map to
// keys by replacing "-" with "_", so --server.api-addr sets server.api_addr.
// Only flags the user set override lower layers.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	for key, v := range defaultsMap() {
		if err := k.Set(key, v); err != nil {
			return Config{}, oops.Code(CodeConfigRead).With("key", key).Wrap(err)
		}
	}

	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
		if err != nil {
			return Config{}, oops.Code(CodeConfigRead).With("path", path).Wrap(err)
		}
		if err := ValidateYAML(data); err != nil {
			return Config{}, oops.With("path", path).Wrap(err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, oops.Code(CodeConfigRead).With("path", path).Wrap(err)
		}
	}

	if dsn := os.Getenv(EnvDatabaseURL); dsn != "" {
		if err := k.Set("realm.database_url", dsn); err != nil {
			return Config{}, oops.Code(CodeConfigRead).With("source", EnvDatabaseURL).Wrap(err)
		}
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, flagKey(flags)), nil); err != nil {
			return Config{}, oops.Code(CodeConfigRead).With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, oops.Code(CodeConfigInvalid).Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// flagKey maps a flag to its config key. Flags without a section prefix are
// not configuration and are skipped.
func flagKey(fs *pflag.FlagSet) func(*pflag.Flag) (string, any) {
	return func(f *pflag.Flag) (string, any) {
		if !strings.Contains(f.Name, ".") {
			return "", nil
		}
		return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(fs, f)
	}
}

// Validate checks cross-field constraints the schema cannot express.
func (c Config) Validate() error {
	switch c.Realm.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Realm.DatabaseURL == "" {
			return oops.Code(CodeConfigInvalid).
				With("key", "realm.database_url").
				Errorf("postgres backend requires realm.database_url or %s", EnvDatabaseURL)
		}
	default:
		return oops.Code(CodeConfigInvalid).
			With("key", "realm.backend").
			Errorf("unknown realm backend %q", c.Realm.Backend)
	}
	if c.Server.APIAddr == "" {
		return oops.Code(CodeConfigInvalid).With("key", "server.api_addr").Errorf("api address is required")
	}
	if c.Server.ShutdownSeconds < 1 {
		return oops.Code(CodeConfigInvalid).With("key", "server.shutdown_seconds").Errorf("shutdown timeout must be positive")
	}
	if c.Server.SessionTTLMinutes < 1 {
		return oops.Code(CodeConfigInvalid).With("key", "server.session_ttl_minutes").Errorf("session ttl must be positive")
	}
	if c.Realm.MaxConns < 1 || c.Realm.ConnectAttempts < 1 {
		return oops.Code(CodeConfigInvalid).With("key", "realm").Errorf("max_conns and connect_attempts must be positive")
	}
	return nil
}
