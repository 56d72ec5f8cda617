// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/procauth/internal/config"
	"github.com/holomush/procauth/internal/dispatch"
	"github.com/holomush/procauth/internal/procedure"
	"github.com/holomush/procauth/internal/security"
	"github.com/holomush/procauth/internal/security/postgres"
	"github.com/holomush/procauth/internal/session"
	"github.com/holomush/procauth/internal/store"
)

// Migrator is the subset of store.Migrator the commands use.
type Migrator interface {
	Up() error
	Down() error
	Force(version int) error
	Status() (store.Status, error)
	Close() error
}

// AppDeps holds injectable dependencies. Nil fields use the defaults.
type AppDeps struct {
	// OpenRealm returns the realm for cfg and a function releasing it.
	// Default: openRealm
	OpenRealm func(ctx context.Context, cfg config.RealmConfig) (security.Realm, func(), error)

	// NewMigrator opens a migrator for a database URL.
	// Default: store.NewMigrator
	NewMigrator func(databaseURL string) (Migrator, error)

	// Hasher hashes and verifies passwords.
	// Default: security.NewArgon2idHasher
	Hasher security.PasswordHasher
}

func (d *AppDeps) withDefaults() *AppDeps {
	out := AppDeps{}
	if d != nil {
		out = *d
	}
	if out.NewMigrator == nil {
		out.NewMigrator = func(url string) (Migrator, error) {
			return store.NewMigrator(url)
		}
	}
	if out.OpenRealm == nil {
		out.OpenRealm = openRealm
	}
	if out.Hasher == nil {
		out.Hasher = security.NewArgon2idHasher()
	}
	return &out
}

// app is the composed process: one realm, one sealed registry and the
// dispatcher and sessions built over them.
type app struct {
	cfg        config.Config
	realm      security.Realm
	registry   *procedure.Registry
	provider   *security.Provider
	sessions   *session.Manager
	dispatcher *dispatch.Dispatcher
	release    func()
}

// newApp opens the realm, applies migrations when configured, seeds the
// initial admin, and registers the security procedures.
func newApp(ctx context.Context, cfg config.Config, deps *AppDeps) (*app, error) {
	deps = deps.withDefaults()

	realm, release, err := deps.OpenRealm(ctx, cfg.Realm)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, realm: realm, release: release}

	// Connect already waited for the database, so migrations run against a
	// live server.
	if cfg.Realm.Backend == config.BackendPostgres && cfg.Realm.AutoMigrate {
		if err := migrateUp(deps, cfg.Realm.DatabaseURL); err != nil {
			a.Close()
			return nil, err
		}
	}

	if cfg.Bootstrap.AdminPassword != "" {
		if _, err := security.BootstrapAdmin(ctx, realm, deps.Hasher, cfg.Bootstrap.AdminUsername, cfg.Bootstrap.AdminPassword); err != nil {
			a.Close()
			return nil, err
		}
	}

	a.registry, a.provider, err = buildRegistry(realm, deps.Hasher)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.dispatcher, err = dispatch.New(a.registry, realm)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.sessions = session.NewManager(realm, deps.Hasher,
		session.WithTTL(time.Duration(cfg.Server.SessionTTLMinutes)*time.Minute))
	return a, nil
}

// Close releases the realm.
func (a *app) Close() {
	if a.release != nil {
		a.release()
		a.release = nil
	}
}

// buildRegistry registers the security procedures over realm and seals the
// resolver and the registry.
func buildRegistry(realm security.Realm, hasher security.PasswordHasher) (*procedure.Registry, *security.Provider, error) {
	registry := procedure.NewRegistry(nil)
	provider := security.NewProvider(security.NewProcedures(realm, hasher))
	if err := provider.Register(registry); err != nil {
		return nil, nil, err
	}
	registry.Resolver().Seal()
	registry.Seal()
	return registry, provider, nil
}

func migrateUp(deps *AppDeps, databaseURL string) error {
	m, err := deps.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			slog.Warn("failed to close migrator", "error", closeErr)
		}
	}()

	if err := m.Up(); err != nil {
		return oops.With("operation", "apply migrations").Wrap(err)
	}
	return nil
}

// openRealm builds the realm backend named by cfg.
func openRealm(ctx context.Context, cfg config.RealmConfig) (security.Realm, func(), error) {
	switch cfg.Backend {
	case config.BackendMemory:
		slog.Warn("using in-memory realm; users and roles are lost on exit")
		return security.NewMemoryRealm(), func() {}, nil
	case config.BackendPostgres:
		opts := store.DefaultConnectOptions()
		opts.MaxConns = cfg.MaxConns
		opts.Attempts = cfg.ConnectAttempts
		pool, err := store.Connect(ctx, cfg.DatabaseURL, opts)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("connected to realm database", "max_conns", cfg.MaxConns)
		return postgres.NewRealm(pool), pool.Close, nil
	default:
		return nil, nil, oops.Code(config.CodeConfigInvalid).
			With("key", "realm.backend").
			Errorf("unknown realm backend %q", cfg.Backend)
	}
}
