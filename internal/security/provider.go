// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package security

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/holomush/procauth/internal/callctx"
	"github.com/holomush/procauth/internal/procedure"
)

// Provider binds the access mode and auth subject components and the
// security procedure classes into a procedure registry.
//
// A Provider moves from unregistered to registered exactly once. Any failure
// is fatal to startup and is reported as STARTUP_FAILED carrying the cause.
type Provider struct {
	classes    []procedure.Class
	mu         sync.Mutex
	registered atomic.Bool
}

// NewProvider creates a provider for the given procedure classes.
func NewProvider(classes ...procedure.Class) *Provider {
	return &Provider{classes: classes}
}

// Register binds both resolvers and registers every class. It must run
// before the first call is dispatched.
func (p *Provider) Register(registry *procedure.Registry) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.registered.Load() {
		return StartupFailed("register", ErrAlreadyRegistered)
	}

	resolver := registry.Resolver()
	err := resolver.Register(procedure.CapabilityAccessMode,
		procedure.FieldResolver[AccessMode](procedure.CapabilityAccessMode, callctx.FieldAccessMode))
	if err != nil {
		return StartupFailed("bind access mode", err)
	}

	err = resolver.Register(procedure.CapabilityAuthSubject,
		procedure.FieldResolver[AuthSubject](procedure.CapabilityAuthSubject, callctx.FieldAuthSubject))
	if err != nil {
		return StartupFailed("bind auth subject", err)
	}

	for _, class := range p.classes {
		if err := registry.Register(class); err != nil {
			return StartupFailed("register "+class.Namespace(), err)
		}
	}

	p.registered.Store(true)
	slog.Info("security procedures registered",
		"classes", len(p.classes),
		"procedures", registry.Len())
	return nil
}

// Registered reports whether Register completed successfully.
func (p *Provider) Registered() bool {
	return p.registered.Load()
}
