// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package procedure

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/holomush/procauth/internal/callctx"
)

// ResolverFunc produces a component value from a call context. It must not
// mutate shared state, block, or perform I/O.
type ResolverFunc func(c callctx.Context) (any, error)

// FieldResolver returns a ResolverFunc that reads field f and checks that the
// stored value has type T.
func FieldResolver[T any](capability Capability, f callctx.Field) ResolverFunc {
	return func(c callctx.Context) (any, error) {
		v, err := c.Get(f)
		if err != nil {
			return nil, err
		}
		typed, ok := v.(T)
		if !ok {
			var zero T
			return nil, ComponentTypeError(capability, fmt.Sprintf("%T", zero), v)
		}
		return typed, nil
	}
}

// Resolver maps capabilities to the functions that produce them.
//
// Registration happens once at startup and is serialized by mu. Readers load
// an immutable snapshot published through an atomic pointer and never lock.
type Resolver struct {
	mu      sync.Mutex
	entries atomic.Pointer[map[Capability]ResolverFunc]
	sealed  atomic.Bool
}

// NewResolver creates an empty resolver.
func NewResolver() *Resolver {
	r := &Resolver{}
	empty := make(map[Capability]ResolverFunc)
	r.entries.Store(&empty)
	return r
}

func (r *Resolver) snapshot() map[Capability]ResolverFunc {
	if p := r.entries.Load(); p != nil {
		return *p
	}
	return nil
}

// Register binds fn to capability. A capability can be bound only once; a
// second attempt fails with DUPLICATE_REGISTRATION and keeps the first
// binding.
func (r *Resolver) Register(capability Capability, fn ResolverFunc) error {
	if !capability.Valid() {
		return UnknownCapabilityError(capability)
	}
	if fn == nil {
		return InvalidProcedureError(capability.String(), "nil resolver function")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed.Load() {
		return RegistrySealedError("resolver " + capability.String())
	}

	current := r.snapshot()
	if _, exists := current[capability]; exists {
		return DuplicateCapabilityError(capability)
	}

	next := make(map[Capability]ResolverFunc, len(current)+1)
	for c, f := range current {
		next[c] = f
	}
	next[capability] = fn
	r.entries.Store(&next)
	return nil
}

// Resolve applies the function bound to capability to c.
func (r *Resolver) Resolve(capability Capability, c callctx.Context) (any, error) {
	fn, ok := r.snapshot()[capability]
	if !ok {
		return nil, UnknownCapabilityError(capability)
	}
	return fn(c)
}

// Has reports whether capability has a resolver.
func (r *Resolver) Has(capability Capability) bool {
	_, ok := r.snapshot()[capability]
	return ok
}

// Capabilities returns the bound capabilities in ascending order.
func (r *Resolver) Capabilities() []Capability {
	current := r.snapshot()
	caps := make([]Capability, 0, len(current))
	for c := range current {
		caps = append(caps, c)
	}
	sort.Slice(caps, func(i, j int) bool { return caps[i] < caps[j] })
	return caps
}

// Seal rejects all further registrations.
func (r *Resolver) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed.Store(true)
}

// Sealed reports whether Seal was called.
func (r *Resolver) Sealed() bool {
	return r.sealed.Load()
}
