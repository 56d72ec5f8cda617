// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package procedure

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gobwas/glob"

	"github.com/holomush/procauth/internal/callctx"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Registry holds the invokable procedures.
//
// Like Resolver, registration is serialized and publishes a new immutable
// snapshot; Get, List and Invoke read the snapshot without locking.
type Registry struct {
	resolver *Resolver
	mu       sync.Mutex
	procs    atomic.Pointer[map[string]Descriptor]
	sealed   atomic.Bool
}

// NewRegistry creates an empty registry whose procedures resolve their
// components through resolver.
func NewRegistry(resolver *Resolver) *Registry {
	if resolver == nil {
		resolver = NewResolver()
	}
	r := &Registry{resolver: resolver}
	empty := make(map[string]Descriptor)
	r.procs.Store(&empty)
	return r
}

// Resolver returns the resolver the registry was created with.
func (r *Registry) Resolver() *Resolver {
	return r.resolver
}

func (r *Registry) snapshot() map[string]Descriptor {
	if p := r.procs.Load(); p != nil {
		return *p
	}
	return nil
}

// Register installs every procedure of class. The class is installed
// all-or-nothing: if any definition is malformed, duplicates an existing
// name, or requires a capability without a resolver, nothing is installed.
func (r *Registry) Register(class Class) error {
	if class == nil {
		return InvalidProcedureError("", "nil class")
	}
	namespace := class.Namespace()
	if err := validNamespace(namespace); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed.Load() {
		return RegistrySealedError("procedure class " + namespace)
	}

	current := r.snapshot()
	defs := class.Procedures()
	added := make(map[string]Descriptor, len(defs))
	for _, def := range defs {
		d, err := r.describe(namespace, def)
		if err != nil {
			return err
		}
		if _, exists := current[d.name]; exists {
			return DuplicateProcedureError(d.name)
		}
		if _, exists := added[d.name]; exists {
			return DuplicateProcedureError(d.name)
		}
		added[d.name] = d
	}

	next := make(map[string]Descriptor, len(current)+len(added))
	for name, d := range current {
		next[name] = d
	}
	for name, d := range added {
		next[name] = d
		slog.Debug("procedure registered",
			"procedure", name,
			"requires", capabilityNames(d.requires))
	}
	r.procs.Store(&next)
	return nil
}

// describe validates def and turns it into a Descriptor.
func (r *Registry) describe(namespace string, def Definition) (Descriptor, error) {
	name := namespace + "." + def.Name
	if !identifierPattern.MatchString(def.Name) {
		return Descriptor{}, InvalidProcedureError(name, "name must be an identifier")
	}
	if def.Func == nil {
		return Descriptor{}, InvalidProcedureError(name, "nil procedure function")
	}

	seenOptional := false
	for _, p := range def.Params {
		if !identifierPattern.MatchString(p.Name) {
			return Descriptor{}, InvalidProcedureError(name, fmt.Sprintf("parameter %q must be an identifier", p.Name))
		}
		if p.Default != nil {
			if _, ok := normalize(p.Type, p.Default); !ok {
				return Descriptor{}, InvalidProcedureError(name, fmt.Sprintf("default of %s is not a %s", p.Name, p.Type))
			}
			seenOptional = true
		} else if seenOptional {
			return Descriptor{}, InvalidProcedureError(name, fmt.Sprintf("required parameter %s follows an optional one", p.Name))
		}
	}

	requires := make([]Capability, 0, len(def.Requires))
	seen := make(map[Capability]bool, len(def.Requires))
	for _, c := range def.Requires {
		if !c.Valid() {
			return Descriptor{}, UnsatisfiedDependencyError(name, c)
		}
		if !r.resolver.Has(c) {
			return Descriptor{}, UnsatisfiedDependencyError(name, c)
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		requires = append(requires, c)
	}
	sort.Slice(requires, func(i, j int) bool { return requires[i] < requires[j] })

	d := Descriptor{
		name:        name,
		description: def.Description,
		requires:    requires,
		params:      append([]Param(nil), def.Params...),
		outputs:     append([]string(nil), def.Outputs...),
		fn:          def.Func,
	}
	return d, nil
}

func validNamespace(namespace string) error {
	if namespace == "" {
		return InvalidProcedureError(namespace, "empty namespace")
	}
	for _, segment := range strings.Split(namespace, ".") {
		if !identifierPattern.MatchString(segment) {
			return InvalidProcedureError(namespace, "namespace segments must be identifiers")
		}
	}
	return nil
}

// Get returns the descriptor registered under name.
func (r *Registry) Get(name string) (Descriptor, bool) {
	d, ok := r.snapshot()[name]
	return d, ok
}

// List returns the descriptors whose name matches pattern, sorted by name.
// An empty pattern matches everything. Patterns use '.' as the segment
// separator: "dbms.security.*" matches direct children only, "dbms.**"
// matches all descendants.
func (r *Registry) List(pattern string) ([]Descriptor, error) {
	var g glob.Glob
	if pattern != "" {
		compiled, err := glob.Compile(pattern, '.')
		if err != nil {
			return nil, InvalidPatternError(pattern, err)
		}
		g = compiled
	}

	current := r.snapshot()
	out := make([]Descriptor, 0, len(current))
	for name, d := range current {
		if g == nil || g.Match(name) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out, nil
}

// Len returns the number of registered procedures.
func (r *Registry) Len() int {
	return len(r.snapshot())
}

// Seal rejects all further registrations.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed.Store(true)
}

// Sealed reports whether Seal was called.
func (r *Registry) Sealed() bool {
	return r.sealed.Load()
}

// Invoke runs the procedure registered under name against call context c.
//
// Argument mismatches fail with INVALID_ARGS. Failures while resolving the
// required components, and failures raised by the procedure body (including
// panics), are returned as PROCEDURE_EXECUTION_FAILURE wrapping the cause.
func (r *Registry) Invoke(ctx context.Context, name string, c callctx.Context, raw []any) ([]Record, error) {
	d, ok := r.Get(name)
	if !ok {
		return nil, ProcedureNotFoundError(name)
	}

	args, err := bindArgs(d, raw)
	if err != nil {
		return nil, err
	}

	components := &Components{values: make(map[Capability]any, len(d.requires))}
	for _, capability := range d.requires {
		v, err := r.resolver.Resolve(capability, c)
		if err != nil {
			return nil, ExecutionFailure(name, err)
		}
		components.values[capability] = v
	}

	records, err := run(ctx, d, components, args)
	if err != nil {
		return nil, ExecutionFailure(name, err)
	}
	return records, nil
}

func run(ctx context.Context, d Descriptor, components *Components, args Args) (records []Record, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("procedure panicked: %v", p)
		}
	}()
	return d.fn(ctx, components, args)
}

func capabilityNames(caps []Capability) []string {
	names := make([]string, len(caps))
	for i, c := range caps {
		names[i] = c.String()
	}
	return names
}
