// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package procedure provides the procedure registry, component resolution and
// invocation engine.
//
// Procedure authors group related procedures into a Class. Each Definition
// declares the capabilities it needs; the Registry checks them against the
// Resolver when the class is registered and resolves them from the call
// context on every invocation.
package procedure

import (
	"context"
	"fmt"
	"strings"
)

// Func is the body of a procedure. Components holds exactly the capabilities
// the definition declared, resolved for the current call.
type Func func(ctx context.Context, c *Components, args Args) ([]Record, error)

// Record is one output row of a procedure, keyed by output column.
type Record map[string]any

// ParamType is the declared type of a procedure parameter.
type ParamType int

// ParamType constants define the supported parameter types.
const (
	ParamString  ParamType = iota // string
	ParamBoolean                  // boolean
	ParamInteger                  // integer
)

var paramTypeStrings = [...]string{
	"STRING",
	"BOOLEAN",
	"INTEGER",
}

func (t ParamType) String() string {
	if t >= 0 && int(t) < len(paramTypeStrings) {
		return paramTypeStrings[t]
	}
	return fmt.Sprintf("unknown(%d)", int(t))
}

// Param declares one procedure parameter. A non-nil Default makes the
// parameter optional; optional parameters must follow required ones.
type Param struct {
	Name    string
	Type    ParamType
	Default any
}

// Definition declares a procedure inside a Class.
type Definition struct {
	Name        string       // unqualified name, e.g. "listRoles"
	Description string       // one line
	Requires    []Capability // components injected on every call
	Params      []Param
	Outputs     []string // output columns, in order
	Func        Func
}

// Class is a group of procedures sharing a namespace, e.g. "dbms.security".
type Class interface {
	Namespace() string
	Procedures() []Definition
}

// Descriptor is a registered procedure. It is immutable; accessors return
// copies.
type Descriptor struct {
	name        string
	description string
	requires    []Capability
	params      []Param
	outputs     []string
	fn          Func
}

// Name returns the fully qualified procedure name.
func (d Descriptor) Name() string { return d.name }

// Description returns the one line description.
func (d Descriptor) Description() string { return d.description }

// Requires returns the required capabilities.
func (d Descriptor) Requires() []Capability {
	out := make([]Capability, len(d.requires))
	copy(out, d.requires)
	return out
}

// Params returns the declared parameters.
func (d Descriptor) Params() []Param {
	out := make([]Param, len(d.params))
	copy(out, d.params)
	return out
}

// Outputs returns the output column names.
func (d Descriptor) Outputs() []string {
	out := make([]string, len(d.outputs))
	copy(out, d.outputs)
	return out
}

// Signature renders the procedure signature, e.g.
// "dbms.security.createUser(username :: STRING?, password :: STRING?) :: ()".
func (d Descriptor) Signature() string {
	var b strings.Builder
	b.WriteString(d.name)
	b.WriteByte('(')
	for i, p := range d.params {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s :: %s?", p.Name, p.Type)
		if p.Default != nil {
			fmt.Fprintf(&b, " = %v", p.Default)
		}
	}
	b.WriteString(") :: (")
	b.WriteString(strings.Join(d.outputs, ", "))
	b.WriteByte(')')
	return b.String()
}

// Components holds the resolved capabilities for one call.
type Components struct {
	values map[Capability]any
}

// NewComponents builds a Components value directly. Procedure tests use it
// to call a Func without a registry.
func NewComponents(values map[Capability]any) *Components {
	copied := make(map[Capability]any, len(values))
	for c, v := range values {
		copied[c] = v
	}
	return &Components{values: copied}
}

// Value returns the component for capability. Reading a capability the
// procedure did not declare fails with UNKNOWN_CAPABILITY.
func (c *Components) Value(capability Capability) (any, error) {
	if c == nil {
		return nil, UnknownCapabilityError(capability)
	}
	v, ok := c.values[capability]
	if !ok {
		return nil, UnknownCapabilityError(capability)
	}
	return v, nil
}

// Component returns the component for capability as a T.
func Component[T any](c *Components, capability Capability) (T, error) {
	var zero T
	v, err := c.Value(capability)
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, ComponentTypeError(capability, fmt.Sprintf("%T", zero), v)
	}
	return typed, nil
}

// Args are the validated arguments of one call. Values have the Go type of
// their declared parameter: string, bool or int64.
type Args []any

// String returns argument i as a string.
func (a Args) String(i int) string {
	s, _ := a[i].(string)
	return s
}

// Bool returns argument i as a bool.
func (a Args) Bool(i int) bool {
	b, _ := a[i].(bool)
	return b
}

// Int returns argument i as an int64.
func (a Args) Int(i int) int64 {
	n, _ := a[i].(int64)
	return n
}
