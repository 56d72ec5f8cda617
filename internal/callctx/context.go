// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package callctx provides the immutable per-invocation context the dispatch
// layer builds for every procedure call.
//
// A Context is populated once through a Builder and never changes afterwards.
// Each call owns its own Context; nothing in this package is shared between
// calls.
package callctx

import (
	"context"
	"fmt"
)

// Field identifies an entry of a call context. The set of fields is closed.
type Field int

// Field constants define every entry a call context can carry.
const (
	FieldAccessMode  Field = iota + 1 // access_mode
	FieldAuthSubject                  // auth_subject
	FieldCallID                       // call_id
	FieldProcedure                    // procedure
)

var fieldNames = [...]string{
	"",
	"access_mode",
	"auth_subject",
	"call_id",
	"procedure",
}

func (f Field) String() string {
	if f.Valid() {
		return fieldNames[f]
	}
	return fmt.Sprintf("unknown(%d)", int(f))
}

// Valid reports whether f is one of the declared field constants.
func (f Field) Valid() bool {
	return f > 0 && int(f) < len(fieldNames)
}

// Context is the immutable bag of values available during one call.
// The zero value holds no fields, so every lookup against it fails.
type Context struct {
	values map[Field]any
}

// Get returns the value stored under f. A missing field is a programming
// error in the dispatch layer and is reported as CONTEXT_MISSING_FIELD.
func (c Context) Get(f Field) (any, error) {
	v, ok := c.values[f]
	if !ok {
		return nil, ErrMissingField(f)
	}
	return v, nil
}

// Has reports whether f was populated.
func (c Context) Has(f Field) bool {
	_, ok := c.values[f]
	return ok
}

// Len returns the number of populated fields.
func (c Context) Len() int {
	return len(c.values)
}

// CallID returns the call identifier, or "" when the dispatch layer did not
// set one.
func (c Context) CallID() string {
	id, _ := c.values[FieldCallID].(string)
	return id
}

// Builder assembles a Context. It is not safe for concurrent use; the
// dispatch layer creates one per call.
type Builder struct {
	values map[Field]any
	err    error
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{values: make(map[Field]any, len(fieldNames)-1)}
}

// With stores v under f. Invalid fields, nil values and repeated fields are
// recorded and reported by Build.
func (b *Builder) With(f Field, v any) *Builder {
	if b.err != nil {
		return b
	}
	switch {
	case !f.Valid():
		b.err = ErrInvalidField(f)
	case v == nil:
		b.err = ErrNilValue(f)
	default:
		if _, dup := b.values[f]; dup {
			b.err = ErrFieldAlreadySet(f)
			return b
		}
		b.values[f] = v
	}
	return b
}

// Build returns the finished Context. The builder's map is copied, so later
// calls to With cannot reach the returned Context.
func (b *Builder) Build() (Context, error) {
	if b.err != nil {
		return Context{}, b.err
	}
	values := make(map[Field]any, len(b.values))
	for f, v := range b.values {
		values[f] = v
	}
	return Context{values: values}, nil
}

type callContextKey struct{}

// WithContext attaches c to ctx so log handlers and tracing can read the
// call identifier.
func WithContext(ctx context.Context, c Context) context.Context {
	return context.WithValue(ctx, callContextKey{}, c)
}

// FromContext returns the call context attached by WithContext.
func FromContext(ctx context.Context) (Context, bool) {
	c, ok := ctx.Value(callContextKey{}).(Context)
	return c, ok
}
