// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package procedure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/procauth/internal/callctx"
	"github.com/holomush/procauth/pkg/errutil"
)

func buildContext(t *testing.T, values map[callctx.Field]any) callctx.Context {
	t.Helper()
	b := callctx.NewBuilder()
	for f, v := range values {
		b.With(f, v)
	}
	c, err := b.Build()
	require.NoError(t, err)
	return c
}

func TestResolver_ResolveReturnsRegisteredValue(t *testing.T) {
	r := NewResolver()
	require.NoError(t, r.Register(CapabilityAuthSubject,
		FieldResolver[string](CapabilityAuthSubject, callctx.FieldAuthSubject)))

	c := buildContext(t, map[callctx.Field]any{callctx.FieldAuthSubject: "alice"})

	for range 3 {
		got, err := r.Resolve(CapabilityAuthSubject, c)
		require.NoError(t, err)
		assert.Equal(t, "alice", got)
	}
}

func TestResolver_DuplicateRegistrationKeepsFirst(t *testing.T) {
	r := NewResolver()
	require.NoError(t, r.Register(CapabilityAccessMode, func(callctx.Context) (any, error) {
		return "first", nil
	}))

	err := r.Register(CapabilityAccessMode, func(callctx.Context) (any, error) {
		return "second", nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateRegistration)
	errutil.AssertErrorCode(t, err, CodeDuplicateRegistration)

	got, err := r.Resolve(CapabilityAccessMode, callctx.Context{})
	require.NoError(t, err)
	assert.Equal(t, "first", got)
}

func TestResolver_UnknownCapability(t *testing.T) {
	r := NewResolver()

	_, err := r.Resolve(CapabilityAccessMode, callctx.Context{})
	assert.ErrorIs(t, err, ErrUnknownCapability)
	errutil.AssertErrorCode(t, err, CodeUnknownCapability)

	err = r.Register(Capability(77), func(callctx.Context) (any, error) { return nil, nil })
	assert.ErrorIs(t, err, ErrUnknownCapability)
	assert.False(t, r.Has(Capability(77)))
}

func TestResolver_RejectsNilFunction(t *testing.T) {
	r := NewResolver()
	err := r.Register(CapabilityAccessMode, nil)
	errutil.AssertErrorCode(t, err, CodeInvalidProcedure)
	assert.False(t, r.Has(CapabilityAccessMode))
}

func TestResolver_MissingFieldPropagates(t *testing.T) {
	r := NewResolver()
	require.NoError(t, r.Register(CapabilityAuthSubject,
		FieldResolver[string](CapabilityAuthSubject, callctx.FieldAuthSubject)))

	c := buildContext(t, map[callctx.Field]any{callctx.FieldAccessMode: "read"})

	_, err := r.Resolve(CapabilityAuthSubject, c)
	require.Error(t, err)
	assert.ErrorIs(t, err, callctx.ErrFieldMissing)
	errutil.AssertErrorCode(t, err, callctx.CodeContextMissingField)
}

func TestFieldResolver_TypeMismatch(t *testing.T) {
	fn := FieldResolver[int](CapabilityAccessMode, callctx.FieldAccessMode)
	c := buildContext(t, map[callctx.Field]any{callctx.FieldAccessMode: "read"})

	_, err := fn(c)
	errutil.AssertErrorCode(t, err, CodeComponentType)
}

func TestResolver_Sealed(t *testing.T) {
	r := NewResolver()
	r.Seal()
	assert.True(t, r.Sealed())

	err := r.Register(CapabilityAccessMode, func(callctx.Context) (any, error) { return "x", nil })
	assert.ErrorIs(t, err, ErrRegistrySealed)
	assert.Empty(t, r.Capabilities())
}

func TestResolver_Capabilities(t *testing.T) {
	var r Resolver
	noop := func(callctx.Context) (any, error) { return "x", nil }
	require.NoError(t, r.Register(CapabilityAuthSubject, noop))
	require.NoError(t, r.Register(CapabilityAccessMode, noop))

	assert.Equal(t, []Capability{CapabilityAccessMode, CapabilityAuthSubject}, r.Capabilities())
	assert.Equal(t, Capabilities(), r.Capabilities())
}

func TestCapability_String(t *testing.T) {
	assert.Equal(t, "access_mode", CapabilityAccessMode.String())
	assert.Equal(t, "auth_subject", CapabilityAuthSubject.String())
	assert.Equal(t, "unknown(0)", Capability(0).String())
}
