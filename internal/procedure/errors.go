// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package procedure

import (
	"errors"
	"fmt"

	"github.com/samber/oops"
)

// Error codes for registration and invocation failures.
const (
	CodeDuplicateRegistration     = "DUPLICATE_REGISTRATION"
	CodeUnsatisfiedDependency     = "UNSATISFIED_DEPENDENCY"
	CodeUnknownCapability         = "UNKNOWN_CAPABILITY"
	CodeProcedureNotFound         = "PROCEDURE_NOT_FOUND"
	CodeProcedureExecutionFailure = "PROCEDURE_EXECUTION_FAILURE"
	CodeInvalidProcedure          = "INVALID_PROCEDURE"
	CodeInvalidArgs               = "INVALID_ARGS"
	CodeInvalidPattern            = "INVALID_PATTERN"
	CodeRegistrySealed            = "REGISTRY_SEALED"
	CodeComponentType             = "COMPONENT_TYPE_MISMATCH"
)

// Sentinels matched with errors.Is through any number of wraps.
var (
	ErrDuplicateRegistration = errors.New("duplicate registration")
	ErrUnsatisfiedDependency = errors.New("unsatisfied dependency")
	ErrUnknownCapability     = errors.New("unknown capability")
	ErrProcedureNotFound     = errors.New("procedure not found")
	ErrExecutionFailure      = errors.New("procedure execution failed")
	ErrInvalidArgs           = errors.New("invalid arguments")
	ErrRegistrySealed        = errors.New("registry sealed")
)

// DuplicateCapabilityError creates an error for a capability bound twice.
func DuplicateCapabilityError(c Capability) error {
	return oops.Code(CodeDuplicateRegistration).
		With("capability", c.String()).
		Wrapf(ErrDuplicateRegistration, "capability %s already has a resolver", c)
}

// DuplicateProcedureError creates an error for a procedure name taken twice.
func DuplicateProcedureError(name string) error {
	return oops.Code(CodeDuplicateRegistration).
		With("procedure", name).
		Wrapf(ErrDuplicateRegistration, "procedure %s already registered", name)
}

// UnsatisfiedDependencyError creates an error for a procedure requiring a
// capability nobody resolves.
func UnsatisfiedDependencyError(procedure string, c Capability) error {
	return oops.Code(CodeUnsatisfiedDependency).
		With("procedure", procedure).
		With("capability", c.String()).
		Wrapf(ErrUnsatisfiedDependency, "procedure %s requires %s but no resolver is registered", procedure, c)
}

// UnknownCapabilityError creates an error for a capability without a resolver
// or outside the declared set.
func UnknownCapabilityError(c Capability) error {
	return oops.Code(CodeUnknownCapability).
		With("capability", c.String()).
		Wrapf(ErrUnknownCapability, "no resolver for capability %s", c)
}

// ProcedureNotFoundError creates an error for an unknown procedure name.
func ProcedureNotFoundError(name string) error {
	return oops.Code(CodeProcedureNotFound).
		With("procedure", name).
		Wrapf(ErrProcedureNotFound, "there is no procedure with the name %s registered", name)
}

// ExecutionFailure wraps a failure raised while resolving components for or
// running a procedure. Both ErrExecutionFailure and the original cause stay
// reachable through errors.Is.
func ExecutionFailure(name string, cause error) error {
	return oops.Code(CodeProcedureExecutionFailure).
		With("procedure", name).
		Wrap(fmt.Errorf("%w: %s: %w", ErrExecutionFailure, name, cause))
}

// InvalidProcedureError creates an error for a malformed definition.
func InvalidProcedureError(name, reason string) error {
	return oops.Code(CodeInvalidProcedure).
		With("procedure", name).
		Errorf("invalid procedure %q: %s", name, reason)
}

// InvalidArgsError creates an error for arguments that do not match the
// declared parameters.
func InvalidArgsError(name, signature, reason string) error {
	return oops.Code(CodeInvalidArgs).
		With("procedure", name).
		With("signature", signature).
		Wrapf(ErrInvalidArgs, "procedure %s: %s", name, reason)
}

// InvalidPatternError creates an error for a listing pattern that does not
// compile.
func InvalidPatternError(pattern string, cause error) error {
	return oops.Code(CodeInvalidPattern).
		With("pattern", pattern).
		Wrap(cause)
}

// RegistrySealedError creates an error for registration after startup.
func RegistrySealedError(what string) error {
	return oops.Code(CodeRegistrySealed).
		With("registration", what).
		Wrapf(ErrRegistrySealed, "cannot register %s after startup", what)
}

// ComponentTypeError creates an error for a component whose value is not of
// the type the reader asked for.
func ComponentTypeError(c Capability, want string, got any) error {
	return oops.Code(CodeComponentType).
		With("capability", c.String()).
		With("want", want).
		With("got", fmt.Sprintf("%T", got)).
		Errorf("component %s has type %T, want %s", c, got, want)
}
