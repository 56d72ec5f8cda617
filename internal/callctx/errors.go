// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package callctx

import (
	"errors"

	"github.com/samber/oops"
)

// Error codes for call context failures.
const (
	CodeContextMissingField = "CONTEXT_MISSING_FIELD"
	CodeInvalidField        = "INVALID_CONTEXT_FIELD"
)

// ErrFieldMissing is the sentinel wrapped by every CONTEXT_MISSING_FIELD error.
var ErrFieldMissing = errors.New("call context field missing")

// ErrMissingField creates an error for a lookup of an unpopulated field.
func ErrMissingField(f Field) error {
	return oops.Code(CodeContextMissingField).
		With("field", f.String()).
		Wrapf(ErrFieldMissing, "call context has no %s", f)
}

// ErrInvalidField creates an error for a field outside the declared set.
func ErrInvalidField(f Field) error {
	return oops.Code(CodeInvalidField).
		With("field", int(f)).
		Errorf("invalid call context field %s", f)
}

// ErrNilValue creates an error for a nil value stored under f.
func ErrNilValue(f Field) error {
	return oops.Code(CodeInvalidField).
		With("field", f.String()).
		Errorf("nil value for call context field %s", f)
}

// ErrFieldAlreadySet creates an error for a field populated twice.
func ErrFieldAlreadySet(f Field) error {
	return oops.Code(CodeInvalidField).
		With("field", f.String()).
		Errorf("call context field %s already set", f)
}
