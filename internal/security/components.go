// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package security

import (
	"github.com/holomush/procauth/internal/procedure"
)

// SubjectFrom returns the injected auth subject. The procedure must declare
// procedure.CapabilityAuthSubject.
func SubjectFrom(c *procedure.Components) (AuthSubject, error) {
	return procedure.Component[AuthSubject](c, procedure.CapabilityAuthSubject)
}

// AccessModeFrom returns the injected access mode. The procedure must declare
// procedure.CapabilityAccessMode.
func AccessModeFrom(c *procedure.Components) (AccessMode, error) {
	return procedure.Component[AccessMode](c, procedure.CapabilityAccessMode)
}
