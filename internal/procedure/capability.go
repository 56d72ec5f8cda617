// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package procedure

import "fmt"

// Capability is a value a procedure declares it needs at invocation time.
// The set is closed; resolvers and procedures are checked against it when
// they are registered.
type Capability int

// Capability constants define every injectable component.
const (
	CapabilityAccessMode  Capability = iota + 1 // access_mode
	CapabilityAuthSubject                       // auth_subject
)

var capabilityStrings = [...]string{
	"",
	"access_mode",
	"auth_subject",
}

func (c Capability) String() string {
	if c.Valid() {
		return capabilityStrings[c]
	}
	return fmt.Sprintf("unknown(%d)", int(c))
}

// Valid reports whether c is one of the declared capability constants.
func (c Capability) Valid() bool {
	return c > 0 && int(c) < len(capabilityStrings)
}

// Capabilities returns every declared capability in declaration order.
func Capabilities() []Capability {
	caps := make([]Capability, 0, len(capabilityStrings)-1)
	for i := 1; i < len(capabilityStrings); i++ {
		caps = append(caps, Capability(i))
	}
	return caps
}
