// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package procedure

import (
	"fmt"
	"math"
	"strconv"
)

// bindArgs checks raw against the declared parameters, fills defaults and
// normalizes values to string, bool or int64.
func bindArgs(d Descriptor, raw []any) (Args, error) {
	required := 0
	for _, p := range d.params {
		if p.Default == nil {
			required++
		}
	}
	if len(raw) < required || len(raw) > len(d.params) {
		return nil, InvalidArgsError(d.name, d.Signature(),
			fmt.Sprintf("expected %s arguments, got %d", arity(required, len(d.params)), len(raw)))
	}

	args := make(Args, len(d.params))
	for i, p := range d.params {
		v := p.Default
		if i < len(raw) {
			v = raw[i]
		}
		normalized, ok := normalize(p.Type, v)
		if !ok {
			return nil, InvalidArgsError(d.name, d.Signature(),
				fmt.Sprintf("argument %s: expected %s, got %T", p.Name, p.Type, v))
		}
		args[i] = normalized
	}
	return args, nil
}

func arity(required, total int) string {
	if required == total {
		return strconv.Itoa(total)
	}
	return fmt.Sprintf("%d to %d", required, total)
}

func normalize(t ParamType, v any) (any, bool) {
	switch t {
	case ParamString:
		s, ok := v.(string)
		return s, ok
	case ParamBoolean:
		b, ok := v.(bool)
		return b, ok
	case ParamInteger:
		switch n := v.(type) {
		case int:
			return int64(n), true
		case int32:
			return int64(n), true
		case int64:
			return n, true
		case float64:
			// JSON decodes every number as float64. -2^63 is the only
			// bound exactly representable on both sides.
			if n != math.Trunc(n) || n < minInt64Float || n >= -minInt64Float {
				return nil, false
			}
			return int64(n), true
		}
	}
	return nil, false
}

// minInt64Float is math.MinInt64 as a float64; it converts exactly.
const minInt64Float = float64(math.MinInt64)

// ParseArgs converts textual arguments, as typed on a command line, to the
// parameter types of d.
func ParseArgs(d Descriptor, raw []string) ([]any, error) {
	if len(raw) > len(d.params) {
		return nil, InvalidArgsError(d.name, d.Signature(),
			fmt.Sprintf("expected at most %d arguments, got %d", len(d.params), len(raw)))
	}
	out := make([]any, len(raw))
	for i, s := range raw {
		p := d.params[i]
		switch p.Type {
		case ParamString:
			out[i] = s
		case ParamBoolean:
			b, err := strconv.ParseBool(s)
			if err != nil {
				return nil, InvalidArgsError(d.name, d.Signature(),
					fmt.Sprintf("argument %s: %q is not a boolean", p.Name, s))
			}
			out[i] = b
		case ParamInteger:
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, InvalidArgsError(d.name, d.Signature(),
					fmt.Sprintf("argument %s: %q is not an integer", p.Name, s))
			}
			out[i] = n
		default:
			return nil, InvalidArgsError(d.name, d.Signature(),
				fmt.Sprintf("argument %s: unsupported type %s", p.Name, p.Type))
		}
	}
	return out, nil
}
