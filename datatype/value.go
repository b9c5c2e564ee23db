package datatype

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Value is an immutable parameter value tagged with its data type.
//
// The zero Value is invalid. Values are built with NewBool, NewUint, NewFloat,
// NewString or ValueOf, or returned by Decode.
type Value struct {
	typ  Type
	kind Kind
	b    bool
	u    uint64
	f    float64
	s    string
}

func NewBool(t Type, v bool) Value {
	return Value{typ: t, kind: BoolKind, b: v}
}

func NewUint(t Type, v uint64) Value {
	return Value{typ: t, kind: UintKind, u: v}
}

func NewFloat(t Type, v float64) Value {
	return Value{typ: t, kind: FloatKind, f: v}
}

func NewString(t Type, v string) Value {
	return Value{typ: t, kind: StringKind, s: v}
}

// ValueOf converts a loosely typed Go value into a Value of type t.
//
// Booleans accept bool, numbers (zero is false) and strings understood by
// strconv.ParseBool. Integer types accept any non-negative integral number or
// numeric string. Real types accept any number or numeric string. String types
// accept strings and fmt.Stringer values.
func ValueOf(t Type, v any) (Value, error) {
	if !t.Supported() {
		return Value{}, fmt.Errorf("%w: code %d", ErrUnsupportedType, t)
	}

	if val, ok := v.(Value); ok {
		if val.kind != t.Kind() {
			return Value{}, fmt.Errorf("%w: %s value for %s", ErrTypeMismatch, val.kind, t)
		}
		val.typ = t

		return val, nil
	}

	switch t.Kind() {
	case BoolKind:
		switch x := v.(type) {
		case bool:
			return NewBool(t, x), nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(x))
			if err != nil {
				return Value{}, fmt.Errorf("%w: %q is not a boolean", ErrTypeMismatch, x)
			}

			return NewBool(t, b), nil
		}

		if f, ok := toFloat(v); ok {
			return NewBool(t, f != 0), nil
		}

	case UintKind:
		f, ok := toFloat(v)
		if !ok {
			if s, isStr := v.(string); isStr {
				u, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
				if err != nil {
					return Value{}, fmt.Errorf("%w: %q is not an unsigned integer", ErrTypeMismatch, s)
				}

				return NewUint(t, u), nil
			}

			break
		}

		if f < 0 || f != math.Trunc(f) || f > math.MaxUint32 {
			return Value{}, fmt.Errorf("%w: %v for %s", ErrRangeExceeded, v, t)
		}

		return NewUint(t, uint64(f)), nil

	case FloatKind:
		if f, ok := toFloat(v); ok {
			return NewFloat(t, f), nil
		}

		if s, ok := v.(string); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return Value{}, fmt.Errorf("%w: %q is not a number", ErrTypeMismatch, s)
			}

			return NewFloat(t, f), nil
		}

	case StringKind:
		switch x := v.(type) {
		case string:
			return NewString(t, x), nil
		case fmt.Stringer:
			return NewString(t, x.String()), nil
		}
	}

	return Value{}, fmt.Errorf("%w: %T for %s", ErrTypeMismatch, v, t)
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	default:
		return 0, false
	}
}

func (v Value) Type() Type { return v.typ }

func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether v holds a value.
func (v Value) IsValid() bool { return v.kind != InvalidKind }

// Bool returns the boolean held by v, false for other kinds.
func (v Value) Bool() bool { return v.b }

// Uint returns the unsigned integer held by v, 0 for other kinds.
func (v Value) Uint() uint64 { return v.u }

// Float returns v as a float64. Integer and boolean values are converted.
func (v Value) Float() float64 {
	switch v.kind {
	case UintKind:
		return float64(v.u)
	case BoolKind:
		if v.b {
			return 1
		}

		return 0
	default:
		return v.f
	}
}

// Text returns the string held by v, "" for other kinds.
func (v Value) Text() string { return v.s }

// Any returns the underlying Go value.
func (v Value) Any() any {
	switch v.kind {
	case BoolKind:
		return v.b
	case UintKind:
		return v.u
	case FloatKind:
		return v.f
	case StringKind:
		return v.s
	default:
		return nil
	}
}

// Equal reports whether v and other have the same type and value.
func (v Value) Equal(other Value) bool {
	return v == other
}

func (v Value) String() string {
	switch v.kind {
	case BoolKind:
		return strconv.FormatBool(v.b)
	case UintKind:
		return strconv.FormatUint(v.u, 10)
	case FloatKind:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case StringKind:
		return v.s
	default:
		return "<invalid>"
	}
}
