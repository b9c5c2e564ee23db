// Package datatype converts parameter values between Go values and the fixed
// width ASCII representations used in the data field of Pfeiffer telegrams.
//
// Every parameter of a Pfeiffer unit has a data type identified by a numeric
// code. The codes and their wire formats are:
//
//	 0  boolean_old   "111111" / "000000"
//	 1  u_integer     6 digits, 0-999999
//	 2  u_real        6 digits, value*100 (two implied decimals)
//	 3  u_expo        legacy exponential format, same layout as u_expo_new
//	 4  string        6 characters
//	 6  boolean_new   "1" / "0"
//	 7  u_short_int   3 digits, 0-999
//	10  u_expo_new    4 digit mantissa (x1000) + 2 digit exponent (offset 20)
//	11  string16      16 characters
//	12  string8       8 characters
//
// Codes 5, 8 and 9 are reserved and rejected with ErrUnsupportedType.
package datatype

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidValue    = errors.New("datatype: invalid wire value")
	ErrRangeExceeded   = errors.New("datatype: value out of encodable range")
	ErrInvalidWidth    = errors.New("datatype: invalid field width")
	ErrUnsupportedType = errors.New("datatype: unsupported data type")
	ErrTypeMismatch    = errors.New("datatype: value kind does not match data type")
)

// Type is a Pfeiffer data type code.
type Type uint8

const (
	BooleanOld Type = 0
	UInteger   Type = 1
	UReal      Type = 2
	UExpo      Type = 3
	String     Type = 4
	BooleanNew Type = 6
	UShortInt  Type = 7
	UExpoNew   Type = 10
	String16   Type = 11
	String8    Type = 12
)

// Kind is the Go representation family of a Type.
type Kind uint8

const (
	InvalidKind Kind = iota
	BoolKind
	UintKind
	FloatKind
	StringKind
)

func (k Kind) String() string {
	switch k {
	case BoolKind:
		return "bool"
	case UintKind:
		return "uint"
	case FloatKind:
		return "float"
	case StringKind:
		return "string"
	default:
		return "invalid"
	}
}

type typeInfo struct {
	name  string
	kind  Kind
	width int
	max   uint64
}

var typeInfoMap = map[Type]*typeInfo{
	BooleanOld: {name: "boolean_old", kind: BoolKind, width: 6},
	UInteger:   {name: "u_integer", kind: UintKind, width: 6, max: 999999},
	UReal:      {name: "u_real", kind: FloatKind, width: 6},
	UExpo:      {name: "u_expo", kind: FloatKind, width: 6},
	String:     {name: "string", kind: StringKind, width: 6},
	BooleanNew: {name: "boolean_new", kind: BoolKind, width: 1},
	UShortInt:  {name: "u_short_int", kind: UintKind, width: 3, max: 999},
	UExpoNew:   {name: "u_expo_new", kind: FloatKind, width: 6},
	String16:   {name: "string16", kind: StringKind, width: 16},
	String8:    {name: "string8", kind: StringKind, width: 8},
}

// Types returns all supported types in code order.
func Types() []Type {
	return []Type{BooleanOld, UInteger, UReal, UExpo, String, BooleanNew, UShortInt, UExpoNew, String16, String8}
}

// Supported reports whether t is a known, non-reserved type code.
func (t Type) Supported() bool {
	_, ok := typeInfoMap[t]
	return ok
}

// Kind returns the Go representation family of t, or InvalidKind.
func (t Type) Kind() Kind {
	if info, ok := typeInfoMap[t]; ok {
		return info.kind
	}

	return InvalidKind
}

// Width returns the number of characters of the wire representation, or 0.
func (t Type) Width() int {
	if info, ok := typeInfoMap[t]; ok {
		return info.width
	}

	return 0
}

func (t Type) String() string {
	if info, ok := typeInfoMap[t]; ok {
		return info.name
	}

	return "type_" + strconv.Itoa(int(t))
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	if !t.Supported() {
		return nil, fmt.Errorf("%w: code %d", ErrUnsupportedType, t)
	}

	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. It accepts a type name
// such as "u_expo_new" or a numeric code such as "10".
func (t *Type) UnmarshalText(text []byte) error {
	parsed, err := ParseType(string(text))
	if err != nil {
		return err
	}
	*t = parsed

	return nil
}

// ParseType resolves a type name or numeric code.
func ParseType(s string) (Type, error) {
	s = strings.ToLower(strings.TrimSpace(s))

	if code, err := strconv.ParseUint(s, 10, 8); err == nil {
		t := Type(code)
		if !t.Supported() {
			return 0, fmt.Errorf("%w: code %d", ErrUnsupportedType, code)
		}

		return t, nil
	}

	for t, info := range typeInfoMap {
		if info.name == s {
			return t, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnsupportedType, s)
}
