package datatype

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	booleanOldTrue  = "111111"
	booleanOldFalse = "000000"

	uRealMax   = 9999.99
	expoOffset = 20
	expoZero   = "100000"
)

// EncodeBooleanOld returns "111111" for true and "000000" for false.
func EncodeBooleanOld(v bool) string {
	if v {
		return booleanOldTrue
	}

	return booleanOldFalse
}

func DecodeBooleanOld(s string) (bool, error) {
	switch s {
	case booleanOldTrue:
		return true, nil
	case booleanOldFalse:
		return false, nil
	default:
		return false, fmt.Errorf("%w: boolean_old %q", ErrInvalidValue, s)
	}
}

// EncodeBooleanNew returns "1" for true and "0" for false.
func EncodeBooleanNew(v bool) string {
	if v {
		return "1"
	}

	return "0"
}

func DecodeBooleanNew(s string) (bool, error) {
	switch s {
	case "1":
		return true, nil
	case "0":
		return false, nil
	default:
		return false, fmt.Errorf("%w: boolean_new %q", ErrInvalidValue, s)
	}
}

// EncodeUInteger renders v as 6 zero-padded digits.
func EncodeUInteger(v uint64) (string, error) {
	return encodeUint(UInteger, v)
}

func DecodeUInteger(s string) (uint64, error) {
	return decodeUint(UInteger, s)
}

// EncodeUShortInt renders v as 3 zero-padded digits.
func EncodeUShortInt(v uint64) (string, error) {
	return encodeUint(UShortInt, v)
}

func DecodeUShortInt(s string) (uint64, error) {
	return decodeUint(UShortInt, s)
}

func encodeUint(t Type, v uint64) (string, error) {
	info := typeInfoMap[t]
	if v > info.max {
		return "", fmt.Errorf("%w: %s %d, max %d", ErrRangeExceeded, info.name, v, info.max)
	}

	return fmt.Sprintf("%0*d", info.width, v), nil
}

func decodeUint(t Type, s string) (uint64, error) {
	info := typeInfoMap[t]
	if err := checkDigits(info, s); err != nil {
		return 0, err
	}

	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", ErrInvalidValue, info.name, s)
	}

	return v, nil
}

// EncodeUReal renders v with two implied decimals, e.g. 23.45 becomes "002345".
func EncodeUReal(v float64) (string, error) {
	if math.IsNaN(v) || v < 0 || v > uRealMax {
		return "", fmt.Errorf("%w: u_real %v, want [0, %.2f]", ErrRangeExceeded, v, uRealMax)
	}

	return fmt.Sprintf("%06d", int64(math.Round(v*100))), nil
}

func DecodeUReal(s string) (float64, error) {
	if err := checkDigits(typeInfoMap[UReal], s); err != nil {
		return 0, err
	}

	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: u_real %q", ErrInvalidValue, s)
	}

	return float64(v) / 100, nil
}

// EncodeUExpoNew renders v as a 4 digit mantissa scaled by 1000 followed by the
// decimal exponent offset by 20, e.g. 1000.0 becomes "100023" and 0.01 becomes
// "100018". Zero is encoded as "100000". Exponents outside [-20, 79] are
// clamped.
func EncodeUExpoNew(v float64) (string, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return "", fmt.Errorf("%w: u_expo_new %v", ErrRangeExceeded, v)
	}

	if v == 0 {
		return expoZero, nil
	}

	exp := int(math.Floor(math.Log10(v)))
	mantissa := v / math.Pow10(exp)
	// Log10 is not exact at powers of ten
	if mantissa >= 10 {
		mantissa /= 10
		exp++
	} else if mantissa < 1 {
		mantissa *= 10
		exp--
	}

	m := int(math.Round(mantissa * 1000))
	if m >= 10000 {
		m = 1000
		exp++
	}

	e := min(max(exp+expoOffset, 0), 99)

	return fmt.Sprintf("%04d%02d", m, e), nil
}

func DecodeUExpoNew(s string) (float64, error) {
	if err := checkDigits(typeInfoMap[UExpoNew], s); err != nil {
		return 0, err
	}

	m, _ := strconv.Atoi(s[:4])
	e, _ := strconv.Atoi(s[4:6])

	return float64(m) / 1000 * math.Pow10(e-expoOffset), nil
}

// EncodeString keeps the printable ASCII characters of v and pads or truncates
// them to width.
func EncodeString(v string, width int) string {
	var sb strings.Builder
	sb.Grow(width)

	for i := 0; i < len(v) && sb.Len() < width; i++ {
		if v[i] >= 32 && v[i] <= 127 {
			sb.WriteByte(v[i])
		}
	}

	for sb.Len() < width {
		sb.WriteByte(' ')
	}

	return sb.String()
}

// DecodeString removes the trailing padding of a string field.
func DecodeString(s string) string {
	return strings.TrimRight(s, " ")
}

func checkDigits(info *typeInfo, s string) error {
	if len(s) != info.width {
		return fmt.Errorf("%w: %s %q has %d characters, want %d", ErrInvalidWidth, info.name, s, len(s), info.width)
	}

	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return fmt.Errorf("%w: %s %q", ErrInvalidValue, info.name, s)
		}
	}

	return nil
}

// Encode renders v in the wire format of its type.
func Encode(v Value) (string, error) {
	info, ok := typeInfoMap[v.typ]
	if !ok {
		return "", fmt.Errorf("%w: code %d", ErrUnsupportedType, v.typ)
	}

	if v.kind != info.kind {
		return "", fmt.Errorf("%w: %s value for %s", ErrTypeMismatch, v.kind, info.name)
	}

	switch v.typ {
	case BooleanOld:
		return EncodeBooleanOld(v.b), nil
	case BooleanNew:
		return EncodeBooleanNew(v.b), nil
	case UInteger, UShortInt:
		return encodeUint(v.typ, v.u)
	case UReal:
		return EncodeUReal(v.f)
	case UExpo, UExpoNew:
		return EncodeUExpoNew(v.f)
	default: // string types
		return EncodeString(v.s, info.width), nil
	}
}

// Decode parses the data field s of a reply as type t.
func Decode(t Type, s string) (Value, error) {
	info, ok := typeInfoMap[t]
	if !ok {
		return Value{}, fmt.Errorf("%w: code %d", ErrUnsupportedType, t)
	}

	v := Value{typ: t, kind: info.kind}

	var err error
	switch t {
	case BooleanOld:
		v.b, err = DecodeBooleanOld(s)
	case BooleanNew:
		v.b, err = DecodeBooleanNew(s)
	case UInteger, UShortInt:
		v.u, err = decodeUint(t, s)
	case UReal:
		v.f, err = DecodeUReal(s)
	case UExpo, UExpoNew:
		v.f, err = DecodeUExpoNew(s)
	default:
		v.s = DecodeString(s)
	}

	if err != nil {
		return Value{}, err
	}

	return v, nil
}
