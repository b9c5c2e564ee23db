package telegram

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// MinFrameLength is the length of the shortest valid reply:
	// 10 envelope characters, no data, 3 checksum digits and CR.
	MinFrameLength = 14

	// MaxFrameLength is the maximum number of characters accumulated for one reply.
	MaxFrameLength = 64

	// MaxDataLength is the longest data field that fits in a MaxFrameLength frame.
	MaxDataLength = MaxFrameLength - MinFrameLength

	// MaxParameter is the highest parameter number.
	MaxParameter = 999

	// QueryData is the data field of a data request.
	QueryData = "=?"

	// CR terminates every telegram.
	CR byte = '\r'

	checksumFieldSize = 3
	dataOffset        = 10
)

// Device-side error sentinels carried in the data field of a reply.
const (
	SentinelUndefined = "NO_DEF"
	SentinelRange     = "_RANGE"
	SentinelLogic     = "_LOGIC"
)

// Frame errors.
var (
	ErrChecksumMismatch = errors.New("telegram: checksum mismatch")
	ErrFrameTooShort    = errors.New("telegram: frame too short")
	ErrBadTerminator    = errors.New("telegram: frame not terminated by CR")
	ErrMalformedFrame   = errors.New("telegram: malformed frame field")
	ErrInvalidCharacter = errors.New("telegram: invalid character")
)

// Encoding input errors.
var (
	ErrInvalidAddress   = errors.New("telegram: address out of range [1, 255]")
	ErrInvalidParameter = errors.New("telegram: parameter number out of range [0, 999]")
	ErrDataTooLong      = errors.New("telegram: data field too long")
)

// Device-side errors reported through the sentinel data values.
var (
	ErrUndefinedParameter = errors.New("telegram: undefined parameter number")
	ErrOutOfRange         = errors.New("telegram: data is out of range")
	ErrLogicViolation     = errors.New("telegram: logic access violation")
)

// IsDeviceError reports whether err was raised by a device-side sentinel reply.
func IsDeviceError(err error) bool {
	return errors.Is(err, ErrUndefinedParameter) ||
		errors.Is(err, ErrOutOfRange) ||
		errors.Is(err, ErrLogicViolation)
}

// Direction is the first digit of the action field.
type Direction uint8

const (
	// Query requests the value of a parameter ("00").
	Query Direction = 0
	// Write carries a value ("10"). Replies to both queries and writes use it.
	Write Direction = 1
)

func (d Direction) String() string {
	switch d {
	case Query:
		return "query"
	case Write:
		return "write"
	default:
		return "Direction(" + strconv.Itoa(int(d)) + ")"
	}
}

// Telegram is one decoded frame.
type Telegram struct {
	Address   uint8
	Direction Direction
	Parameter uint16
	Data      string
	Checksum  uint8
}

// String renders the telegram for logs, e.g. "addr=001 write param=740 data=\"100023\"".
func (t *Telegram) String() string {
	return fmt.Sprintf("addr=%03d %s param=%03d data=%q", t.Address, t.Direction, t.Parameter, t.Data)
}

// Checksum returns the sum of the ASCII codes of body, mod 256.
func Checksum[T string | []byte](body T) uint8 {
	var sum uint8
	for i := 0; i < len(body); i++ {
		sum += body[i]
	}

	return sum
}

// EncodeQuery builds the data request telegram for parameter param at address addr.
func EncodeQuery(addr uint8, param uint16) ([]byte, error) {
	if err := validateTarget(addr, param); err != nil {
		return nil, err
	}

	return seal(fmt.Sprintf("%03d00%03d%02d%s", addr, param, len(QueryData), QueryData)), nil
}

// EncodeWrite builds the control command telegram that sets parameter param at
// address addr to data. The length field always counts the characters of data.
func EncodeWrite(addr uint8, param uint16, data string) ([]byte, error) {
	if err := validateTarget(addr, param); err != nil {
		return nil, err
	}

	if len(data) > MaxDataLength {
		return nil, fmt.Errorf("%w: %d characters, max %d", ErrDataTooLong, len(data), MaxDataLength)
	}

	for i := 0; i < len(data); i++ {
		if data[i] > 127 || data[i] == CR {
			return nil, fmt.Errorf("%w: 0x%02X at data offset %d", ErrInvalidCharacter, data[i], i)
		}
	}

	return seal(fmt.Sprintf("%03d10%03d%02d%s", addr, param, len(data), data)), nil
}

func validateTarget(addr uint8, param uint16) error {
	if addr == 0 {
		return ErrInvalidAddress
	}

	if param > MaxParameter {
		return fmt.Errorf("%w: %d", ErrInvalidParameter, param)
	}

	return nil
}

// seal appends the checksum field and the terminator to body.
func seal(body string) []byte {
	var sb strings.Builder
	sb.Grow(len(body) + checksumFieldSize + 1)
	sb.WriteString(body)
	fmt.Fprintf(&sb, "%03d", Checksum(body))
	sb.WriteByte(CR)

	return []byte(sb.String())
}
