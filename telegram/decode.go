package telegram

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// Decode parses a reply frame.
//
// The frame is truncated after the first CR or at MaxFrameLength characters,
// then its length, terminator and checksum are verified before any field is
// interpreted. When the data field holds a device-side sentinel, Decode returns
// the decoded telegram together with the matching device error so callers can
// still check which unit answered.
func Decode(frame []byte) (*Telegram, error) {
	if idx := bytes.IndexByte(frame, CR); idx >= 0 {
		frame = frame[:idx+1]
	}
	if len(frame) > MaxFrameLength {
		frame = frame[:MaxFrameLength]
	}

	if len(frame) < MinFrameLength {
		return nil, fmt.Errorf("%w: %d characters, want at least %d", ErrFrameTooShort, len(frame), MinFrameLength)
	}

	if frame[len(frame)-1] != CR {
		return nil, ErrBadTerminator
	}

	csPos := len(frame) - checksumFieldSize - 1
	body := frame[:csPos]

	expected, err := parseDigits(frame[csPos:len(frame)-1], "checksum")
	if err != nil {
		return nil, err
	}

	actual := Checksum(body)
	if expected != int(actual) {
		return nil, fmt.Errorf("%w: frame carries %03d, computed %03d", ErrChecksumMismatch, expected, actual)
	}

	addr, err := parseDigits(body[0:3], "address")
	if err != nil {
		return nil, err
	}
	if addr > 255 {
		return nil, fmt.Errorf("%w: address %d", ErrMalformedFrame, addr)
	}

	var dir Direction
	switch body[3] {
	case '0':
		dir = Query
	case '1':
		dir = Write
	default:
		return nil, fmt.Errorf("%w: action %q", ErrMalformedFrame, body[3:5])
	}

	param, err := parseDigits(body[5:8], "parameter")
	if err != nil {
		return nil, err
	}

	t := &Telegram{
		Address:   uint8(addr), //nolint:gosec
		Direction: dir,
		Parameter: uint16(param), //nolint:gosec
		Data:      string(body[dataOffset:]),
		Checksum:  actual,
	}

	switch t.Data {
	case SentinelUndefined:
		return t, fmt.Errorf("%w: parameter %03d at address %03d", ErrUndefinedParameter, t.Parameter, t.Address)
	case SentinelRange:
		return t, fmt.Errorf("%w: parameter %03d at address %03d", ErrOutOfRange, t.Parameter, t.Address)
	case SentinelLogic:
		return t, fmt.Errorf("%w: parameter %03d at address %03d", ErrLogicViolation, t.Parameter, t.Address)
	}

	return t, nil
}

func parseDigits(field []byte, name string) (int, error) {
	for _, c := range field {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%w: %s field %q", ErrMalformedFrame, name, field)
		}
	}

	v, err := strconv.Atoi(string(field))
	if err != nil {
		return 0, fmt.Errorf("%w: %s field %q", ErrMalformedFrame, name, field)
	}

	return v, nil
}

// ReadFrame reads one reply from r, a byte at a time.
//
// It stops after a CR, after MaxFrameLength reads, or when a read returns no
// data (the transport's read timeout expired). Bytes above 127 are dropped when
// filterInvalid is set and fail the read with ErrInvalidCharacter otherwise.
// The accumulated bytes are returned even when they do not form a complete
// frame; an empty result means the unit did not answer.
func ReadFrame(r io.Reader, filterInvalid bool) ([]byte, error) {
	buf := make([]byte, 0, MaxFrameLength)
	b := make([]byte, 1)

	for range MaxFrameLength {
		n, err := r.Read(b)
		if n == 0 {
			if err == nil || errors.Is(err, io.EOF) {
				break
			}

			return buf, err
		}

		c := b[0]
		if c > 127 {
			if filterInvalid {
				continue
			}

			return buf, fmt.Errorf("%w: 0x%02X after %d characters", ErrInvalidCharacter, c, len(buf))
		}

		buf = append(buf, c)
		if c == CR {
			break
		}
	}

	return buf, nil
}
