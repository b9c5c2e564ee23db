// Package telegram implements the telegram frame of the Pfeiffer Vacuum protocol
// for the RS-485 interface.
//
// A telegram is a line of printable ASCII characters terminated by a carriage return:
//
//	AAA D 0 PPP LL DATA... CCC \r
//
//   - AAA: three digit bus address of the addressed unit (001 to 255)
//   - D0: action, "00" requests data and "10" carries data (control command or reply)
//   - PPP: three digit parameter number (000 to 999)
//   - LL: two digit length of DATA
//   - DATA: parameter value, "=?" for a data request
//   - CCC: sum of the ASCII codes of all preceding characters, mod 256
//
// For example, reading parameter 740 (pressure) from address 1 is sent as
//
//	"0010074002=?106\r"
//
// Replies always carry the action "10". A reply whose data field is one of the
// sentinels "NO_DEF", "_RANGE" or "_LOGIC" reports a device-side error; Decode
// turns those into ErrUndefinedParameter, ErrOutOfRange and ErrLogicViolation.
//
// The package is pure: it never touches a transport. ReadFrame accumulates a
// reply from any io.Reader that follows the serial read-timeout contract
// (a read returning no data means the line went silent).
package telegram
