package scpi

import (
	"strconv"
	"strings"
)

// DeviceIdentity holds the four comma-separated fields of the standard *IDN?
// reply.
type DeviceIdentity struct {
	Manufacturer string
	Model        string
	Serial       string
	Firmware     string
}

// String renders the identity back into its wire form.
func (id DeviceIdentity) String() string {
	return strings.Join([]string{id.Manufacturer, id.Model, id.Serial, id.Firmware}, ",")
}

// ErrorEntry is a single record from the instrument's error queue, decoded
// from a SYST:ERR? reply of the form `code,"message"`.
type ErrorEntry struct {
	Code    int
	Message string
}

// IsNoError reports whether the entry is the "no error" sentinel that
// terminates an error-queue drain.
func (e ErrorEntry) IsNoError() bool {
	return e.Code == 0 || strings.EqualFold(e.Message, "No error")
}

func (e ErrorEntry) String() string {
	return strconv.Itoa(e.Code) + `,"` + e.Message + `"`
}

// ParseFloat decodes a reply carrying a single decimal number.
func ParseFloat(reply string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(reply), 64)
	if err != nil {
		return 0, newParseError(reply, "float", err)
	}

	return v, nil
}

// ParseInt decodes a reply carrying a single decimal integer, such as a
// status byte.
func ParseInt(reply string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(reply))
	if err != nil {
		return 0, newParseError(reply, "int", err)
	}

	return v, nil
}

// ParseBool decodes a reply carrying a boolean. Instruments answer boolean
// queries with either the numeric {0,1} or the textual {ON,OFF} token set;
// both are accepted, case-insensitively.
func ParseBool(reply string) (bool, error) {
	switch strings.ToUpper(strings.TrimSpace(reply)) {
	case "1", "ON":
		return true, nil
	case "0", "OFF":
		return false, nil
	default:
		return false, newParseError(reply, "bool", nil)
	}
}

// ParseIdentity decodes a *IDN? reply. The reply must split on comma into
// exactly four fields: manufacturer, model, serial and firmware.
func ParseIdentity(reply string) (DeviceIdentity, error) {
	fields := strings.Split(reply, ",")
	if len(fields) != 4 {
		return DeviceIdentity{}, newParseError(reply, "identity", nil)
	}

	return DeviceIdentity{
		Manufacturer: strings.TrimSpace(fields[0]),
		Model:        strings.TrimSpace(fields[1]),
		Serial:       strings.TrimSpace(fields[2]),
		Firmware:     strings.TrimSpace(fields[3]),
	}, nil
}

// ParseErrorEntry decodes a SYST:ERR? reply of the form `code,"message"`.
// The surrounding quotes on the message are optional; some firmware revisions
// omit them.
func ParseErrorEntry(reply string) (ErrorEntry, error) {
	code, msg, found := strings.Cut(reply, ",")
	if !found {
		return ErrorEntry{}, newParseError(reply, "error entry", nil)
	}

	n, err := strconv.Atoi(strings.TrimSpace(code))
	if err != nil {
		return ErrorEntry{}, newParseError(reply, "error entry", err)
	}

	msg = strings.TrimSpace(msg)
	msg = strings.TrimPrefix(msg, `"`)
	msg = strings.TrimSuffix(msg, `"`)

	return ErrorEntry{Code: n, Message: msg}, nil
}
