package scpi

import (
	"fmt"
	"strconv"
	"strings"
)

// Command represents an immutable SCPI command: an uppercase mnemonic plus an
// ordered list of arguments already rendered to their wire form.
//
// A mnemonic with a trailing '?' is a query and always produces exactly one
// reply line; any other command produces none.
type Command struct {
	mnemonic string
	args     []string
}

// NewCommand creates a command from a mnemonic and optional arguments.
//
// Supported argument types are string, bool (rendered as ON/OFF), integers,
// and float32/float64 (rendered as decimal with 3 fractional digits, which is
// what the supported instruments accept).
func NewCommand(mnemonic string, args ...any) Command {
	cmd := Command{mnemonic: strings.ToUpper(strings.TrimSpace(mnemonic))}
	for _, arg := range args {
		cmd.args = append(cmd.args, renderArg(arg))
	}

	return cmd
}

// NewQuery creates a query command, appending the trailing '?' if the mnemonic
// does not already carry one.
func NewQuery(mnemonic string) Command {
	mnemonic = strings.ToUpper(strings.TrimSpace(mnemonic))
	if !strings.HasSuffix(mnemonic, "?") {
		mnemonic += "?"
	}

	return Command{mnemonic: mnemonic}
}

// Mnemonic returns the command mnemonic, including the trailing '?' for
// queries.
func (c Command) Mnemonic() string {
	return c.mnemonic
}

// IsQuery reports whether the command expects a reply.
func (c Command) IsQuery() bool {
	return strings.HasSuffix(c.mnemonic, "?")
}

// Valid reports whether the command has a non-empty mnemonic consisting of
// printable ASCII.
func (c Command) Valid() bool {
	if c.mnemonic == "" {
		return false
	}
	for i := 0; i < len(c.mnemonic); i++ {
		if c.mnemonic[i] < 0x20 || c.mnemonic[i] > 0x7e {
			return false
		}
	}

	return true
}

// String renders the command in its wire form without the line terminator,
// e.g. "VOLT 12.000" or "MEAS:VOLT?".
func (c Command) String() string {
	if len(c.args) == 0 {
		return c.mnemonic
	}

	return c.mnemonic + " " + strings.Join(c.args, ",")
}

func renderArg(arg any) string {
	switch v := arg.(type) {
	case string:
		return v
	case bool:
		if v {
			return "ON"
		}
		return "OFF"
	case float64:
		return strconv.FormatFloat(v, 'f', 3, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', 3, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	default:
		// Unknown types fall back to their default formatting; the
		// instrument rejects anything it does not understand.
		return fmt.Sprint(v)
	}
}
