package psu

import "errors"

var (
	// ErrConnConfigNil indicates that a nil ConnectionConfig was provided.
	ErrConnConfigNil = errors.New("psu: connection config is nil")

	// ErrNotConnected indicates a command was issued before the connection
	// reached the verified state, or after it was closed.
	ErrNotConnected = errors.New("psu: not connected")

	// ErrAlreadyOpen indicates an open was attempted while another transport
	// is active. The previous transport must be closed explicitly first.
	ErrAlreadyOpen = errors.New("psu: connection already open")

	// ErrConnClosed indicates the connection was closed. A closed Conn is
	// terminal; reopening requires a fresh Conn.
	ErrConnClosed = errors.New("psu: connection closed")

	// ErrInvalidTransition is returned when an attempt is made to transition
	// the connection state to an invalid state.
	ErrInvalidTransition = errors.New("psu: invalid state transition")
)

var (
	// ErrInvalidCommand indicates a command with an empty or non-ASCII
	// mnemonic.
	ErrInvalidCommand = errors.New("psu: invalid command")

	// ErrExpectsReply indicates Send was called with a query command.
	// Queries must go through Query so their reply is consumed.
	ErrExpectsReply = errors.New("psu: query command must be issued via Query")

	// ErrNoReply indicates Query was called with a non-query command, which
	// would block until timeout waiting for a reply that never comes.
	ErrNoReply = errors.New("psu: non-query command must be issued via Send")
)

var (
	// ErrTimeout indicates that no reply arrived within the configured
	// timeout window.
	ErrTimeout = errors.New("psu: reply timeout")

	// ErrMalformedReply indicates a reply was present but could not be
	// tokenized at all.
	ErrMalformedReply = errors.New("psu: malformed reply")

	// ErrDrainLimit indicates the error-queue drain exceeded its iteration
	// bound without seeing the "no error" sentinel.
	ErrDrainLimit = errors.New("psu: error queue drain limit exceeded")

	// ErrUnsupportedDevice indicates the instrument identity does not match
	// any entry in the supported-device table.
	ErrUnsupportedDevice = errors.New("psu: unsupported device")
)
