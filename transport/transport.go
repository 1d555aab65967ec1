// Package transport provides byte-oriented duplex channels to bench instruments.
//
// Two concrete implementations are provided: SerialTransport for SCPI over a
// serial link and TCPTransport for SCPI over a raw TCP socket. Both present the
// same contract to the layers above, so the command engine never depends on the
// concrete kind.
package transport

import (
	"errors"
	"time"
)

// Sentinel errors shared by all transport implementations.
var (
	// ErrConnFailed indicates that the underlying channel could not be established.
	ErrConnFailed = errors.New("transport: cannot establish connection")

	// ErrNotOpen indicates a read or write was attempted on a channel that is
	// not open.
	ErrNotOpen = errors.New("transport: not open")

	// ErrReadTimeout indicates that no data arrived within the configured
	// read timeout.
	ErrReadTimeout = errors.New("transport: read timeout")
)

// Transport represents a byte-oriented duplex channel to an instrument.
//
// Implementations are not required to be goroutine-safe; the command engine
// serializes all access.
type Transport interface {
	// Open establishes the channel. It fails with an error wrapping
	// ErrConnFailed on refusal, timeout or missing device.
	Open() error

	// Write writes p to the channel. It fails with ErrNotOpen if the channel
	// is not open.
	Write(p []byte) (int, error)

	// Read reads up to len(p) bytes. It blocks until at least one byte is
	// available or the configured read timeout elapses, in which case it
	// fails with ErrReadTimeout.
	Read(p []byte) (int, error)

	// SetReadTimeout sets the per-read timeout applied by Read.
	SetReadTimeout(d time.Duration) error

	// IsOpen reports whether the channel is currently open.
	IsOpen() bool

	// Close releases the underlying resource. It is idempotent; closing an
	// already-closed channel is a no-op.
	Close() error
}
