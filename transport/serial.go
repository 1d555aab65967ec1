package transport

import (
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
)

// DefaultSerialReadTimeout is applied when no explicit read timeout is set.
const DefaultSerialReadTimeout = 1 * time.Second

// SerialTransport implements Transport over a serial port using go.bug.st/serial.
//
// SCPI-over-serial framing is fixed at 8 data bits, no parity, 1 stop bit; only
// the baud rate varies across device families.
type SerialTransport struct {
	mu sync.Mutex

	portName string
	baudRate int
	timeout  time.Duration

	port serial.Port
	open bool
}

var _ Transport = (*SerialTransport)(nil)

// NewSerial creates a serial transport for the given port name (e.g.
// "/dev/ttyUSB0" or "COM3") and baud rate.
func NewSerial(portName string, baudRate int) *SerialTransport {
	return &SerialTransport{
		portName: portName,
		baudRate: baudRate,
		timeout:  DefaultSerialReadTimeout,
	}
}

func (t *SerialTransport) Open() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.open {
		return fmt.Errorf("%w: serial port %s already open", ErrConnFailed, t.portName)
	}

	mode := &serial.Mode{
		BaudRate: t.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(t.portName, mode)
	if err != nil {
		return fmt.Errorf("%w: open serial port %s: %w", ErrConnFailed, t.portName, err)
	}

	if err := port.SetReadTimeout(t.timeout); err != nil {
		_ = port.Close()
		return fmt.Errorf("%w: set read timeout on %s: %w", ErrConnFailed, t.portName, err)
	}

	t.port = port
	t.open = true

	return nil
}

func (t *SerialTransport) Write(p []byte) (int, error) {
	t.mu.Lock()
	port, open := t.port, t.open
	t.mu.Unlock()

	if !open {
		return 0, ErrNotOpen
	}

	return port.Write(p)
}

func (t *SerialTransport) Read(p []byte) (int, error) {
	t.mu.Lock()
	port, open := t.port, t.open
	t.mu.Unlock()

	if !open {
		return 0, ErrNotOpen
	}

	n, err := port.Read(p)
	if err != nil {
		return n, err
	}
	// go.bug.st/serial signals an expired read timeout by returning zero
	// bytes with a nil error.
	if n == 0 {
		return 0, ErrReadTimeout
	}

	return n, nil
}

func (t *SerialTransport) SetReadTimeout(d time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.timeout = d
	if t.open {
		return t.port.SetReadTimeout(d)
	}

	return nil
}

func (t *SerialTransport) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.open
}

func (t *SerialTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.open {
		return nil
	}

	t.open = false
	err := t.port.Close()
	t.port = nil

	return err
}
