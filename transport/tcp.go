package transport

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"
)

const (
	// DefaultTCPPort is the TCP port bench power supplies listen on for SCPI.
	DefaultTCPPort = 3000

	// DefaultTCPReadTimeout is applied when no explicit read timeout is set.
	DefaultTCPReadTimeout = 1 * time.Second
)

// TCPTransport implements Transport over a raw TCP socket.
type TCPTransport struct {
	mu sync.Mutex

	host    string
	port    int
	timeout time.Duration

	conn net.Conn
	open bool
}

var _ Transport = (*TCPTransport)(nil)

// NewTCP creates a TCP transport for the given host and port. A port of 0
// selects DefaultTCPPort.
func NewTCP(host string, port int) *TCPTransport {
	if port == 0 {
		port = DefaultTCPPort
	}

	return &TCPTransport{
		host:    host,
		port:    port,
		timeout: DefaultTCPReadTimeout,
	}
}

func (t *TCPTransport) addr() string {
	return net.JoinHostPort(t.host, strconv.Itoa(t.port))
}

func (t *TCPTransport) Open() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.open {
		return fmt.Errorf("%w: connection to %s already open", ErrConnFailed, t.addr())
	}

	conn, err := net.DialTimeout("tcp", t.addr(), t.timeout)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %w", ErrConnFailed, t.addr(), err)
	}

	t.conn = conn
	t.open = true

	return nil
}

func (t *TCPTransport) Write(p []byte) (int, error) {
	t.mu.Lock()
	conn, open := t.conn, t.open
	t.mu.Unlock()

	if !open {
		return 0, ErrNotOpen
	}

	return conn.Write(p)
}

func (t *TCPTransport) Read(p []byte) (int, error) {
	t.mu.Lock()
	conn, open := t.conn, t.open
	timeout := t.timeout
	t.mu.Unlock()

	if !open {
		return 0, ErrNotOpen
	}

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, err
	}

	n, err := conn.Read(p)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return n, ErrReadTimeout
		}

		return n, err
	}

	return n, nil
}

func (t *TCPTransport) SetReadTimeout(d time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.timeout = d

	return nil
}

func (t *TCPTransport) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.open
}

func (t *TCPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.open {
		return nil
	}

	t.open = false
	err := t.conn.Close()
	t.conn = nil

	return err
}
