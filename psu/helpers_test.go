package psu

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-psu/transport"
)

const testIdentity = "OWON,SPE6103,SN123,1.0.0"

// stubTransport scripts an instrument behind the Transport interface.
//
// Each complete line written to it is recorded and, when a reply is scripted
// for that command, the reply is queued for the next Read. Reads with nothing
// queued behave like an instrument withholding its reply: they fail with the
// transport read-timeout error.
type stubTransport struct {
	mu sync.Mutex

	open       bool
	closeCalls int
	readCalls  int

	writeBuf string
	writes   []string
	readBuf  []byte

	// replies maps a command line to a FIFO of reply lines.
	replies map[string][]string

	// events records "write <line>" and "read <line>" in wire order.
	events []string

	// readDelay is applied before each Read returns data.
	readDelay time.Duration

	// maxChunk caps the bytes a single Read returns; 0 means no cap.
	maxChunk int
}

func newStubTransport() *stubTransport {
	return &stubTransport{
		replies: make(map[string][]string),
	}
}

// script queues a reply line for the given command line.
func (s *stubTransport) script(cmd string, replies ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[cmd] = append(s.replies[cmd], replies...)
}

func (s *stubTransport) writtenLines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.writes...)
}

func (s *stubTransport) eventLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.events...)
}

func (s *stubTransport) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = true

	return nil
}

func (s *stubTransport) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return 0, transport.ErrNotOpen
	}

	s.writeBuf += string(p)
	for {
		line, rest, found := strings.Cut(s.writeBuf, "\r\n")
		if !found {
			break
		}

		s.writeBuf = rest
		s.writes = append(s.writes, line)
		s.events = append(s.events, "write "+line)

		if queue := s.replies[line]; len(queue) > 0 {
			s.readBuf = append(s.readBuf, []byte(queue[0]+"\r\n")...)
			s.replies[line] = queue[1:]
		}
	}

	return len(p), nil
}

func (s *stubTransport) Read(p []byte) (int, error) {
	s.mu.Lock()
	delay := s.readDelay
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.readCalls++

	if !s.open {
		return 0, transport.ErrNotOpen
	}

	if len(s.readBuf) == 0 {
		return 0, transport.ErrReadTimeout
	}

	n := len(s.readBuf)
	if n > len(p) {
		n = len(p)
	}
	if s.maxChunk > 0 && n > s.maxChunk {
		n = s.maxChunk
	}

	copy(p, s.readBuf[:n])
	chunk := s.readBuf[:n]
	s.readBuf = append([]byte(nil), s.readBuf[n:]...)

	if idx := strings.LastIndexByte(string(chunk), '\n'); idx >= 0 {
		s.events = append(s.events, "read "+strings.TrimSpace(string(chunk[:idx])))
	}

	return n, nil
}

func (s *stubTransport) SetReadTimeout(d time.Duration) error {
	return nil
}

func (s *stubTransport) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.open
}

func (s *stubTransport) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closeCalls++
	s.open = false

	return nil
}

// newTestConn creates a Conn over the stub with short timeouts and the
// standard identity scripted, opened and verified.
func newTestConn(t *testing.T, stub *stubTransport, opts ...ConnOption) *Conn {
	t.Helper()

	stub.script("*IDN?", testIdentity)

	defaults := []ConnOption{
		WithTimeout(200 * time.Millisecond),
	}

	cfg, err := NewConnectionConfig(append(defaults, opts...)...)
	require.NoError(t, err)

	conn := NewConn(cfg)
	require.NoError(t, conn.OpenTransport(stub))
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}
