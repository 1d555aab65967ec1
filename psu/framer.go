package psu

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-psu/transport"
)

// lineTerminator is appended to every outgoing command. Incoming replies are
// accepted with either a bare LF or a full CRLF.
const lineTerminator = "\r\n"

// readChunkSize is the buffer size for raw transport reads. Replies are short
// ASCII lines; one chunk nearly always holds a complete reply.
const readChunkSize = 256

// framer wraps a Transport to present a pure line protocol: outgoing commands
// get the line terminator appended, incoming bytes are buffered until a
// terminator is seen and returned with the terminator stripped.
//
// framer is not goroutine-safe; the engine serializes access.
type framer struct {
	tr      transport.Transport
	timeout time.Duration

	// pending holds bytes received past the previous line boundary. A reply
	// that arrives in the same chunk as its predecessor is preserved here;
	// it is discarded wholesale on timeout.
	pending []byte
}

func newFramer(tr transport.Transport, timeout time.Duration) *framer {
	return &framer{
		tr:      tr,
		timeout: timeout,
	}
}

// writeLine appends the line terminator and writes the full frame, retrying
// short writes until every byte is on the wire.
func (f *framer) writeLine(line string) error {
	frame := []byte(line + lineTerminator)

	for written := 0; written < len(frame); {
		n, err := f.tr.Write(frame[written:])
		written += n

		if err != nil {
			return fmt.Errorf("write %q: %w", line, err)
		}
	}

	return nil
}

// readLine blocks until a full line is available or the timeout elapses.
//
// On timeout the partial buffer is discarded and ErrTimeout is returned; no
// partial reply is ever surfaced. The overall window equals the configured
// timeout even when the instrument trickles the reply in several chunks.
func (f *framer) readLine() (string, error) {
	deadline := time.Now().Add(f.timeout)

	for {
		if line, ok := f.takeLine(); ok {
			return line, nil
		}

		if !time.Now().Before(deadline) {
			f.pending = nil
			return "", ErrTimeout
		}

		chunk := make([]byte, readChunkSize)
		n, err := f.tr.Read(chunk)
		if n > 0 {
			f.pending = append(f.pending, chunk[:n]...)
			// A net.Conn under a read deadline may deliver data together
			// with the timeout error. A complete line still counts.
			if line, ok := f.takeLine(); ok {
				return line, nil
			}
		}

		if err != nil {
			if errors.Is(err, transport.ErrReadTimeout) {
				f.pending = nil
				return "", ErrTimeout
			}

			f.pending = nil

			return "", fmt.Errorf("read reply: %w", err)
		}
	}
}

// takeLine extracts the first complete line from the pending buffer,
// stripping the terminator.
func (f *framer) takeLine() (string, bool) {
	idx := bytes.IndexByte(f.pending, '\n')
	if idx < 0 {
		return "", false
	}

	line := f.pending[:idx]
	line = bytes.TrimSuffix(line, []byte("\r"))

	rest := f.pending[idx+1:]
	if len(rest) == 0 {
		f.pending = nil
	} else {
		f.pending = append([]byte(nil), rest...)
	}

	return string(line), true
}
