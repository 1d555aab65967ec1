package psu

import (
	"github.com/arloliu/go-psu/scpi"
)

// TraceKind identifies the kind of engine event delivered to trace handlers.
type TraceKind uint8

const (
	// TraceCommandSent is emitted after a command or query hits the wire.
	TraceCommandSent TraceKind = iota
	// TraceReplyReceived is emitted after a reply line is consumed.
	TraceReplyReceived
	// TraceErrorDrained is emitted for each non-sentinel entry drained from
	// the instrument's error queue.
	TraceErrorDrained
)

// String returns string representation of the trace kind.
func (k TraceKind) String() string {
	switch k {
	case TraceCommandSent:
		return "command-sent"
	case TraceReplyReceived:
		return "reply-received"
	case TraceErrorDrained:
		return "error-drained"
	default:
		return "unknown"
	}
}

// TraceEvent describes a notable engine event.
type TraceEvent struct {
	// Kind identifies the event.
	Kind TraceKind
	// Command is the wire form of the command involved, terminator excluded.
	Command string
	// Reply is the raw reply line for TraceReplyReceived events.
	Reply string
	// Entry is the drained error-queue entry for TraceErrorDrained events.
	Entry scpi.ErrorEntry
}

// TraceHandler observes engine events.
//
// Handlers run synchronously on the goroutine performing the I/O while the
// engine lock is held; they must be fast and must not call back into the Conn.
type TraceHandler func(ev TraceEvent)
