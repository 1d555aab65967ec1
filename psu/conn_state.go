package psu

import (
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-psu/logger"
)

// ConnState represents the lifecycle stage of a connection.
type ConnState uint32

// Connection lifecycle states. A connection starts Unopened, becomes Opened
// once the transport is established, Verified once the instrument identity is
// confirmed, and Closed terminally.
const (
	// UnopenedState indicates that no transport has been established yet.
	UnopenedState ConnState = iota
	// OpenedState indicates that the transport is established but the
	// instrument identity has not been confirmed.
	OpenedState
	// VerifiedState indicates that the instrument identity matched the
	// supported-device table and the connection is ready for commands.
	VerifiedState
	// ClosedState indicates that the connection has been closed. This state
	// is terminal; reopening requires a fresh Conn.
	ClosedState
)

// IsUnopened returns if the current state is unopened.
func (cs ConnState) IsUnopened() bool { return cs == UnopenedState }

// IsOpened returns if the current state is opened.
func (cs ConnState) IsOpened() bool { return cs == OpenedState }

// IsVerified returns if the current state is verified.
func (cs ConnState) IsVerified() bool { return cs == VerifiedState }

// IsClosed returns if the current state is closed.
func (cs ConnState) IsClosed() bool { return cs == ClosedState }

// String returns string representation of the current state.
func (cs ConnState) String() string {
	switch cs {
	case UnopenedState:
		return "unopened"
	case OpenedState:
		return "opened"
	case VerifiedState:
		return "verified"
	case ClosedState:
		return "closed"
	default:
		return "unknown"
	}
}

// ConnStateChangeHandler is invoked when the connection state changes.
//
// Handlers run synchronously on the goroutine performing the transition and
// must not call back into the Conn.
type ConnStateChangeHandler func(prevState ConnState, newState ConnState)

// connStateMgr manages connection state transitions and notifies handlers of
// changes. Transitions are safe for concurrent use.
type connStateMgr struct {
	mu       sync.Mutex
	state    atomic.Uint32
	logger   logger.Logger
	handlers []ConnStateChangeHandler
}

func newConnStateMgr(l logger.Logger, handlers ...ConnStateChangeHandler) *connStateMgr {
	mgr := &connStateMgr{logger: l}
	mgr.state.Store(uint32(UnopenedState))
	mgr.handlers = append(mgr.handlers, handlers...)

	return mgr
}

// State returns the current connection state.
func (m *connStateMgr) State() ConnState {
	return ConnState(m.state.Load())
}

// AddHandler adds one or more handlers to be invoked on state changes.
func (m *connStateMgr) AddHandler(handlers ...ConnStateChangeHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, handlers...)
}

// toState transitions to the next state, validating the transition first.
// Close is reachable from every state; everything else follows the
// unopened -> opened -> verified ladder.
func (m *connStateMgr) toState(next ConnState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.State()
	if prev == next {
		return nil
	}

	if !validTransition(prev, next) {
		m.logger.Error("invalid connection state transition", "prev_state", prev, "next_state", next)
		return ErrInvalidTransition
	}

	m.state.Store(uint32(next))
	m.logger.Debug("connection state changed", "prev_state", prev, "next_state", next)

	for _, handler := range m.handlers {
		handler(prev, next)
	}

	return nil
}

func validTransition(prev ConnState, next ConnState) bool {
	if next == ClosedState {
		return true
	}

	switch prev {
	case UnopenedState:
		return next == OpenedState
	case OpenedState:
		return next == VerifiedState
	default:
		return false
	}
}
