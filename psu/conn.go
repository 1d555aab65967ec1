package psu

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-psu/logger"
	"github.com/arloliu/go-psu/scpi"
	"github.com/arloliu/go-psu/transport"
)

// Conn is the transport-unified SCPI command engine for a single power supply.
//
// It owns exactly one transport at a time, frames commands onto it, and runs
// every exchange in strict request/response lock-step: a query is always
// paired with exactly one reply before the next command is accepted. SCPI
// instruments permit no pipelining, so two interleaved exchanges would produce
// undefined replies; Conn serializes concurrent callers internally.
//
// A Conn performs no implicit retries and introduces no internal parallelism;
// operations block the calling goroutine for up to the configured timeout.
// A closed Conn is terminal, reopening requires a fresh Conn.
type Conn struct {
	cfg    *ConnectionConfig
	logger logger.Logger
	state  *connStateMgr

	// mu serializes the send/query lock-step; one in-flight exchange at a time.
	mu sync.Mutex
	tr transport.Transport
	fr *framer

	identity scpi.DeviceIdentity
	profile  Profile

	metrics ConnMetrics

	traceID       atomic.Uint64
	traceHandlers *xsync.MapOf[uint64, TraceHandler]
}

// NewConn creates a connection engine with the given configuration. A nil
// configuration selects the defaults.
func NewConn(cfg *ConnectionConfig) *Conn {
	if cfg == nil {
		cfg, _ = NewConnectionConfig()
	}

	l := cfg.Logger()
	if name := cfg.ConnName(); name != "" {
		l = l.With("conn_name", name)
	}

	return &Conn{
		cfg:           cfg,
		logger:        l,
		state:         newConnStateMgr(l),
		traceHandlers: xsync.NewMapOf[uint64, TraceHandler](),
	}
}

// OpenSerial establishes a serial transport on the given port name
// (e.g. "/dev/ttyUSB0" or "COM3") using the configured baud rate, then
// verifies the instrument identity unless auto-verification is disabled.
func (c *Conn) OpenSerial(portName string) error {
	return c.open(transport.NewSerial(portName, c.cfg.BaudRate()), "serial", portName)
}

// OpenNetwork establishes a TCP transport to the given host using the
// configured network port, then verifies the instrument identity unless
// auto-verification is disabled.
func (c *Conn) OpenNetwork(host string) error {
	return c.open(transport.NewTCP(host, c.cfg.NetworkPort()), "network", host)
}

// OpenTransport establishes the connection over a caller-provided transport.
// The engine behaves identically regardless of the concrete transport kind.
func (c *Conn) OpenTransport(tr transport.Transport) error {
	return c.open(tr, "custom", "")
}

func (c *Conn) open(tr transport.Transport, kind string, target string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.state.State().IsClosed():
		return ErrConnClosed
	case !c.state.State().IsUnopened():
		return fmt.Errorf("%w: close the current transport first", ErrAlreadyOpen)
	}

	if err := tr.Open(); err != nil {
		return err
	}

	if err := tr.SetReadTimeout(c.cfg.Timeout()); err != nil {
		_ = tr.Close()
		return err
	}

	c.tr = tr
	c.fr = newFramer(tr, c.cfg.Timeout())

	if err := c.state.toState(OpenedState); err != nil {
		_ = tr.Close()
		return err
	}

	c.logger.Info("connection established", "kind", kind, "target", target)

	if c.cfg.AutoVerify() {
		if _, err := c.verifyLocked(); err != nil {
			// Nothing is usable behind an unverified transport; release it so
			// the caller is never left holding a half-open connection.
			_ = c.closeLocked()
			return err
		}
	}

	return nil
}

// VerifyDevice issues the identity query and classifies the instrument
// against the supported-device table. It must run once after a successful
// open and before any other command; with auto-verification enabled (the
// default) OpenSerial/OpenNetwork already do this.
//
// It fails with ErrUnsupportedDevice, carrying the raw identity text, if no
// table entry matches. Calling it again on a verified connection returns the
// cached identity without touching the wire.
func (c *Conn) VerifyDevice() (scpi.DeviceIdentity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state.State() {
	case VerifiedState:
		return c.identity, nil
	case OpenedState:
		return c.verifyLocked()
	default:
		return scpi.DeviceIdentity{}, fmt.Errorf("%w: state is %s", ErrNotConnected, c.state.State())
	}
}

func (c *Conn) verifyLocked() (scpi.DeviceIdentity, error) {
	raw, err := c.exchangeLocked(scpi.NewQuery(scpi.MnemIdentify))
	if err != nil {
		return scpi.DeviceIdentity{}, err
	}

	id, err := scpi.ParseIdentity(raw)
	if err != nil {
		return scpi.DeviceIdentity{}, err
	}

	profile, ok := LookupProfile(id)
	if !ok {
		return scpi.DeviceIdentity{}, fmt.Errorf("%w: %q", ErrUnsupportedDevice, raw)
	}

	c.identity = id
	c.profile = profile

	if err := c.state.toState(VerifiedState); err != nil {
		return scpi.DeviceIdentity{}, err
	}

	c.logger.Info("device verified",
		"manufacturer", id.Manufacturer,
		"model", id.Model,
		"serial", id.Serial,
		"firmware", id.Firmware,
		"family", profile.Family,
	)

	return id, nil
}

// Send writes a fire-and-forget command. No reply is expected and no read is
// attempted; a failed Send never leaves the engine believing a reply is
// pending.
func (c *Conn) Send(cmd scpi.Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireVerifiedLocked(); err != nil {
		return err
	}

	if !cmd.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCommand, cmd.Mnemonic())
	}

	if cmd.IsQuery() {
		return fmt.Errorf("%w: %s", ErrExpectsReply, cmd.Mnemonic())
	}

	wire := cmd.String()
	if err := c.fr.writeLine(wire); err != nil {
		return err
	}

	c.metrics.incCmdSendCount()
	c.logger.Debug("command sent", "command", wire)
	c.notifyTrace(TraceEvent{Kind: TraceCommandSent, Command: wire})

	return nil
}

// Query writes a query command and blocks for exactly one reply line, with
// the line terminator stripped.
//
// It fails with ErrTimeout if no reply arrives within the configured window;
// the engine remains fully usable afterwards. A reply that is present but not
// tokenizable fails with ErrMalformedReply.
func (c *Conn) Query(cmd scpi.Command) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireVerifiedLocked(); err != nil {
		return "", err
	}

	if !cmd.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCommand, cmd.Mnemonic())
	}

	if !cmd.IsQuery() {
		return "", fmt.Errorf("%w: %s", ErrNoReply, cmd.Mnemonic())
	}

	return c.exchangeLocked(cmd)
}

// exchangeLocked performs one full write/read exchange. The caller must hold
// c.mu and have a transport established.
func (c *Conn) exchangeLocked(cmd scpi.Command) (string, error) {
	wire := cmd.String()

	if err := c.fr.writeLine(wire); err != nil {
		return "", err
	}

	c.metrics.incQueryCount()
	c.logger.Debug("query sent", "command", wire)
	c.notifyTrace(TraceEvent{Kind: TraceCommandSent, Command: wire})

	reply, err := c.fr.readLine()
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			c.metrics.incTimeoutCount()
			c.logger.Warn("query timed out", "command", wire)

			return "", fmt.Errorf("query %s: %w", wire, err)
		}

		return "", err
	}

	c.metrics.incReplyRecvCount()
	c.logger.Debug("reply received", "command", wire, "reply", reply)
	c.notifyTrace(TraceEvent{Kind: TraceReplyReceived, Command: wire, Reply: reply})

	if !tokenizable(reply) {
		c.metrics.incMalformedReplyCount()
		return "", fmt.Errorf("%w: %q in reply to %s", ErrMalformedReply, reply, wire)
	}

	return reply, nil
}

// DrainErrors repeatedly queries the instrument's error queue until the
// "no error" sentinel is seen, returning the drained entries in FIFO order.
//
// A misbehaving instrument that never produces the sentinel is cut off at the
// configured drain limit with ErrDrainLimit rather than looping forever; the
// entries drained so far are still returned.
func (c *Conn) DrainErrors() ([]scpi.ErrorEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireVerifiedLocked(); err != nil {
		return nil, err
	}

	var entries []scpi.ErrorEntry
	limit := c.cfg.ErrorDrainLimit()

	for i := 0; i < limit; i++ {
		raw, err := c.exchangeLocked(scpi.NewQuery(scpi.MnemSystemError))
		if err != nil {
			return entries, err
		}

		entry, err := scpi.ParseErrorEntry(raw)
		if err != nil {
			return entries, err
		}

		if entry.IsNoError() {
			return entries, nil
		}

		entries = append(entries, entry)
		c.metrics.incErrorDrainCount()
		c.logger.Debug("error entry drained", "code", entry.Code, "message", entry.Message)
		c.notifyTrace(TraceEvent{Kind: TraceErrorDrained, Entry: entry})
	}

	return entries, fmt.Errorf("%w: %d entries without sentinel", ErrDrainLimit, len(entries))
}

// Close releases the transport. It is idempotent, reachable from any state,
// and terminal: commands after Close fail with ErrNotConnected.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closeLocked()
}

func (c *Conn) closeLocked() error {
	if c.state.State().IsClosed() {
		return nil
	}

	_ = c.state.toState(ClosedState)

	if c.tr == nil {
		return nil
	}

	err := c.tr.Close()
	c.tr = nil
	c.fr = nil

	if err != nil {
		c.logger.Warn("transport close failed", "error", err)
	} else {
		c.logger.Info("connection closed")
	}

	return err
}

// IsConnected reports whether the connection is verified and ready for
// commands.
func (c *Conn) IsConnected() bool {
	return c.state.State().IsVerified()
}

// State returns the current connection state.
func (c *Conn) State() ConnState {
	return c.state.State()
}

// Identity returns the verified device identity. It is the zero value until
// the connection reaches the verified state.
func (c *Conn) Identity() scpi.DeviceIdentity {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.identity
}

// DeviceProfile returns the matched device profile. It is the zero value
// until the connection reaches the verified state.
func (c *Conn) DeviceProfile() Profile {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.profile
}

// Metrics returns the connection metrics.
func (c *Conn) Metrics() *ConnMetrics {
	return &c.metrics
}

// AddConnStateChangeHandler adds handlers invoked on connection state
// changes.
func (c *Conn) AddConnStateChangeHandler(handlers ...ConnStateChangeHandler) {
	c.state.AddHandler(handlers...)
}

// AddTraceHandler registers a handler observing engine events. It returns an
// id that can be passed to RemoveTraceHandler.
func (c *Conn) AddTraceHandler(handler TraceHandler) uint64 {
	id := c.traceID.Add(1)
	c.traceHandlers.Store(id, handler)

	return id
}

// RemoveTraceHandler removes a previously registered trace handler.
func (c *Conn) RemoveTraceHandler(id uint64) {
	c.traceHandlers.Delete(id)
}

func (c *Conn) notifyTrace(ev TraceEvent) {
	c.traceHandlers.Range(func(_ uint64, handler TraceHandler) bool {
		handler(ev)
		return true
	})
}

func (c *Conn) requireVerifiedLocked() error {
	st := c.state.State()
	if st.IsVerified() {
		return nil
	}

	return fmt.Errorf("%w: state is %s", ErrNotConnected, st)
}

// tokenizable reports whether a reply line can be tokenized at all: non-empty
// printable ASCII that is not the bare "ERR" token some firmware revisions
// emit instead of queueing an error.
func tokenizable(reply string) bool {
	if len(reply) == 0 || reply == "ERR" {
		return false
	}

	for i := 0; i < len(reply); i++ {
		if reply[i] < 0x20 || reply[i] > 0x7e {
			return false
		}
	}

	return true
}
