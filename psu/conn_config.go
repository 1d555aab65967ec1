package psu

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/arloliu/go-psu/logger"
)

// Default connection settings shared by the supported device families.
const (
	// DefaultBaudRate is the serial baud rate the supported instruments ship
	// with.
	DefaultBaudRate = 115200

	// DefaultNetworkPort is the TCP port the supported instruments listen on.
	DefaultNetworkPort = 3000

	// DefaultTimeout is the per-read/per-write timeout applied to command and
	// reply I/O.
	DefaultTimeout = 1 * time.Second

	// DefaultErrorDrainLimit bounds the number of SYST:ERR? iterations a
	// single DrainErrors call performs before giving up on a misbehaving
	// instrument.
	DefaultErrorDrainLimit = 32
)

// ConnectionConfig represents the configuration parameters for a power supply
// connection, shared by the serial and network transports.
type ConnectionConfig struct {
	mu sync.RWMutex

	// connName is an optional human-readable name included in log records.
	connName string

	// baudRate is the serial baud rate. Only relevant for serial connections.
	baudRate int

	// networkPort is the TCP port. Only relevant for network connections.
	networkPort int

	// timeout is the per-read/per-write I/O timeout.
	timeout time.Duration

	// errorDrainLimit bounds the iterations of a single error-queue drain.
	errorDrainLimit int

	// autoVerify indicates whether Open* verifies the instrument identity
	// immediately after the transport is established. Defaults to true.
	autoVerify bool

	// logger provides a logger instance for connection events and errors.
	logger logger.Logger
}

// NewConnectionConfig creates a connection configuration with default values,
// then applies the provided options.
//
// See the various WithXXX functions for the available options.
func NewConnectionConfig(opts ...ConnOption) (*ConnectionConfig, error) {
	cfg := &ConnectionConfig{
		baudRate:        DefaultBaudRate,
		networkPort:     DefaultNetworkPort,
		timeout:         DefaultTimeout,
		errorDrainLimit: DefaultErrorDrainLimit,
		autoVerify:      true,
		logger:          logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

// ConnName returns the configured connection name.
func (cfg *ConnectionConfig) ConnName() string {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.connName
}

// BaudRate returns the configured serial baud rate.
func (cfg *ConnectionConfig) BaudRate() int {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.baudRate
}

// NetworkPort returns the configured TCP port.
func (cfg *ConnectionConfig) NetworkPort() int {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.networkPort
}

// Timeout returns the configured I/O timeout.
func (cfg *ConnectionConfig) Timeout() time.Duration {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.timeout
}

// ErrorDrainLimit returns the configured error-queue drain bound.
func (cfg *ConnectionConfig) ErrorDrainLimit() int {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.errorDrainLimit
}

// AutoVerify returns whether identity verification runs automatically after
// the transport is established.
func (cfg *ConnectionConfig) AutoVerify() bool {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.autoVerify
}

// Logger returns the configured logger.
func (cfg *ConnectionConfig) Logger() logger.Logger {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.logger
}

// ConnOption represents a functional option for configuring a ConnectionConfig.
type ConnOption interface {
	apply(*ConnectionConfig) error
}

type connOptFunc struct {
	name      string
	applyFunc func(*ConnectionConfig) error
}

func (c *connOptFunc) apply(cfg *ConnectionConfig) error { return c.applyFunc(cfg) }

func newConnOptFunc(name string, f func(*ConnectionConfig) error) *connOptFunc {
	return &connOptFunc{name: name, applyFunc: f}
}

// WithConnName sets a human-readable connection name included in log records.
func WithConnName(name string) ConnOption {
	return newConnOptFunc("WithConnName", func(cfg *ConnectionConfig) error {
		if cfg == nil {
			return ErrConnConfigNil
		}

		cfg.connName = name

		return nil
	})
}

// WithBaudRate sets the serial baud rate. The rate must be positive; the
// device profile default is 115200.
func WithBaudRate(baudRate int) ConnOption {
	return newConnOptFunc("WithBaudRate", func(cfg *ConnectionConfig) error {
		if cfg == nil {
			return ErrConnConfigNil
		}

		if baudRate <= 0 {
			return fmt.Errorf("invalid baud rate %d", baudRate)
		}

		cfg.baudRate = baudRate

		return nil
	})
}

// WithNetworkPort sets the TCP port for network connections.
func WithNetworkPort(port int) ConnOption {
	return newConnOptFunc("WithNetworkPort", func(cfg *ConnectionConfig) error {
		if cfg == nil {
			return ErrConnConfigNil
		}

		if port < 1 || port > 65535 {
			return fmt.Errorf("invalid network port %d", port)
		}

		cfg.networkPort = port

		return nil
	})
}

// WithTimeout sets the per-read/per-write I/O timeout. It should be between
// 100 milliseconds and 30 seconds.
func WithTimeout(timeout time.Duration) ConnOption {
	return newConnOptFunc("WithTimeout", func(cfg *ConnectionConfig) error {
		if cfg == nil {
			return ErrConnConfigNil
		}

		if timeout < 100*time.Millisecond || timeout > 30*time.Second {
			return errors.New("timeout should be between 100ms and 30s")
		}

		cfg.timeout = timeout

		return nil
	})
}

// WithErrorDrainLimit sets the iteration bound for a single error-queue drain.
// It should be between 1 and 256.
func WithErrorDrainLimit(limit int) ConnOption {
	return newConnOptFunc("WithErrorDrainLimit", func(cfg *ConnectionConfig) error {
		if cfg == nil {
			return ErrConnConfigNil
		}

		if limit < 1 || limit > 256 {
			return fmt.Errorf("invalid error drain limit %d", limit)
		}

		cfg.errorDrainLimit = limit

		return nil
	})
}

// WithAutoVerify controls whether Open* verifies the instrument identity
// immediately after the transport is established. Disabling it requires the
// caller to invoke VerifyDevice before any other command.
func WithAutoVerify(enable bool) ConnOption {
	return newConnOptFunc("WithAutoVerify", func(cfg *ConnectionConfig) error {
		if cfg == nil {
			return ErrConnConfigNil
		}

		cfg.autoVerify = enable

		return nil
	})
}

// WithLogger sets the logger used for connection events and errors.
func WithLogger(l logger.Logger) ConnOption {
	return newConnOptFunc("WithLogger", func(cfg *ConnectionConfig) error {
		if cfg == nil {
			return ErrConnConfigNil
		}

		if l == nil {
			return errors.New("logger is nil")
		}

		cfg.logger = l

		return nil
	})
}
