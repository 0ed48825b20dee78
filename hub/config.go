package hub

import (
	"fmt"
	"time"

	"github.com/arloliu/go-dialhub/logger"
	"github.com/arloliu/go-dialhub/transport"
)

// Default timing values, tuned against the hub firmware's observed behavior.
const (
	DefaultCommandTimeout = 1 * time.Second        // per-exchange reply budget
	DefaultProbeTimeout   = 3 * time.Second        // port-locator diagnostic budget
	DefaultRescanSettle   = 250 * time.Millisecond // bus settle after a rescan ack
	DefaultFlushInterval  = 100 * time.Millisecond // queued-update flush period
)

// Timing range limits.
const (
	MinCommandTimeout = 50 * time.Millisecond
	MaxCommandTimeout = 30 * time.Second

	MinProbeTimeout = 100 * time.Millisecond
	MaxProbeTimeout = 60 * time.Second

	MaxRescanSettle = 5 * time.Second

	MinFlushInterval = 10 * time.Millisecond
	MaxFlushInterval = 10 * time.Second
)

// Config holds all configuration for a dial hub connection.
type Config struct {
	baudRate int

	commandTimeout time.Duration
	probeTimeout   time.Duration
	rescanSettle   time.Duration
	flushInterval  time.Duration

	// transport overrides the serial transport when set; used by tests
	// and simulators.
	transport transport.Transport

	logger logger.Logger
}

// NewConfig creates a hub configuration with defaults applied, then each
// option in order.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		baudRate:       transport.DefaultBaudRate,
		commandTimeout: DefaultCommandTimeout,
		probeTimeout:   DefaultProbeTimeout,
		rescanSettle:   DefaultRescanSettle,
		flushInterval:  DefaultFlushInterval,
		logger:         logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// BaudRate returns the serial line speed.
func (cfg *Config) BaudRate() int { return cfg.baudRate }

// CommandTimeout returns the per-exchange reply budget.
func (cfg *Config) CommandTimeout() time.Duration { return cfg.commandTimeout }

// ProbeTimeout returns the port-locator diagnostic budget.
func (cfg *Config) ProbeTimeout() time.Duration { return cfg.probeTimeout }

// RescanSettle returns the pause after a rescan acknowledgement before the
// device map is queried.
func (cfg *Config) RescanSettle() time.Duration { return cfg.rescanSettle }

// FlushInterval returns the queued-update flush period.
func (cfg *Config) FlushInterval() time.Duration { return cfg.flushInterval }

// GetLogger returns the configured logger.
func (cfg *Config) GetLogger() logger.Logger { return cfg.logger }

func (cfg *Config) newTransport() transport.Transport {
	if cfg.transport != nil {
		return cfg.transport
	}

	return transport.NewSerial(cfg.baudRate)
}

// Option is a functional option for configuring a Config.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithBaudRate sets the serial line speed. Must be positive.
func WithBaudRate(rate int) Option {
	return optFunc(func(cfg *Config) error {
		if rate <= 0 {
			return fmt.Errorf("dialhub: invalid baud rate %d", rate)
		}
		cfg.baudRate = rate

		return nil
	})
}

// WithCommandTimeout sets the per-exchange reply budget.
func WithCommandTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < MinCommandTimeout || d > MaxCommandTimeout {
			return fmt.Errorf("dialhub: command timeout %v out of range [%v, %v]", d, MinCommandTimeout, MaxCommandTimeout)
		}
		cfg.commandTimeout = d

		return nil
	})
}

// WithProbeTimeout sets the port-locator diagnostic budget. The hub can be
// slow to answer its first command after enumeration, so this is deliberately
// looser than the command timeout.
func WithProbeTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < MinProbeTimeout || d > MaxProbeTimeout {
			return fmt.Errorf("dialhub: probe timeout %v out of range [%v, %v]", d, MinProbeTimeout, MaxProbeTimeout)
		}
		cfg.probeTimeout = d

		return nil
	})
}

// WithRescanSettle sets the pause between a rescan acknowledgement and the
// device-map query. Zero disables the pause.
func WithRescanSettle(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < 0 || d > MaxRescanSettle {
			return fmt.Errorf("dialhub: rescan settle %v out of range [0, %v]", d, MaxRescanSettle)
		}
		cfg.rescanSettle = d

		return nil
	})
}

// WithFlushInterval sets the queued-update flush period.
func WithFlushInterval(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < MinFlushInterval || d > MaxFlushInterval {
			return fmt.Errorf("dialhub: flush interval %v out of range [%v, %v]", d, MinFlushInterval, MaxFlushInterval)
		}
		cfg.flushInterval = d

		return nil
	})
}

// WithTransport substitutes the transport implementation. Intended for tests
// and simulators; when unset a serial transport is created per connection.
func WithTransport(t transport.Transport) Option {
	return optFunc(func(cfg *Config) error {
		if t == nil {
			return fmt.Errorf("dialhub: transport is nil")
		}
		cfg.transport = t

		return nil
	})
}

// WithLogger sets the logger for the hub and its background tasks.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return fmt.Errorf("dialhub: logger is nil")
		}
		cfg.logger = l

		return nil
	})
}
