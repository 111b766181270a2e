// internal/driver/aac/connection.go
package aac

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"aac-io/internal/config"
	"aac-io/internal/event"
	"aac-io/internal/model"
	"aac-io/internal/protocol"
	"aac-io/internal/protocol/serial"
	"aac-io/internal/trace"
	"aac-io/internal/utils"
	"aac-io/pkg/driver"
)

// ErrProbeFailed is returned by Test when the device answers the liveness
// probe with something other than ProbeReply.
var ErrProbeFailed = errors.New("liveness probe failed")

// TransportOpener opens the link to the device
type TransportOpener func(cfg *serial.Config, logger *zap.Logger) (protocol.Transport, error)

func openSerial(cfg *serial.Config, logger *zap.Logger) (protocol.Transport, error) {
	return serial.Open(cfg, logger)
}

// Connection is a session with one AAC module.
//
// A Connection is Closed until Open succeeds and returns to Closed on Close,
// Release, or when an exchange uses up its retry budget. It is not safe for
// concurrent use; callers serialize their commands.
type Connection struct {
	config     *config.Config
	baseLogger *zap.Logger
	logger     *utils.DeviceLogger
	bus        *event.Bus
	trace      *trace.Sink
	engine     *protocol.Engine
	open       TransportOpener
}

var _ driver.TimingModule = (*Connection)(nil)

// Option configures a Connection
type Option func(*Connection)

// WithTransportOpener replaces the serial port opener
func WithTransportOpener(open TransportOpener) Option {
	return func(c *Connection) {
		if open != nil {
			c.open = open
		}
	}
}

// WithTraceClock overrides the trace timestamp source
func WithTraceClock(now func() time.Time) Option {
	return func(c *Connection) {
		c.trace = trace.NewSink(c.trace.Directory(), trace.WithClock(now))
	}
}

// OpenOption configures one Open call
type OpenOption func(*openOptions)

type openOptions struct {
	logDirectory string
}

// WithLogDirectory enables the I/O trace for the session. The trace is
// written to a daily file in dir when the connection is released.
func WithLogDirectory(dir string) OpenOption {
	return func(o *openOptions) {
		o.logDirectory = dir
	}
}

// New creates a closed connection. A nil cfg uses config.Default().
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) *Connection {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Connection{
		config:     cfg,
		baseLogger: logger,
		logger:     utils.NewDeviceLogger(logger, cfg.Serial.Port, "connection"),
		bus:        event.NewBus(logger),
		trace:      trace.NewSink(cfg.Trace.Directory),
		open:       openSerial,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.engine = protocol.NewEngine(nil, c.engineConfig(cfg.Serial.Port), c.trace, c.bus, logger)
	return c
}

func (c *Connection) engineConfig(port string) protocol.EngineConfig {
	return protocol.EngineConfig{
		Port:              port,
		ReadTimeout:       c.config.Serial.ReadTimeout,
		MaxTransmitErrors: c.config.Exchange.MaxTransmitErrors,
		MaxReceiveErrors:  c.config.Exchange.MaxReceiveErrors,
	}
}

// Open opens port, discards stale input and probes the device with *OPC?.
// A failed open leaves the connection Closed and returns *protocol.OpenError.
// A probe that merely answers wrong is traced, the connection stays Open.
func (c *Connection) Open(port string, opts ...OpenOption) error {
	o := openOptions{logDirectory: c.trace.Directory()}
	for _, opt := range opts {
		opt(&o)
	}
	c.trace.SetDirectory(o.logDirectory)

	// One connection owns one handle.
	if c.IsOpen() {
		if err := c.engine.Close(); err != nil {
			c.logger.Warn("Failed to close previous port", zap.Error(err))
		}
	}

	c.logger = utils.NewDeviceLogger(c.baseLogger, port, "connection")

	readTimeout := c.engine.ReadTimeout()
	transport, err := c.open(&serial.Config{
		Port:        port,
		BaudRate:    c.config.Serial.BaudRate,
		ReadTimeout: readTimeout,
		DTR:         c.config.Serial.DTR,
	}, c.baseLogger)
	if err != nil {
		var openErr *protocol.OpenError
		if !errors.As(err, &openErr) {
			err = &protocol.OpenError{Port: port, Err: err}
		}

		c.engine = protocol.NewEngine(nil, c.engineConfig(port), c.trace, c.bus, c.baseLogger)
		c.engine.SetReadTimeout(readTimeout)
		c.trace.Recordf("IO ERROR Serial Port is: %s Open fail... because:%v", port, err)
		c.bus.Publish(model.ConnectionEvent{Type: model.EventIOError, Port: port, Kind: model.IOErrorOpen, Err: err})
		c.bus.Publish(model.ConnectionEvent{Type: model.EventClosed, Port: port, Reason: "open failed", Err: err})
		c.logger.LogConnection("open", false, err)
		return err
	}

	c.engine = protocol.NewEngine(transport, c.engineConfig(port), c.trace, c.bus, c.baseLogger)
	c.engine.SetReadTimeout(readTimeout)
	c.trace.Recordf("Serial Port: %s is Open.", port)

	if err := c.Test(); err != nil && !c.IsOpen() {
		err = &protocol.OpenError{Port: port, Err: err}
		c.logger.LogConnection("open", false, err)
		return err
	}

	c.bus.Publish(model.ConnectionEvent{Type: model.EventOpened, Port: port})
	c.logger.LogConnection("open", true, nil)
	return nil
}

// Test sends the liveness probe
func (c *Connection) Test() error {
	resp, err := c.engine.Exchange(CmdProbe)
	if err != nil {
		c.trace.Record("IO-ERROR:" + err.Error())
		return err
	}
	if resp != ProbeReply {
		c.trace.Record("Test Failed")
		c.logger.Warn("Unexpected probe reply", zap.String("response", resp))
		return fmt.Errorf("%w: got %q", ErrProbeFailed, resp)
	}
	return nil
}

// Close closes the serial port. The trace stays in memory until Release.
func (c *Connection) Close() error {
	return c.engine.Close()
}

// Release closes the port if it is still open and, when a log directory was
// configured, appends the trace to the daily log file.
func (c *Connection) Release() error {
	var errs []error

	if err := c.engine.Close(); err != nil {
		errs = append(errs, err)
	}

	if c.trace.Enabled() {
		path, err := c.trace.FlushToFile(c.trace.Directory())
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to flush trace: %w", err))
		} else {
			c.logger.Debug("Trace flushed", zap.String("path", path))
		}
	}

	return errors.Join(errs...)
}

// Session opens port, runs fn and releases the connection on every exit
// path, panics included.
func (c *Connection) Session(port string, fn func(*Connection) error, opts ...OpenOption) (err error) {
	defer func() {
		if rerr := c.Release(); rerr != nil {
			err = errors.Join(err, rerr)
		}
	}()

	if err := c.Open(port, opts...); err != nil {
		return err
	}
	return fn(c)
}

// WithSession creates a connection and runs fn inside Session
func WithSession(cfg *config.Config, logger *zap.Logger, port string, fn func(*Connection) error, opts ...OpenOption) error {
	return New(cfg, logger).Session(port, fn, opts...)
}

// IsOpen reports whether the port is open
func (c *Connection) IsOpen() bool {
	return c.engine.IsOpen()
}

// State returns the lifecycle state
func (c *Connection) State() model.ConnectionState {
	if c.IsOpen() {
		return model.StateOpen
	}
	return model.StateClosed
}

// Port returns the name of the port last opened
func (c *Connection) Port() string {
	return c.engine.Port()
}

// ReadTimeout returns the per-attempt read timeout
func (c *Connection) ReadTimeout() time.Duration {
	return c.engine.ReadTimeout()
}

// SetReadTimeout changes the per-attempt read timeout
func (c *Connection) SetReadTimeout(d time.Duration) {
	c.engine.SetReadTimeout(d)
}

// Subscribe registers an observer of connection changes and I/O errors
func (c *Connection) Subscribe(h event.Handler) {
	c.bus.Subscribe(h)
}

// Events returns a buffered channel of connection events
func (c *Connection) Events(size int) <-chan model.ConnectionEvent {
	return c.bus.Channel(size)
}

// Trace returns a snapshot of the pending trace entries
func (c *Connection) Trace() []trace.Entry {
	return c.trace.Entries()
}

// TraceLines returns the pending trace rendered as log lines
func (c *Connection) TraceLines() []string {
	return c.trace.Lines()
}

// ClearTrace drops the pending trace entries
func (c *Connection) ClearTrace() {
	c.trace.Clear()
}

// FlushTrace appends the pending trace to the daily file in dir
func (c *Connection) FlushTrace(dir string) (string, error) {
	return c.trace.FlushToFile(dir)
}

// Stats returns protocol statistics of the current session
func (c *Connection) Stats() protocol.ProtocolStats {
	return c.engine.Stats()
}

// exchange runs one traced request/response cycle
func (c *Connection) exchange(request string) (string, error) {
	return c.engine.Exchange(request)
}
