// internal/protocol/serial/port.go
package serial

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"aac-io/internal/protocol"
)

// Line delimiters of the AAC protocol
const (
	InboundDelimiter  = '\r'
	OutboundDelimiter = "\r"
)

// MaxLineLength bounds a single response line
const MaxLineLength = 4096

// ErrLineTooLong is returned when no delimiter shows up within MaxLineLength bytes
var ErrLineTooLong = errors.New("response line too long")

// Config represents serial port configuration
type Config struct {
	Port        string        `json:"port"`
	BaudRate    int           `json:"baud_rate"`
	ReadTimeout time.Duration `json:"read_timeout"`
	DTR         bool          `json:"dtr"`
}

// portHandle is the subset of serial.Port the transport needs
type portHandle interface {
	SetReadTimeout(timeout time.Duration) error
	SetDTR(dtr bool) error
	ResetInputBuffer() error
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// allow tests to override the platform serial subsystem
var openPort = func(name string, mode *serial.Mode) (portHandle, error) {
	return serial.Open(name, mode)
}

// Port is a protocol.Transport over a serial line
type Port struct {
	config  *Config
	port    portHandle
	logger  *zap.Logger
	isOpen  bool
	pending []byte
	buf     []byte
}

var _ protocol.Transport = (*Port)(nil)

// Open opens the serial port at 8-N-1, asserts DTR when configured and
// discards whatever the device sent before the session started.
func Open(config *Config, logger *zap.Logger) (*Port, error) {
	if config == nil || config.Port == "" {
		return nil, &protocol.OpenError{Err: fmt.Errorf("port is required")}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(
		zap.String("protocol", "serial"),
		zap.String("port", config.Port),
	)

	mode := &serial.Mode{
		BaudRate: config.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	logger.Info("Opening serial port", zap.Int("baud_rate", config.BaudRate))

	port, err := openPort(config.Port, mode)
	if err != nil {
		logger.Error("Failed to open serial port", zap.Error(err))
		return nil, &protocol.OpenError{Port: config.Port, Err: err}
	}

	// Boards in the RPi Pico family only talk while DTR is held.
	if err := port.SetDTR(config.DTR); err != nil {
		port.Close()
		return nil, &protocol.OpenError{Port: config.Port, Err: fmt.Errorf("failed to set DTR: %w", err)}
	}

	if err := port.SetReadTimeout(config.ReadTimeout); err != nil {
		port.Close()
		return nil, &protocol.OpenError{Port: config.Port, Err: fmt.Errorf("failed to set read timeout: %w", err)}
	}

	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, &protocol.OpenError{Port: config.Port, Err: fmt.Errorf("failed to discard input: %w", err)}
	}

	logger.Info("Serial port opened successfully")

	return &Port{
		config: config,
		port:   port,
		logger: logger,
		isOpen: true,
		buf:    make([]byte, 256),
	}, nil
}

// Name returns the port name
func (p *Port) Name() string {
	return p.config.Port
}

// IsOpen returns whether the port is open
func (p *Port) IsOpen() bool {
	return p.isOpen && p.port != nil
}

// WriteLine writes text followed by the outbound delimiter
func (p *Port) WriteLine(text string) error {
	if !p.IsOpen() {
		return protocol.ErrNotOpen
	}

	data := []byte(text + OutboundDelimiter)
	n, err := p.port.Write(data)
	if err != nil {
		return fmt.Errorf("failed to write to serial port: %w", err)
	}
	if n != len(data) {
		return fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(data))
	}

	p.logger.Debug("Line written to serial port", zap.Int("bytes_written", n))
	return nil
}

// ReadLine reads until the inbound delimiter. Bytes following the delimiter
// are kept for the next call.
func (p *Port) ReadLine(timeout time.Duration) (string, error) {
	if !p.IsOpen() {
		return "", protocol.ErrNotOpen
	}

	deadline := time.Now().Add(timeout)

	for {
		if i := bytes.IndexByte(p.pending, InboundDelimiter); i >= 0 {
			line := string(p.pending[:i])
			p.pending = p.pending[i+1:]
			return line, nil
		}
		if len(p.pending) > MaxLineLength {
			p.pending = nil
			return "", ErrLineTooLong
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", protocol.ErrReadTimeout
		}
		if err := p.port.SetReadTimeout(remaining); err != nil {
			return "", fmt.Errorf("failed to set read timeout: %w", err)
		}

		// go.bug.st/serial reports a timeout as a zero-length read.
		n, err := p.port.Read(p.buf)
		if err != nil {
			return "", fmt.Errorf("failed to read from serial port: %w", err)
		}
		if n > 0 {
			p.pending = append(p.pending, p.buf[:n]...)
		}
	}
}

// Discard drops partially received data and the OS input buffer
func (p *Port) Discard() error {
	p.pending = nil
	if !p.IsOpen() {
		return nil
	}
	if err := p.port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("failed to discard input: %w", err)
	}
	return nil
}

// Close closes the serial port
func (p *Port) Close() error {
	if !p.IsOpen() {
		return nil
	}

	err := p.port.Close()
	p.port = nil
	p.isOpen = false
	p.pending = nil

	if err != nil {
		p.logger.Error("Failed to close serial port", zap.Error(err))
		return fmt.Errorf("failed to close serial port: %w", err)
	}

	p.logger.Info("Serial port closed")
	return nil
}
