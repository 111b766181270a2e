// internal/protocol/protocol.go
package protocol

import (
	"time"
)

// Transport is an open, line-oriented link to the instrument
type Transport interface {
	// Name returns the port name the transport was opened on.
	Name() string
	IsOpen() bool

	// WriteLine sends text followed by the line delimiter.
	WriteLine(text string) error
	// ReadLine blocks until a delimited line arrives or timeout elapses.
	// The returned line does not contain the delimiter.
	ReadLine(timeout time.Duration) (string, error)
	// Discard drops any buffered inbound bytes.
	Discard() error

	Close() error
}

// ProtocolStats provides protocol-level statistics
type ProtocolStats struct {
	BytesWritten   int64         `json:"bytes_written"`
	BytesRead      int64         `json:"bytes_read"`
	ExchangeCount  int64         `json:"exchange_count"`
	TransmitErrors int64         `json:"transmit_errors"`
	ReceiveErrors  int64         `json:"receive_errors"`
	FatalCloses    int64         `json:"fatal_closes"`
	LastActivity   time.Time     `json:"last_activity"`
	AverageLatency time.Duration `json:"average_latency"`
}

// ErrorCount returns the number of failed attempts of either kind
func (s ProtocolStats) ErrorCount() int64 {
	return s.TransmitErrors + s.ReceiveErrors
}
