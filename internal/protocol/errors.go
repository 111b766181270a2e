// internal/protocol/errors.go
package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrNotOpen is returned by every operation attempted on a closed connection.
	ErrNotOpen = errors.New("serial port is not open")
	// ErrReadTimeout is returned when no complete line arrives within the read timeout.
	ErrReadTimeout = errors.New("read timeout")
)

// TransmitError is a fault on the send path of one attempt
type TransmitError struct {
	Request string
	Err     error
}

func (e *TransmitError) Error() string {
	return fmt.Sprintf("transmit failed (last request: %s): %v", e.Request, e.Err)
}

func (e *TransmitError) Unwrap() error { return e.Err }

// ReceiveError is a fault or timeout on the read path of one attempt
type ReceiveError struct {
	Request string
	Err     error
}

func (e *ReceiveError) Error() string {
	return fmt.Sprintf("receive failed (last request: %s): %v", e.Request, e.Err)
}

func (e *ReceiveError) Unwrap() error { return e.Err }

// Timeout reports whether the attempt ran out of time waiting for a line
func (e *ReceiveError) Timeout() bool {
	return errors.Is(e.Err, ErrReadTimeout)
}

// ExhaustedError is returned once a retry budget is used up. The connection
// has been closed by the time the caller sees it.
type ExhaustedError struct {
	Request        string
	TransmitErrors int
	ReceiveErrors  int
	Last           error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("exchange %q failed after %d transmit and %d receive errors: %v",
		e.Request, e.TransmitErrors, e.ReceiveErrors, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// OpenError is returned when a port cannot be opened
type OpenError struct {
	Port string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("failed to open serial port %s: %v", e.Port, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }
