// internal/protocol/exchange.go
package protocol

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"aac-io/internal/event"
	"aac-io/internal/model"
	"aac-io/internal/trace"
	"aac-io/internal/utils"
)

// responseCutset is stripped from both ends of every response line
const responseCutset = " \t\x00\r\n"

// EngineConfig holds the timing and retry budget of the exchange engine
type EngineConfig struct {
	// Port names the link in diagnostics when no transport is present.
	Port              string
	ReadTimeout       time.Duration
	MaxTransmitErrors int
	MaxReceiveErrors  int
}

// Engine runs request/response exchanges over a Transport.
//
// Each exchange retries the same request until it gets a clean send and
// receive, or until either error budget is used up, in which case the
// transport is closed. Engine is not safe for concurrent use.
type Engine struct {
	port      string
	transport Transport
	cfg       EngineConfig
	trace     *trace.Sink
	bus       *event.Bus
	logger    *utils.DeviceLogger
	stats     ProtocolStats
}

// NewEngine creates an engine over t. The trace sink and the bus are shared
// with the owning connection.
func NewEngine(t Transport, cfg EngineConfig, sink *trace.Sink, bus *event.Bus, logger *zap.Logger) *Engine {
	if cfg.MaxTransmitErrors <= 0 {
		cfg.MaxTransmitErrors = 3
	}
	if cfg.MaxReceiveErrors <= 0 {
		cfg.MaxReceiveErrors = 3
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = time.Second
	}
	if sink == nil {
		sink = trace.NewSink("")
	}
	if bus == nil {
		bus = event.NewBus(logger)
	}

	port := cfg.Port
	if t != nil {
		port = t.Name()
	}

	return &Engine{
		port:      port,
		transport: t,
		cfg:       cfg,
		trace:     sink,
		bus:       bus,
		logger:    utils.NewDeviceLogger(logger, port, "exchange"),
	}
}

// IsOpen reports whether the underlying transport is live
func (e *Engine) IsOpen() bool {
	return e.transport != nil && e.transport.IsOpen()
}

// Port returns the port name of the transport
func (e *Engine) Port() string {
	return e.port
}

// ReadTimeout returns the per-attempt read timeout
func (e *Engine) ReadTimeout() time.Duration {
	return e.cfg.ReadTimeout
}

// SetReadTimeout changes the per-attempt read timeout
func (e *Engine) SetReadTimeout(d time.Duration) {
	if d > 0 {
		e.cfg.ReadTimeout = d
	}
}

// Stats returns a copy of the protocol statistics
func (e *Engine) Stats() ProtocolStats {
	return e.stats
}

// Exchange sends request and returns the trimmed response line. Request and
// response are recorded to the trace.
func (e *Engine) Exchange(request string) (string, error) {
	return e.exchange(request, true)
}

// ExchangeSilent behaves like Exchange but never records the request or the
// response body.
func (e *Engine) ExchangeSilent(request string) (string, error) {
	return e.exchange(request, false)
}

func (e *Engine) exchange(request string, traced bool) (string, error) {
	var (
		txErrors int
		rxErrors int
		lastErr  error
	)

	start := time.Now()

	for {
		if !e.IsOpen() {
			e.trace.Recordf("The %s Serial Port is closed. Please open it.", e.port)
			e.bus.Publish(model.ConnectionEvent{
				Type:   model.EventClosed,
				Port:   e.port,
				Reason: "not open",
				Err:    ErrNotOpen,
			})
			return "", fmt.Errorf("%w: %s", ErrNotOpen, e.port)
		}

		if traced {
			e.trace.Record("Tx: " + request)
		}

		if err := e.transport.WriteLine(request); err != nil {
			txErrors++
			lastErr = &TransmitError{Request: request, Err: err}
			e.trace.Record("Tx ERROR Serial Port is:" + err.Error())
			e.fault(model.IOErrorTransmit, lastErr, txErrors)
		} else {
			e.stats.BytesWritten += int64(len(request) + 1)

			line, err := e.transport.ReadLine(e.cfg.ReadTimeout)
			if err == nil {
				response := strings.Trim(line, responseCutset)
				if traced {
					e.trace.Record("Rx: " + response)
				}
				e.completed(len(line), time.Since(start))
				e.logger.LogExchange(request, response, time.Since(start), txErrors+rxErrors+1, nil)
				return response, nil
			}

			rxErrors++
			lastErr = &ReceiveError{Request: request, Err: err}
			e.trace.Record("Rx ERROR Serial Port is:" + err.Error())
			e.fault(model.IOErrorReceive, lastErr, rxErrors)

			// A late reply to this attempt must not be read as the reply to the next one.
			if derr := e.transport.Discard(); derr != nil {
				e.logger.Debug("Failed to discard input", zap.Error(derr))
			}
		}

		if txErrors >= e.cfg.MaxTransmitErrors || rxErrors >= e.cfg.MaxReceiveErrors {
			break
		}
	}

	e.trace.Recordf("There were %d consecutive io error. I close the connection.", max(txErrors, rxErrors))
	e.stats.FatalCloses++

	exhausted := &ExhaustedError{
		Request:        request,
		TransmitErrors: txErrors,
		ReceiveErrors:  rxErrors,
		Last:           lastErr,
	}
	e.logger.LogExchange(request, "", time.Since(start), txErrors+rxErrors, exhausted)

	if err := e.close("retry budget exhausted"); err != nil {
		e.logger.Error("Failed to close serial port after exhausted exchange", zap.Error(err))
	}

	return "", exhausted
}

// Close closes the transport. Closing a closed engine is a no-op.
func (e *Engine) Close() error {
	return e.close("closed by caller")
}

func (e *Engine) close(reason string) error {
	if !e.IsOpen() {
		return nil
	}

	e.trace.Record("Serial Port is: Close")
	err := e.transport.Close()

	e.bus.Publish(model.ConnectionEvent{
		Type:   model.EventClosed,
		Port:   e.port,
		Reason: reason,
		Err:    err,
	})

	if err != nil {
		return fmt.Errorf("failed to close serial port: %w", err)
	}

	e.logger.LogConnection("close", true, nil)
	return nil
}

// fault accounts one failed attempt
func (e *Engine) fault(kind model.IOErrorKind, err error, attempt int) {
	if kind == model.IOErrorTransmit {
		e.stats.TransmitErrors++
	} else {
		e.stats.ReceiveErrors++
	}

	e.logger.Warn("Exchange attempt failed",
		zap.String("kind", string(kind)),
		zap.Int("attempt", attempt),
		zap.Error(err),
	)

	e.bus.Publish(model.ConnectionEvent{
		Type: model.EventIOError,
		Port: e.port,
		Kind: kind,
		Err:  err,
	})
}

// completed updates statistics after a clean exchange
func (e *Engine) completed(bytesRead int, latency time.Duration) {
	e.stats.ExchangeCount++
	e.stats.BytesRead += int64(bytesRead)
	e.stats.LastActivity = time.Now()

	if e.stats.AverageLatency == 0 {
		e.stats.AverageLatency = latency
	} else {
		e.stats.AverageLatency = (e.stats.AverageLatency + latency) / 2
	}
}
