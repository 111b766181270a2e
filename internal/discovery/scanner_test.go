package discovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"aac-io/internal/config"
	"aac-io/internal/driver/aac"
	"aac-io/internal/protocol"
	"aac-io/internal/protocol/prototest"
	"aac-io/internal/protocol/serial"
)

// bench maps port names to fake transports; ports without one fail to open
type bench struct {
	handlers map[string]func(string) (string, error)
	opened   []string
}

func (b *bench) open(sc *serial.Config, _ *zap.Logger) (protocol.Transport, error) {
	b.opened = append(b.opened, sc.Port)
	h, ok := b.handlers[sc.Port]
	if !ok {
		return nil, errors.New("no such port")
	}
	tr := prototest.New(sc.Port)
	tr.Handler = h
	return tr, nil
}

func module(request string) (string, error) {
	switch request {
	case aac.CmdProbe:
		return aac.ProbeReply + "\r", nil
	case aac.CmdIdentify:
		return "AAC Triclock Display\r", nil
	case aac.CmdVersion:
		return "250422_1204\r", nil
	}
	return "ERR\r", nil
}

func silent(string) (string, error) {
	return "", protocol.ErrReadTimeout
}

func ports(names ...string) func() ([]serial.PortInfo, error) {
	return func() ([]serial.PortInfo, error) {
		out := make([]serial.PortInfo, len(names))
		for i, n := range names {
			out[i] = serial.PortInfo{Name: n}
		}
		return out, nil
	}
}

func newTestScanner(b *bench, cfg *Config, list func() ([]serial.PortInfo, error)) *Scanner {
	connConfig := config.Default()
	connConfig.Serial.ReadTimeout = 10 * time.Millisecond
	connConfig.Trace.Directory = "/should/not/be/written"

	return NewScanner(cfg, connConfig, nil,
		WithPortLister(list),
		WithConnectionOptions(aac.WithTransportOpener(b.open)),
	)
}

func TestScan_FindsModules(t *testing.T) {
	b := &bench{handlers: map[string]func(string) (string, error){
		"/dev/ttyACM0": module,
		"/dev/ttyS0":   silent,
	}}
	s := newTestScanner(b, nil, ports("/dev/ttyACM0", "/dev/ttyS0", "/dev/ttyUSB9"))

	found, err := s.Scan(context.Background())
	require.NoError(t, err)

	require.Len(t, found, 1)
	assert.Equal(t, "/dev/ttyACM0", found[0].Port.Name)
	assert.Equal(t, "AAC Triclock Display", found[0].Identity)
	assert.Equal(t, "250422_1204", found[0].Version)
	assert.Equal(t, []string{"/dev/ttyACM0", "/dev/ttyS0", "/dev/ttyUSB9"}, b.opened)
}

func TestScan_PortPatterns(t *testing.T) {
	b := &bench{handlers: map[string]func(string) (string, error){
		"/dev/ttyACM0": module,
		"COM3":         module,
	}}
	cfg := &Config{PortPatterns: []string{"/dev/ttyACM*", "com3"}}
	s := newTestScanner(b, cfg, ports("/dev/ttyACM0", "/dev/ttyS0", "COM3"))

	found, err := s.Scan(context.Background())
	require.NoError(t, err)

	assert.Len(t, found, 2)
	assert.Equal(t, []string{"/dev/ttyACM0", "COM3"}, b.opened)
}

func TestScan_NoPorts(t *testing.T) {
	s := newTestScanner(&bench{}, nil, ports())

	found, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestScan_ListError(t *testing.T) {
	s := newTestScanner(&bench{}, nil, func() ([]serial.PortInfo, error) {
		return nil, errors.New("enumeration failed")
	})

	_, err := s.Scan(context.Background())
	assert.ErrorContains(t, err, "failed to list serial ports")
}

func TestScan_Cancelled(t *testing.T) {
	b := &bench{handlers: map[string]func(string) (string, error){"COM1": module}}
	s := newTestScanner(b, nil, ports("COM1", "COM2"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Scan(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, b.opened)
}

func TestNewScanner_DisablesTrace(t *testing.T) {
	cfg := config.Default()
	cfg.Trace.Directory = "/var/log/aac"

	s := NewScanner(nil, cfg, nil)

	assert.Empty(t, s.connConfig.Trace.Directory)
	assert.Equal(t, "/var/log/aac", cfg.Trace.Directory)
}
