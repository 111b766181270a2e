package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"aac-io/internal/config"
	"aac-io/internal/driver/aac"
	"aac-io/internal/protocol"
	"aac-io/internal/protocol/prototest"
	"aac-io/internal/protocol/serial"
)

var replies = map[string]string{
	aac.CmdProbe:           aac.ProbeReply,
	aac.CmdIdentify:        "AAC Triclock Display",
	aac.CmdVersion:         "250422_1204",
	aac.CmdUniqueID:        "0039003A3431510B37363932",
	aac.CmdUptime:          "3C",
	aac.CmdBacklight:       "1",
	"BLIGHT:PWM?":          "75",
	"BLIGHT:TIMEOUT?":      "30",
	"TRICLOCK:OCXO1:STAT?": "12.01;0.41;60.25;L",
	"TRICLOCK:OCXO2:STAT?": "12.02;0.39;59.5;U",
	"TRICLOCK:OCXO3:STAT?": "bad",
	aac.CmdReferenceStatus: "11.98;0.38;59.9;0;E",
}

func newTestApp(t *testing.T) (*Application, *bytes.Buffer, *[]string) {
	t.Helper()

	cfg := config.Default()
	cfg.Serial.Port = "COM3"
	cfg.Trace.Directory = t.TempDir()

	written := &[]string{}
	opener := func(sc *serial.Config, _ *zap.Logger) (protocol.Transport, error) {
		tr := prototest.New(sc.Port)
		tr.Handler = func(request string) (string, error) {
			*written = append(*written, request)
			if reply, ok := replies[request]; ok {
				return reply + "\r", nil
			}
			return "OK\r", nil
		}
		return tr, nil
	}

	out := &bytes.Buffer{}
	app := &Application{
		config:      cfg,
		logger:      zap.NewNop(),
		out:         out,
		connOptions: []aac.Option{aac.WithTransportOpener(opener)},
	}
	return app, out, written
}

func TestExecute_Info(t *testing.T) {
	app, out, _ := newTestApp(t)

	require.NoError(t, app.Execute("info", nil))

	assert.Contains(t, out.String(), "Identity:  AAC Triclock Display")
	assert.Contains(t, out.String(), "Firmware:  250422_1204")
	assert.Contains(t, out.String(), "Uptime:    1m0s")
}

func TestExecute_Status(t *testing.T) {
	app, out, _ := newTestApp(t)

	require.NoError(t, app.Execute("status", nil))

	assert.Contains(t, out.String(), "OCXO1 (24 MHz): 12.01 V 0.410 A 60.25 °C locked")
	assert.Contains(t, out.String(), "OCXO2 (20 MHz): 12.02 V 0.390 A 59.50 °C unlocked")
	assert.Contains(t, out.String(), "OCXO3 (25 MHz): invalid response")
	assert.Contains(t, out.String(), "REFOCXO (10 MHz):")
	assert.Contains(t, out.String(), "external")
}

func TestExecute_Backlight(t *testing.T) {
	app, out, written := newTestApp(t)

	require.NoError(t, app.Execute("backlight", []string{"pwm", "50"}))
	require.NoError(t, app.Execute("backlight", []string{"timeout", "120"}))
	require.NoError(t, app.Execute("backlight", []string{"off"}))
	require.NoError(t, app.Execute("backlight", []string{"get"}))

	assert.Contains(t, *written, "BLIGHT:PWM 50.00")
	assert.Contains(t, *written, "BLIGHT:TIMEOUT 120.00")
	assert.Contains(t, *written, "BLIGHT:OFF")
	assert.Contains(t, out.String(), "Intensity: 75 %")
}

func TestExecute_InvalidArguments(t *testing.T) {
	app, _, written := newTestApp(t)

	tests := []struct {
		command string
		args    []string
	}{
		{"reboot", nil},
		{"backlight", nil},
		{"backlight", []string{"blink"}},
		{"backlight", []string{"pwm"}},
		{"backlight", []string{"pwm", "101"}},
		{"backlight", []string{"timeout", "-1"}},
	}

	for _, tt := range tests {
		assert.ErrorIs(t, app.Execute(tt.command, tt.args), errUsage, "%s %v", tt.command, tt.args)
	}
	assert.Empty(t, *written)
}

func TestExecute_RequiresPort(t *testing.T) {
	app, _, _ := newTestApp(t)
	app.config.Serial.Port = ""

	assert.ErrorIs(t, app.Execute("info", nil), errUsage)
}

func TestExecute_PortsAndScan(t *testing.T) {
	app, out, _ := newTestApp(t)
	app.portLister = func() ([]serial.PortInfo, error) {
		return []serial.PortInfo{
			{Name: "COM3", IsUSB: true, VID: "0483", PID: "5740", SerialNumber: "3676", Product: "AAC"},
			{Name: "COM1"},
		}, nil
	}

	require.NoError(t, app.Execute("ports", nil))
	assert.Contains(t, out.String(), "USB 0483:5740 3676 AAC")
	assert.Contains(t, out.String(), "COM1\n")

	out.Reset()
	require.NoError(t, app.Execute("scan", []string{"COM3"}))
	assert.Equal(t, "COM3             AAC Triclock Display 250422_1204\n", out.String())
}
