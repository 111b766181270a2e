// internal/driver/aac/operations.go
package aac

import (
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"aac-io/internal/model"
	"aac-io/pkg/driver"
)

// InvalidValue is returned by integer queries whose reply does not parse
const InvalidValue = -1

// WhoIs returns the identity string of the device
func (c *Connection) WhoIs() (string, error) {
	return c.exchange(CmdIdentify)
}

// GetVersion returns the firmware version
func (c *Connection) GetVersion() (string, error) {
	return c.exchange(CmdVersion)
}

// UniqueID returns the processor unique id as a hex string
func (c *Connection) UniqueID() (string, error) {
	return c.exchange(CmdUniqueID)
}

// GetUpTime returns the seconds since boot, or InvalidValue when the reply
// is not a hex number.
func (c *Connection) GetUpTime() (int, error) {
	resp, err := c.exchange(CmdUptime)
	if err != nil {
		return InvalidValue, err
	}

	seconds, err := strconv.ParseInt(resp, 16, 64)
	if err != nil {
		c.invalid(CmdUptime, resp, err)
		return InvalidValue, nil
	}
	return int(seconds), nil
}

// DeviceInfo collects identity, firmware version, unique id and uptime
func (c *Connection) DeviceInfo() (*driver.DeviceInfo, error) {
	identity, err := c.WhoIs()
	if err != nil {
		return nil, fmt.Errorf("failed to get identity: %w", err)
	}
	version, err := c.GetVersion()
	if err != nil {
		return nil, fmt.Errorf("failed to get version: %w", err)
	}
	uid, err := c.UniqueID()
	if err != nil {
		return nil, fmt.Errorf("failed to get unique id: %w", err)
	}
	uptime, err := c.GetUpTime()
	if err != nil {
		return nil, fmt.Errorf("failed to get uptime: %w", err)
	}

	info := &driver.DeviceInfo{
		Identity:        identity,
		FirmwareVersion: version,
		UniqueID:        uid,
		Port:            c.Port(),
	}
	if uptime != InvalidValue {
		info.Uptime = time.Duration(uptime) * time.Second
	}
	return info, nil
}

// BacklightOn forces the backlight on
func (c *Connection) BacklightOn() error {
	_, err := c.exchange(CmdBacklightOn)
	return err
}

// BacklightOff switches the backlight off
func (c *Connection) BacklightOff() error {
	_, err := c.exchange(CmdBacklightOff)
	return err
}

// BacklightIsOn reports the backlight state. A reply other than "0" or "1"
// is traced and reported as off.
func (c *Connection) BacklightIsOn() (bool, error) {
	resp, err := c.exchange(CmdBacklight)
	if err != nil {
		return false, err
	}

	switch resp {
	case "1":
		return true, nil
	case "0":
		return false, nil
	default:
		c.trace.Record("IO-ERROR: Invalid Response.")
		c.logger.Warn("Invalid backlight state", zap.String("response", resp))
		return false, nil
	}
}

// BacklightIntensity returns the backlight PWM duty in percent
func (c *Connection) BacklightIntensity() (int, error) {
	return c.queryInt(query(CmdBacklightPWM))
}

// SetBacklightIntensity sets the backlight PWM duty. Values outside 0-100
// are passed to the firmware unchanged.
func (c *Connection) SetBacklightIntensity(percent int) error {
	_, err := c.exchange(setter(CmdBacklightPWM, percent))
	return err
}

// BacklightTimeout returns the forced-on timeout in seconds
func (c *Connection) BacklightTimeout() (int, error) {
	return c.queryInt(query(CmdBacklightTimeout))
}

// SetBacklightTimeout stores the forced-on timeout. The value lives in
// EEPROM, write it only when it changes.
func (c *Connection) SetBacklightTimeout(seconds int) error {
	_, err := c.exchange(setter(CmdBacklightTimeout, seconds))
	return err
}

// Backlight reads state, intensity and timeout in one go
func (c *Connection) Backlight() (*driver.BacklightStatus, error) {
	on, err := c.BacklightIsOn()
	if err != nil {
		return nil, err
	}
	intensity, err := c.BacklightIntensity()
	if err != nil {
		return nil, err
	}
	timeout, err := c.BacklightTimeout()
	if err != nil {
		return nil, err
	}
	return &driver.BacklightStatus{On: on, Intensity: intensity, Timeout: timeout}, nil
}

// OscillatorStatus reads the telemetry of one OCXO channel. A malformed
// reply yields a nil status and a nil error.
func (c *Connection) OscillatorStatus(ch model.Channel) (*driver.OscillatorStatus, error) {
	if !ch.Valid() {
		return nil, fmt.Errorf("invalid oscillator channel: %d", int(ch))
	}

	resp, err := c.exchange(oscillatorStatusCommand(ch))
	if err != nil {
		return nil, err
	}

	status, err := DecodeOscillator(resp)
	if err != nil {
		c.decodeFailed(ch.String(), err)
		return nil, nil
	}
	return status, nil
}

func (c *Connection) Ocxo1Status() (*driver.OscillatorStatus, error) {
	return c.OscillatorStatus(model.OCXO1)
}

func (c *Connection) Ocxo2Status() (*driver.OscillatorStatus, error) {
	return c.OscillatorStatus(model.OCXO2)
}

func (c *Connection) Ocxo3Status() (*driver.OscillatorStatus, error) {
	return c.OscillatorStatus(model.OCXO3)
}

// ReferenceStatus reads the telemetry of the reference oscillator
func (c *Connection) ReferenceStatus() (*driver.ReferenceOscillatorStatus, error) {
	resp, err := c.exchange(CmdReferenceStatus)
	if err != nil {
		return nil, err
	}

	status, err := DecodeReference(resp)
	if err != nil {
		c.decodeFailed("REFOCXO", err)
		return nil, nil
	}
	return status, nil
}

func (c *Connection) queryInt(cmd string) (int, error) {
	resp, err := c.exchange(cmd)
	if err != nil {
		return InvalidValue, err
	}

	n, err := strconv.Atoi(resp)
	if err != nil {
		c.invalid(cmd, resp, err)
		return InvalidValue, nil
	}
	return n, nil
}

func (c *Connection) invalid(cmd, resp string, err error) {
	c.logger.Warn("Unparsable reply",
		zap.String("command", cmd),
		zap.String("response", resp),
		zap.Error(err),
	)
}

func (c *Connection) decodeFailed(source string, err error) {
	c.trace.Record("IO-ERROR: " + err.Error())
	c.logger.Warn("Failed to decode status",
		zap.String("oscillator", source),
		zap.Error(err),
	)
}
