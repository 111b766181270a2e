// pkg/driver/types.go
package driver

import (
	"time"
)

// OscillatorStatus is the telemetry of one Triclock OCXO channel.
//
// Legacy Triclock boards have no per-channel voltage and current
// measurement and report 0 for both.
type OscillatorStatus struct {
	// Voltage in V, nominal 12 V.
	Voltage float64 `json:"voltage"`
	// Current in A, about 0.4 A at power-on.
	Current float64 `json:"current"`
	// Temperature in °C, nominal 60 °C.
	Temperature float64 `json:"temperature"`
	// IsLocked is set once the oscillator settled. A fresh oscillator may
	// need minutes and can lock only briefly at first.
	IsLocked bool `json:"is_locked"`
}

// ReferenceOscillatorStatus is the telemetry of the 10 MHz reference oscillator
type ReferenceOscillatorStatus struct {
	Voltage     float64 `json:"voltage"`
	Current     float64 `json:"current"`
	Temperature float64 `json:"temperature"`
	// LegacyTemperature is only reported by legacy Triclock boards.
	LegacyTemperature float64 `json:"legacy_temperature"`
	// ExtRef is true when the reference clock is supplied externally.
	ExtRef bool `json:"ext_ref"`
}

// DeviceInfo contains basic device information
type DeviceInfo struct {
	Identity        string        `json:"identity"`
	FirmwareVersion string        `json:"firmware_version"`
	UniqueID        string        `json:"unique_id"`
	Uptime          time.Duration `json:"uptime"`
	Port            string        `json:"port"`
}

// BacklightStatus groups the backlight settings
type BacklightStatus struct {
	On        bool `json:"on"`
	Intensity int  `json:"intensity"`
	Timeout   int  `json:"timeout"`
}
