// pkg/driver/interfaces.go
package driver

// TimingModule is the public command surface of the AAC display/timing module
type TimingModule interface {
	// Connection management
	IsOpen() bool
	Close() error

	// Device information
	WhoIs() (string, error)
	GetVersion() (string, error)
	UniqueID() (string, error)
	GetUpTime() (int, error)
	DeviceInfo() (*DeviceInfo, error)

	// Triclock status
	Ocxo1Status() (*OscillatorStatus, error)
	Ocxo2Status() (*OscillatorStatus, error)
	Ocxo3Status() (*OscillatorStatus, error)
	ReferenceStatus() (*ReferenceOscillatorStatus, error)

	DisplayDriver
}

// DisplayDriver covers the backlight of the display
type DisplayDriver interface {
	BacklightOn() error
	BacklightOff() error
	BacklightIsOn() (bool, error)

	BacklightIntensity() (int, error)
	SetBacklightIntensity(percent int) error

	BacklightTimeout() (int, error)
	SetBacklightTimeout(seconds int) error
}
