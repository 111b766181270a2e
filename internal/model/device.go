// internal/model/device.go
package model

// ConnectionState represents the lifecycle state of a connection
type ConnectionState string

const (
	StateClosed ConnectionState = "CLOSED"
	StateOpen   ConnectionState = "OPEN"
)

// Channel identifies one of the Triclock oscillators
type Channel int

const (
	OCXO1 Channel = iota + 1
	OCXO2
	OCXO3
)

// String returns the channel name as used on the wire
func (c Channel) String() string {
	switch c {
	case OCXO1:
		return "OCXO1"
	case OCXO2:
		return "OCXO2"
	case OCXO3:
		return "OCXO3"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether c names an existing oscillator
func (c Channel) Valid() bool {
	return c >= OCXO1 && c <= OCXO3
}

// Nominal oscillator frequencies in Hz
var NominalFrequency = map[Channel]int{
	OCXO1: 24_000_000,
	OCXO2: 20_000_000,
	OCXO3: 25_000_000,
}

// ReferenceFrequency is the nominal frequency of the reference oscillator in Hz
const ReferenceFrequency = 10_000_000
