// internal/driver/aac/decode.go
package aac

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"aac-io/pkg/driver"
)

const (
	fieldSeparator = ";"

	oscillatorFields = 4
	referenceFields  = 5

	lockedFlag      = "L"
	externalRefFlag = "E"
)

// DecodeError describes a malformed status payload
type DecodeError struct {
	Raw   string
	Field int // zero-based index of the offending field, -1 for a field count mismatch
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Field < 0 {
		return fmt.Sprintf("malformed status %q: %v", e.Raw, e.Err)
	}
	return fmt.Sprintf("malformed status %q: field %d: %v", e.Raw, e.Field, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// DecodeOscillator parses "voltage;current;temperature;flag". The channel is
// locked when flag is "L".
func DecodeOscillator(raw string) (*driver.OscillatorStatus, error) {
	fields, err := split(raw, oscillatorFields)
	if err != nil {
		return nil, err
	}

	values, err := parseFloats(raw, fields[:3])
	if err != nil {
		return nil, err
	}

	return &driver.OscillatorStatus{
		Voltage:     values[0],
		Current:     values[1],
		Temperature: values[2],
		IsLocked:    fields[3] == lockedFlag,
	}, nil
}

// DecodeReference parses "voltage;current;temperature;legacyTemperature;flag".
// The reference is external when flag is "E".
func DecodeReference(raw string) (*driver.ReferenceOscillatorStatus, error) {
	fields, err := split(raw, referenceFields)
	if err != nil {
		return nil, err
	}

	values, err := parseFloats(raw, fields[:4])
	if err != nil {
		return nil, err
	}

	return &driver.ReferenceOscillatorStatus{
		Voltage:           values[0],
		Current:           values[1],
		Temperature:       values[2],
		LegacyTemperature: values[3],
		ExtRef:            fields[4] == externalRefFlag,
	}, nil
}

func split(raw string, want int) ([]string, error) {
	fields := strings.Split(raw, fieldSeparator)
	if len(fields) != want {
		return nil, &DecodeError{
			Raw:   raw,
			Field: -1,
			Err:   fmt.Errorf("expected %d fields, got %d", want, len(fields)),
		}
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields, nil
}

// parseFloats parses with "." as the decimal separator regardless of locale
func parseFloats(raw string, fields []string) ([]float64, error) {
	values := make([]float64, len(fields))
	for i, f := range fields {
		d, err := decimal.NewFromString(f)
		if err != nil {
			return nil, &DecodeError{Raw: raw, Field: i, Err: err}
		}
		values[i] = d.InexactFloat64()
	}
	return values, nil
}
