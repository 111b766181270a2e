// internal/driver/aac/commands.go
package aac

import (
	"fmt"

	"github.com/shopspring/decimal"

	"aac-io/internal/model"
)

// Wire commands of the AAC firmware
const (
	CmdIdentify        = "*IDN?"
	CmdProbe           = "*OPC?"
	CmdVersion         = "VER?"
	CmdUniqueID        = "UID?"
	CmdUptime          = "UPTIME?"
	CmdBacklight       = "BLIGHT?"
	CmdBacklightOn     = "BLIGHT:ON"
	CmdBacklightOff    = "BLIGHT:OFF"
	CmdBacklightPWM    = "BLIGHT:PWM"
	CmdReferenceStatus = "TRICLOCK:REFOCXO:STAT?"

	// CmdBacklightTimeout is backed by EEPROM with a finite write endurance.
	CmdBacklightTimeout = "BLIGHT:TIMEOUT"
)

// ProbeReply is what the firmware answers to CmdProbe
const ProbeReply = "*OPC"

// oscillatorStatusCommand returns the status query of one OCXO channel
func oscillatorStatusCommand(ch model.Channel) string {
	return fmt.Sprintf("TRICLOCK:%s:STAT?", ch)
}

// query turns a setter command into its query form
func query(cmd string) string {
	return cmd + "?"
}

// setter formats a numeric setter with two decimals, e.g. "BLIGHT:PWM 50.00"
func setter(cmd string, value int) string {
	return cmd + " " + decimal.NewFromInt(int64(value)).StringFixed(2)
}
