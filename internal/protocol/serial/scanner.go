// internal/protocol/serial/scanner.go
package serial

import (
	"fmt"
	"sort"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// PortInfo describes a serial port known to the platform
type PortInfo struct {
	Name         string `json:"name"`
	IsUSB        bool   `json:"is_usb"`
	VID          string `json:"vid,omitempty"`
	PID          string `json:"pid,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
	Product      string `json:"product,omitempty"`
}

// allow tests to override enumeration
var (
	getPortsList         = serial.GetPortsList
	getDetailedPortsList = enumerator.GetDetailedPortsList
)

// PortNames returns the names of the serial ports present on the host
func PortNames() ([]string, error) {
	ports, err := getPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to get serial ports: %w", err)
	}
	sort.Strings(ports)
	return ports, nil
}

// ListPorts returns the serial ports with USB details where the platform
// provides them. Ports the detailed enumerator misses are still listed.
func ListPorts() ([]PortInfo, error) {
	names, err := PortNames()
	if err != nil {
		return nil, err
	}

	details := map[string]*enumerator.PortDetails{}
	if list, err := getDetailedPortsList(); err == nil {
		for _, d := range list {
			details[d.Name] = d
		}
	}

	infos := make([]PortInfo, 0, len(names))
	for _, name := range names {
		info := PortInfo{Name: name}
		if d, ok := details[name]; ok {
			info.IsUSB = d.IsUSB
			info.VID = d.VID
			info.PID = d.PID
			info.SerialNumber = d.SerialNumber
			info.Product = d.Product
		}
		infos = append(infos, info)
	}
	return infos, nil
}
