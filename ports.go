package serial2csv

import (
	"fmt"
	"sort"

	"go.bug.st/serial"
)

// ListPorts returns the serial devices present on this machine, sorted by name.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	sort.Strings(ports)
	return ports, nil
}
