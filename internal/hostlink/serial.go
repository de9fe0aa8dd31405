package hostlink

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

const (
	DefaultBaud        = 115200
	DefaultReadTimeout = time.Second
)

// OpenPort opens a serial device in 8N1 mode. Reads return empty after
// readTimeout so a session can notice cancellation.
func OpenPort(name string, baud int, readTimeout time.Duration) (serial.Port, error) {
	if baud <= 0 {
		baud = DefaultBaud
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}
	if readTimeout > 0 {
		if err := p.SetReadTimeout(readTimeout); err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("serial port %s: read timeout: %w", name, err)
		}
	}
	return p, nil
}

// Ports lists the serial devices present on this machine.
func Ports() ([]string, error) {
	return serial.GetPortsList()
}
