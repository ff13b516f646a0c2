package scale

import (
	"time"

	"go.bug.st/serial"
)

// Baudrate is the persisted baud rate selector.
type Baudrate int

const (
	Baud4800 Baudrate = iota
	Baud9600
	Baud19200
)

// BPS returns the wire rate. Unrecognized selectors fall back to 19200.
func (b Baudrate) BPS() int {
	switch b {
	case Baud4800:
		return 4800
	case Baud9600:
		return 9600
	case Baud19200:
		return 19200
	default:
		return 19200
	}
}

// UARTFormat is the persisted serial frame format selector.
type UARTFormat int

const (
	Format8N1 UARTFormat = iota
	Format7N1
)

// Mode translates the persisted selectors to a serial mode.
// Unrecognized formats fall back to 8N1.
func Mode(baud Baudrate, format UARTFormat) *serial.Mode {
	mode := &serial.Mode{
		BaudRate: baud.BPS(),
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	if format == Format7N1 {
		mode.DataBits = 7
	}
	return mode
}

// OpenPort opens the scale serial device with the configured line
// parameters. A short read timeout keeps the listening task polling
// instead of blocking indefinitely.
func OpenPort(device string, baud Baudrate, format UARTFormat) (serial.Port, error) {
	port, err := serial.Open(device, Mode(baud, format))
	if err != nil {
		return nil, err
	}
	if err := port.SetReadTimeout(100 * time.Millisecond); err != nil {
		port.Close()
		return nil, err
	}
	return port, nil
}
