// Package serialio adapts a Linux serial port to the driver's byte-stream
// seams. The port is configured raw; bit rate and line discipline belong to
// the opener, not the driver.
package serialio

import (
	"fmt"
	"time"

	serial "github.com/daedaluz/goserial"
)

// availProbe is how long Available waits for a byte before reporting none.
// Long enough to catch a byte in flight at 9600 baud, short enough that the
// driver's poll loop stays responsive.
const availProbe = time.Millisecond

// Stream owns an open serial port. It satisfies the driver's Source
// interface and serves as its io.Writer sink.
type Stream struct {
	port *serial.Port

	// pending holds a byte pulled off the wire by an Available probe,
	// waiting for the next ReadByte.
	pending    byte
	hasPending bool
}

// Open opens and configures the serial device raw at the given speed
// (e.g. serial.B9600).
func Open(device string, speed serial.CFlag) (*Stream, error) {
	port, err := serial.Open(device, serial.NewOptions())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", device, err)
	}
	attrs, err := port.GetAttr()
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("get attrs %s: %w", device, err)
	}
	attrs.MakeRaw()
	attrs.SetSpeed(speed)
	if err := port.SetAttr(serial.TCSANOW, attrs); err != nil {
		port.Close()
		return nil, fmt.Errorf("set attrs %s: %w", device, err)
	}
	return &Stream{port: port}, nil
}

// Available reports whether ReadByte would return without blocking. A byte
// pulled off the wire by the probe is stashed for the next ReadByte.
func (s *Stream) Available() bool {
	if s.hasPending {
		return true
	}
	var buf [1]byte
	n, err := s.port.ReadTimeout(buf[:], availProbe)
	if err != nil || n != 1 {
		return false
	}
	s.pending = buf[0]
	s.hasPending = true
	return true
}

// ReadByte blocks until one byte arrives.
func (s *Stream) ReadByte() (byte, error) {
	if s.hasPending {
		s.hasPending = false
		return s.pending, nil
	}
	var buf [1]byte
	for {
		n, err := s.port.Read(buf[:])
		if err != nil {
			return 0, err
		}
		if n == 1 {
			return buf[0], nil
		}
	}
}

// Write pushes bytes out the port.
func (s *Stream) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

// Close closes the port.
func (s *Stream) Close() error {
	return s.port.Close()
}
