package transport

import (
	"sync"
	"time"

	"codeberg.org/mutker/serialmon/internal/errors"
	"go.bug.st/serial"
)

type serialTransport struct {
	name   string
	port   serial.Port
	lines  *lineReader
	closed bool
	mu     sync.Mutex
}

// OpenSerial opens a serial port with a bounded read timeout so that reads
// return within one poll interval.
func OpenSerial(name string, baudRate int, readTimeout time.Duration) (Transport, error) {
	errFactory := errors.New()

	port, err := serial.Open(name, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		return nil, errFactory.WithData(ErrOpenFailed, struct {
			Port  string
			Error string
		}{
			Port:  name,
			Error: err.Error(),
		})
	}

	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, errFactory.WithData(ErrOpenFailed, struct {
			Port  string
			Phase string
			Error string
		}{
			Port:  name,
			Phase: "set_read_timeout",
			Error: err.Error(),
		})
	}

	// Drop whatever the device sent before we were listening; the first
	// line would usually be partial.
	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, errFactory.Wrap(ErrOpenFailed, err)
	}

	return &serialTransport{
		name:  name,
		port:  port,
		lines: newLineReader(port),
	}, nil
}

func (t *serialTransport) ReadLine() (string, error) {
	errFactory := errors.New()

	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return "", errFactory.New(ErrClosed)
	}

	line, err := t.lines.ReadLine()
	if err != nil && !errors.Is(err, ErrNoData) {
		return "", errFactory.Wrap(ErrReadFailed, err)
	}

	return line, err
}

func (t *serialTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	if err := t.port.Close(); err != nil {
		return errors.New().Wrap(ErrCloseFailed, err)
	}

	return nil
}

func (t *serialTransport) Name() string {
	return t.name
}

// ListPorts returns the serial ports present on the system.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, errors.New().Wrap(errors.ErrListPorts, err)
	}

	return ports, nil
}
