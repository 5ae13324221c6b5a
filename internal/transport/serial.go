package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

const (
	DefaultBaud        = 115200
	DefaultReadTimeout = 100 * time.Millisecond
)

// ErrNoPort is returned when no port is configured and none can be found.
var ErrNoPort = errors.New("transport: no serial port found")

// SerialConfig selects the serial device. An empty Port triggers auto-detection.
type SerialConfig struct {
	Port        string
	Baud        int
	ReadTimeout time.Duration
}

// Serial is a Transport over a USB/RS-232 serial port.
type Serial struct {
	cfg SerialConfig

	mu      sync.Mutex
	name    string
	port    serial.Port
	closing chan struct{}
	done    chan struct{}
	lines   lineBuffer
}

func NewSerial(cfg SerialConfig) *Serial {
	if cfg.Baud == 0 {
		cfg.Baud = DefaultBaud
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	return &Serial{cfg: cfg}
}

// DetectPort picks the controller's port: a USB device whose product names
// ClearCore or Teknic, otherwise the first port the system reports.
func DetectPort() (string, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err == nil {
		for _, d := range details {
			product := strings.ToLower(d.Product)
			if d.IsUSB && (strings.Contains(product, "clearcore") || strings.Contains(product, "teknic")) {
				return d.Name, nil
			}
		}
		if len(details) > 0 {
			return details[0].Name, nil
		}
	}

	names, err := serial.GetPortsList()
	if err != nil {
		return "", fmt.Errorf("list serial ports: %w", err)
	}
	if len(names) == 0 {
		return "", ErrNoPort
	}
	return names[0], nil
}

// PortName is the device path in use, or the configured one before Open.
func (s *Serial) PortName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.name != "" {
		return s.name
	}
	return s.cfg.Port
}

func (s *Serial) String() string { return "serial://" + s.PortName() }

// Open opens the port at 8N1 and starts the reader goroutine.
func (s *Serial) Open(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port != nil {
		return nil
	}

	name := s.cfg.Port
	if name == "" {
		detected, err := DetectPort()
		if err != nil {
			return err
		}
		name = detected
	}

	mode := &serial.Mode{
		BaudRate: s.cfg.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return fmt.Errorf("open serial %s: %w", name, err)
	}
	// Reads return (0, nil) on timeout so the reader can notice Close.
	if err := port.SetReadTimeout(s.cfg.ReadTimeout); err != nil {
		_ = port.Close()
		return fmt.Errorf("set read timeout on %s: %w", name, err)
	}
	_ = port.ResetInputBuffer()

	s.name = name
	s.port = port
	s.lines.reset()
	s.closing = make(chan struct{})
	s.done = make(chan struct{})
	go func(closing <-chan struct{}, done chan<- struct{}) {
		defer close(done)
		pump(port, &s.lines, closing)
	}(s.closing, s.done)
	return nil
}

func (s *Serial) Close() error {
	s.mu.Lock()
	port, closing, done := s.port, s.closing, s.done
	s.port = nil
	s.mu.Unlock()
	if port == nil {
		return nil
	}

	close(closing)
	err := port.Close()
	<-done
	return err
}

func (s *Serial) Write(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return ErrNotOpen
	}
	if err := s.lines.failed(); err != nil {
		return err
	}
	if _, err := s.port.Write(p); err != nil {
		s.lines.fail(fmt.Errorf("%w: %v", ErrConnectionLost, err))
		return fmt.Errorf("write %s: %w", s.name, err)
	}
	return nil
}

func (s *Serial) ReadLine() (string, bool, error) {
	s.mu.Lock()
	open := s.port != nil
	s.mu.Unlock()
	if !open {
		return "", false, ErrNotOpen
	}
	return s.lines.pop()
}

func (s *Serial) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port != nil
}
