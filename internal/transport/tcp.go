package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"
)

// TCP defaults match the controller's ethernet interface.
const (
	DefaultTCPPort     = 8080
	DefaultDialTimeout = 5 * time.Second
	tcpWriteTimeout    = 2 * time.Second
)

// TCPConfig addresses a controller on the network.
type TCPConfig struct {
	Host        string
	Port        int
	DialTimeout time.Duration
}

// TCP is a Transport over a TCP socket.
type TCP struct {
	cfg TCPConfig

	mu      sync.Mutex
	conn    net.Conn
	closing chan struct{}
	done    chan struct{}
	lines   lineBuffer
}

// NewTCP returns an unopened TCP transport. Zero config fields take defaults.
func NewTCP(cfg TCPConfig) *TCP {
	if cfg.Port == 0 {
		cfg.Port = DefaultTCPPort
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	return &TCP{cfg: cfg}
}

// Addr is the host:port the transport dials.
func (t *TCP) Addr() string {
	return net.JoinHostPort(t.cfg.Host, strconv.Itoa(t.cfg.Port))
}

func (t *TCP) String() string { return "tcp://" + t.Addr() }

// Open dials the controller and starts the reader goroutine.
func (t *TCP) Open(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		return nil
	}

	d := net.Dialer{Timeout: t.cfg.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", t.Addr())
	if err != nil {
		return fmt.Errorf("dial %s: %w", t.Addr(), err)
	}

	t.conn = conn
	t.lines.reset()
	t.closing = make(chan struct{})
	t.done = make(chan struct{})
	go func(closing <-chan struct{}, done chan<- struct{}) {
		defer close(done)
		pump(conn, &t.lines, closing)
	}(t.closing, t.done)
	return nil
}

// Close shuts the socket and waits for the reader goroutine to exit.
func (t *TCP) Close() error {
	t.mu.Lock()
	conn, closing, done := t.conn, t.closing, t.done
	t.conn = nil
	t.mu.Unlock()
	if conn == nil {
		return nil
	}

	close(closing)
	err := conn.Close()
	<-done
	return err
}

// Write sends p, failing fast once the connection is known to be lost.
func (t *TCP) Write(p []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return ErrNotOpen
	}
	if err := t.lines.failed(); err != nil {
		return err
	}
	_ = t.conn.SetWriteDeadline(time.Now().Add(tcpWriteTimeout))
	if _, err := t.conn.Write(p); err != nil {
		t.lines.fail(fmt.Errorf("%w: %v", ErrConnectionLost, err))
		return fmt.Errorf("write %s: %w", t.Addr(), err)
	}
	return nil
}

func (t *TCP) ReadLine() (string, bool, error) {
	t.mu.Lock()
	open := t.conn != nil
	t.mu.Unlock()
	if !open {
		return "", false, ErrNotOpen
	}
	return t.lines.pop()
}

func (t *TCP) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}
