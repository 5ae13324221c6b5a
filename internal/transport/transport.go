// Package transport provides the byte streams the dispatcher talks over.
// Serial, TCP and the in-process simulator all satisfy Transport.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

var (
	// ErrNotOpen is returned by writes on a transport that was never opened or was closed.
	ErrNotOpen = errors.New("transport: not open")
	// ErrConnectionLost is the standing error after the peer closed the stream.
	ErrConnectionLost = errors.New("transport: connection lost")
)

// Transport is a bidirectional line stream to the controller.
//
// ReadLine never blocks: it returns ok=false when no complete line has
// arrived yet. Once the stream has failed, ReadLine and Write keep returning
// the same error until the transport is reopened.
type Transport interface {
	Open(ctx context.Context) error
	Close() error
	Write(p []byte) error
	ReadLine() (line string, ok bool, err error)
	IsOpen() bool
}

// lineBuffer collects complete lines received by a reader goroutine.
type lineBuffer struct {
	mu    sync.Mutex
	lines []string
	err   error
}

func (b *lineBuffer) push(line string) {
	b.mu.Lock()
	b.lines = append(b.lines, line)
	b.mu.Unlock()
}

// fail records the first error; later errors are ignored.
func (b *lineBuffer) fail(err error) {
	b.mu.Lock()
	if b.err == nil {
		b.err = err
	}
	b.mu.Unlock()
}

func (b *lineBuffer) failed() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// pop returns queued lines before reporting a standing error, so replies
// received just before a disconnect are still delivered.
func (b *lineBuffer) pop() (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.lines) > 0 {
		line := b.lines[0]
		b.lines[0] = ""
		b.lines = b.lines[1:]
		return line, true, nil
	}
	return "", false, b.err
}

func (b *lineBuffer) reset() {
	b.mu.Lock()
	b.lines = nil
	b.err = nil
	b.mu.Unlock()
}

// pump splits src into lines until src fails or closing is closed.
// End of stream becomes ErrConnectionLost.
func pump(src io.Reader, buf *lineBuffer, closing <-chan struct{}) {
	chunk := make([]byte, 512)
	var partial []byte
	for {
		n, err := src.Read(chunk)
		if n > 0 {
			partial = append(partial, chunk[:n]...)
			for {
				i := bytes.IndexByte(partial, '\n')
				if i < 0 {
					break
				}
				buf.push(string(partial[:i]))
				partial = partial[i+1:]
			}
		}
		select {
		case <-closing:
			return
		default:
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				buf.fail(ErrConnectionLost)
			} else {
				buf.fail(fmt.Errorf("%w: %v", ErrConnectionLost, err))
			}
			return
		}
	}
}

var (
	_ Transport = (*Serial)(nil)
	_ Transport = (*TCP)(nil)
	_ Transport = (*Sim)(nil)
)
