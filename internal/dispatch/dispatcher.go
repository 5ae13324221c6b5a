// Package dispatch serializes commands onto a transport and matches the
// replies that come back.
//
// The controller answers every command line with one OK or ERROR line, in
// order. It may also emit notices (INFO:..., debug text) and blank lines;
// those resolve nothing. Written commands wait in an in-flight FIFO and each
// reply resolves the oldest entry. A caller that gives up waiting leaves its
// entry in place, marked abandoned, so a late reply is consumed by the right
// command instead of the next one.
//
// A reply can also be lost. An entry is therefore dropped once twice its
// timeout has passed since it was written. When an abandoned entry
// consumes a line, the entry behind it may have lost its reply to it; if that
// entry then times out too it leaves the FIFO at once, which puts the stream
// back in step.
package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"space_maquette/internal/logger"
	"space_maquette/internal/protocol"
	"space_maquette/internal/transport"
)

const (
	idleDelay    = time.Millisecond
	errorBackoff = 100 * time.Millisecond
	stopWait     = 2 * time.Second
)

// ErrNotRunning is reported for synchronous sends on a stopped dispatcher.
var ErrNotRunning = errors.New("dispatch: not running")

// Callback receives the reply to one command. It runs on the dispatcher's
// loop goroutine and must not block.
type Callback func(protocol.Response)

type entry struct {
	seq     uint64
	cmd     protocol.Command
	cb      Callback
	timeout time.Duration
	written time.Time
	// deadline is twice the timeout after the write; past it the reply is
	// considered lost.
	deadline time.Time

	abandoned bool
	// stolen: an abandoned entry ahead consumed a line after this one was written.
	stolen bool
}

// Dispatcher owns the I/O loop for one transport session.
type Dispatcher struct {
	tr       transport.Transport
	checksum bool
	log      *logger.Logger

	mu       sync.Mutex
	seq      uint64
	pending  []*entry
	inflight []*entry
	running  bool
	cancel   context.CancelFunc
	done     chan struct{}
	lastErr  string
}

type Option func(*Dispatcher)

// WithChecksum appends a CRC to every outgoing command.
func WithChecksum(on bool) Option {
	return func(d *Dispatcher) { d.checksum = on }
}

func WithLogger(l *logger.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

func New(tr transport.Transport, opts ...Option) *Dispatcher {
	d := &Dispatcher{tr: tr}
	for _, opt := range opts {
		opt(d)
	}
	d.log = logger.OrNop(d.log)
	return d
}

// Start opens the transport if needed and launches the I/O loop. Replies
// owed from a previous session are forgotten.
func (d *Dispatcher) Start(ctx context.Context) error {
	if d.Running() {
		return nil
	}
	// Opening may dial; callers of Running and Send must not wait on it.
	if !d.tr.IsOpen() {
		if err := d.tr.Open(ctx); err != nil {
			return err
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return nil
	}
	d.inflight = nil
	d.lastErr = ""
	loopCtx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.done = make(chan struct{})
	d.running = true
	go d.loop(loopCtx, d.done)

	d.log.Infow("dispatcher_started", "checksum", d.checksum)
	return nil
}

// Stop halts the loop, waiting a bounded time for it to exit, and closes
// the transport.
func (d *Dispatcher) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	cancel, done := d.cancel, d.done
	d.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(stopWait):
		d.log.Warnw("dispatcher_stop_timeout")
	}

	err := d.tr.Close()
	d.log.Infow("dispatcher_stopped")
	return err
}

// Running reports whether the I/O loop is active.
func (d *Dispatcher) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Send queues cmd for writing and returns its sequence number. cb, when
// non-nil, fires once with the matching reply. Transport failures and lost
// replies never fire it.
func (d *Dispatcher) Send(cmd protocol.Command, cb Callback) uint64 {
	return d.enqueue(cmd, cb, cmd.Timeout)
}

func (d *Dispatcher) enqueue(cmd protocol.Command, cb Callback, timeout time.Duration) uint64 {
	if d.checksum {
		cmd = cmd.WithChecksum(true)
	}
	if timeout <= 0 {
		timeout = protocol.DefaultTimeout
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	d.pending = append(d.pending, &entry{seq: d.seq, cmd: cmd, cb: cb, timeout: timeout})
	return d.seq
}

// SendSync sends cmd and waits for its reply. A timeout of zero uses the
// command's own timeout. No reply in time yields a TIMEOUT response; the
// command itself is not withdrawn.
func (d *Dispatcher) SendSync(ctx context.Context, cmd protocol.Command, timeout time.Duration) protocol.Response {
	if !d.Running() {
		return protocol.ErrorResponse(cmd, ErrNotRunning)
	}
	if timeout <= 0 {
		timeout = cmd.Timeout
	}
	if timeout <= 0 {
		timeout = protocol.DefaultTimeout
	}

	ch := make(chan protocol.Response, 1)
	seq := d.enqueue(cmd, func(r protocol.Response) { ch <- r }, timeout)

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case r := <-ch:
		return r
	case <-timer.C:
		d.abandon(seq)
		d.log.Warnw("dispatch_timeout", "command", cmd.Name, "seq", seq, "timeout", timeout)
		return protocol.TimeoutResponse(cmd)
	case <-ctx.Done():
		d.abandon(seq)
		return protocol.ErrorResponse(cmd, ctx.Err())
	}
}

// Pending is the number of commands queued but not yet written.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// InFlight is the number of written commands still owed a reply.
func (d *Dispatcher) InFlight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.inflight)
}

// abandon gives up on seq. A command not yet written is withdrawn. A written
// one keeps its place until its reply arrives or its deadline passes, unless
// its reply was already taken by an abandoned entry ahead of it.
func (d *Dispatcher) abandon(seq uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, e := range d.pending {
		if e.seq == seq {
			d.pending = append(d.pending[:i], d.pending[i+1:]...)
			return
		}
	}
	for i, e := range d.inflight {
		if e.seq != seq {
			continue
		}
		if e.stolen {
			d.inflight = append(d.inflight[:i], d.inflight[i+1:]...)
			d.log.Debugw("dispatch_resync", "command", e.cmd.Name, "seq", e.seq)
			return
		}
		e.abandoned = true
		return
	}
}

// expireLocked drops entries whose deadline has passed. Their callbacks
// never fire.
func (d *Dispatcher) expireLocked(now time.Time) {
	kept := d.inflight[:0]
	for _, e := range d.inflight {
		if now.After(e.deadline) {
			d.log.Debugw("dispatch_reply_lost", "command", e.cmd.Name, "seq", e.seq)
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(d.inflight); i++ {
		d.inflight[i] = nil
	}
	d.inflight = kept
}

func (d *Dispatcher) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	for {
		if ctx.Err() != nil {
			return
		}

		wrote, err := d.writeNext()
		if err != nil {
			d.transportError("write", err)
			sleep(ctx, errorBackoff)
			continue
		}

		d.mu.Lock()
		d.expireLocked(time.Now())
		d.mu.Unlock()

		line, ok, err := d.tr.ReadLine()
		if err != nil {
			d.transportError("read", err)
			sleep(ctx, errorBackoff)
			continue
		}
		if ok {
			d.deliver(line)
		}

		if !wrote && !ok {
			sleep(ctx, idleDelay)
		}
	}
}

// writeNext writes at most one queued command. A command whose write fails
// is dropped; its waiter, if any, times out.
func (d *Dispatcher) writeNext() (bool, error) {
	d.mu.Lock()
	if len(d.pending) == 0 {
		d.mu.Unlock()
		return false, nil
	}
	e := d.pending[0]
	d.pending[0] = nil
	d.pending = d.pending[1:]
	d.mu.Unlock()

	if err := d.tr.Write(protocol.Format(e.cmd)); err != nil {
		d.log.Debugw("dispatch_dropped", "command", e.cmd.Text(), "seq", e.seq)
		return false, err
	}

	d.mu.Lock()
	e.written = time.Now()
	e.deadline = e.written.Add(2 * e.timeout)
	d.inflight = append(d.inflight, e)
	d.lastErr = ""
	d.mu.Unlock()
	d.log.Debugw("dispatch_sent", "command", e.cmd.Text(), "seq", e.seq)
	return true, nil
}

func (d *Dispatcher) deliver(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	if !protocol.IsReply(line) {
		d.log.Infow("dispatch_device_notice", "line", line)
		return
	}
	resp := protocol.Parse(line)

	d.mu.Lock()
	d.lastErr = ""
	d.expireLocked(time.Now())
	if len(d.inflight) == 0 {
		d.mu.Unlock()
		d.log.Warnw("dispatch_unsolicited_line", "line", line)
		return
	}
	e := d.inflight[0]
	d.inflight[0] = nil
	d.inflight = d.inflight[1:]
	abandoned := e.abandoned
	if abandoned && len(d.inflight) > 0 {
		d.inflight[0].stolen = true
	}
	d.mu.Unlock()

	d.log.Debugw("dispatch_received", "command", e.cmd.Name, "seq", e.seq, "status", resp.Status, "message", resp.Message)
	if abandoned {
		d.log.Debugw("dispatch_late_reply_dropped", "command", e.cmd.Name, "seq", e.seq)
		return
	}
	if e.cb != nil {
		d.invoke(e, resp)
	}
}

func (d *Dispatcher) invoke(e *entry, resp protocol.Response) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Errorw("dispatch_callback_panic", "command", e.cmd.Name, "seq", e.seq, "panic", r)
		}
	}()
	e.cb(resp)
}

// transportError logs each distinct error once until I/O succeeds again.
func (d *Dispatcher) transportError(op string, err error) {
	msg := op + ": " + err.Error()
	d.mu.Lock()
	repeat := msg == d.lastErr
	d.lastErr = msg
	d.mu.Unlock()
	if !repeat {
		d.log.Errorw("dispatch_transport_error", "op", op, "error", err)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
