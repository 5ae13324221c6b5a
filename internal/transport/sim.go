package transport

import (
	"bytes"
	"context"
	"sync"
	"time"

	"space_maquette/internal/simulator"
)

// Sim connects the dispatcher to an in-process Simulator. Every complete
// line written is executed immediately and its reply queued for ReadLine.
type Sim struct {
	sim  *simulator.Simulator
	tick time.Duration

	mu      sync.Mutex
	open    bool
	partial []byte
	lines   lineBuffer
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSim binds sim. While open, the transport drives the simulator's motion
// loop at tick; a zero tick leaves ticking to the caller.
func NewSim(sim *simulator.Simulator, tick time.Duration) *Sim {
	return &Sim{sim: sim, tick: tick}
}

func (s *Sim) String() string { return "sim://" }

// Simulator returns the bound device.
func (s *Sim) Simulator() *simulator.Simulator { return s.sim }

func (s *Sim) Open(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		return nil
	}
	s.open = true
	s.partial = nil
	s.lines.reset()

	if s.tick > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		s.done = make(chan struct{})
		go func(done chan<- struct{}) {
			defer close(done)
			s.sim.Run(ctx, s.tick)
		}(s.done)
	}
	return nil
}

func (s *Sim) Close() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.open = false
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return nil
}

func (s *Sim) Write(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return ErrNotOpen
	}
	s.partial = append(s.partial, p...)
	for {
		i := bytes.IndexByte(s.partial, '\n')
		if i < 0 {
			return nil
		}
		line := string(s.partial[:i])
		s.partial = s.partial[i+1:]
		s.lines.push(s.sim.ProcessCommand(line))
	}
}

func (s *Sim) ReadLine() (string, bool, error) {
	s.mu.Lock()
	open := s.open
	s.mu.Unlock()
	if !open {
		return "", false, ErrNotOpen
	}
	return s.lines.pop()
}

func (s *Sim) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}
