package service

import (
	"context"
	"time"
)

// StartStatusUpdates starts the background STATUS poll. It is a no-op when
// polling is already running.
func (s *RigService) StartStatusUpdates() {
	s.pollMu.Lock()
	defer s.pollMu.Unlock()
	if s.pollCancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.pollCancel = cancel
	s.pollDone = done

	go func() {
		defer close(done)
		s.Run(ctx, s.pollInterval)
	}()
	s.log.Debugw("status_updates_started", "interval", s.pollInterval)
}

// StopStatusUpdates stops the poll and waits for it to exit.
func (s *RigService) StopStatusUpdates() {
	s.pollMu.Lock()
	cancel, done := s.pollCancel, s.pollDone
	s.pollCancel, s.pollDone = nil, nil
	s.pollMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.log.Debugw("status_updates_stopped")
}

// Polling reports whether the background poll is running.
func (s *RigService) Polling() bool {
	s.pollMu.Lock()
	defer s.pollMu.Unlock()
	return s.pollCancel != nil
}

// Run polls STATUS every interval until ctx is canceled. Failed polls keep
// the last good status.
func (s *RigService) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPollRate
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.pollOnce(ctx)
		}
	}
}

func (s *RigService) pollOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorw("status_poll_panic", "panic", r)
		}
	}()
	if !s.Connected() {
		return
	}
	s.RefreshStatus(ctx)
}
