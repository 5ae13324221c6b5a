package simulator

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"

	"space_maquette/internal/logger"
)

// Server exposes a Simulator over TCP, one session per connection, one
// reply line per command line.
type Server struct {
	sim *Simulator
	log *logger.Logger

	mu    sync.Mutex
	ln    net.Listener
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

func NewServer(sim *Simulator, log *logger.Logger) *Server {
	return &Server{
		sim:   sim,
		log:   logger.OrNop(log),
		conns: make(map[net.Conn]struct{}),
	}
}

// ListenAndServe listens on addr and serves until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is canceled, then closes every
// open session and waits for them to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	s.log.Infow("simulator_listening", "addr", ln.Addr().String())

	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
		s.mu.Lock()
		for c := range s.conns {
			_ = c.Close()
		}
		s.mu.Unlock()
	})
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return nil
			}
			return err
		}
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()
		if ctx.Err() != nil {
			_ = conn.Close()
		}

		s.wg.Add(1)
		go s.session(conn)
	}
}

// Addr is the bound listener address, nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

func (s *Server) session(conn net.Conn) {
	peer := conn.RemoteAddr().String()
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorw("simulator_session_panic", "peer", peer, "panic", r)
		}
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
		s.wg.Done()
		s.log.Infow("simulator_session_closed", "peer", peer)
	}()
	s.log.Infow("simulator_session_opened", "peer", peer)

	sc := bufio.NewScanner(conn)
	w := bufio.NewWriter(conn)
	for sc.Scan() {
		reply := s.sim.ProcessCommand(sc.Text())
		s.log.Debugw("simulator_command", "peer", peer, "command", sc.Text(), "reply", reply)
		if _, err := w.WriteString(reply + "\n"); err != nil {
			return
		}
		if err := w.Flush(); err != nil {
			return
		}
	}
	if err := sc.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.log.Warnw("simulator_session_read_failed", "peer", peer, "error", err)
	}
}
