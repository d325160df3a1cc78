//go:build linux
// +build linux

// File: internal/readiness/server.go
// Package readiness serves the fixed response from a single-threaded epoll loop.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The listening socket and every connection are non-blocking and registered
// for read readiness. A readable listener is drained with accept until
// EAGAIN; a readable connection gets exactly one read into a shared buffer
// and, for a non-empty read, one write of the response.

package readiness

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-bench/affinity"
	"github.com/momentics/hioload-bench/api"
	"github.com/momentics/hioload-bench/control"
	"github.com/momentics/hioload-bench/protocol"
	"github.com/momentics/hioload-bench/reactor"
	"github.com/momentics/hioload-bench/transport/tcp"
)

const readBufferSize = 1024

// Config configures the readiness server.
type Config struct {
	Addr          string
	ListenBacklog int
	// CPU pins the loop thread and sets SO_INCOMING_CPU; -1 disables.
	CPU int
}

// Option customizes server initialization.
type Option func(*Server)

// WithLogger sets the component logger.
func WithLogger(l *logrus.Entry) Option {
	return func(s *Server) { s.log = l }
}

// WithMetrics sets the instruments updated by the loop.
func WithMetrics(m *control.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// Server is the epoll variant.
type Server struct {
	cfg      Config
	log      *logrus.Entry
	metrics  *control.Metrics
	reactor  reactor.Reactor
	listener *tcp.Listener
	conns    map[int]struct{}
	buf      [readBufferSize]byte
}

// New binds the listener and registers it with a fresh reactor.
func New(cfg Config, opts ...Option) (*Server, error) {
	s := &Server{cfg: cfg, conns: make(map[int]struct{})}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logrus.WithField("component", "epoll")
	}
	if s.metrics == nil {
		s.metrics = control.NewMetrics(nil, "epoll")
	}

	ln, err := tcp.Listen(tcp.ListenConfig{Addr: cfg.Addr, Backlog: cfg.ListenBacklog, NonBlocking: true})
	if err != nil {
		return nil, fmt.Errorf("readiness setup: %w", err)
	}
	re, err := reactor.New()
	if err != nil {
		_ = ln.Close()
		return nil, fmt.Errorf("readiness setup: %w", err)
	}
	if err := re.Register(ln.FD, reactor.EventRead, s.onListenerReady); err != nil {
		_ = re.Close()
		_ = ln.Close()
		return nil, fmt.Errorf("readiness setup: %w", err)
	}
	s.listener, s.reactor = ln, re
	return s, nil
}

// Addr returns the bound listening address.
func (s *Server) Addr() string {
	return s.listener.Addr.String()
}

// Serve runs the loop on a locked, optionally pinned thread until a fatal
// error or until ctx is done. A context that can never be cancelled blocks
// in epoll without a timeout.
func (s *Server) Serve(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if s.cfg.CPU >= 0 {
		if err := affinity.SetAffinity(s.cfg.CPU); err != nil {
			s.log.WithError(err).WithField("cpu", s.cfg.CPU).Warn("cpu pinning failed")
		}
	}
	s.log.WithField("addr", s.Addr()).Info("epoll server started")

	timeout := -1
	if ctx.Done() != nil {
		timeout = 50
	}
	for ctx.Err() == nil {
		if err := s.reactor.Poll(timeout); err != nil {
			return err
		}
		s.metrics.LiveConnections.Set(float64(len(s.conns)))
	}
	return nil
}

func (s *Server) onListenerReady(fd int, _ reactor.FDEventType) error {
	for {
		nfd, _, err := unix.Accept4(fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			if !errors.Is(err, unix.EAGAIN) {
				s.metrics.AcceptErrors.Inc()
				s.log.WithError(err).Debug("accept failed")
			}
			return nil
		}
		if err := tcp.Tune(nfd, s.cfg.CPU); err != nil {
			s.log.WithError(err).WithField("fd", nfd).Debug("socket tuning failed")
		}
		if err := s.reactor.Register(nfd, reactor.EventRead, s.onConnReady); err != nil {
			s.log.WithError(err).WithField("fd", nfd).Warn("register connection")
			_ = unix.Close(nfd)
			continue
		}
		s.conns[nfd] = struct{}{}
		s.metrics.Accepts.Inc()
	}
}

func (s *Server) onConnReady(fd int, _ reactor.FDEventType) error {
	n, err := unix.Read(fd, s.buf[:])
	switch {
	case errors.Is(err, unix.EAGAIN):
		return nil
	case err != nil:
		s.log.WithError(err).WithField("fd", fd).Debug("read failed, closing")
		s.closeConn(fd)
		return nil
	case !protocol.ShouldRespond(n):
		s.closeConn(fd)
		return nil
	}
	s.metrics.Requests.Inc()
	s.metrics.BytesReceived.Add(float64(n))

	w, err := unix.Write(fd, protocol.Response)
	if err != nil {
		s.log.WithError(err).WithField("fd", fd).Debug("write failed, closing")
		s.closeConn(fd)
		return nil
	}
	if w != protocol.Len() {
		return api.Internal("short write of fixed response", api.ErrPartialWrite).
			WithContext("fd", fd).WithContext("written", w)
	}
	s.metrics.Responses.Inc()
	return nil
}

func (s *Server) closeConn(fd int) {
	if err := s.reactor.Unregister(fd); err != nil {
		s.log.WithError(err).Debug("unregister connection")
	}
	_ = unix.Close(fd)
	delete(s.conns, fd)
}

// Live returns the number of open connections. Only call from the loop
// goroutine or after Serve returned.
func (s *Server) Live() int {
	return len(s.conns)
}

// RegisterProbes publishes server state on dp.
func (s *Server) RegisterProbes(dp *control.DebugProbes) {
	dp.RegisterProbe("epoll.config", func() any { return s.cfg })
}

// Close closes every connection, the listener and the reactor.
func (s *Server) Close() error {
	for fd := range s.conns {
		s.closeConn(fd)
	}
	_ = s.reactor.Close()
	return s.listener.Close()
}
