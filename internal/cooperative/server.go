// File: internal/cooperative/server.go
// Package cooperative serves the fixed response with one goroutine per connection.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// This is the runtime-scheduled baseline: the Go netpoller does the
// multiplexing. With a CPU configured the process is narrowed to a single
// P pinned to that CPU, so every connection is served on one core.

package cooperative

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/momentics/hioload-bench/affinity"
	"github.com/momentics/hioload-bench/control"
	"github.com/momentics/hioload-bench/protocol"
	"github.com/momentics/hioload-bench/transport/tcp"
)

const readBufferSize = 4096

// Config configures the cooperative server.
type Config struct {
	Addr string
	// CPU pins the process to one CPU with GOMAXPROCS(1) and sets the
	// SO_INCOMING_CPU hint; -1 disables.
	CPU int
}

// Option customizes server initialization.
type Option func(*Server)

// WithLogger sets the component logger.
func WithLogger(l *logrus.Entry) Option {
	return func(s *Server) { s.log = l }
}

// WithMetrics sets the instruments updated by connection goroutines.
func WithMetrics(m *control.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// Server is the goroutine-per-connection variant.
type Server struct {
	cfg     Config
	log     *logrus.Entry
	metrics *control.Metrics
	ln      net.Listener

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

// New binds the listener.
func New(cfg Config, opts ...Option) (*Server, error) {
	s := &Server{cfg: cfg, conns: make(map[net.Conn]struct{})}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logrus.WithField("component", "goroutine")
	}
	if s.metrics == nil {
		s.metrics = control.NewMetrics(nil, "goroutine")
	}
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("cooperative setup: %w", err)
	}
	s.ln = ln
	return s, nil
}

// Addr returns the bound listening address.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Pin narrows the process to cfg.CPU. The CLI calls it before Serve; it is
// process-wide and therefore not done by Serve itself.
func (s *Server) Pin() {
	if s.cfg.CPU < 0 {
		return
	}
	runtime.GOMAXPROCS(1)
	runtime.LockOSThread()
	if err := affinity.SetAffinity(s.cfg.CPU); err != nil {
		s.log.WithError(err).WithField("cpu", s.cfg.CPU).Warn("cpu pinning failed")
	}
}

// Serve accepts until ctx is done or the listener fails, then closes every
// connection and waits for their goroutines.
func (s *Server) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = s.ln.Close() })
	defer stop()
	s.log.WithField("addr", s.Addr()).Info("goroutine server started")

	var err error
	for {
		var c net.Conn
		c, err = s.ln.Accept()
		if err != nil {
			break
		}
		s.metrics.Accepts.Inc()
		if tc, ok := c.(*net.TCPConn); ok {
			if terr := tcp.TuneConn(tc, s.cfg.CPU); terr != nil {
				s.log.WithError(terr).Debug("socket tuning failed")
			}
		}
		s.track(c, true)
		s.wg.Add(1)
		go s.handle(c)
	}

	s.mu.Lock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()

	if ctx.Err() != nil && errors.Is(err, net.ErrClosed) {
		return nil
	}
	return fmt.Errorf("accept: %w", err)
}

func (s *Server) track(c net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[c] = struct{}{}
	} else {
		delete(s.conns, c)
	}
	s.metrics.LiveConnections.Set(float64(len(s.conns)))
}

func (s *Server) handle(c net.Conn) {
	defer s.wg.Done()
	defer s.track(c, false)
	defer c.Close()

	buf := make([]byte, readBufferSize)
	for {
		n, err := c.Read(buf)
		if protocol.ShouldRespond(n) {
			s.metrics.Requests.Inc()
			s.metrics.BytesReceived.Add(float64(n))
			if _, werr := c.Write(protocol.Response); werr != nil {
				s.log.WithError(werr).Debug("write failed, closing")
				return
			}
			s.metrics.Responses.Inc()
		}
		if err != nil || n == 0 {
			return
		}
	}
}

// RegisterProbes publishes server state on dp.
func (s *Server) RegisterProbes(dp *control.DebugProbes) {
	dp.RegisterProbe("goroutine.live", func() any {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.conns)
	})
	dp.RegisterProbe("goroutine.config", func() any { return s.cfg })
}
