//go:build linux
// +build linux

// File: internal/engine/engine.go
// Package engine drives the io_uring completion-queue server.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// One goroutine, locked to its OS thread, owns the ring, the provided buffer
// group, the accept slots and the connection table. Each loop iteration
// drains the submission backlog, re-arms deferred accepts, enters the kernel
// waiting for at least one completion and dispatches everything reaped.
// No state is shared with other goroutines except the published Stats.

package engine

import (
	"errors"
	"fmt"
	"math"
	"runtime"

	"github.com/eapache/queue"
	"github.com/sirupsen/logrus"

	"github.com/momentics/hioload-bench/affinity"
	"github.com/momentics/hioload-bench/api"
	"github.com/momentics/hioload-bench/control"
	"github.com/momentics/hioload-bench/internal/concurrency"
	"github.com/momentics/hioload-bench/internal/conn"
	"github.com/momentics/hioload-bench/internal/tag"
	"github.com/momentics/hioload-bench/internal/uring"
	"github.com/momentics/hioload-bench/pool"
	"github.com/momentics/hioload-bench/transport/tcp"
)

// registrationID tags the initial provide of the whole buffer group. Buffer
// ids are 16 bits wide, so it never collides with a single re-provide.
const registrationID = math.MaxUint32

// Ring is the submission/completion interface the engine drives.
type Ring interface {
	Push(sqe *uring.SQE) error
	Submit() (int, error)
	SubmitAndWait(minComplete uint32) (int, error)
	Completions(dst []uring.CQE) []uring.CQE
	SQSpace() int
	Close() error
}

// SocketOps configures and closes accepted sockets.
type SocketOps interface {
	Configure(fd int) error
	Close(fd int) error
}

// Engine is the completion-queue server.
type Engine struct {
	cfg Config
	log *logrus.Entry

	ring      Ring
	listener  *tcp.Listener
	listenFD  int
	sockets   SocketOps
	buffers   *pool.ProvidedBuffers
	slots     *pool.AcceptSlots
	table     *conn.Table
	backlog   *queue.Queue
	deferred  *concurrency.RingBuffer[uint32]
	metrics   *control.Metrics
	completed [tag.ReturnBuffer + 1]completionCounter

	cqes    []uring.CQE
	started bool
	closed  bool
	stats   statsCell
}

// New validates cfg and acquires every resource the engine needs: the
// listening socket, the ring and the buffer mapping. Failures are setup
// errors; nothing is left open.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{cfg: cfg, listenFD: -1}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logrus.WithField("component", "uring")
	}
	if e.metrics == nil {
		e.metrics = control.NewMetrics(nil, "uring")
	}
	if e.sockets == nil {
		e.sockets = tcp.Sockets{CPU: cfg.CPU, Log: e.log}
	}
	for k := range e.completed {
		if kind := tag.Kind(k); kind.Valid() {
			e.completed[k] = e.metrics.Completions.WithLabelValues(kind.String())
		}
	}

	if e.listenFD < 0 {
		ln, err := tcp.Listen(tcp.ListenConfig{Addr: cfg.Addr, Backlog: cfg.ListenBacklog})
		if err != nil {
			return nil, fmt.Errorf("engine setup: %w", err)
		}
		e.listener = ln
		e.listenFD = ln.FD
	}
	if e.ring == nil {
		r, err := uring.New(cfg.RingEntries)
		if err != nil {
			e.release()
			return nil, fmt.Errorf("engine setup: %w", err)
		}
		e.ring = r
	}
	bufs, err := pool.NewProvidedBuffers(cfg.Buffers, cfg.BufferSize, cfg.BufferGroup)
	if err != nil {
		e.release()
		return nil, fmt.Errorf("engine setup: %w", err)
	}
	e.buffers = bufs

	e.slots = pool.NewAcceptSlots(cfg.Accepts)
	e.table = conn.NewTable(cfg.MaxConns, e.sockets)
	e.backlog = queue.New()
	e.deferred = concurrency.NewRingBuffer[uint32](uint64(cfg.Accepts))
	e.cqes = make([]uring.CQE, 0, 2*cfg.RingEntries)
	return e, nil
}

// Addr returns the bound listening address, or "" for an injected socket.
func (e *Engine) Addr() string {
	if e.listener == nil || e.listener.Addr == nil {
		return ""
	}
	return e.listener.Addr.String()
}

// Start registers the buffer group, waits for the kernel to accept it and
// arms the standing accepts.
func (e *Engine) Start() error {
	if e.started {
		return nil
	}
	if err := e.registerBuffers(); err != nil {
		return err
	}
	for i := 0; i < e.cfg.Accepts; i++ {
		h, ok := e.slots.Acquire()
		if !ok {
			return api.Internal("accept slab exhausted at startup", api.ErrInvalidArgument).WithContext("armed", i)
		}
		if err := e.rearmAccept(h); err != nil {
			return fmt.Errorf("arm accept %d: %w", i, err)
		}
	}
	if _, err := e.ring.Submit(); err != nil {
		return fmt.Errorf("submit initial accepts: %w", err)
	}
	e.started = true
	e.publish()
	e.log.WithFields(logrus.Fields{
		"addr":    e.Addr(),
		"accepts": e.cfg.Accepts,
		"buffers": e.cfg.Buffers,
		"size":    e.cfg.BufferSize,
	}).Info("io_uring engine started")
	return nil
}

func (e *Engine) registerBuffers() error {
	sqe := e.buffers.Register(tag.Encode(tag.ReturnBuffer, registrationID))
	if err := e.ring.Push(&sqe); err != nil {
		return fmt.Errorf("register buffers: %w", err)
	}
	for {
		if _, err := e.ring.SubmitAndWait(1); err != nil {
			return fmt.Errorf("register buffers: %w", err)
		}
		e.cqes = e.ring.Completions(e.cqes[:0])
		for _, c := range e.cqes {
			if c.UserData != tag.Encode(tag.ReturnBuffer, registrationID) {
				return api.Internal("unexpected completion during buffer registration", nil).
					WithContext("tag", c.UserData)
			}
			if c.Res < 0 {
				return api.NewError(api.ErrCodeSetup, "kernel rejected provided buffers").
					WithContext("errno", -c.Res).WithContext("group", e.cfg.BufferGroup)
			}
			return nil
		}
	}
}

// Run serves until an internal-consistency violation or a ring failure. It
// locks the calling goroutine to its OS thread and pins it when a CPU is
// configured.
func (e *Engine) Run() error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if e.cfg.CPU >= 0 {
		if err := affinity.SetAffinity(e.cfg.CPU); err != nil {
			e.log.WithError(err).WithField("cpu", e.cfg.CPU).Warn("cpu pinning failed")
		}
	}
	if err := e.Start(); err != nil {
		return err
	}
	for {
		if err := e.RunOnce(); err != nil {
			return err
		}
	}
}

// RunOnce performs one loop iteration.
func (e *Engine) RunOnce() error {
	if err := e.drainBacklog(); err != nil {
		return err
	}
	if err := e.drainDeferred(); err != nil {
		return err
	}
	if _, err := e.ring.SubmitAndWait(1); err != nil {
		return fmt.Errorf("submit and wait: %w", err)
	}
	e.cqes = e.ring.Completions(e.cqes[:0])
	for _, c := range e.cqes {
		if err := e.dispatch(c); err != nil {
			var ae *api.Error
			if errors.As(err, &ae) {
				kind, id := tag.Decode(c.UserData)
				ae.WithContext("kind", kind.String()).WithContext("id", id).WithContext("result", c.Res)
			}
			return err
		}
	}
	e.publish()
	return nil
}

// Close releases the ring, live sockets, the listener and the buffer
// mapping, in that order. Idempotent.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	return e.release()
}

func (e *Engine) release() error {
	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	if e.ring != nil {
		keep(e.ring.Close())
	}
	if e.table != nil {
		keep(e.table.CloseAll())
	}
	if e.listener != nil {
		keep(e.listener.Close())
	}
	// The mapping may only go once the kernel can no longer write into it.
	if e.buffers != nil {
		keep(e.buffers.Close())
	}
	return first
}

// RegisterProbes publishes engine state on dp.
func (e *Engine) RegisterProbes(dp *control.DebugProbes) {
	dp.RegisterProbe("uring.stats", func() any { return e.Stats() })
	dp.RegisterProbe("uring.config", func() any { return e.cfg })
}
