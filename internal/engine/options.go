//go:build linux
// +build linux

// File: internal/engine/options.go
// Package engine defines functional options for the completion engine.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package engine

import (
	"github.com/sirupsen/logrus"

	"github.com/momentics/hioload-bench/control"
)

// Option customizes engine initialization.
type Option func(*Engine)

// WithRing replaces the kernel ring, typically with a simulated one. The
// engine takes ownership and closes it.
func WithRing(r Ring) Option {
	return func(e *Engine) {
		e.ring = r
	}
}

// WithListenFD serves an already listening socket. The engine does not
// close descriptors it did not open.
func WithListenFD(fd int) Option {
	return func(e *Engine) {
		e.listenFD = fd
	}
}

// WithSockets replaces accepted-socket configuration and closing.
func WithSockets(s SocketOps) Option {
	return func(e *Engine) {
		e.sockets = s
	}
}

// WithLogger sets the component logger.
func WithLogger(l *logrus.Entry) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// WithMetrics sets the instruments updated by the event loop.
func WithMetrics(m *control.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}
