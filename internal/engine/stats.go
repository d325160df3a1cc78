//go:build linux
// +build linux

// File: internal/engine/stats.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package engine

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

type completionCounter = prometheus.Counter

// Stats is a snapshot of engine occupancy published after every iteration.
type Stats struct {
	LiveConnections  int `json:"live_connections"`
	ArmedAccepts     int `json:"armed_accepts"`
	DeferredAccepts  int `json:"deferred_accepts"`
	BuffersAvailable int `json:"buffers_available"`
	BuffersLeased    int `json:"buffers_leased"`
	Backlog          int `json:"backlog"`
	SQSpace          int `json:"sq_space"`
}

// OutstandingAccepts counts accepts in the kernel plus those waiting to be
// re-armed.
func (s Stats) OutstandingAccepts() int {
	return s.ArmedAccepts + s.DeferredAccepts
}

type statsCell struct {
	live, armed, deferred, avail, leased, backlog, sqSpace atomic.Int64
}

func (e *Engine) publish() {
	live := e.table.Len()
	leased := e.buffers.Leased()
	backlog := e.backlog.Length()
	deferred := e.deferred.Len()

	e.stats.live.Store(int64(live))
	e.stats.armed.Store(int64(e.slots.InFlight()))
	e.stats.deferred.Store(int64(deferred))
	e.stats.avail.Store(int64(e.buffers.Available()))
	e.stats.leased.Store(int64(leased))
	e.stats.backlog.Store(int64(backlog))
	e.stats.sqSpace.Store(int64(e.ring.SQSpace()))

	e.metrics.LiveConnections.Set(float64(live))
	e.metrics.LeasedBuffers.Set(float64(leased))
	e.metrics.BacklogDepth.Set(float64(backlog))
	e.metrics.DeferredAccepts.Set(float64(deferred))
}

// Stats returns the latest published snapshot. Safe from any goroutine.
func (e *Engine) Stats() Stats {
	return Stats{
		LiveConnections:  int(e.stats.live.Load()),
		ArmedAccepts:     int(e.stats.armed.Load()),
		DeferredAccepts:  int(e.stats.deferred.Load()),
		BuffersAvailable: int(e.stats.avail.Load()),
		BuffersLeased:    int(e.stats.leased.Load()),
		Backlog:          int(e.stats.backlog.Load()),
		SQSpace:          int(e.stats.sqSpace.Load()),
	}
}
