//go:build linux
// +build linux

// File: internal/engine/submit.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Submission with backpressure. A descriptor that finds the submission queue
// full after one flush waits in a FIFO backlog; the backlog drains ahead of
// new work, so per-connection submission order is preserved and a socket is
// never closed while one of its descriptors is still queued in user space.

package engine

import (
	"errors"
	"fmt"

	"github.com/momentics/hioload-bench/api"
	"github.com/momentics/hioload-bench/internal/conn"
	"github.com/momentics/hioload-bench/internal/tag"
	"github.com/momentics/hioload-bench/internal/uring"
	"github.com/momentics/hioload-bench/pool"
	"github.com/momentics/hioload-bench/protocol"
)

func (e *Engine) submit(sqe uring.SQE) error {
	if e.backlog.Length() == 0 {
		err := e.ring.Push(&sqe)
		if err == nil {
			return nil
		}
		if !errors.Is(err, api.ErrSubmissionQueueFull) {
			return fmt.Errorf("push: %w", err)
		}
		if _, err := e.ring.Submit(); err != nil {
			return fmt.Errorf("flush: %w", err)
		}
		err = e.ring.Push(&sqe)
		if err == nil {
			return nil
		}
		if !errors.Is(err, api.ErrSubmissionQueueFull) {
			return fmt.Errorf("push: %w", err)
		}
	}
	e.backlog.Add(sqe)
	return nil
}

func (e *Engine) drainBacklog() error {
	flushed := false
	for e.backlog.Length() > 0 {
		sqe := e.backlog.Peek().(uring.SQE)
		err := e.ring.Push(&sqe)
		if err == nil {
			e.backlog.Remove()
			continue
		}
		if !errors.Is(err, api.ErrSubmissionQueueFull) {
			return fmt.Errorf("push backlog: %w", err)
		}
		if flushed {
			break
		}
		if _, err := e.ring.Submit(); err != nil {
			return fmt.Errorf("flush backlog: %w", err)
		}
		flushed = true
	}
	return nil
}

// armAccept lends slot h to the kernel. It refuses with api.ErrBusy while the
// backlog is at its limit; receives, sends and buffer returns are never
// refused since they are bounded by live connections and the buffer count.
func (e *Engine) armAccept(h uint32) error {
	if e.backlog.Length() >= e.cfg.BacklogLimit {
		return api.ErrBusy
	}
	slot, err := e.slots.Arm(h)
	if err != nil {
		return api.Internal("accept slot not held", err).WithContext("slot", h)
	}
	return e.submit(uring.PrepAccept(e.listenFD, &slot.Addr, &slot.AddrLen, tag.Encode(tag.Accept, h)))
}

// rearmAccept arms h or parks it for the next iteration, so the number of
// outstanding accepts (armed plus deferred) never changes.
func (e *Engine) rearmAccept(h uint32) error {
	err := e.armAccept(h)
	if !errors.Is(err, api.ErrBusy) {
		return err
	}
	e.metrics.BusyRejections.Inc()
	if !e.deferred.Enqueue(h) {
		return api.Internal("deferred accept ring full", err).WithContext("slot", h)
	}
	return nil
}

func (e *Engine) drainDeferred() error {
	for n := e.deferred.Len(); n > 0; n-- {
		if e.backlog.Length() >= e.cfg.BacklogLimit {
			return nil
		}
		h, ok := e.deferred.Dequeue()
		if !ok {
			return nil
		}
		if err := e.rearmAccept(h); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) submitRecv(c *conn.Connection) error {
	if c.RecvOutstanding {
		return api.Internal("second receive on connection", nil).WithContext("token", c.Token)
	}
	c.RecvOutstanding = true
	return e.submit(uring.PrepRecvSelect(c.FD, uint32(e.cfg.BufferSize), e.cfg.BufferGroup, tag.Encode(tag.Receive, uint32(c.Token))))
}

func (e *Engine) submitSend(c *conn.Connection) error {
	return e.submit(uring.PrepSend(c.FD, protocol.Response, tag.Encode(tag.Send, uint32(c.Token))))
}

func (e *Engine) returnBuffer(l *pool.Lease) error {
	sqe, err := e.buffers.Return(l, tag.Encode(tag.ReturnBuffer, uint32(l.ID())))
	if err != nil {
		return err
	}
	return e.submit(sqe)
}
