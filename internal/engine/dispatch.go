//go:build linux
// +build linux

// File: internal/engine/dispatch.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package engine

import (
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-bench/api"
	"github.com/momentics/hioload-bench/internal/conn"
	"github.com/momentics/hioload-bench/internal/tag"
	"github.com/momentics/hioload-bench/internal/uring"
	"github.com/momentics/hioload-bench/protocol"
)

func (e *Engine) dispatch(c uring.CQE) error {
	kind, id := tag.Decode(c.UserData)
	if !kind.Valid() {
		return api.Internal("completion with unknown kind", nil).WithContext("tag", c.UserData)
	}
	e.completed[kind].Inc()
	if c.Res == -int32(unix.EAGAIN) {
		return api.Internal("completion reported EAGAIN", unix.EAGAIN)
	}
	switch kind {
	case tag.Accept:
		return e.onAccept(id, c.Res)
	case tag.Receive:
		return e.onRecv(conn.Token(id), c)
	case tag.Send:
		return e.onSend(conn.Token(id), c.Res)
	default:
		return e.onReturnBuffer(id, c.Res)
	}
}

func (e *Engine) onAccept(h uint32, res int32) error {
	slot, err := e.slots.Reclaim(h)
	if err != nil {
		return err
	}
	if res < 0 {
		e.metrics.AcceptErrors.Inc()
		e.log.WithField("errno", unix.Errno(-res).Error()).Debug("accept failed")
		return e.rearmAccept(h)
	}

	fd := int(res)
	tok, err := e.table.Allocate(fd)
	if err != nil {
		if !api.IsInternal(err) {
			e.metrics.RejectedConnections.Inc()
			e.log.WithFields(logrus.Fields{"fd": fd, "live": e.table.Len()}).Warn("connection table full, closing socket")
			if cerr := e.sockets.Close(fd); cerr != nil {
				e.log.WithError(cerr).WithField("fd", fd).Debug("close rejected socket")
			}
			return e.rearmAccept(h)
		}
		return err
	}
	e.metrics.Accepts.Inc()
	if e.log.Logger.IsLevelEnabled(logrus.DebugLevel) {
		e.log.WithFields(logrus.Fields{"token": tok, "fd": fd, "peer": slot.Peer()}).Debug("accepted")
	}
	_ = e.sockets.Configure(fd)

	c, err := e.table.Get(tok)
	if err != nil {
		return err
	}
	if err := e.submitRecv(c); err != nil {
		return err
	}
	return e.rearmAccept(h)
}

func (e *Engine) onRecv(tok conn.Token, cqe uring.CQE) error {
	c, err := e.table.Get(tok)
	if err != nil {
		return err
	}
	c.RecvOutstanding = false
	bid, hasBuf := cqe.BufferID()

	if !protocol.ShouldRespond(int(cqe.Res)) {
		if hasBuf {
			lease, err := e.buffers.Lease(bid, 0)
			if err != nil {
				return err
			}
			if err := e.returnBuffer(lease); err != nil {
				return err
			}
		}
		if cqe.Res < 0 {
			e.log.WithFields(logrus.Fields{"token": tok, "errno": unix.Errno(-cqe.Res).Error()}).Debug("receive failed, closing")
		}
		if err := e.table.Remove(tok); err != nil {
			if api.IsInternal(err) {
				return err
			}
			e.log.WithError(err).Debug("close connection")
		}
		return nil
	}

	if !hasBuf {
		return api.Internal("receive completion without buffer", api.ErrBufferNotLeased).WithContext("token", tok)
	}
	lease, err := e.buffers.Lease(bid, int(cqe.Res))
	if err != nil {
		return err
	}
	e.metrics.BytesReceived.Add(float64(len(lease.Bytes())))
	e.metrics.Requests.Inc()
	c.Requests++

	if err := e.submitSend(c); err != nil {
		return err
	}
	if err := e.submitRecv(c); err != nil {
		return err
	}
	return e.returnBuffer(lease)
}

// onSend does not look the token up: the connection may already be closed
// by a receive that completed first.
func (e *Engine) onSend(tok conn.Token, res int32) error {
	switch {
	case int(res) == protocol.Len():
		e.metrics.Responses.Inc()
		return nil
	case res < 0:
		e.log.WithFields(logrus.Fields{"token": tok, "errno": unix.Errno(-res).Error()}).Debug("send failed")
		return nil
	default:
		return api.Internal("short send of fixed response", api.ErrPartialWrite).
			WithContext("token", tok).WithContext("written", res).WithContext("want", protocol.Len())
	}
}

func (e *Engine) onReturnBuffer(bid uint32, res int32) error {
	if res < 0 {
		return api.Internal("kernel rejected returned buffer", unix.Errno(-res)).WithContext("bid", bid)
	}
	return nil
}
