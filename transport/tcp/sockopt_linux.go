//go:build linux
// +build linux

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package tcp

import (
	"fmt"
	"net"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Tune sets TCP_NODELAY on fd and, when cpu >= 0, the SO_INCOMING_CPU hint.
func Tune(fd, cpu int) error {
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
		return fmt.Errorf("setsockopt TCP_NODELAY: %w", err)
	}
	if cpu >= 0 {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_INCOMING_CPU, cpu); err != nil {
			return fmt.Errorf("setsockopt SO_INCOMING_CPU=%d: %w", cpu, err)
		}
	}
	return nil
}

// TuneConn applies Tune to the descriptor behind c.
func TuneConn(c *net.TCPConn, cpu int) error {
	raw, err := c.SyscallConn()
	if err != nil {
		return err
	}
	var tuneErr error
	if err := raw.Control(func(fd uintptr) { tuneErr = Tune(int(fd), cpu) }); err != nil {
		return err
	}
	return tuneErr
}

// Sockets configures and closes accepted descriptors for the completion
// engine. Tuning failures are logged and never fatal.
type Sockets struct {
	CPU int
	Log *logrus.Entry
}

// Configure applies Tune to a freshly accepted socket.
func (s Sockets) Configure(fd int) error {
	if err := Tune(fd, s.CPU); err != nil && s.Log != nil {
		s.Log.WithError(err).WithField("fd", fd).Debug("socket tuning failed")
	}
	return nil
}

// Close closes fd.
func (s Sockets) Close(fd int) error {
	return unix.Close(fd)
}
