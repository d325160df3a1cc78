//go:build !linux
// +build !linux

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package tcp

import (
	"fmt"
	"net"

	"github.com/momentics/hioload-bench/api"
)

// TuneConn sets TCP_NODELAY; the incoming-CPU hint is Linux only.
func TuneConn(c *net.TCPConn, cpu int) error {
	if err := c.SetNoDelay(true); err != nil {
		return err
	}
	if cpu >= 0 {
		return fmt.Errorf("SO_INCOMING_CPU: %w", api.ErrNotSupported)
	}
	return nil
}
