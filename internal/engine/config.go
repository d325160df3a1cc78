// File: internal/engine/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package engine

import (
	"fmt"
	"math"

	"github.com/momentics/hioload-bench/api"
)

// Config sizes the completion engine.
type Config struct {
	// Addr is the listening address, an IP literal with port.
	Addr string
	// ListenBacklog is the kernel accept queue length.
	ListenBacklog int
	// RingEntries is the submission queue size requested from the kernel.
	RingEntries uint32
	// Accepts is the number of accepts kept armed at all times.
	Accepts int
	// Buffers and BufferSize size the provided receive buffer group.
	Buffers    int
	BufferSize int
	// BufferGroup is the kernel buffer group id.
	BufferGroup uint16
	// MaxConns bounds the connection table.
	MaxConns int
	// BacklogLimit is the submission backlog depth at which accept re-arms
	// are deferred.
	BacklogLimit int
	// CPU pins the serving thread and sets SO_INCOMING_CPU; -1 disables.
	CPU int
}

// DefaultConfig returns the reference deployment.
func DefaultConfig() Config {
	return Config{
		Addr:          "127.0.0.1:9000",
		ListenBacklog: 256,
		RingEntries:   2048,
		Accepts:       64,
		Buffers:       128,
		BufferSize:    4096,
		BufferGroup:   1337,
		MaxConns:      1024,
		BacklogLimit:  2048,
		CPU:           -1,
	}
}

// Validate reports the first inconsistent setting.
func (c Config) Validate() error {
	switch {
	case c.RingEntries == 0:
		return fmt.Errorf("ring entries must be positive: %w", api.ErrInvalidArgument)
	case c.Accepts <= 0:
		return fmt.Errorf("accepts must be positive: %w", api.ErrInvalidArgument)
	case uint64(c.Accepts) > uint64(c.RingEntries):
		return fmt.Errorf("accepts (%d) exceed ring entries (%d): %w", c.Accepts, c.RingEntries, api.ErrInvalidArgument)
	case c.Buffers <= 0 || c.Buffers > math.MaxUint16+1:
		return fmt.Errorf("buffers must be in [1, 65536]: %w", api.ErrInvalidArgument)
	case c.BufferSize <= 0:
		return fmt.Errorf("buffer size must be positive: %w", api.ErrInvalidArgument)
	case c.MaxConns <= 0 || uint64(c.MaxConns) > math.MaxUint32:
		return fmt.Errorf("max conns must be positive: %w", api.ErrInvalidArgument)
	case c.BacklogLimit <= 0:
		return fmt.Errorf("backlog limit must be positive: %w", api.ErrInvalidArgument)
	case c.ListenBacklog <= 0:
		return fmt.Errorf("listen backlog must be positive: %w", api.ErrInvalidArgument)
	case c.CPU < -1:
		return fmt.Errorf("cpu must be -1 or a cpu index: %w", api.ErrInvalidArgument)
	}
	return nil
}
