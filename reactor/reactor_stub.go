//go:build !linux
// +build !linux

// File: reactor/reactor_stub.go
// Author: momentics <momentics@gmail.com>

package reactor

import (
	"fmt"

	"github.com/momentics/hioload-bench/api"
)

// New reports that no readiness reactor exists on this platform.
func New() (Reactor, error) {
	return nil, fmt.Errorf("reactor: %w", api.ErrNotSupported)
}
