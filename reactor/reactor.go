// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Readiness reactor interface.

package reactor

// FDEventType is a bit set of readiness conditions.
type FDEventType uint8

const (
	EventRead FDEventType = 1 << iota
	EventWrite
	EventError
)

// FDCallback handles readiness of fd. A non-nil error stops the current
// Poll and is returned from it.
type FDCallback func(fd int, events FDEventType) error

// Reactor multiplexes readiness of registered descriptors. Not safe for
// concurrent use; Register and Unregister may be called from callbacks.
type Reactor interface {
	// Register watches fd for events and dispatches readiness to cb.
	Register(fd int, events FDEventType, cb FDCallback) error
	// Unregister stops watching fd.
	Unregister(fd int) error
	// Poll waits up to timeoutMs (negative blocks) and runs callbacks.
	Poll(timeoutMs int) error
	// Len returns the number of registered descriptors.
	Len() int
	// Close releases the reactor.
	Close() error
}
