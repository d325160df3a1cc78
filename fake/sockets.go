// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fake

import "sync"

// Sockets records socket configuration and closes instead of performing them.
type Sockets struct {
	mu         sync.Mutex
	configured []int
	closed     []int
	closeErr   error
}

// NewSockets creates an empty recorder.
func NewSockets() *Sockets {
	return &Sockets{}
}

// SetCloseError makes every following Close return err.
func (s *Sockets) SetCloseError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeErr = err
}

// Configure records fd.
func (s *Sockets) Configure(fd int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configured = append(s.configured, fd)
	return nil
}

// Close records fd.
func (s *Sockets) Close(fd int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = append(s.closed, fd)
	return s.closeErr
}

// Closed returns the closed descriptors in order.
func (s *Sockets) Closed() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.closed...)
}

// Configured returns the configured descriptors in order.
func (s *Sockets) Configured() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.configured...)
}

// IsClosed reports whether fd was closed at least once.
func (s *Sockets) IsClosed(fd int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.closed {
		if c == fd {
			return true
		}
	}
	return false
}
