// File: internal/conn/table.go
// Package conn tracks live sockets of the completion engine.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Tokens are small integers carried in completion tags. The lowest free token
// is always handed out first, so tokens stay dense and bounded by capacity.

package conn

import (
	"fmt"

	"github.com/momentics/hioload-bench/api"
)

// Token identifies a live connection.
type Token uint32

// State is the lifecycle position of a connection.
type State uint8

const (
	// StateOpen connections have a socket and may have a receive outstanding.
	StateOpen State = iota
	// StateClosed connections have been removed; the value is no longer in the table.
	StateClosed
)

func (s State) String() string {
	if s == StateOpen {
		return "open"
	}
	return "closed"
}

// Connection is the per-socket record.
type Connection struct {
	Token Token
	FD    int
	State State

	// RecvOutstanding is true while a receive for this socket sits in the
	// kernel or the submission backlog.
	RecvOutstanding bool
	Requests        uint64
}

// SocketCloser releases a socket descriptor.
type SocketCloser interface {
	Close(fd int) error
}

// Table is a fixed-capacity slot table. Not safe for concurrent use.
type Table struct {
	slots      []*Connection
	lowestFree int
	live       int
	closer     SocketCloser
}

// NewTable creates a table with capacity slots that closes removed sockets
// through closer.
func NewTable(capacity int, closer SocketCloser) *Table {
	return &Table{slots: make([]*Connection, capacity), closer: closer}
}

// Allocate records fd under the lowest free token.
func (t *Table) Allocate(fd int) (Token, error) {
	if t.live == len(t.slots) {
		return 0, api.ErrTableFull
	}
	for i := t.lowestFree; i < len(t.slots); i++ {
		if t.slots[i] == nil {
			t.slots[i] = &Connection{Token: Token(i), FD: fd, State: StateOpen}
			t.live++
			t.lowestFree = i + 1
			return Token(i), nil
		}
	}
	// lowestFree is kept at or below every free slot; reaching here means
	// the live count and the slots disagree.
	return 0, api.Internal("connection table corrupt", api.ErrTableFull).WithContext("live", t.live)
}

// Get returns the connection for tok.
func (t *Table) Get(tok Token) (*Connection, error) {
	if int(tok) >= len(t.slots) || t.slots[tok] == nil {
		return nil, api.Internal("completion for unknown connection", api.ErrUnknownToken).WithContext("token", tok)
	}
	return t.slots[tok], nil
}

// Remove frees tok and closes its socket. The slot is freed even when the
// close fails.
func (t *Table) Remove(tok Token) error {
	c, err := t.Get(tok)
	if err != nil {
		return err
	}
	t.slots[tok] = nil
	t.live--
	if int(tok) < t.lowestFree {
		t.lowestFree = int(tok)
	}
	c.State = StateClosed
	if t.closer != nil {
		if err := t.closer.Close(c.FD); err != nil {
			return fmt.Errorf("close fd %d (token %d): %w", c.FD, tok, err)
		}
	}
	return nil
}

// Range calls fn for every live connection in token order.
func (t *Table) Range(fn func(*Connection)) {
	for _, c := range t.slots {
		if c != nil {
			fn(c)
		}
	}
}

// CloseAll removes every live connection, returning the first close error.
func (t *Table) CloseAll() error {
	var first error
	for i, c := range t.slots {
		if c == nil {
			continue
		}
		if err := t.Remove(Token(i)); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Len returns the number of live connections.
func (t *Table) Len() int { return t.live }

// Cap returns the table capacity.
func (t *Table) Cap() int { return len(t.slots) }
