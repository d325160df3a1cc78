// File: internal/tag/tag.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Correlation tags attached to every io_uring submission and echoed back in
// the completion's user_data field.
//
// Layout: the high 32 bits hold the operation Kind, the low 32 bits hold the
// correlation id (connection token for Receive/Send, accept-slot handle for
// Accept, buffer id for ReturnBuffer).

package tag

import "fmt"

// Kind identifies the operation a completion belongs to.
type Kind uint32

const (
	Accept       Kind = 0
	Receive      Kind = 1
	Send         Kind = 2
	ReturnBuffer Kind = 4
)

// Valid reports whether k is one of the known operation kinds.
func (k Kind) Valid() bool {
	switch k {
	case Accept, Receive, Send, ReturnBuffer:
		return true
	}
	return false
}

func (k Kind) String() string {
	switch k {
	case Accept:
		return "accept"
	case Receive:
		return "recv"
	case Send:
		return "send"
	case ReturnBuffer:
		return "provide_buf"
	default:
		return fmt.Sprintf("kind(%d)", uint32(k))
	}
}

// Encode packs kind and id into an opaque user_data value.
func Encode(kind Kind, id uint32) uint64 {
	return uint64(kind)<<32 | uint64(id)
}

// Decode unpacks a user_data value produced by Encode.
func Decode(v uint64) (Kind, uint32) {
	return Kind(v >> 32), uint32(v)
}
