//go:build linux
// +build linux

// File: pool/accept_slots.go
// Package pool implements the slab of pending-accept address slots.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Each in-flight accept needs a stable region for the kernel to write the
// peer address into. Slots are addressed by small integer handles; the handle
// travels in the completion tag and the slot is found again by handle, never
// by pointer.

package pool

import (
	"fmt"
	"net"
	"strconv"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-bench/api"
)

// AcceptSlot is the kernel-written peer address of one accept.
type AcceptSlot struct {
	Addr    unix.RawSockaddrAny
	AddrLen uint32
}

// Peer formats the address written by the kernel, or "" if unknown.
func (s *AcceptSlot) Peer() string {
	switch s.Addr.Addr.Family {
	case unix.AF_INET:
		sa := (*unix.RawSockaddrInet4)(unsafe.Pointer(&s.Addr))
		return net.JoinHostPort(net.IP(sa.Addr[:]).String(), strconv.Itoa(int(ntohs(sa.Port))))
	case unix.AF_INET6:
		sa := (*unix.RawSockaddrInet6)(unsafe.Pointer(&s.Addr))
		return net.JoinHostPort(net.IP(sa.Addr[:]).String(), strconv.Itoa(int(ntohs(sa.Port))))
	default:
		return ""
	}
}

func ntohs(v uint16) uint16 {
	b := (*[2]byte)(unsafe.Pointer(&v))
	return uint16(b[0])<<8 | uint16(b[1])
}

// AcceptSlots is a fixed slab of accept slots with explicit ownership:
// free (nobody), held (application) or lent (kernel).
type AcceptSlots struct {
	slots    []*AcceptSlot
	lent     []bool
	held     []bool
	free     []uint32
	inFlight int
}

// NewAcceptSlots allocates n slots, all free.
func NewAcceptSlots(n int) *AcceptSlots {
	s := &AcceptSlots{
		slots: make([]*AcceptSlot, n),
		lent:  make([]bool, n),
		held:  make([]bool, n),
		free:  make([]uint32, 0, n),
	}
	for i := n - 1; i >= 0; i-- {
		s.slots[i] = &AcceptSlot{}
		s.free = append(s.free, uint32(i))
	}
	return s
}

// Acquire takes a free slot for the application.
func (s *AcceptSlots) Acquire() (uint32, bool) {
	if len(s.free) == 0 {
		return 0, false
	}
	h := s.free[len(s.free)-1]
	s.free = s.free[:len(s.free)-1]
	s.held[h] = true
	return h, true
}

// Arm transfers a held slot to the kernel and returns the region to pass
// in the accept submission.
func (s *AcceptSlots) Arm(h uint32) (*AcceptSlot, error) {
	if int(h) >= len(s.slots) || !s.held[h] {
		return nil, fmt.Errorf("arm accept slot %d: %w", h, api.ErrInvalidArgument)
	}
	s.held[h] = false
	s.lent[h] = true
	s.inFlight++
	slot := s.slots[h]
	*slot = AcceptSlot{}
	return slot, nil
}

// Reclaim pops a lent slot back to the application once its completion has
// been observed. A handle that is not in flight is an internal violation.
func (s *AcceptSlots) Reclaim(h uint32) (*AcceptSlot, error) {
	if int(h) >= len(s.slots) || !s.lent[h] {
		return nil, api.Internal("accept completion for slot not in flight", api.ErrSlotNotInFlight).
			WithContext("slot", h)
	}
	s.lent[h] = false
	s.held[h] = true
	s.inFlight--
	return s.slots[h], nil
}

// Release frees a held slot.
func (s *AcceptSlots) Release(h uint32) error {
	if int(h) >= len(s.slots) || !s.held[h] {
		return fmt.Errorf("release accept slot %d: %w", h, api.ErrInvalidArgument)
	}
	s.held[h] = false
	s.free = append(s.free, h)
	return nil
}

// InFlight returns the number of slots lent to the kernel.
func (s *AcceptSlots) InFlight() int { return s.inFlight }

// Free returns the number of unowned slots.
func (s *AcceptSlots) Free() int { return len(s.free) }

// Len returns the slab size.
func (s *AcceptSlots) Len() int { return len(s.slots) }
