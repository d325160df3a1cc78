//go:build linux
// +build linux

// File: internal/uring/ring.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Ring is a single-issuer io_uring instance: one goroutine pushes submission
// entries, enters the kernel and reaps completions. It performs no locking.

package uring

import (
	"errors"
	"fmt"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-bench/api"
)

// ErrClosed is returned by operations on a closed ring.
var ErrClosed = errors.New("io_uring ring is closed")

// Ring owns the io_uring file descriptor and its three shared mappings.
type Ring struct {
	fd     int
	params Params

	sqRing  []byte
	cqRing  []byte
	sqesMem []byte

	sqHead    *uint32
	sqTail    *uint32
	sqMask    uint32
	sqEntries uint32
	sqDropped *uint32
	sqArray   []uint32
	sqes      []SQE

	cqHead     *uint32
	cqTail     *uint32
	cqMask     uint32
	cqOverflow *uint32
	cqes       []CQE

	closed bool
}

// New creates an io_uring with the requested number of submission entries.
// The kernel rounds entries up to a power of two and sizes the completion
// queue at twice the submission queue.
func New(entries uint32) (*Ring, error) {
	if entries == 0 {
		return nil, fmt.Errorf("io_uring setup: %w: zero entries", api.ErrInvalidArgument)
	}
	r := &Ring{}
	r.params.Flags = IORING_SETUP_CLAMP

	fd, _, errno := unix.Syscall(unix.SYS_IO_URING_SETUP, uintptr(entries), uintptr(unsafe.Pointer(&r.params)), 0)
	if errno != 0 {
		if errno == unix.ENOSYS {
			return nil, fmt.Errorf("io_uring setup: %w", api.ErrNotSupported)
		}
		return nil, fmt.Errorf("io_uring setup: %w", errno)
	}
	r.fd = int(fd)

	if err := r.mapRings(); err != nil {
		_ = r.Close()
		return nil, err
	}
	return r, nil
}

func (r *Ring) mapRings() error {
	p := &r.params
	sqRingSize := int(p.SQOff.Array + p.SQEntries*4)
	cqRingSize := int(p.CQOff.Cqes + p.CQEntries*uint32(unsafe.Sizeof(CQE{})))
	sqesSize := int(p.SQEntries) * int(unsafe.Sizeof(SQE{}))

	var err error
	r.sqRing, err = unix.Mmap(r.fd, IORING_OFF_SQ_RING, sqRingSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		return fmt.Errorf("mmap sq ring: %w", err)
	}
	r.cqRing, err = unix.Mmap(r.fd, IORING_OFF_CQ_RING, cqRingSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		return fmt.Errorf("mmap cq ring: %w", err)
	}
	r.sqesMem, err = unix.Mmap(r.fd, IORING_OFF_SQES, sqesSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		return fmt.Errorf("mmap sqes: %w", err)
	}

	r.sqHead = (*uint32)(unsafe.Pointer(&r.sqRing[p.SQOff.Head]))
	r.sqTail = (*uint32)(unsafe.Pointer(&r.sqRing[p.SQOff.Tail]))
	r.sqMask = *(*uint32)(unsafe.Pointer(&r.sqRing[p.SQOff.RingMask]))
	r.sqEntries = *(*uint32)(unsafe.Pointer(&r.sqRing[p.SQOff.RingEntries]))
	r.sqDropped = (*uint32)(unsafe.Pointer(&r.sqRing[p.SQOff.Dropped]))
	r.sqArray = unsafe.Slice((*uint32)(unsafe.Pointer(&r.sqRing[p.SQOff.Array])), p.SQEntries)
	r.sqes = unsafe.Slice((*SQE)(unsafe.Pointer(&r.sqesMem[0])), p.SQEntries)

	r.cqHead = (*uint32)(unsafe.Pointer(&r.cqRing[p.CQOff.Head]))
	r.cqTail = (*uint32)(unsafe.Pointer(&r.cqRing[p.CQOff.Tail]))
	r.cqMask = *(*uint32)(unsafe.Pointer(&r.cqRing[p.CQOff.RingMask]))
	r.cqOverflow = (*uint32)(unsafe.Pointer(&r.cqRing[p.CQOff.Overflow]))
	r.cqes = unsafe.Slice((*CQE)(unsafe.Pointer(&r.cqRing[p.CQOff.Cqes])), p.CQEntries)
	return nil
}

// Params returns the parameters negotiated with the kernel.
func (r *Ring) Params() Params {
	return r.params
}

// SQSpace returns the number of free submission slots.
func (r *Ring) SQSpace() int {
	return int(r.sqEntries - (atomic.LoadUint32(r.sqTail) - atomic.LoadUint32(r.sqHead)))
}

// Push copies sqe into the next free submission slot. It returns
// api.ErrSubmissionQueueFull when no slot is free; nothing is written then.
func (r *Ring) Push(sqe *SQE) error {
	if r.closed {
		return ErrClosed
	}
	tail := *r.sqTail
	if tail-atomic.LoadUint32(r.sqHead) >= r.sqEntries {
		return api.ErrSubmissionQueueFull
	}
	idx := tail & r.sqMask
	r.sqes[idx] = *sqe
	r.sqArray[idx] = idx
	atomic.StoreUint32(r.sqTail, tail+1)
	return nil
}

// Submit flushes pushed entries to the kernel without waiting.
func (r *Ring) Submit() (int, error) {
	return r.enter(0, 0)
}

// SubmitAndWait flushes pushed entries and blocks until at least minComplete
// completions are available. Signal interruptions are retried.
func (r *Ring) SubmitAndWait(minComplete uint32) (int, error) {
	return r.enter(minComplete, IORING_ENTER_GETEVENTS)
}

func (r *Ring) enter(minComplete uint32, flags uint32) (int, error) {
	if r.closed {
		return 0, ErrClosed
	}
	for {
		toSubmit := atomic.LoadUint32(r.sqTail) - atomic.LoadUint32(r.sqHead)
		n, _, errno := unix.Syscall6(unix.SYS_IO_URING_ENTER, uintptr(r.fd), uintptr(toSubmit), uintptr(minComplete), uintptr(flags), 0, 0)
		switch errno {
		case 0:
			return int(n), nil
		case unix.EINTR:
			continue
		case unix.EBUSY, unix.EAGAIN:
			// Completion queue backlog: the caller reaps and enters again.
			return 0, nil
		default:
			return 0, fmt.Errorf("io_uring enter: %w", errno)
		}
	}
}

// Completions appends every ready completion to dst, marks them consumed
// and returns the extended slice.
func (r *Ring) Completions(dst []CQE) []CQE {
	head := *r.cqHead
	tail := atomic.LoadUint32(r.cqTail)
	for ; head != tail; head++ {
		dst = append(dst, r.cqes[head&r.cqMask])
	}
	atomic.StoreUint32(r.cqHead, head)
	return dst
}

// Dropped reports submission entries the kernel rejected as invalid.
func (r *Ring) Dropped() uint32 {
	return atomic.LoadUint32(r.sqDropped)
}

// Overflow reports completions the kernel could not post to the ring.
func (r *Ring) Overflow() uint32 {
	return atomic.LoadUint32(r.cqOverflow)
}

// Close unmaps the rings and closes the io_uring descriptor. Idempotent.
func (r *Ring) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	for _, m := range [][]byte{r.sqesMem, r.cqRing, r.sqRing} {
		if m != nil {
			_ = unix.Munmap(m)
		}
	}
	r.sqesMem, r.cqRing, r.sqRing = nil, nil, nil
	return unix.Close(r.fd)
}
