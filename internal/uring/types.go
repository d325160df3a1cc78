//go:build linux
// +build linux

// File: internal/uring/types.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Kernel ABI types and constants for io_uring (linux/io_uring.h).

package uring

import (
	"fmt"
	"unsafe"
)

const (
	// Setup flags
	IORING_SETUP_CLAMP = 1 << 4

	// Opcodes used by the engine.
	IORING_OP_NOP             = 0
	IORING_OP_ACCEPT          = 13
	IORING_OP_SEND            = 26
	IORING_OP_RECV            = 27
	IORING_OP_PROVIDE_BUFFERS = 31

	// SQE flags
	IOSQE_BUFFER_SELECT = 1 << 5

	// CQE flags
	IORING_CQE_F_BUFFER     = 1 << 0
	IORING_CQE_BUFFER_SHIFT = 16

	// Enter flags
	IORING_ENTER_GETEVENTS = 1 << 0

	// Feature bits reported in Params.Features.
	IORING_FEAT_SINGLE_MMAP = 1 << 0
	IORING_FEAT_NODROP      = 1 << 1
	IORING_FEAT_FAST_POLL   = 1 << 5

	// mmap offsets
	IORING_OFF_SQ_RING = 0
	IORING_OFF_CQ_RING = 0x8000000
	IORING_OFF_SQES    = 0x10000000
)

// SQRingOffsets mirrors struct io_sqring_offsets.
type SQRingOffsets struct {
	Head        uint32
	Tail        uint32
	RingMask    uint32
	RingEntries uint32
	Flags       uint32
	Dropped     uint32
	Array       uint32
	Resv1       uint32
	UserAddr    uint64
}

// CQRingOffsets mirrors struct io_cqring_offsets.
type CQRingOffsets struct {
	Head        uint32
	Tail        uint32
	RingMask    uint32
	RingEntries uint32
	Overflow    uint32
	Cqes        uint32
	Flags       uint32
	Resv1       uint32
	UserAddr    uint64
}

// Params mirrors struct io_uring_params.
type Params struct {
	SQEntries    uint32
	CQEntries    uint32
	Flags        uint32
	SQThreadCPU  uint32
	SQThreadIdle uint32
	Features     uint32
	WQFd         uint32
	Resv         [3]uint32
	SQOff        SQRingOffsets
	CQOff        CQRingOffsets
}

// SQE mirrors struct io_uring_sqe (64 bytes).
type SQE struct {
	OpCode      uint8
	Flags       uint8
	IoPrio      uint16
	Fd          int32
	Off         uint64 // offset, or addr2 for accept's addrlen pointer
	Addr        uint64
	Len         uint32
	OpFlags     uint32 // msg_flags / accept_flags
	UserData    uint64
	BufIndex    uint16 // buf_index or buf_group
	Personality uint16
	SpliceFdIn  int32
	Addr3       uint64
	Pad         [1]uint64
}

// CQE mirrors struct io_uring_cqe (16 bytes).
type CQE struct {
	UserData uint64
	Res      int32
	Flags    uint32
}

// BufferID extracts the provided-buffer id selected by the kernel.
func (c CQE) BufferID() (uint16, bool) {
	if c.Flags&IORING_CQE_F_BUFFER == 0 {
		return 0, false
	}
	return uint16(c.Flags >> IORING_CQE_BUFFER_SHIFT), true
}

func init() {
	if sz := unsafe.Sizeof(SQE{}); sz != 64 {
		panic(fmt.Sprintf("io_uring SQE size mismatch: expected 64, got %d", sz))
	}
	if sz := unsafe.Sizeof(CQE{}); sz != 16 {
		panic(fmt.Sprintf("io_uring CQE size mismatch: expected 16, got %d", sz))
	}
	if sz := unsafe.Sizeof(Params{}); sz != 120 {
		panic(fmt.Sprintf("io_uring params size mismatch: expected 120, got %d", sz))
	}
}
