//go:build linux
// +build linux

// File: internal/uring/prep.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Submission descriptor builders. Every pointer passed to the kernel must stay
// reachable from Go until the matching completion is reaped; callers own that.

package uring

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// PrepAccept builds an accept on the listening socket writing the peer address
// into addr and its length into addrLen.
func PrepAccept(listenFd int, addr *unix.RawSockaddrAny, addrLen *uint32, userData uint64) SQE {
	*addrLen = uint32(unsafe.Sizeof(*addr))
	return SQE{
		OpCode:   IORING_OP_ACCEPT,
		Fd:       int32(listenFd),
		Addr:     uint64(uintptr(unsafe.Pointer(addr))),
		Off:      uint64(uintptr(unsafe.Pointer(addrLen))),
		OpFlags:  unix.SOCK_CLOEXEC,
		UserData: userData,
	}
}

// PrepRecvSelect builds a receive that lets the kernel pick a buffer from group.
func PrepRecvSelect(fd int, maxLen uint32, group uint16, userData uint64) SQE {
	return SQE{
		OpCode:   IORING_OP_RECV,
		Flags:    IOSQE_BUFFER_SELECT,
		Fd:       int32(fd),
		Len:      maxLen,
		BufIndex: group,
		UserData: userData,
	}
}

// PrepSend builds a send of buf. buf must not be empty.
func PrepSend(fd int, buf []byte, userData uint64) SQE {
	return SQE{
		OpCode:   IORING_OP_SEND,
		Fd:       int32(fd),
		Addr:     uint64(uintptr(unsafe.Pointer(&buf[0]))),
		Len:      uint32(len(buf)),
		OpFlags:  unix.MSG_NOSIGNAL,
		UserData: userData,
	}
}

// PrepProvideBuffers hands count buffers of size bytes starting at base to the
// kernel as group, numbered from firstID.
func PrepProvideBuffers(base unsafe.Pointer, size, count uint32, group, firstID uint16, userData uint64) SQE {
	return SQE{
		OpCode:   IORING_OP_PROVIDE_BUFFERS,
		Fd:       int32(count),
		Addr:     uint64(uintptr(base)),
		Len:      size,
		Off:      uint64(firstID),
		BufIndex: group,
		UserData: userData,
	}
}

// PrepNop builds a no-op, used to probe ring liveness.
func PrepNop(userData uint64) SQE {
	return SQE{OpCode: IORING_OP_NOP, UserData: userData}
}
