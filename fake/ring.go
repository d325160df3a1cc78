//go:build linux
// +build linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fake

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-bench/api"
	"github.com/momentics/hioload-bench/internal/uring"
)

// Send is one send operation observed by the simulated kernel.
type Send struct {
	FD       int
	Data     []byte
	UserData uint64
}

type providedBuffer struct {
	id   uint16
	addr uintptr
	size uint32
}

// Ring is a deterministic stand-in for the kernel ring. Submitted
// operations complete as soon as the test supplies what they wait for:
// accepts need Connect, receives need Deliver or Hangup. Nothing blocks;
// SubmitAndWait returns immediately even without completions.
type Ring struct {
	mu       sync.Mutex
	capacity int
	sq       []uring.SQE
	cq       []uring.CQE

	free       map[uint16][]providedBuffer
	accepts    []uring.SQE
	recvs      map[int32]uring.SQE
	inbox      map[int32][][]byte
	hungUp     map[int32]int32
	waiting    []int32
	sends      []Send
	sendResult func(fd, n int) int
	violations []string

	nextFD  int32
	submits int
	stalled bool
	closed  bool
}

// NewRing creates a simulated ring with capacity submission slots.
func NewRing(capacity int) *Ring {
	return &Ring{
		capacity: capacity,
		free:     make(map[uint16][]providedBuffer),
		recvs:    make(map[int32]uring.SQE),
		inbox:    make(map[int32][][]byte),
		hungUp:   make(map[int32]int32),
		nextFD:   100,
	}
}

// Push queues sqe for the next Submit.
func (r *Ring) Push(sqe *uring.SQE) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return uring.ErrClosed
	}
	if len(r.sq) >= r.capacity {
		return api.ErrSubmissionQueueFull
	}
	r.sq = append(r.sq, *sqe)
	return nil
}

// Submit hands every queued descriptor to the simulated kernel.
func (r *Ring) Submit() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, uring.ErrClosed
	}
	r.submits++
	if r.stalled {
		return 0, nil
	}
	n := len(r.sq)
	for _, sqe := range r.sq {
		r.process(sqe)
	}
	r.sq = r.sq[:0]
	return n, nil
}

// SubmitAndWait submits and returns without waiting.
func (r *Ring) SubmitAndWait(uint32) (int, error) {
	return r.Submit()
}

// Completions moves every posted completion into dst.
func (r *Ring) Completions(dst []uring.CQE) []uring.CQE {
	r.mu.Lock()
	defer r.mu.Unlock()
	dst = append(dst, r.cq...)
	r.cq = r.cq[:0]
	return dst
}

// SQSpace returns the number of free submission slots.
func (r *Ring) SQSpace() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.capacity - len(r.sq)
}

// Close marks the ring closed.
func (r *Ring) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *Ring) post(userData uint64, res int32, flags uint32) {
	r.cq = append(r.cq, uring.CQE{UserData: userData, Res: res, Flags: flags})
}

func (r *Ring) violate(format string, args ...any) {
	r.violations = append(r.violations, fmt.Sprintf(format, args...))
}

func (r *Ring) process(sqe uring.SQE) {
	switch sqe.OpCode {
	case uring.IORING_OP_NOP:
		r.post(sqe.UserData, 0, 0)
	case uring.IORING_OP_PROVIDE_BUFFERS:
		r.provide(sqe)
	case uring.IORING_OP_ACCEPT:
		if len(r.waiting) > 0 {
			fd := r.waiting[0]
			r.waiting = r.waiting[1:]
			r.completeAccept(sqe, fd)
			return
		}
		r.accepts = append(r.accepts, sqe)
	case uring.IORING_OP_RECV:
		if sqe.Flags&uring.IOSQE_BUFFER_SELECT == 0 {
			r.violate("receive on fd %d without buffer select", sqe.Fd)
		}
		if _, dup := r.recvs[sqe.Fd]; dup {
			r.violate("second receive outstanding on fd %d", sqe.Fd)
		}
		r.recvs[sqe.Fd] = sqe
		r.tryRecv(sqe.Fd)
	case uring.IORING_OP_SEND:
		data := make([]byte, sqe.Len)
		copy(data, unsafe.Slice((*byte)(unsafe.Pointer(uintptr(sqe.Addr))), sqe.Len))
		r.sends = append(r.sends, Send{FD: int(sqe.Fd), Data: data, UserData: sqe.UserData})
		res := int(sqe.Len)
		if r.sendResult != nil {
			res = r.sendResult(int(sqe.Fd), res)
		}
		r.post(sqe.UserData, int32(res), 0)
	default:
		r.violate("unsupported opcode %d", sqe.OpCode)
		r.post(sqe.UserData, -int32(unix.EINVAL), 0)
	}
}

func (r *Ring) provide(sqe uring.SQE) {
	group := sqe.BufIndex
	count := uint32(sqe.Fd)
	for i := uint32(0); i < count; i++ {
		id := uint16(sqe.Off) + uint16(i)
		for _, b := range r.free[group] {
			if b.id == id {
				r.violate("buffer %d provided twice to group %d", id, group)
			}
		}
		r.free[group] = append(r.free[group], providedBuffer{
			id:   id,
			addr: uintptr(sqe.Addr) + uintptr(i)*uintptr(sqe.Len),
			size: sqe.Len,
		})
	}
	r.post(sqe.UserData, 0, 0)
	// Receives starved of buffers may proceed now.
	for fd := range r.recvs {
		r.tryRecv(fd)
	}
}

func (r *Ring) completeAccept(sqe uring.SQE, fd int32) {
	if sqe.Addr != 0 {
		sa := (*unix.RawSockaddrInet4)(unsafe.Pointer(uintptr(sqe.Addr)))
		sa.Family = unix.AF_INET
		sa.Addr = [4]byte{127, 0, 0, 1}
		port := (*[2]byte)(unsafe.Pointer(&sa.Port))
		port[0], port[1] = byte(fd>>8), byte(fd)
	}
	r.post(sqe.UserData, fd, 0)
}

func (r *Ring) tryRecv(fd int32) {
	sqe, ok := r.recvs[fd]
	if !ok {
		return
	}
	if msgs := r.inbox[fd]; len(msgs) > 0 {
		bufs := r.free[sqe.BufIndex]
		if len(bufs) == 0 {
			// The kernel fails the receive with ENOBUFS only when the
			// socket has data and the group is empty.
			delete(r.recvs, fd)
			r.post(sqe.UserData, -int32(unix.ENOBUFS), 0)
			return
		}
		b := bufs[0]
		r.free[sqe.BufIndex] = bufs[1:]

		limit := int(b.size)
		if int(sqe.Len) < limit {
			limit = int(sqe.Len)
		}
		msg := msgs[0]
		dst := unsafe.Slice((*byte)(unsafe.Pointer(b.addr)), limit)
		n := copy(dst, msg)
		if n < len(msg) {
			r.inbox[fd][0] = msg[n:]
		} else {
			r.inbox[fd] = msgs[1:]
		}
		delete(r.recvs, fd)
		r.post(sqe.UserData, int32(n), uring.IORING_CQE_F_BUFFER|uint32(b.id)<<uring.IORING_CQE_BUFFER_SHIFT)
		return
	}
	if res, ok := r.hungUp[fd]; ok {
		delete(r.recvs, fd)
		r.post(sqe.UserData, res, 0)
	}
}

// Connect simulates a client connecting and returns the accepted fd. The
// accept completes now if one is armed, otherwise on the next armed accept.
func (r *Ring) Connect() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	fd := r.nextFD
	r.nextFD++
	if len(r.accepts) > 0 {
		sqe := r.accepts[0]
		r.accepts = r.accepts[1:]
		r.completeAccept(sqe, fd)
	} else {
		r.waiting = append(r.waiting, fd)
	}
	return int(fd)
}

// FailAccept completes one armed accept with -errno. It reports whether an
// accept was armed.
func (r *Ring) FailAccept(errno unix.Errno) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.accepts) == 0 {
		return false
	}
	sqe := r.accepts[0]
	r.accepts = r.accepts[1:]
	r.post(sqe.UserData, -int32(errno), 0)
	return true
}

// Deliver makes data readable on fd.
func (r *Ring) Deliver(fd int, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inbox[int32(fd)] = append(r.inbox[int32(fd)], append([]byte(nil), data...))
	r.tryRecv(int32(fd))
}

// Hangup simulates an orderly close by the peer of fd.
func (r *Ring) Hangup(fd int) {
	r.Reset(fd, 0)
}

// Reset makes receives on fd fail with -errno, or return 0 for errno 0.
func (r *Ring) Reset(fd int, errno unix.Errno) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hungUp[int32(fd)] = -int32(errno)
	r.tryRecv(int32(fd))
}

// Inject posts an arbitrary completion.
func (r *Ring) Inject(c uring.CQE) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cq = append(r.cq, c)
}

// SetSendResult overrides the result of sends; fn receives the fd and the
// requested length.
func (r *Ring) SetSendResult(fn func(fd, n int) int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sendResult = fn
}

// SendsTo returns the payloads sent to fd in order.
func (r *Ring) SendsTo(fd int) [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out [][]byte
	for _, s := range r.sends {
		if s.FD == fd {
			out = append(out, s.Data)
		}
	}
	return out
}

// PendingAccepts returns the number of armed accepts.
func (r *Ring) PendingAccepts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.accepts)
}

// HasRecv reports whether a receive is outstanding on fd.
func (r *Ring) HasRecv(fd int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.recvs[int32(fd)]
	return ok
}

// AvailableBuffers returns the kernel-side free count of group.
func (r *Ring) AvailableBuffers(group uint16) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.free[group])
}

// Violations lists protocol misuse observed so far.
func (r *Ring) Violations() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.violations...)
}

// Submits returns how many times the queue was flushed.
func (r *Ring) Submits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.submits
}

// SetStalled makes Submit consume nothing, as when the kernel reports
// EBUSY, so pushed descriptors stay queued and the queue stays full.
func (r *Ring) SetStalled(stalled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stalled = stalled
}

// Queued returns the descriptors pushed but not yet submitted.
func (r *Ring) Queued() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sq)
}
