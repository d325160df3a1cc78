//go:build linux
// +build linux

// File: pool/provided.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Kernel-provided receive buffers. One anonymous mapping is split into
// fixed-size slots registered with io_uring under a single group id; the
// kernel picks a slot for each buffer-select receive and reports its id in
// the completion. The application turns that id into a Lease, reads through
// it, and hands the slot back with Return.

package pool

import (
	"fmt"
	"math"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-bench/api"
	"github.com/momentics/hioload-bench/internal/uring"
)

type bufState uint8

const (
	bufAvailable bufState = iota
	bufLeased
)

// ProvidedBuffers is a fixed array of kernel-selectable buffers.
// Not safe for concurrent use; owned by the ring's event loop.
type ProvidedBuffers struct {
	mem       []byte
	size      int
	count     int
	group     uint16
	state     []bufState
	epoch     []uint32
	available int
}

// NewProvidedBuffers maps count buffers of size bytes for group.
func NewProvidedBuffers(count, size int, group uint16) (*ProvidedBuffers, error) {
	if count <= 0 || count > math.MaxUint16+1 {
		return nil, fmt.Errorf("provided buffers: count %d: %w", count, api.ErrInvalidArgument)
	}
	if size <= 0 || size > math.MaxInt32 {
		return nil, fmt.Errorf("provided buffers: size %d: %w", size, api.ErrInvalidArgument)
	}
	mem, err := unix.Mmap(-1, 0, count*size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("provided buffers: mmap %d bytes: %w", count*size, err)
	}
	return &ProvidedBuffers{
		mem:       mem,
		size:      size,
		count:     count,
		group:     group,
		state:     make([]bufState, count),
		epoch:     make([]uint32, count),
		available: count,
	}, nil
}

// Register builds the descriptor that hands every buffer to the kernel.
func (p *ProvidedBuffers) Register(userData uint64) uring.SQE {
	return uring.PrepProvideBuffers(unsafe.Pointer(&p.mem[0]), uint32(p.size), uint32(p.count), p.group, 0, userData)
}

// Lease claims the buffer the kernel filled with n bytes.
func (p *ProvidedBuffers) Lease(bid uint16, n int) (*Lease, error) {
	id := int(bid)
	if id >= p.count {
		return nil, api.Internal("buffer id out of range", api.ErrInvalidArgument).
			WithContext("bid", bid).WithContext("count", p.count)
	}
	if p.state[id] == bufLeased {
		return nil, api.Internal("buffer leased twice", api.ErrBufferAlreadyLeased).WithContext("bid", bid)
	}
	if n < 0 || n > p.size {
		return nil, api.Internal("buffer length out of range", api.ErrInvalidArgument).
			WithContext("bid", bid).WithContext("len", n)
	}
	p.state[id] = bufLeased
	p.available--
	return &Lease{pool: p, id: bid, n: n, epoch: p.epoch[id]}, nil
}

// Return gives a leased buffer back and builds the descriptor re-providing
// it to the kernel. The lease is invalid afterwards.
func (p *ProvidedBuffers) Return(l *Lease, userData uint64) (uring.SQE, error) {
	if !l.valid() || l.pool != p {
		return uring.SQE{}, api.Internal("buffer returned without a live lease", api.ErrBufferNotLeased).
			WithContext("bid", l.id)
	}
	id := int(l.id)
	p.state[id] = bufAvailable
	p.epoch[id]++
	p.available++
	base := unsafe.Pointer(&p.mem[id*p.size])
	return uring.PrepProvideBuffers(base, uint32(p.size), 1, p.group, l.id, userData), nil
}

// Available returns the number of buffers the kernel may select.
func (p *ProvidedBuffers) Available() int { return p.available }

// Leased returns the number of buffers held by the application.
func (p *ProvidedBuffers) Leased() int { return p.count - p.available }

// Count returns the total number of buffers.
func (p *ProvidedBuffers) Count() int { return p.count }

// Size returns the length of each buffer.
func (p *ProvidedBuffers) Size() int { return p.size }

// Group returns the kernel buffer group id.
func (p *ProvidedBuffers) Group() uint16 { return p.group }

// Close unmaps the backing memory. Only call once the ring is gone.
func (p *ProvidedBuffers) Close() error {
	if p.mem == nil {
		return nil
	}
	err := unix.Munmap(p.mem)
	p.mem = nil
	return err
}

// Lease is a checked view of one buffer owned by the application.
type Lease struct {
	pool  *ProvidedBuffers
	id    uint16
	n     int
	epoch uint32
}

func (l *Lease) valid() bool {
	if l == nil || l.pool == nil || l.pool.mem == nil {
		return false
	}
	id := int(l.id)
	return l.pool.state[id] == bufLeased && l.pool.epoch[id] == l.epoch
}

// ID returns the kernel buffer id.
func (l *Lease) ID() uint16 { return l.id }

// Len returns the number of bytes the kernel delivered.
func (l *Lease) Len() int { return l.n }

// Bytes returns the delivered bytes, or nil once the lease was returned.
// The slice aliases kernel-writable memory after Return; copy out first.
func (l *Lease) Bytes() []byte {
	if !l.valid() {
		return nil
	}
	off := int(l.id) * l.pool.size
	return l.pool.mem[off : off+l.n : off+l.n]
}
