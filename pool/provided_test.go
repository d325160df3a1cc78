//go:build linux
// +build linux

package pool_test

import (
	"errors"
	"testing"

	"github.com/momentics/hioload-bench/api"
	"github.com/momentics/hioload-bench/internal/uring"
	"github.com/momentics/hioload-bench/pool"
)

func newBuffers(t *testing.T, count, size int) *pool.ProvidedBuffers {
	t.Helper()
	p, err := pool.NewProvidedBuffers(count, size, 1337)
	if err != nil {
		t.Fatalf("NewProvidedBuffers: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestProvidedBuffers_RegisterDescriptor(t *testing.T) {
	p := newBuffers(t, 8, 512)
	sqe := p.Register(42)
	if sqe.OpCode != uring.IORING_OP_PROVIDE_BUFFERS {
		t.Fatalf("opcode %d", sqe.OpCode)
	}
	if sqe.Fd != 8 || sqe.Len != 512 || sqe.BufIndex != 1337 || sqe.Off != 0 || sqe.UserData != 42 {
		t.Errorf("unexpected descriptor %+v", sqe)
	}
	if p.Available() != 8 || p.Leased() != 0 {
		t.Errorf("available=%d leased=%d", p.Available(), p.Leased())
	}
}

func TestProvidedBuffers_LeaseAndReturn(t *testing.T) {
	p := newBuffers(t, 4, 64)
	l, err := p.Lease(2, 5)
	if err != nil {
		t.Fatalf("Lease: %v", err)
	}
	if got := len(l.Bytes()); got != 5 {
		t.Fatalf("lease length %d", got)
	}
	if p.Available() != 3 || p.Leased() != 1 {
		t.Errorf("available=%d leased=%d", p.Available(), p.Leased())
	}

	sqe, err := p.Return(l, 7)
	if err != nil {
		t.Fatalf("Return: %v", err)
	}
	if sqe.Fd != 1 || sqe.Off != 2 || sqe.Len != 64 || sqe.BufIndex != 1337 {
		t.Errorf("unexpected re-provide descriptor %+v", sqe)
	}
	if l.Bytes() != nil {
		t.Error("returned lease still exposes bytes")
	}
	if p.Available() != 4 {
		t.Errorf("available=%d after return", p.Available())
	}
}

func TestProvidedBuffers_DoubleReturnRejected(t *testing.T) {
	p := newBuffers(t, 2, 32)
	l, _ := p.Lease(0, 1)
	if _, err := p.Return(l, 0); err != nil {
		t.Fatal(err)
	}
	_, err := p.Return(l, 0)
	if !errors.Is(err, api.ErrBufferNotLeased) || !api.IsInternal(err) {
		t.Fatalf("double return: %v", err)
	}
}

func TestProvidedBuffers_StaleLeaseAfterReuse(t *testing.T) {
	p := newBuffers(t, 1, 16)
	old, _ := p.Lease(0, 3)
	if _, err := p.Return(old, 0); err != nil {
		t.Fatal(err)
	}
	fresh, err := p.Lease(0, 4)
	if err != nil {
		t.Fatal(err)
	}
	if old.Bytes() != nil {
		t.Error("stale lease sees reused buffer")
	}
	if _, err := p.Return(old, 0); err == nil {
		t.Error("stale lease returned a buffer it does not own")
	}
	if len(fresh.Bytes()) != 4 {
		t.Error("fresh lease lost its view")
	}
}

func TestProvidedBuffers_LeaseErrors(t *testing.T) {
	p := newBuffers(t, 2, 16)
	if _, err := p.Lease(5, 1); !errors.Is(err, api.ErrInvalidArgument) {
		t.Errorf("out-of-range id: %v", err)
	}
	if _, err := p.Lease(0, 17); !errors.Is(err, api.ErrInvalidArgument) {
		t.Errorf("oversized length: %v", err)
	}
	if _, err := p.Lease(1, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Lease(1, 1); !errors.Is(err, api.ErrBufferAlreadyLeased) {
		t.Errorf("double lease: %v", err)
	}
}

func TestNewProvidedBuffers_Validation(t *testing.T) {
	for _, tc := range []struct{ count, size int }{{0, 16}, {65537, 16}, {4, 0}} {
		if _, err := pool.NewProvidedBuffers(tc.count, tc.size, 1); !errors.Is(err, api.ErrInvalidArgument) {
			t.Errorf("count=%d size=%d: %v", tc.count, tc.size, err)
		}
	}
}
