//go:build linux
// +build linux

package uring_test

import (
	"errors"
	"testing"

	"github.com/momentics/hioload-bench/api"
	"github.com/momentics/hioload-bench/internal/uring"
)

func newRingOrSkip(t *testing.T, entries uint32) *uring.Ring {
	t.Helper()
	r, err := uring.New(entries)
	if err != nil {
		t.Skipf("io_uring unavailable: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestRing_NopRoundTrip(t *testing.T) {
	r := newRingOrSkip(t, 8)

	for i := uint64(1); i <= 3; i++ {
		sqe := uring.PrepNop(i)
		if err := r.Push(&sqe); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}
	seen := map[uint64]bool{}
	var cqes []uring.CQE
	for len(seen) < 3 {
		if _, err := r.SubmitAndWait(1); err != nil {
			t.Fatalf("submit and wait: %v", err)
		}
		cqes = r.Completions(cqes[:0])
		for _, c := range cqes {
			if c.Res != 0 {
				t.Errorf("nop %d result %d", c.UserData, c.Res)
			}
			seen[c.UserData] = true
		}
	}
	if r.SQSpace() != int(r.Params().SQEntries) {
		t.Errorf("expected empty SQ after submit, space=%d", r.SQSpace())
	}
}

func TestRing_PushReportsFullQueue(t *testing.T) {
	r := newRingOrSkip(t, 4)
	entries := int(r.Params().SQEntries)
	for i := 0; i < entries; i++ {
		sqe := uring.PrepNop(uint64(i))
		if err := r.Push(&sqe); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}
	sqe := uring.PrepNop(99)
	if err := r.Push(&sqe); !errors.Is(err, api.ErrSubmissionQueueFull) {
		t.Fatalf("expected ErrSubmissionQueueFull, got %v", err)
	}
	if _, err := r.Submit(); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := r.Push(&sqe); err != nil {
		t.Fatalf("push after flush: %v", err)
	}
}

func TestRing_CloseIdempotent(t *testing.T) {
	r, err := uring.New(4)
	if err != nil {
		t.Skipf("io_uring unavailable: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	sqe := uring.PrepNop(1)
	if err := r.Push(&sqe); !errors.Is(err, uring.ErrClosed) {
		t.Errorf("push on closed ring: %v", err)
	}
}

func TestCQE_BufferID(t *testing.T) {
	c := uring.CQE{Flags: 7<<uring.IORING_CQE_BUFFER_SHIFT | uring.IORING_CQE_F_BUFFER}
	bid, ok := c.BufferID()
	if !ok || bid != 7 {
		t.Fatalf("BufferID = (%d, %v)", bid, ok)
	}
	if _, ok := (uring.CQE{}).BufferID(); ok {
		t.Error("BufferID reported for cqe without buffer flag")
	}
}
