//go:build linux
// +build linux

package reactor_test

import (
	"errors"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-bench/reactor"
)

func newPipe(t *testing.T) (r, w int) {
	t.Helper()
	var p [2]int
	if err := unix.Pipe2(p[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		t.Fatalf("pipe: %v", err)
	}
	t.Cleanup(func() {
		_ = unix.Close(p[0])
		_ = unix.Close(p[1])
	})
	return p[0], p[1]
}

func newReactor(t *testing.T) reactor.Reactor {
	t.Helper()
	re, err := reactor.New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = re.Close() })
	return re
}

func TestReactor_ReadReadiness(t *testing.T) {
	re := newReactor(t)
	rfd, wfd := newPipe(t)

	var got []reactor.FDEventType
	if err := re.Register(rfd, reactor.EventRead, func(fd int, ev reactor.FDEventType) error {
		if fd != rfd {
			t.Errorf("callback for fd %d", fd)
		}
		got = append(got, ev)
		var buf [8]byte
		_, _ = unix.Read(fd, buf[:])
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	if err := re.Poll(0); err != nil || len(got) != 0 {
		t.Fatalf("idle poll: err=%v events=%v", err, got)
	}
	if _, err := unix.Write(wfd, []byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := re.Poll(1000); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0]&reactor.EventRead == 0 {
		t.Errorf("events %v", got)
	}
}

func TestReactor_CallbackErrorStopsPoll(t *testing.T) {
	re := newReactor(t)
	rfd, wfd := newPipe(t)
	boom := errors.New("boom")
	_ = re.Register(rfd, reactor.EventRead, func(int, reactor.FDEventType) error { return boom })
	_, _ = unix.Write(wfd, []byte("x"))
	if err := re.Poll(1000); !errors.Is(err, boom) {
		t.Errorf("Poll = %v", err)
	}
}

func TestReactor_UnregisterInsideCallback(t *testing.T) {
	re := newReactor(t)
	rfd, wfd := newPipe(t)
	calls := 0
	_ = re.Register(rfd, reactor.EventRead, func(fd int, _ reactor.FDEventType) error {
		calls++
		return re.Unregister(fd)
	})
	_, _ = unix.Write(wfd, []byte("x"))
	_ = re.Poll(1000)
	_ = re.Poll(0)
	if calls != 1 || re.Len() != 0 {
		t.Errorf("calls=%d len=%d", calls, re.Len())
	}
}
