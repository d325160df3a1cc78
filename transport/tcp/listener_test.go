//go:build linux
// +build linux

package tcp_test

import (
	"errors"
	"net"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-bench/api"
	"github.com/momentics/hioload-bench/transport/tcp"
)

func TestListen_AcceptsLoopbackClient(t *testing.T) {
	ln, err := tcp.Listen(tcp.ListenConfig{Addr: "127.0.0.1:0", Backlog: 16})
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()
	if ln.Addr == nil || ln.Addr.Port == 0 {
		t.Fatalf("bound address %v", ln.Addr)
	}

	c, err := net.Dial("tcp", ln.Addr.String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	fd, _, err := unix.Accept4(ln.FD, unix.SOCK_CLOEXEC)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	defer unix.Close(fd)

	if err := tcp.Tune(fd, -1); err != nil {
		t.Fatalf("Tune: %v", err)
	}
	v, err := unix.GetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY)
	if err != nil || v == 0 {
		t.Errorf("TCP_NODELAY = %d, %v", v, err)
	}
}

func TestListen_IPv6Loopback(t *testing.T) {
	ln, err := tcp.Listen(tcp.ListenConfig{Addr: "[::1]:0", Backlog: 4})
	if err != nil {
		t.Skipf("ipv6 loopback unavailable: %v", err)
	}
	defer ln.Close()
	if ln.Addr.IP.To4() != nil {
		t.Errorf("expected v6 address, got %v", ln.Addr)
	}
}

func TestListen_RejectsHostname(t *testing.T) {
	_, err := tcp.Listen(tcp.ListenConfig{Addr: "localhost:0", Backlog: 1})
	if !errors.Is(err, api.ErrInvalidArgument) {
		t.Errorf("hostname accepted: %v", err)
	}
}
