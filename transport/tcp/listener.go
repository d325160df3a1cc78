//go:build linux
// +build linux

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package tcp

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-bench/api"
)

// Listener is a bound, listening TCP socket descriptor.
type Listener struct {
	FD   int
	Addr *net.TCPAddr
}

// ListenConfig controls the listening socket.
type ListenConfig struct {
	// Addr is an IPv4 or IPv6 literal with port, e.g. "127.0.0.1:9000" or "[::1]:9000".
	Addr string
	// Backlog is the kernel accept queue length.
	Backlog int
	// NonBlocking puts the socket in O_NONBLOCK mode for readiness polling.
	NonBlocking bool
}

// Listen creates, binds and listens on a TCP socket with SO_REUSEADDR.
func Listen(cfg ListenConfig) (*Listener, error) {
	host, port, err := net.SplitHostPort(cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen %q: %w", cfg.Addr, err)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return nil, fmt.Errorf("listen %q: host must be an IP literal: %w", cfg.Addr, api.ErrInvalidArgument)
	}
	tcpAddr, err := net.ResolveTCPAddr("tcp", net.JoinHostPort(ip.String(), port))
	if err != nil {
		return nil, fmt.Errorf("listen %q: %w", cfg.Addr, err)
	}

	domain, sa := sockaddr(tcpAddr)
	typ := unix.SOCK_STREAM | unix.SOCK_CLOEXEC
	if cfg.NonBlocking {
		typ |= unix.SOCK_NONBLOCK
	}
	fd, err := unix.Socket(domain, typ, unix.IPPROTO_TCP)
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("setsockopt SO_REUSEADDR: %w", err)
	}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("bind %s: %w", tcpAddr, err)
	}
	if err := unix.Listen(fd, cfg.Backlog); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("listen %s: %w", tcpAddr, err)
	}

	bound, err := unix.Getsockname(fd)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("getsockname: %w", err)
	}
	return &Listener{FD: fd, Addr: tcpAddrOf(bound)}, nil
}

// Close closes the listening socket.
func (l *Listener) Close() error {
	return unix.Close(l.FD)
}

func sockaddr(a *net.TCPAddr) (int, unix.Sockaddr) {
	if ip4 := a.IP.To4(); ip4 != nil {
		sa := &unix.SockaddrInet4{Port: a.Port}
		copy(sa.Addr[:], ip4)
		return unix.AF_INET, sa
	}
	sa := &unix.SockaddrInet6{Port: a.Port}
	copy(sa.Addr[:], a.IP.To16())
	return unix.AF_INET6, sa
}

func tcpAddrOf(sa unix.Sockaddr) *net.TCPAddr {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: net.IP(v.Addr[:]).To16(), Port: v.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: net.IP(v.Addr[:]), Port: v.Port}
	default:
		return nil
	}
}
