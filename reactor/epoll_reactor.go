//go:build linux
// +build linux

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor - Linux epoll implementation.

package reactor

import (
	"fmt"

	"golang.org/x/sys/unix"
)

const maxEvents = 1024

// epollReactor implements Reactor using level-triggered epoll.
type epollReactor struct {
	epfd      int
	callbacks map[int]FDCallback
	events    []unix.EpollEvent
}

// New creates an epoll reactor.
func New() (Reactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	return &epollReactor{
		epfd:      epfd,
		callbacks: make(map[int]FDCallback),
		events:    make([]unix.EpollEvent, maxEvents),
	}, nil
}

// Register adds a file descriptor to the epoll watch list.
func (r *epollReactor) Register(fd int, events FDEventType, cb FDCallback) error {
	var ev unix.EpollEvent
	if events&EventRead != 0 {
		ev.Events |= unix.EPOLLIN | unix.EPOLLRDHUP
	}
	if events&EventWrite != 0 {
		ev.Events |= unix.EPOLLOUT
	}
	ev.Fd = int32(fd)
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl add fd %d: %w", fd, err)
	}
	r.callbacks[fd] = cb
	return nil
}

// Unregister removes a file descriptor from the epoll watch list.
func (r *epollReactor) Unregister(fd int) error {
	delete(r.callbacks, fd)
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("epoll ctl del fd %d: %w", fd, err)
	}
	return nil
}

// Poll blocks and waits for events on registered file descriptors.
// timeoutMs < 0 means block infinitely.
func (r *epollReactor) Poll(timeoutMs int) error {
	if timeoutMs < 0 {
		timeoutMs = -1
	}
	n, err := unix.EpollWait(r.epfd, r.events, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return fmt.Errorf("epoll wait: %w", err)
	}

	for i := 0; i < n; i++ {
		ev := r.events[i]
		fd := int(ev.Fd)
		// An earlier callback in this batch may have unregistered fd.
		cb, ok := r.callbacks[fd]
		if !ok {
			continue
		}
		var eventType FDEventType
		if ev.Events&(unix.EPOLLIN|unix.EPOLLRDHUP) != 0 {
			eventType |= EventRead
		}
		if ev.Events&unix.EPOLLOUT != 0 {
			eventType |= EventWrite
		}
		if ev.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
			eventType |= EventError
		}
		if err := cb(fd, eventType); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of registered descriptors.
func (r *epollReactor) Len() int {
	return len(r.callbacks)
}

// Close releases the epoll file descriptor.
func (r *epollReactor) Close() error {
	return unix.Close(r.epfd)
}
