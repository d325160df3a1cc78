// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides a single-threaded, level-triggered epoll reactor
// with per-descriptor callbacks.
package reactor
