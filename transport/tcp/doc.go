// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package tcp opens raw listening sockets and applies per-connection socket
// options for the completion and readiness servers, which drive descriptors
// directly instead of through net.Conn.
package tcp
