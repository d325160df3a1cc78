// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake implementations for testing and development.
// Ring simulates the kernel side of io_uring for the completion engine;
// Sockets records what the engine configures and closes.
package fake
