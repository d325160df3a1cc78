// Package pool
// Author: momentics <momentics@gmail.com>
//
// Memory handed to the kernel by the io_uring engine.
// ProvidedBuffers is the receive buffer group the kernel selects from;
// AcceptSlots holds the peer address regions of in-flight accepts.
// Both are single-owner structures driven from the engine's event loop.
package pool
