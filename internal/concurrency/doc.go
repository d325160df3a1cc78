// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Lock-free primitives shared by the serving loops. RingBuffer is a bounded
// FIFO of power-of-two capacity, used by the io_uring engine to park accept
// re-arms while the submission backlog is over its limit.
package concurrency
