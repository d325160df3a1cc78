// Package protocol
// Author: momentics <momentics@gmail.com>
//
// The fixed HTTP/1.1 reply written by every server variant. Request bytes are
// never parsed: any non-empty read is answered with Response.

package protocol

import "strconv"

// Body is the payload of the fixed reply.
const Body = "Hello world\n"

const header = "HTTP/1.1 200 OK\r\nContent-Length: "

// Response is the complete reply. It is handed to the kernel by address and
// must not be modified.
var Response = []byte(header + strconv.Itoa(len(Body)) + "\r\n\r\n" + Body)

// Len is the number of bytes a complete send must report.
func Len() int { return len(Response) }

// ShouldRespond reports whether a read returning n bytes earns a reply.
// Zero bytes is an orderly close; negative values are errors.
func ShouldRespond(n int) bool { return n > 0 }
