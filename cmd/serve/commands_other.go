//go:build !linux
// +build !linux

package serve

import "github.com/spf13/cobra"

// Commands returns the server commands available on this platform. The
// io_uring and epoll servers are Linux only.
func Commands() []*cobra.Command {
	return []*cobra.Command{GoroutineCmd}
}
