//go:build linux
// +build linux

package serve

import "github.com/spf13/cobra"

// Commands returns the server commands available on this platform.
func Commands() []*cobra.Command {
	return []*cobra.Command{UringCmd, EpollCmd, GoroutineCmd}
}
