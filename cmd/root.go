package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/momentics/hioload-bench/cmd/serve"
	"github.com/momentics/hioload-bench/cmd/util"
)

const (
	Version = "0.1.0"
)

var (
	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "hioload-bench",
		Short: "fixed-response TCP server for I/O model benchmarks",
		Long: fmt.Sprintf(`hioload-bench (v%s)

Answers every non-empty read with the same small HTTP/1.1 response so that
the cost of the I/O model itself can be measured: io_uring completions,
epoll readiness, or one goroutine per connection.

Every flag can also be set as HIOLOAD_<FLAG> in the environment or in .env.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of hioload-bench",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("hioload-bench v%s\n", Version)
		},
	}
)

func init() {
	cobra.OnInitialize(util.InitConfig)

	RootCmd.AddCommand(serve.Commands()...)
	RootCmd.AddCommand(versionCmd)

	util.SetupCommonFlags(RootCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		logrus.WithError(err).Error("hioload-bench failed")
		os.Exit(1)
	}
}
