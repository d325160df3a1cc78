//go:build linux
// +build linux

package serve

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cmdUtil "github.com/momentics/hioload-bench/cmd/util"
	"github.com/momentics/hioload-bench/internal/readiness"
)

var (
	EpollCmd = &cobra.Command{
		Use:   "epoll",
		Short: "Serve with a single-threaded epoll readiness loop",
		Long: `Serve from one epoll loop: the listener is drained until EAGAIN on readiness,
and each readable connection gets one read and, for a non-empty read, one write.`,
		PreRunE: cmdUtil.ProcessConfig,
		RunE:    runEpoll,
	}
)

// ReadinessConfig reads the epoll server configuration from v.
func ReadinessConfig(v *viper.Viper) readiness.Config {
	return readiness.Config{
		Addr:          v.GetString("addr"),
		ListenBacklog: v.GetInt("listen-backlog"),
		CPU:           v.GetInt("cpu"),
	}
}

func runEpoll(_ *cobra.Command, _ []string) error {
	env, ctx, cancel := newRuntimeEnv("epoll")
	defer cancel()

	s, err := readiness.New(ReadinessConfig(viper.GetViper()), readiness.WithLogger(env.log), readiness.WithMetrics(env.metrics))
	if err != nil {
		return err
	}
	s.RegisterProbes(env.probes)
	err = s.Serve(ctx)
	if cerr := s.Close(); err == nil {
		err = cerr
	}
	return err
}
