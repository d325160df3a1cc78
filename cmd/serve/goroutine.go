package serve

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cmdUtil "github.com/momentics/hioload-bench/cmd/util"
	"github.com/momentics/hioload-bench/internal/cooperative"
)

var (
	GoroutineCmd = &cobra.Command{
		Use:   "goroutine",
		Short: "Serve with one goroutine per connection",
		Long: `Serve through the Go runtime netpoller with one goroutine per connection.
With --cpu the process runs a single P pinned to that CPU.`,
		PreRunE: cmdUtil.ProcessConfig,
		RunE:    runGoroutine,
	}
)

// CooperativeConfig reads the goroutine server configuration from v.
func CooperativeConfig(v *viper.Viper) cooperative.Config {
	return cooperative.Config{
		Addr: v.GetString("addr"),
		CPU:  v.GetInt("cpu"),
	}
}

func runGoroutine(_ *cobra.Command, _ []string) error {
	env, ctx, cancel := newRuntimeEnv("goroutine")
	defer cancel()

	s, err := cooperative.New(CooperativeConfig(viper.GetViper()), cooperative.WithLogger(env.log), cooperative.WithMetrics(env.metrics))
	if err != nil {
		return err
	}
	s.RegisterProbes(env.probes)
	s.Pin()
	return s.Serve(ctx)
}
