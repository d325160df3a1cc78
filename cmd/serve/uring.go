//go:build linux
// +build linux

package serve

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cmdUtil "github.com/momentics/hioload-bench/cmd/util"
	"github.com/momentics/hioload-bench/api"
	"github.com/momentics/hioload-bench/internal/engine"
)

var (
	UringCmd = &cobra.Command{
		Use:   "uring",
		Short: "Serve with the io_uring completion engine",
		Long: `Serve with a single-threaded io_uring engine: accepts stay armed in the kernel,
receives pick kernel-provided buffers, and every completion is dispatched by its tag.
Environment variables use the form HIOLOAD_<FLAG> (e.g. HIOLOAD_RING_ENTRIES=4096).`,
		PreRunE: cmdUtil.ProcessConfig,
		RunE:    runUring,
	}
)

func init() {
	def := engine.DefaultConfig()

	key := "ring-entries"
	UringCmd.Flags().Uint32(key, def.RingEntries, cmdUtil.WrapString("Submission queue entries requested from the kernel"))

	key = "accepts"
	UringCmd.Flags().Int(key, def.Accepts, cmdUtil.WrapString("Number of accept operations kept armed at all times"))

	key = "buffers"
	UringCmd.Flags().Int(key, def.Buffers, cmdUtil.WrapString("Number of kernel-provided receive buffers"))

	key = "buffer-size"
	UringCmd.Flags().Int(key, def.BufferSize, cmdUtil.WrapString("Size of each provided receive buffer in bytes"))

	key = "buffer-group"
	UringCmd.Flags().Uint16(key, def.BufferGroup, cmdUtil.WrapString("Kernel buffer group id of the receive buffers"))

	key = "max-conns"
	UringCmd.Flags().Int(key, def.MaxConns, cmdUtil.WrapString("Connection table capacity; connections beyond it are closed on accept"))

	key = "backlog-limit"
	UringCmd.Flags().Int(key, def.BacklogLimit, cmdUtil.WrapString("Submission backlog depth at which accept re-arms are deferred"))
}

// EngineConfig reads the engine configuration from v.
func EngineConfig(v *viper.Viper) engine.Config {
	return engine.Config{
		Addr:          v.GetString("addr"),
		ListenBacklog: v.GetInt("listen-backlog"),
		RingEntries:   v.GetUint32("ring-entries"),
		Accepts:       v.GetInt("accepts"),
		Buffers:       v.GetInt("buffers"),
		BufferSize:    v.GetInt("buffer-size"),
		BufferGroup:   v.GetUint16("buffer-group"),
		MaxConns:      v.GetInt("max-conns"),
		BacklogLimit:  v.GetInt("backlog-limit"),
		CPU:           v.GetInt("cpu"),
	}
}

func runUring(_ *cobra.Command, _ []string) error {
	env, ctx, cancel := newRuntimeEnv("uring")
	defer cancel()

	e, err := engine.New(EngineConfig(viper.GetViper()), engine.WithLogger(env.log), engine.WithMetrics(env.metrics))
	if err != nil {
		return err
	}
	e.RegisterProbes(env.probes)

	errc := make(chan error, 1)
	go func() { errc <- e.Run() }()
	select {
	case err := <-errc:
		if api.IsInternal(err) {
			env.log.WithError(err).Error("internal consistency violation")
		}
		return err
	case <-ctx.Done():
		// The loop may be blocked in the kernel; the process exit tears
		// the ring down.
		env.log.Info("shutting down")
		return nil
	}
}
