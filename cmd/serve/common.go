package serve

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/momentics/hioload-bench/cmd/util"
	"github.com/momentics/hioload-bench/control"
)

// runtimeEnv is what every server command needs besides its own server.
type runtimeEnv struct {
	log      *logrus.Entry
	registry *prometheus.Registry
	metrics  *control.Metrics
	probes   *control.DebugProbes
}

// newRuntimeEnv builds the logger, metrics and probes for server and starts
// the control endpoint when metrics-addr is set. The returned context ends
// on SIGINT or SIGTERM.
func newRuntimeEnv(server string) (*runtimeEnv, context.Context, context.CancelFunc) {
	env := &runtimeEnv{
		log:      logrus.WithField("component", server),
		registry: prometheus.NewRegistry(),
		probes:   control.NewDebugProbes(),
	}
	env.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	env.metrics = control.NewMetrics(env.registry, server)
	control.RegisterPlatformProbes(env.probes)
	env.probes.RegisterProbe("config", func() any { return util.Store.GetSnapshot() })

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	if addr := viper.GetString("metrics-addr"); addr != "" {
		go func() {
			h := control.NewHandler(env.registry, env.probes)
			if err := control.Serve(ctx, addr, h, env.log); err != nil {
				env.log.WithError(err).Error("control endpoint failed")
			}
		}()
	}
	return env, ctx, cancel
}
