//go:build linux
// +build linux

package serve_test

import (
	"strings"
	"testing"

	"github.com/spf13/viper"

	"github.com/momentics/hioload-bench/cmd/serve"
	"github.com/momentics/hioload-bench/internal/engine"
)

func TestEngineConfig_FlagDefaultsMatchEngine(t *testing.T) {
	v := viper.New()
	if err := v.BindPFlags(serve.UringCmd.Flags()); err != nil {
		t.Fatal(err)
	}
	v.Set("addr", "127.0.0.1:9000")
	v.Set("listen-backlog", 256)
	v.Set("cpu", -1)

	got := serve.EngineConfig(v)
	if got != engine.DefaultConfig() {
		t.Errorf("flag defaults %+v differ from engine defaults %+v", got, engine.DefaultConfig())
	}
}

func TestEngineConfig_EnvOverrides(t *testing.T) {
	t.Setenv("HIOLOAD_ACCEPTS", "8")
	t.Setenv("HIOLOAD_BUFFER_SIZE", "1024")
	v := viper.New()
	v.SetEnvPrefix("hioload")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	cfg := serve.EngineConfig(v)
	if cfg.Accepts != 8 || cfg.BufferSize != 1024 {
		t.Errorf("env not applied: %+v", cfg)
	}
}

func TestReadinessAndCooperativeConfig(t *testing.T) {
	v := viper.New()
	v.Set("addr", "[::1]:9001")
	v.Set("listen-backlog", 64)
	v.Set("cpu", 2)
	if rc := serve.ReadinessConfig(v); rc.Addr != "[::1]:9001" || rc.ListenBacklog != 64 || rc.CPU != 2 {
		t.Errorf("readiness config %+v", rc)
	}
	if cc := serve.CooperativeConfig(v); cc.Addr != "[::1]:9001" || cc.CPU != 2 {
		t.Errorf("cooperative config %+v", cc)
	}
}
