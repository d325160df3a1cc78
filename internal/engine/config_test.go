package engine_test

import (
	"errors"
	"testing"

	"github.com/momentics/hioload-bench/api"
	"github.com/momentics/hioload-bench/internal/engine"
)

func TestDefaultConfig_ReferenceDeployment(t *testing.T) {
	cfg := engine.DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.RingEntries != 2048 || cfg.Accepts != 64 || cfg.Buffers != 128 ||
		cfg.BufferSize != 4096 || cfg.BufferGroup != 1337 || cfg.ListenBacklog != 256 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}

func TestConfig_Validate(t *testing.T) {
	cases := map[string]func(*engine.Config){
		"zero ring":          func(c *engine.Config) { c.RingEntries = 0 },
		"no accepts":         func(c *engine.Config) { c.Accepts = 0 },
		"accepts over ring":  func(c *engine.Config) { c.RingEntries = 8; c.Accepts = 9 },
		"too many buffers":   func(c *engine.Config) { c.Buffers = 70000 },
		"zero buffer size":   func(c *engine.Config) { c.BufferSize = 0 },
		"no conns":           func(c *engine.Config) { c.MaxConns = 0 },
		"no backlog limit":   func(c *engine.Config) { c.BacklogLimit = 0 },
		"no listen backlog":  func(c *engine.Config) { c.ListenBacklog = 0 },
		"negative cpu index": func(c *engine.Config) { c.CPU = -2 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := engine.DefaultConfig()
			mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, api.ErrInvalidArgument) {
				t.Errorf("Validate() = %v", err)
			}
		})
	}
}
