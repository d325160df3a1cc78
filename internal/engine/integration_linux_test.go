//go:build linux
// +build linux

package engine_test

import (
	"bytes"
	"io"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/momentics/hioload-bench/internal/engine"
	"github.com/momentics/hioload-bench/protocol"
)

func TestEngine_RealRingServesLoopback(t *testing.T) {
	cfg := engine.DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.RingEntries = 64
	cfg.Accepts = 4
	cfg.Buffers = 16
	log := logrus.New()
	log.SetOutput(io.Discard)

	e, err := engine.New(cfg, engine.WithLogger(logrus.NewEntry(log)))
	if err != nil {
		t.Skipf("io_uring engine unavailable: %v", err)
	}
	// Run has no cancellation; the serving goroutine ends with the test binary.
	started := make(chan error, 1)
	go func() {
		if err := e.Start(); err != nil {
			started <- err
			return
		}
		started <- nil
		_ = e.Run()
	}()
	if err := <-started; err != nil {
		_ = e.Close()
		t.Skipf("io_uring start failed: %v", err)
	}

	c, err := net.DialTimeout("tcp", e.Addr(), 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()
	_ = c.SetDeadline(time.Now().Add(5 * time.Second))

	for i := 0; i < 2; i++ {
		if _, err := c.Write([]byte("ping")); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
		got := make([]byte, protocol.Len())
		if _, err := io.ReadFull(c, got); err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if !bytes.Equal(got, protocol.Response) {
			t.Fatalf("response %d = %q", i, got)
		}
	}
}
