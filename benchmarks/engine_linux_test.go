//go:build linux
// +build linux

package benchmarks

import (
	"testing"

	"github.com/momentics/hioload-bench/fake"
	"github.com/momentics/hioload-bench/internal/engine"
	"github.com/momentics/hioload-bench/internal/tag"
	"github.com/momentics/hioload-bench/pool"
)

// BenchmarkProvidedBufferLease measures a lease and return of one provided buffer.
func BenchmarkProvidedBufferLease(b *testing.B) {
	bufs, err := pool.NewProvidedBuffers(128, 4096, 1)
	if err != nil {
		b.Fatal(err)
	}
	defer bufs.Close()
	for i := 0; i < b.N; i++ {
		l, err := bufs.Lease(uint16(i%128), 64)
		if err != nil {
			b.Fatal(err)
		}
		if _, err := bufs.Return(l, tag.Encode(tag.ReturnBuffer, uint32(l.ID()))); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkEngineRequest measures the dispatch path of one request against
// the simulated kernel: receive, send and buffer re-provide.
func BenchmarkEngineRequest(b *testing.B) {
	cfg := engine.DefaultConfig()
	cfg.Accepts = 4
	cfg.Buffers = 16
	cfg.BufferSize = 256
	r := fake.NewRing(256)
	e, err := engine.New(cfg,
		engine.WithRing(r),
		engine.WithListenFD(3),
		engine.WithSockets(fake.NewSockets()),
		engine.WithLogger(quietLogger()),
	)
	if err != nil {
		b.Fatal(err)
	}
	defer e.Close()
	if err := e.Start(); err != nil {
		b.Fatal(err)
	}
	fd := r.Connect()
	for i := 0; i < 4; i++ {
		if err := e.RunOnce(); err != nil {
			b.Fatal(err)
		}
	}
	req := []byte("GET / HTTP/1.1\r\n\r\n")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.Deliver(fd, req)
		for j := 0; j < 3; j++ {
			if err := e.RunOnce(); err != nil {
				b.Fatal(err)
			}
		}
	}
}
