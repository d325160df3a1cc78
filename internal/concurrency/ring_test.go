package concurrency

import (
	"runtime"
	"sync"
	"testing"
)

func TestRingBuffer_RoundsUpAndBounds(t *testing.T) {
	rb := NewRingBuffer[int](5)
	if rb.Cap() != 8 {
		t.Fatalf("expected capacity 8, got %d", rb.Cap())
	}
	for i := 0; i < 8; i++ {
		if !rb.Enqueue(i) {
			t.Fatalf("enqueue %d failed", i)
		}
	}
	if rb.Enqueue(99) {
		t.Fatal("enqueue into full ring succeeded")
	}
	for i := 0; i < 8; i++ {
		v, ok := rb.Dequeue()
		if !ok || v != i {
			t.Fatalf("dequeue %d: got (%d, %v)", i, v, ok)
		}
	}
	if _, ok := rb.Dequeue(); ok {
		t.Fatal("dequeue from empty ring succeeded")
	}
}

func TestRingBuffer_SPSC(t *testing.T) {
	rb := NewRingBuffer[int](64)
	const total = 100000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= total; i++ {
			for !rb.Enqueue(i) {
				runtime.Gosched()
			}
		}
	}()

	var sum, want int64
	for i := 1; i <= total; i++ {
		want += int64(i)
	}
	for got := 0; got < total; {
		if v, ok := rb.Dequeue(); ok {
			sum += int64(v)
			got++
		} else {
			runtime.Gosched()
		}
	}
	wg.Wait()
	if sum != want {
		t.Errorf("checksum mismatch: want %d, got %d", want, sum)
	}
}

func TestNextPowerOfTwo(t *testing.T) {
	cases := map[uint64]uint64{0: 1, 1: 1, 2: 2, 3: 4, 64: 64, 65: 128, 2047: 2048}
	for in, want := range cases {
		if got := NextPowerOfTwo(in); got != want {
			t.Errorf("NextPowerOfTwo(%d) = %d, want %d", in, got, want)
		}
	}
}
