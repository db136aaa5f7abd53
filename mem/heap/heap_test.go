package heap

import "testing"

func TestAllocateFreeRoundTrip(t *testing.T) {
	h := New(make([]uint8, 64*1024), func(int) ([]uint8, bool) { return nil, false }, true)
	off, err := h.Allocate(128, false, true)
	if err != 0 {
		t.Fatalf("Allocate: %v", err)
	}
	b := h.Bytes(off, 128)
	for i, v := range b {
		if v != 0 {
			t.Fatalf("zeroed allocation byte %d = %d", i, v)
		}
	}
	for i := range b {
		b[i] = byte(i)
	}
	h.Free(off)
	// a second allocation of the same size should be able to reuse the
	// just-freed block (first-fit from the most-recently-inserted head).
	off2, err := h.Allocate(128, false, false)
	if err != 0 {
		t.Fatalf("second Allocate: %v", err)
	}
	if off2 != off {
		t.Fatalf("expected reuse of freed block, got off=%d want=%d", off2, off)
	}
}

func TestAllocateAlignment(t *testing.T) {
	h := New(make([]uint8, 256*1024), func(int) ([]uint8, bool) { return nil, false }, false)
	off, err := h.Allocate(4096, true, false)
	if err != 0 {
		t.Fatalf("Allocate: %v", err)
	}
	if off%4096 != 0 {
		t.Fatalf("aligned allocation not page-aligned: off=%d", off)
	}
}

func TestCoalesceAdjacentFrees(t *testing.T) {
	h := New(make([]uint8, 64*1024), func(int) ([]uint8, bool) { return nil, false }, true)
	a, _ := h.Allocate(64, false, false)
	b, _ := h.Allocate(64, false, false)
	c, _ := h.Allocate(64, false, false)
	h.Free(a)
	h.Free(c)
	h.Free(b)
	// after freeing all three adjacent blocks, a large allocation spanning
	// their combined space should succeed, proving they coalesced.
	big, err := h.Allocate(64*3+overhead*2, false, false)
	if err != 0 {
		t.Fatalf("expected coalesced block to satisfy a larger allocation: %v", err)
	}
	_ = big
}

func TestOutOfMemoryWithoutGrowth(t *testing.T) {
	h := New(make([]uint8, 256), func(int) ([]uint8, bool) { return nil, false }, false)
	if _, err := h.Allocate(10000, false, false); err == 0 {
		t.Fatal("expected ENOMEM")
	}
}

func TestGrowOnDemand(t *testing.T) {
	base := make([]uint8, 64)
	grown := false
	h := New(base, func(min int) ([]uint8, bool) {
		if grown {
			return nil, false
		}
		grown = true
		bigger := make([]uint8, len(base)+4096)
		copy(bigger, base)
		return bigger, true
	}, false)
	off, err := h.Allocate(2048, false, false)
	if err != 0 {
		t.Fatalf("Allocate after growth should succeed: %v", err)
	}
	if !grown {
		t.Fatal("grow hook was never invoked")
	}
	_ = off
}

func TestOOMChanRetryPath(t *testing.T) {
	growAttempts := 0
	h := New(make([]uint8, 64), func(min int) ([]uint8, bool) {
		growAttempts++
		if growAttempts < 2 {
			return nil, false
		}
		return make([]uint8, 8192), true
	}, false)
	h.OOMChan = make(chan OOMRequest, 1)
	done := make(chan struct{})
	go func() {
		req := <-h.OOMChan
		req.Resp <- true
		close(done)
	}()
	if _, err := h.Allocate(4096, false, false); err != 0 {
		t.Fatalf("allocation should succeed after OOM retry: %v", err)
	}
	<-done
}
