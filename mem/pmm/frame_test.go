package pmm

import (
	"testing"

	"kernix/mem"
)

func mkAllocator(nframes int) *FrameAllocator {
	fa := New(0, uint64(nframes*mem.PGSIZE))
	// simulate every frame free, as if the whole region were reported
	// available by the bootloader.
	for f := 0; f < nframes; f++ {
		fa.clearBit(f)
	}
	fa.free = nframes
	return fa
}

func TestAllocFreeBijection(t *testing.T) {
	fa := mkAllocator(64)
	var allocated []mem.Pa_t
	for i := 0; i < 10; i++ {
		p, err := fa.Alloc(1)
		if err != 0 {
			t.Fatalf("alloc %d: %v", i, err)
		}
		allocated = append(allocated, p)
	}
	if fa.AllocatedCount() != 10 {
		t.Fatalf("allocated count = %d", fa.AllocatedCount())
	}
	// free half, in a different order than allocated
	for i := 0; i < 5; i++ {
		fa.Free(allocated[9-i], 1)
	}
	if fa.AllocatedCount() != 5 {
		t.Fatalf("allocated count after partial free = %d", fa.AllocatedCount())
	}
	for i := 5; i < 10; i++ {
		fa.Free(allocated[9-i], 1)
	}
	if fa.AllocatedCount() != 0 {
		t.Fatalf("allocated count after full free = %d", fa.AllocatedCount())
	}
}

func TestOutOfMemory(t *testing.T) {
	fa := mkAllocator(4)
	for i := 0; i < 4; i++ {
		if _, err := fa.Alloc(1); err != 0 {
			t.Fatalf("alloc %d should have succeeded", i)
		}
	}
	if _, err := fa.Alloc(1); err == 0 {
		t.Fatal("expected ENOMEM")
	}
	// earlier allocations must still be intact
	if fa.AllocatedCount() != 4 {
		t.Fatalf("allocated count = %d", fa.AllocatedCount())
	}
	fa.Free(fa.base, 1)
	if _, err := fa.Alloc(1); err != 0 {
		t.Fatal("alloc should succeed after a free")
	}
}

func TestContiguousRun(t *testing.T) {
	fa := mkAllocator(16)
	p, err := fa.Alloc(4)
	if err != 0 {
		t.Fatal(err)
	}
	if fa.AllocatedCount() != 4 {
		t.Fatalf("allocated count = %d", fa.AllocatedCount())
	}
	fa.Free(p, 4)
	if fa.AllocatedCount() != 0 {
		t.Fatal("free of a run should clear all frames")
	}
}

func TestReserve(t *testing.T) {
	fa := mkAllocator(8)
	fa.Reserve(0, mem.Pa_t(2*mem.PGSIZE))
	if fa.AllocatedCount() != 2 {
		t.Fatalf("reserve should mark 2 frames allocated, got %d", fa.AllocatedCount())
	}
	if err := fa.AllocAt(0, 1); err == 0 {
		t.Fatal("AllocAt on a reserved frame should fail")
	}
}
