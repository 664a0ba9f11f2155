// pkg/buddy/allocator_test.go
package buddy

import (
	"testing"
)

func newTestAllocator(t *testing.T, regionSize, chunkSize int) *Allocator {
	t.Helper()
	a, err := New(Options{RegionSize: regionSize, ChunkSize: chunkSize})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestNewRejectsNonPowerOfTwo(t *testing.T) {
	cases := []Options{
		{RegionSize: 1000, ChunkSize: 64},
		{RegionSize: 1024, ChunkSize: 65},
		{RegionSize: 64, ChunkSize: 1024},
	}
	for _, opts := range cases {
		if _, err := New(opts); err != ErrBadRegion {
			t.Errorf("New(%+v) error = %v, want ErrBadRegion", opts, err)
		}
	}
}

func TestAllocateWholeRegion(t *testing.T) {
	a := newTestAllocator(t, 1024, 64)
	off, err := a.Allocate(1024)
	if err != nil {
		t.Fatalf("Allocate(1024): %v", err)
	}
	if off != 0 {
		t.Errorf("Allocate(1024) offset = %d, want 0", off)
	}

	if _, err := a.Allocate(64); err != ErrExhausted {
		t.Errorf("second Allocate(64) error = %v, want ErrExhausted", err)
	}
}

func TestAllocateRejectsBadSize(t *testing.T) {
	a := newTestAllocator(t, 1024, 64)
	if _, err := a.Allocate(0); err != ErrInvalidSize {
		t.Errorf("Allocate(0) error = %v, want ErrInvalidSize", err)
	}
	if _, err := a.Allocate(2048); err != ErrInvalidSize {
		t.Errorf("Allocate(2048) error = %v, want ErrInvalidSize", err)
	}
}

func TestAllocateSplitsAndFills(t *testing.T) {
	a := newTestAllocator(t, 1024, 64)
	seen := map[int]bool{}
	for i := 0; i < 1024/64; i++ {
		off, err := a.Allocate(64)
		if err != nil {
			t.Fatalf("Allocate #%d: %v", i, err)
		}
		if seen[off] {
			t.Fatalf("Allocate #%d returned duplicate offset %d", i, off)
		}
		seen[off] = true
	}
	if _, err := a.Allocate(64); err != ErrExhausted {
		t.Errorf("Allocate after filling region error = %v, want ErrExhausted", err)
	}
}

func TestDeallocateThenReallocate(t *testing.T) {
	a := newTestAllocator(t, 1024, 64)
	off, err := a.Allocate(1024)
	if err != nil {
		t.Fatalf("Allocate(1024): %v", err)
	}
	if err := a.Deallocate(off); err != nil {
		t.Fatalf("Deallocate(%d): %v", off, err)
	}
	if off2, err := a.Allocate(1024); err != nil || off2 != off {
		t.Errorf("re-Allocate(1024) = (%d, %v), want (%d, nil)", off2, err, off)
	}
}

func TestCoalescingReunitesBuddies(t *testing.T) {
	a := newTestAllocator(t, 1024, 64)
	offA, err := a.Allocate(512)
	if err != nil {
		t.Fatalf("Allocate(512) #1: %v", err)
	}
	offB, err := a.Allocate(512)
	if err != nil {
		t.Fatalf("Allocate(512) #2: %v", err)
	}

	if err := a.Deallocate(offA); err != nil {
		t.Fatalf("Deallocate(offA): %v", err)
	}
	if err := a.Deallocate(offB); err != nil {
		t.Fatalf("Deallocate(offB): %v", err)
	}

	off, err := a.Allocate(1024)
	if err != nil {
		t.Fatalf("Allocate(1024) after freeing both halves: %v", err)
	}
	if off != 0 {
		t.Errorf("Allocate(1024) offset = %d, want 0", off)
	}
}

func TestBuddyDenialBlocksCoalescing(t *testing.T) {
	a := newTestAllocator(t, 1024, 64)
	offA, err := a.Allocate(512)
	if err != nil {
		t.Fatalf("Allocate(512) #1: %v", err)
	}
	if _, err := a.Allocate(512); err != nil {
		t.Fatalf("Allocate(512) #2: %v", err)
	}

	// Free only one half: its buddy is still occupied, so the parent
	// must not become allocatable as a whole block.
	if err := a.Deallocate(offA); err != nil {
		t.Fatalf("Deallocate(offA): %v", err)
	}
	if _, err := a.Allocate(1024); err != ErrExhausted {
		t.Errorf("Allocate(1024) with one buddy still occupied: err = %v, want ErrExhausted", err)
	}

	// The freed half is still independently allocatable, though.
	if _, err := a.Allocate(512); err != nil {
		t.Errorf("Allocate(512) into the freed half: %v", err)
	}
}

func TestRollbackOnAncestorOccupied(t *testing.T) {
	a := newTestAllocator(t, 1024, 64)

	// Claim the whole region at level 0: every descendant leaf now has
	// an OCC ancestor.
	if _, err := a.Allocate(1024); err != nil {
		t.Fatalf("Allocate(1024): %v", err)
	}

	// A request sized to force scanning at a deeper level must still
	// fail cleanly: the leaf-level CAS can succeed locally (the leaf
	// node itself was never marked busy), but ascent hits the occupied
	// root and rolls the claim back rather than leaving a dangling
	// leaf marked BUSY.
	if _, err := a.Allocate(64); err != ErrExhausted {
		t.Fatalf("Allocate(64) against a fully claimed region: err = %v, want ErrExhausted", err)
	}

	// Rollback must have cleared every node it touched: only the claimed
	// root may still carry bits, so no stray BUSY or OCC bits are left
	// behind by the failed leaf claim above.
	for i := 2; i < len(a.tree); i++ {
		if v := a.tree[i].Load(); v != 0 {
			t.Fatalf("tree[%d] = %#x after rollback, want 0", i, v)
		}
	}

	// The whole region, once properly freed, must still be allocatable
	// as one block.
	off, err := a.Allocate(1024)
	if err == nil {
		t.Fatalf("Allocate(1024) succeeded while the region was still claimed")
	}
	_ = off
	if err := a.Deallocate(0); err != nil {
		t.Fatalf("Deallocate(0): %v", err)
	}
	if _, err := a.Allocate(1024); err != nil {
		t.Fatalf("Allocate(1024) after freeing: %v", err)
	}
}

func TestDeallocateUnknownAddressIsNoop(t *testing.T) {
	a := newTestAllocator(t, 1024, 64)
	if err := a.Deallocate(0); err != nil {
		t.Errorf("Deallocate on never-allocated address: %v", err)
	}
	if err := a.Deallocate(-1); err != nil {
		t.Errorf("Deallocate(-1): %v", err)
	}
	if err := a.Deallocate(1<<20); err != nil {
		t.Errorf("Deallocate(huge offset): %v", err)
	}
}

func TestDoubleDeallocateIsNoop(t *testing.T) {
	a := newTestAllocator(t, 1024, 64)
	off, err := a.Allocate(64)
	if err != nil {
		t.Fatalf("Allocate(64): %v", err)
	}
	if err := a.Deallocate(off); err != nil {
		t.Fatalf("first Deallocate: %v", err)
	}
	if err := a.Deallocate(off); err != nil {
		t.Errorf("second Deallocate(same offset): %v", err)
	}
}

func TestStatsTracksUsage(t *testing.T) {
	a := newTestAllocator(t, 1024, 64)
	if s := a.Stats(); s.BytesInUse != 0 || s.LiveAllocations != 0 {
		t.Fatalf("initial Stats = %+v, want zeroed", s)
	}

	off, err := a.Allocate(256)
	if err != nil {
		t.Fatalf("Allocate(256): %v", err)
	}
	s := a.Stats()
	if s.BytesInUse != 256 || s.LiveAllocations != 1 {
		t.Errorf("Stats after Allocate = %+v, want BytesInUse=256 LiveAllocations=1", s)
	}

	if err := a.Deallocate(off); err != nil {
		t.Fatalf("Deallocate: %v", err)
	}
	s = a.Stats()
	if s.BytesInUse != 0 || s.LiveAllocations != 0 {
		t.Errorf("Stats after Deallocate = %+v, want zeroed", s)
	}
}

func TestAllocateRequestSmallerThanChunkRoundsUp(t *testing.T) {
	a := newTestAllocator(t, 1024, 64)
	off, err := a.Allocate(1)
	if err != nil {
		t.Fatalf("Allocate(1): %v", err)
	}
	if blockSize(int(a.claimed[off/a.chunkSize].Load()), a.regionSize) != 64 {
		t.Errorf("Allocate(1) should round up to the chunk size")
	}
}

func TestBytesReturnsCorrectSlice(t *testing.T) {
	a := newTestAllocator(t, 1024, 64)
	off, err := a.Allocate(128)
	if err != nil {
		t.Fatalf("Allocate(128): %v", err)
	}
	b := a.Bytes(off, 128)
	if len(b) != 128 {
		t.Fatalf("Bytes returned slice of length %d, want 128", len(b))
	}
	b[0] = 0xAB
	if a.region.Bytes()[off] != 0xAB {
		t.Error("Bytes() slice does not alias the backing region")
	}
}
