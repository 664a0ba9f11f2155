// pkg/buddy/allocator.go
package buddy

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Options configures an Allocator.
type Options struct {
	// RegionSize is the total managed region size in bytes (S). Must be
	// a power of two.
	RegionSize int

	// ChunkSize is the smallest allocatable block size in bytes (K).
	// Must be a power of two with RegionSize/ChunkSize also a power of
	// two.
	ChunkSize int

	// Region supplies the backing bytes. If nil, New allocates a
	// HeapRegion of RegionSize bytes.
	Region Region
}

// Allocator is a non-blocking buddy allocator over a single fixed-size
// region. All exported methods are safe for concurrent use without
// external locking: allocations and deallocations race freely and
// resolve through CAS loops on the status tree, never a mutex.
type Allocator struct {
	regionSize int
	chunkSize  int
	depth      int // D = log2(S/K)

	// closeMu guards the region's lifecycle: every method that touches
	// region takes the read lock, Close takes the write lock, mirroring
	// pkg/pager/page.go's Page.mu around its own mutable, concurrently
	// read field (there pinned/dirty, here the region itself).
	closeMu sync.RWMutex
	region  Region

	tree        []atomic.Uint32 // index 1..N; index 0 unused
	claimed     []atomic.Int32  // leaf slot -> claiming node index
	reservation []atomic.Int32  // node index -> requested byte size

	bytesInUse atomic.Int64
	live       atomic.Int64
}

// New constructs an Allocator for the given Options.
func New(opts Options) (*Allocator, error) {
	if !isPowerOfTwo(opts.RegionSize) || !isPowerOfTwo(opts.ChunkSize) ||
		opts.RegionSize < opts.ChunkSize || !isPowerOfTwo(opts.RegionSize/opts.ChunkSize) {
		return nil, ErrBadRegion
	}

	region := opts.Region
	if region == nil {
		region = NewHeapRegion(opts.RegionSize)
	}
	if region.Size() != opts.RegionSize {
		return nil, fmt.Errorf("buddy: region size %d does not match RegionSize %d", region.Size(), opts.RegionSize)
	}

	n := nnodes(opts.RegionSize, opts.ChunkSize)
	slots := opts.RegionSize / opts.ChunkSize

	return &Allocator{
		regionSize:  opts.RegionSize,
		chunkSize:   opts.ChunkSize,
		depth:       level(slots),
		region:      region,
		tree:        make([]atomic.Uint32, n),
		claimed:     make([]atomic.Int32, slots),
		reservation: make([]atomic.Int32, n),
	}, nil
}

// RegionSize returns S.
func (a *Allocator) RegionSize() int { return a.regionSize }

// ChunkSize returns K.
func (a *Allocator) ChunkSize() int { return a.chunkSize }

// Depth returns D, the leaf level.
func (a *Allocator) Depth() int { return a.depth }

// Close releases the backing region. After Close the allocator must not
// be used.
func (a *Allocator) Close() error {
	a.closeMu.Lock()
	defer a.closeMu.Unlock()
	return a.region.Close()
}

// Allocate claims a block of at least size bytes and returns its
// starting byte offset within the region. On failure it returns -1 (0 is
// a valid offset — the whole-region block starts at byte 0 — so it
// cannot double as a null sentinel the way it does in Shim) alongside
// ErrInvalidSize or ErrExhausted.
func (a *Allocator) Allocate(size int) (int, error) {
	a.closeMu.RLock()
	defer a.closeMu.RUnlock()

	if size <= 0 || size > a.regionSize {
		return -1, ErrInvalidSize
	}

	l := level(a.regionSize / size)
	if l > a.depth {
		l = a.depth
	}

	start := 1 << uint(l)
	end := 1 << uint(l+1)

	for i := start; i < end; i++ {
		if !isFree(a.tree[i].Load()) {
			continue
		}
		if !a.tree[i].CompareAndSwap(0, busyMask) {
			continue
		}

		ok, failedAt := a.ascend(i)
		if !ok {
			d := 1 << uint(level(i)-level(failedAt))
			i = (failedAt+1)*d - 1
			continue
		}

		off := startOffset(i, a.regionSize)
		slot := off / a.chunkSize
		a.claimed[slot].Store(int32(i))
		a.reservation[i].Store(int32(size))
		a.bytesInUse.Add(int64(blockSize(i, a.regionSize)))
		a.live.Add(1)
		return off, nil
	}

	return -1, ErrExhausted
}

// ascend walks from the just-claimed leaf i up toward the root,
// depositing OCC_{side} markers on every ancestor. It returns ok=true
// once the root is reached, or ok=false with failedAt set to the
// ancestor whose OCC bit blocked the claim — the caller resumes its
// scan outside that ancestor's subtree.
func (a *Allocator) ascend(leaf int) (ok bool, failedAt int) {
	current := leaf
	for level(current) != 0 {
		child := current
		current = parent(current)

		for {
			curVal := a.tree[current].Load()
			if curVal&occBit != 0 {
				// A larger, already-claimed ancestor forecloses this
				// candidate. Roll back everything claimed between leaf
				// and child, then report where the claim died.
				a.freeNode(leaf, level(child))
				return false, current
			}

			newVal := mark(cleanCoal(curVal, child), child)
			if a.tree[current].CompareAndSwap(curVal, newVal) {
				break
			}
			// Lost a CAS race to a concurrent mutator: re-read and
			// retry at the same level, never restarting the ascent
			// from leaf.
		}
	}
	return true, 0
}

// Deallocate releases the block previously returned by Allocate at
// offset addr. Deallocating an out-of-range or already-free address is a
// silent no-op: the caller is trusted not to double-free or free an
// address it was never handed.
func (a *Allocator) Deallocate(addr int) error {
	a.closeMu.RLock()
	defer a.closeMu.RUnlock()

	if addr < 0 || addr >= a.regionSize {
		return nil
	}

	slot := addr / a.chunkSize
	n := int(a.claimed[slot].Swap(0))
	if n == 0 {
		return nil
	}

	size := int(a.reservation[n].Swap(0))
	a.freeNode(n, 0)
	a.bytesInUse.Add(-int64(blockSize(n, a.regionSize)))
	if size > 0 {
		a.live.Add(-1)
	}
	return nil
}

// freeNode performs the coalescing ascent from n up to and including the
// ancestor at level ub, publishes the release by zeroing
// tree[n], and runs the unmark pass. Called both by Deallocate (ub=0)
// and by ascend's rollback (ub=level(child) of the point where the
// claim failed).
func (a *Allocator) freeNode(n, ub int) {
	runner := n
	current := parent(n)

	for level(runner) > ub {
		mask := coalSideMask(runner)
		old := a.tree[current].Or(mask)

		if isOccBuddy(old, runner) && !isCoalBuddy(old, runner) {
			// The buddy subtree is still live and hasn't started its own
			// coalesce: stop here, the buddy's deallocator owns the rest
			// of this ascent.
			break
		}

		runner = current
		current = parent(current)
	}

	a.tree[n].Store(0)

	// n and ub live in different unit spaces (a node index vs. a level),
	// so this comparison is true except in the narrow case n == ub == 0.
	// unmark's own isCoal check makes the call a safe no-op whenever
	// nothing was actually marked, so the mismatch is harmless.
	if n != ub {
		a.unmark(n, ub)
	}
}

// unmark is the second, descent-free walk of deallocation: it clears
// OCC_{side}/COAL_{side} together along the path from n to the root,
// stopping at the first ancestor whose buddy side is still OCC-marked
// (the buddy's own deallocator clears the rest of the path) or at level
// ub, whichever comes first.
func (a *Allocator) unmark(n, ub int) {
	current := n
	for {
		child := current
		current = parent(current)

		var newVal uint32
		for {
			curVal := a.tree[current].Load()
			if !isCoal(curVal, child) {
				// Another actor already cleared this edge (or it was
				// never ours): nothing left to do.
				return
			}
			candidate := clearSide(curVal, child)
			if a.tree[current].CompareAndSwap(curVal, candidate) {
				newVal = candidate
				break
			}
		}

		if level(current) <= ub || isOccBuddy(newVal, child) {
			break
		}
	}
}

// Bytes returns the size-byte slice of the backing region starting at
// offset, as returned by a successful Allocate(size).
func (a *Allocator) Bytes(offset, size int) []byte {
	a.closeMu.RLock()
	defer a.closeMu.RUnlock()
	return a.region.Bytes()[offset : offset+size]
}
