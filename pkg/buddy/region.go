// pkg/buddy/region.go
package buddy

// Region supplies the contiguous backing bytes the allocator manages.
// It is an external collaborator, not part of the lock-free core: the
// allocator only ever reads Bytes() to slice out the range a successful
// Allocate claimed.
//
// Adapted from pkg/pager/storage.go's Storage interface, trimmed to what
// a single in-memory region needs (no Grow/Sync: the region size is
// fixed for the allocator's entire lifetime).
type Region interface {
	// Bytes returns the entire backing byte slice. Its length equals
	// Size().
	Bytes() []byte

	// Size returns the region size in bytes.
	Size() int

	// Close releases any resources held by the region. After Close the
	// region must not be used.
	Close() error
}

// HeapRegion implements Region with a plain Go heap allocation. It is
// the default backing store (Options.Region == nil) and what the package
// tests run against, apart from the MmapRegion tests in region_test.go.
//
// Adapted from pkg/pager/storage.go's MemoryStorage.
type HeapRegion struct {
	data []byte
}

// NewHeapRegion allocates a zeroed region of the given size.
func NewHeapRegion(size int) *HeapRegion {
	return &HeapRegion{data: make([]byte, size)}
}

// Bytes returns the backing slice.
func (h *HeapRegion) Bytes() []byte {
	return h.data
}

// Size returns the region size in bytes.
func (h *HeapRegion) Size() int {
	return len(h.data)
}

// Close drops the reference to the backing slice.
func (h *HeapRegion) Close() error {
	h.data = nil
	return nil
}
