// pkg/buddy/shim.go
package buddy

// Shim adapts an Allocator to the null-on-failure, zero-is-reserved
// calling convention a host embedder expects from a C-shaped allocate/
// deallocate pair. Offset 0 is a valid allocation address in the core
// protocol (the whole-region block starts at byte 0), so the shim
// cannot reuse 0 as both "valid offset 0" and "null": it shifts every
// address by one. Allocator itself keeps the natural (offset int, err
// error) shape used everywhere else.
type Shim struct {
	a *Allocator
}

// NewShim wraps an Allocator for host consumption.
func NewShim(a *Allocator) *Shim {
	return &Shim{a: a}
}

// Allocate claims a block of size bytes aligned to alignment and
// returns core_offset+1 on success, or 0 on failure. alignment stricter
// than the allocator's chunk size is rejected as unsupported.
func (s *Shim) Allocate(size, alignment int) uintptr {
	if alignment > s.a.ChunkSize() {
		return 0
	}
	off, err := s.a.Allocate(size)
	if err != nil {
		return 0
	}
	return uintptr(off) + 1
}

// Deallocate releases the block at the given shim address (as returned
// by Allocate). Address 0 is a no-op.
func (s *Shim) Deallocate(addr uintptr) {
	if addr == 0 {
		return
	}
	_ = s.a.Deallocate(int(addr - 1))
}
