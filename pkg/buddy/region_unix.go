//go:build unix || darwin || linux || freebsd || openbsd || netbsd

// pkg/buddy/region_unix.go
package buddy

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// MmapRegion implements Region over an anonymous mmap(2) mapping: real OS
// pages owned outside the Go heap, so the managed region is never itself
// subject to Go's garbage collector or runtime allocator.
//
// Adapted from pkg/pager/mmap_unix.go's OpenMmapFile/Close, dropping the
// file-backing (and therefore Sync/Grow) since the allocator's region
// has no on-disk counterpart and a fixed lifetime size.
type MmapRegion struct {
	data []byte
}

// NewMmapRegion reserves an anonymous, zero-filled mapping of the given
// size.
func NewMmapRegion(size int) (*MmapRegion, error) {
	if size <= 0 {
		return nil, fmt.Errorf("buddy: mmap region size must be positive, got %d", size)
	}

	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("buddy: mmap region: %w", err)
	}

	return &MmapRegion{data: data}, nil
}

// Bytes returns the backing slice.
func (m *MmapRegion) Bytes() []byte {
	return m.data
}

// Size returns the region size in bytes.
func (m *MmapRegion) Size() int {
	return len(m.data)
}

// Close unmaps the region. After Close the region must not be used.
func (m *MmapRegion) Close() error {
	if m.data == nil {
		return nil
	}
	err := unix.Munmap(m.data)
	m.data = nil
	return err
}
