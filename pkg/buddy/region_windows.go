//go:build windows

// pkg/buddy/region_windows.go
package buddy

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// MmapRegion implements Region over a VirtualAlloc reservation: memory
// owned directly from the OS rather than a file mapping, since the
// allocator's region has no backing file.
//
// Adapted from pkg/pager/mmap_windows.go's CreateFileMapping/
// MapViewOfFile path, swapped for the file-less VirtualAlloc/VirtualFree
// pair since there is nothing to map a view of.
type MmapRegion struct {
	addr uintptr
	data []byte
}

// NewMmapRegion reserves and commits a zero-filled region of the given
// size.
func NewMmapRegion(size int) (*MmapRegion, error) {
	if size <= 0 {
		return nil, fmt.Errorf("buddy: mmap region size must be positive, got %d", size)
	}

	addr, err := windows.VirtualAlloc(0, uintptr(size), windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return nil, fmt.Errorf("buddy: VirtualAlloc region: %w", err)
	}

	data := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)

	return &MmapRegion{addr: addr, data: data}, nil
}

// Bytes returns the backing slice.
func (m *MmapRegion) Bytes() []byte {
	return m.data
}

// Size returns the region size in bytes.
func (m *MmapRegion) Size() int {
	return len(m.data)
}

// Close releases the region. After Close the region must not be used.
func (m *MmapRegion) Close() error {
	if m.addr == 0 {
		return nil
	}
	err := windows.VirtualFree(m.addr, 0, windows.MEM_RELEASE)
	m.addr = 0
	m.data = nil
	return err
}
