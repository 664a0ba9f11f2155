// pkg/buddy/tags.go
package buddy

// Status-word bit layout, bit-for-bit identical to the reference
// implementation's AllocTags so the buddy-swap shift trick below carries
// over unchanged. Stored in the low 5 bits of an atomic.Uint32, since
// sync/atomic has no 8-bit type to back a conceptually one-byte tag.
const (
	occRight  uint32 = 0x01
	occLeft   uint32 = 0x02
	coalRight uint32 = 0x04
	coalLeft  uint32 = 0x08
	occBit    uint32 = 0x10

	busyMask uint32 = occBit | occLeft | occRight
)

// side returns 0 for a left child index, 1 for a right child.
func side(c int) uint32 {
	return uint32(c & 1)
}

// mark sets the OCC_{side(c)} bit: c just had its own claim ascend through
// its parent.
func mark(v uint32, c int) uint32 {
	return v | (occLeft >> side(c))
}

// cleanCoal clears the COAL_{side(c)} bit without touching OCC bits.
func cleanCoal(v uint32, c int) uint32 {
	return v &^ coalSideMask(c)
}

// clearSide clears both OCC_{side(c)} and COAL_{side(c)}, used by the
// unmark pass to retire a child's edge into its parent.
func clearSide(v uint32, c int) uint32 {
	return v &^ ((occLeft | coalLeft) >> side(c))
}

// isCoal reports whether COAL_{side(c)} is set.
func isCoal(v uint32, c int) bool {
	return v&(coalLeft>>side(c)) != 0
}

// isOccBuddy reports whether c's buddy side is OCC-marked.
func isOccBuddy(v uint32, c int) bool {
	return v&(occRight<<side(c)) != 0
}

// isCoalBuddy reports whether c's buddy side has begun coalescing.
func isCoalBuddy(v uint32, c int) bool {
	return v&(coalRight<<side(c)) != 0
}

// isFree reports whether v has neither OCC nor either child-side OCC bit
// set.
func isFree(v uint32) bool {
	return v&busyMask == 0
}

// coalSideMask returns the COAL_{side(c)} bit in isolation, used by the
// free_node coalescing ascent's fetch-or.
func coalSideMask(c int) uint32 {
	return coalLeft >> side(c)
}
