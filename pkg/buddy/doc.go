// Package buddy implements a non-blocking buddy allocator over a single
// fixed-size contiguous memory region.
//
// Concurrent callers allocate and free variable-size blocks without
// mutual-exclusion locks: every node of the binary buddy index tree
// carries a one-byte status word, mutated only through atomic
// compare-and-swap and fetch-or. An allocator that loses a race partway
// through claiming a block rolls its partial claim back and resumes the
// scan instead of restarting from the top of the tree.
//
// The allocator does not manage its own memory: a Region (region.go)
// supplies the backing bytes, and callers talk to the allocator either
// through Allocator's Go-idiomatic (offset, error) methods or through
// Shim's null-on-failure host contract (shim.go).
package buddy
