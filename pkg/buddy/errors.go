// pkg/buddy/errors.go
package buddy

import "errors"

var (
	// ErrInvalidSize is returned when a requested allocation size is zero
	// or exceeds the managed region.
	ErrInvalidSize = errors.New("buddy: size must be > 0 and <= region size")

	// ErrExhausted is returned when no free block at the required level
	// could be claimed.
	ErrExhausted = errors.New("buddy: no free block satisfies the request")

	// ErrBadRegion is returned by New when RegionSize/ChunkSize fail the
	// power-of-two constraints the tree geometry requires.
	ErrBadRegion = errors.New("buddy: region size and chunk size must be powers of two, with region size a multiple of chunk size that is itself a power of two")
)
