// cmd/buddybench/main.go
//
// buddybench - concurrent workload runner for the buddy allocator.
//
// Usage:
//
//	buddybench [workers]
//
// Opens an Allocator over an anonymous mmap region and runs the given
// number of goroutines (default 16) issuing a random mix of
// Allocate/Deallocate calls, printing Stats before and after.
package main

import (
	"fmt"
	"math/rand"
	"os"
	"runtime"
	"strconv"
	"sync"
	"time"

	"nbbuddy/pkg/buddy"
)

const (
	regionSize = 64 << 20 // 64 MiB
	chunkSize  = 4 << 10  // 4 KiB
	opsPerGo   = 2000
)

func printMemStats(label string) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	fmt.Printf("\n=== %s ===\n", label)
	fmt.Printf("Alloc = %v MB\n", m.Alloc/1024/1024)
	fmt.Printf("Sys = %v MB\n", m.Sys/1024/1024)
	fmt.Printf("NumGC = %v\n", m.NumGC)
}

func printStats(label string, s buddy.Stats) {
	fmt.Printf("\n=== %s ===\n", label)
	fmt.Printf("RegionSize = %d bytes\n", s.RegionSize)
	fmt.Printf("ChunkSize = %d bytes\n", s.ChunkSize)
	fmt.Printf("BytesInUse = %d\n", s.BytesInUse)
	fmt.Printf("LiveAllocations = %d\n", s.LiveAllocations)
}

func main() {
	workers := 16
	if len(os.Args) > 1 {
		n, err := strconv.Atoi(os.Args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid worker count %q: %v\n", os.Args[1], err)
			os.Exit(1)
		}
		workers = n
	}

	region, err := buddy.NewMmapRegion(regionSize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to map region: %v\n", err)
		os.Exit(1)
	}
	defer region.Close()

	a, err := buddy.New(buddy.Options{
		RegionSize: regionSize,
		ChunkSize:  chunkSize,
		Region:     region,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open allocator: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	printMemStats("Before workload")
	printStats("Before workload", a.Stats())

	sizes := []int{chunkSize, chunkSize * 2, chunkSize * 4, chunkSize * 16}

	var wg sync.WaitGroup
	var exhausted int64
	var mu sync.Mutex

	start := time.Now()
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(int64(id)))
			var held []int

			for i := 0; i < opsPerGo; i++ {
				if len(held) == 0 || rng.Intn(2) == 0 {
					size := sizes[rng.Intn(len(sizes))]
					off, err := a.Allocate(size)
					if err != nil {
						mu.Lock()
						exhausted++
						mu.Unlock()
						continue
					}
					held = append(held, off)
					continue
				}

				idx := rng.Intn(len(held))
				off := held[idx]
				held[idx] = held[len(held)-1]
				held = held[:len(held)-1]
				if err := a.Deallocate(off); err != nil {
					fmt.Fprintf(os.Stderr, "worker %d: Deallocate(%d): %v\n", id, off, err)
				}
			}

			for _, off := range held {
				_ = a.Deallocate(off)
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	fmt.Printf("\n%d workers x %d ops in %s (%d allocations failed to find a free block)\n",
		workers, opsPerGo, elapsed, exhausted)

	printMemStats("After workload")
	printStats("After workload", a.Stats())
}
