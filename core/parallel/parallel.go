// Package parallel fans row ranges of a mini-batch out over goroutines.
// Layer kernels use it for large batches only; small batches run inline.
package parallel

import (
	"runtime"
	"sync"
)

// Chunk is a half-open row range [Start, End).
type Chunk struct {
	Start, End int
}

// Split divides rows into at most workers contiguous chunks of near-equal
// size. Empty ranges are never returned.
func Split(rows, workers int) []Chunk {
	if rows <= 0 {
		return nil
	}
	if workers < 1 {
		workers = 1
	}
	if workers > rows {
		workers = rows
	}

	// 切り上げ除算
	size := (rows + workers - 1) / workers
	chunks := make([]Chunk, 0, workers)
	for start := 0; start < rows; start += size {
		end := start + size
		if end > rows {
			end = rows
		}
		chunks = append(chunks, Chunk{Start: start, End: end})
	}
	return chunks
}

// Workers is the number of goroutines Rows uses.
func Workers() int {
	return runtime.GOMAXPROCS(0)
}

// Rows calls fn once per chunk of [0, rows) and waits for all of them.
// Chunks never overlap, so fn may write rows of a shared matrix without
// locking.
func Rows(rows int, fn func(start, end int)) {
	chunks := Split(rows, Workers())
	if len(chunks) <= 1 {
		for _, c := range chunks {
			fn(c.Start, c.End)
		}
		return
	}

	var wg sync.WaitGroup
	for _, c := range chunks {
		wg.Add(1)
		go func(c Chunk) {
			defer wg.Done()
			fn(c.Start, c.End)
		}(c)
	}
	wg.Wait()
}

// RowsWithThreshold runs fn sequentially over [0, rows) when rows is at
// most threshold and falls back to Rows otherwise.
func RowsWithThreshold(rows, threshold int, fn func(start, end int)) {
	if rows <= threshold {
		if rows > 0 {
			fn(0, rows)
		}
		return
	}
	Rows(rows, fn)
}
