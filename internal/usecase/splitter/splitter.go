// Package splitter partitions disbursement work into provider-sized chunks.
// The payment rail caps how many payments one submission may carry, so
// upstream schedulers split a run's aggregates before creating batches.
package splitter

// MaxBatchSize is the default chunking threshold, matching the rail's
// per-submission payment limit.
const MaxBatchSize = 100

// Split partitions items into contiguous chunks of at most maxBatchSize,
// preserving order. The last chunk may be smaller. Empty input yields no
// chunks. A non-positive maxBatchSize falls back to MaxBatchSize.
//
// Chunk boundaries are deterministic: concatenating the chunks reproduces
// the input exactly.
func Split[T any](items []T, maxBatchSize int) [][]T {
	if maxBatchSize <= 0 {
		maxBatchSize = MaxBatchSize
	}

	if len(items) == 0 {
		return nil
	}

	chunks := make([][]T, 0, (len(items)+maxBatchSize-1)/maxBatchSize)
	for start := 0; start < len(items); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}

	return chunks
}
