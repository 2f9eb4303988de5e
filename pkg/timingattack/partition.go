package timingattack

import (
	"runtime"
	"sync"

	"github.com/pkg/errors"
)

type subPartition struct {
	subtracted Bucket
	clean      Bucket
}

// Partition classifies every record by whether the Montgomery multiplication
// at focusBit is predicted to trigger the extra reduction, assuming the
// secret exponent starts with prefix followed by a 1 bit. The first bucket
// holds the records predicted to subtract, the second the rest.
//
// The dataset is cut into contiguous chunks handed to a fixed pool of
// workers; each worker fills its own sub-buckets and the results are merged
// by concatenation, so no locking is needed. The split is exhaustive for any
// worker count; only the ordering inside a bucket may vary.
func Partition(data Dataset, ctx *Context, prefix []uint, focusBit, workers int) (Bucket, Bucket, error) {
	if focusBit < 0 || focusBit > len(prefix) {
		return nil, nil, errors.Wrapf(ErrFocusBitRange,
			"focus bit %d with prefix of %d bits", focusBit, len(prefix))
	}
	if len(data) == 0 {
		return Bucket{}, Bucket{}, nil
	}

	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(data) {
		workers = len(data)
	}

	results := make(chan subPartition, workers)
	var wg sync.WaitGroup

	chunk := (len(data) + workers - 1) / workers
	for start := 0; start < len(data); start += chunk {
		end := start + chunk
		if end > len(data) {
			end = len(data)
		}

		wg.Add(1)
		go func(records Dataset) {
			defer wg.Done()
			var local subPartition
			for _, rec := range records {
				// The focus bit was validated above; the simulation cannot
				// fail for in-range arguments.
				_, subtracted, _ := ctx.SimulateFocusBit(rec.Message, prefix, focusBit)
				if subtracted {
					local.subtracted = append(local.subtracted, rec)
				} else {
					local.clean = append(local.clean, rec)
				}
			}
			results <- local
		}(data[start:end])
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var subtracted, clean Bucket
	for local := range results {
		subtracted = append(subtracted, local.subtracted...)
		clean = append(clean, local.clean...)
	}
	return subtracted, clean, nil
}
