package timingattack

import (
	"math"
	"math/big"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// RoundStats records the statistics behind a single bit decision.
type RoundStats struct {
	FocusBit   int     // exponent bit index decided this round
	Subtracted int     // records predicted to take the extra reduction
	Clean      int     // records predicted not to
	MeanSub    float64 // mean duration of the subtracted bucket
	MeanClean  float64 // mean duration of the clean bucket
	StdSub     float64
	StdClean   float64
	Gap        float64 // |MeanSub - MeanClean|
	Decided    uint    // the bit appended to the guess
}

// Result is the outcome of a recovery run.
type Result struct {
	Exponent     *big.Int     // recovered exponent, nil when inconclusive
	Bits         []uint       // recovered bits, most significant first
	Rounds       []RoundStats // one entry per decided bit
	Inconclusive bool
}

// Verify re-signs up to limit dataset messages with the recovered exponent
// and compares against the recorded signatures. limit <= 0 checks every
// record.
func (r *Result) Verify(ctx *Context, data Dataset, limit int) bool {
	if r.Exponent == nil || len(data) == 0 {
		return false
	}
	if limit <= 0 || limit > len(data) {
		limit = len(data)
	}
	for _, rec := range data[:limit] {
		signed, _ := ctx.Exp(rec.Message, r.Exponent)
		if signed.Cmp(rec.Signature) != 0 {
			return false
		}
	}
	return true
}

// DecideBit partitions data at focusBit for the guessed prefix and decides
// the bit from the bucket duration means: 1 when the mean gap strictly
// exceeds threshold, 0 otherwise. The threshold is a calibration knob; no
// tie-break or confidence bound is applied near it. The per-round statistics
// keep marginal decisions visible to the caller.
//
// Returns ErrEmptyBucket when either bucket ends up with no records.
func DecideBit(data Dataset, ctx *Context, prefix []uint, focusBit, workers int, threshold float64) (uint, RoundStats, Bucket, Bucket, error) {
	subtracted, clean, err := Partition(data, ctx, prefix, focusBit, workers)
	if err != nil {
		return 0, RoundStats{}, nil, nil, err
	}
	if len(subtracted) == 0 || len(clean) == 0 {
		return 0, RoundStats{}, subtracted, clean, errors.Wrapf(ErrEmptyBucket,
			"bit %d split %d/%d", focusBit, len(subtracted), len(clean))
	}

	subDurations := subtracted.Durations()
	cleanDurations := clean.Durations()

	rs := RoundStats{
		FocusBit:   focusBit,
		Subtracted: len(subtracted),
		Clean:      len(clean),
		MeanSub:    stat.Mean(subDurations, nil),
		MeanClean:  stat.Mean(cleanDurations, nil),
		StdSub:     stat.StdDev(subDurations, nil),
		StdClean:   stat.StdDev(cleanDurations, nil),
	}
	rs.Gap = math.Abs(rs.MeanSub - rs.MeanClean)
	if rs.Gap > threshold {
		rs.Decided = 1
	}
	return rs.Decided, rs, subtracted, clean, nil
}

// Engine recovers a private exponent bit by bit from a timing dataset.
//
// The exponent's top bit is assumed set (RSA private exponents are odd with
// the leading bit conventionally fixed). Each round partitions the dataset on
// the next bit position, compares the bucket duration means against
// Threshold, and appends the decided bit. Rounds are strictly sequential:
// every round depends on the accumulated prefix. A wrong decision is never
// detected or rolled back; after one, later rounds trend toward noise.
type Engine struct {
	dataset   Dataset
	ctx       *Context
	threshold float64
	workers   int
	observer  func(RoundStats)
	dumpDir   string
}

// NewEngine creates an engine for the dataset, Montgomery context and
// decision threshold. Calibrate the threshold against a reference run with a
// known key; it governs the false-positive/false-negative tradeoff of every
// bit decision.
func NewEngine(data Dataset, ctx *Context, threshold float64) *Engine {
	return &Engine{dataset: data, ctx: ctx, threshold: threshold}
}

// WithWorkers sets the partition worker-pool size (default: one per CPU).
func (e *Engine) WithWorkers(n int) *Engine {
	e.workers = n
	return e
}

// WithObserver registers a callback invoked after every decided bit.
func (e *Engine) WithObserver(fn func(RoundStats)) *Engine {
	e.observer = fn
	return e
}

// WithBucketDump writes every round's partition to dir as bit_<i>.csv.
func (e *Engine) WithBucketDump(dir string) *Engine {
	e.dumpDir = dir
	return e
}

// Run drives the recovery until the guess reaches the modulus bit length.
//
// On an empty bucket the run stops and returns a Result with Inconclusive
// set and the partial prefix preserved, together with an ErrEmptyBucket; the
// caller may retry with a larger dataset.
func (e *Engine) Run() (*Result, error) {
	bits := []uint{1}
	res := &Result{}

	for len(bits) < e.ctx.K {
		focusBit := len(bits)

		bit, rs, subtracted, clean, err := DecideBit(e.dataset, e.ctx, bits, focusBit, e.workers, e.threshold)
		if err != nil {
			if errors.Is(err, ErrEmptyBucket) {
				res.Bits = bits
				res.Inconclusive = true
				return res, err
			}
			return nil, err
		}

		if e.dumpDir != "" {
			if err := DumpBuckets(e.dumpDir, focusBit, subtracted, clean); err != nil {
				return nil, err
			}
		}

		bits = append(bits, bit)
		res.Rounds = append(res.Rounds, rs)
		if e.observer != nil {
			e.observer(rs)
		}
	}

	res.Bits = bits
	res.Exponent = FromBits(bits)
	return res, nil
}
