package timingattack

import "math/big"

// Record is a single timing observation drawn from the signing oracle.
// Records are immutable once collected.
type Record struct {
	Message   *big.Int // plaintext block handed to the signer
	Signature *big.Int // message^d mod n as produced by the oracle
	Duration  float64  // measured signing duration, unit-agnostic
}

// Dataset is a finite collection of observation records. Order carries no
// meaning.
type Dataset []*Record

// Bucket is a subset of a dataset sharing a predicted side-channel outcome
// for one recovery round. Buckets are ephemeral; they are discarded once
// their mean duration has been computed.
type Bucket []*Record

// Durations returns the measured duration of every record in the bucket.
func (b Bucket) Durations() []float64 {
	durations := make([]float64, len(b))
	for i, rec := range b {
		durations[i] = rec.Duration
	}
	return durations
}
