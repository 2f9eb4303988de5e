package timingattack

import "github.com/pkg/errors"

var (
	// ErrNotInvertible is returned by ModInverse when gcd(a, n) != 1,
	// which indicates a malformed modulus/radix pairing.
	ErrNotInvertible = errors.New("not invertible")

	// ErrInvalidModulus is returned when the modulus is even or too small.
	// Montgomery arithmetic requires an odd modulus greater than one.
	ErrInvalidModulus = errors.New("invalid modulus: must be odd and greater than one")

	// ErrEmptyBucket is returned when a round's partition produced an empty
	// bucket, so no mean duration can be computed. Callers may re-run with
	// more data or abort; the decision is never silently defaulted.
	ErrEmptyBucket = errors.New("empty bucket: not enough observations to decide a bit")

	// ErrFocusBitRange is returned when the requested focus bit lies outside
	// the guessed prefix extended by the hypothesized bit.
	ErrFocusBitRange = errors.New("focus bit outside guessed prefix")
)
