// Package timingattack recovers an RSA private exponent from a timing side
// channel in Montgomery modular exponentiation.
//
// A signer that computes signatures with Montgomery square-and-multiply takes
// measurably longer whenever the final conditional subtraction of a
// Montgomery product fires. Given a dataset of (message, signature, duration)
// observations, the attack reconstructs the secret exponent one bit at a
// time: it simulates the signer for a guessed key prefix, predicts for every
// message whether the subtraction would fire at the bit under test, splits
// the dataset on that prediction, and compares the mean measured durations of
// the two buckets against a calibration threshold.
//
// # Quick Start
//
//	import "github.com/cryptolite/rsa-timing/pkg/timingattack"
//
//	ctx, err := timingattack.NewContext(modulus)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	data, err := (&timingattack.CSVParser{}).ParseDataset("observations.csv")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := timingattack.NewEngine(data, ctx, threshold).Run()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("Recovered exponent: %s\n", result.Exponent.Text(16))
//
// # Calibration
//
// The decision threshold is not derived internally. Calibrate it against a
// reference run with a known key: the gap between bucket means at correct
// 1-bit rounds must clear it while the noise gaps at 0-bit rounds stay
// below. The per-round statistics exposed through Result.Rounds and the
// engine observer make both distributions visible.
//
// An incorrect bit decision is never detected or corrected; every round
// after one partitions on a desynchronized prediction and the gap statistics
// collapse toward noise. That is inherent to this style of attack, not a
// recoverable condition.
package timingattack
