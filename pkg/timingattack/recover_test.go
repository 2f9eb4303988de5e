package timingattack

import (
	"math/big"
	"testing"

	"github.com/pkg/errors"
)

// The end-to-end scenario uses a 14-bit demonstration key (n = 113*127,
// e = 31) and a noise-free device model: every signature costs 100 plus 10
// per extra Montgomery reduction. With 300 observations the bucket mean gap
// at correct 1-bit rounds stays above 15 while the noise gap at 0-bit rounds
// stays below 13, so a threshold of 13.5 separates them cleanly.
func TestEngineRecoversExponent(t *testing.T) {
	modulus := big.NewInt(14351)
	trueD := big.NewInt(10015)

	ctx, err := NewContext(modulus)
	if err != nil {
		t.Fatal(err)
	}
	data := buildTestDataset(t, ctx, trueD, 300)

	var observed []RoundStats
	result, err := NewEngine(data, ctx, 13.5).
		WithWorkers(4).
		WithObserver(func(rs RoundStats) { observed = append(observed, rs) }).
		Run()
	if err != nil {
		t.Fatalf("recovery failed: %v", err)
	}

	if result.Exponent.Cmp(trueD) != 0 {
		t.Fatalf("recovered %s, want %s", result.Exponent, trueD)
	}
	if result.Inconclusive {
		t.Error("successful run marked inconclusive")
	}
	if len(result.Rounds) != ctx.K-1 {
		t.Errorf("ran %d rounds, want %d", len(result.Rounds), ctx.K-1)
	}
	if len(observed) != len(result.Rounds) {
		t.Errorf("observer saw %d rounds, result has %d", len(observed), len(result.Rounds))
	}

	if !result.Verify(ctx, data, 5) {
		t.Error("recovered exponent failed signature verification")
	}

	t.Logf("recovered d = %s in %d rounds", result.Exponent, len(result.Rounds))
}

// Per-round decision check: a dataset whose durations carry exactly the
// focus-bit leak of the true key must yield the true bit every round.
func TestDecideBitFollowsTrueExponent(t *testing.T) {
	modulus := big.NewInt(2773)
	trueD := big.NewInt(2629)

	ctx, err := NewContext(modulus)
	if err != nil {
		t.Fatal(err)
	}
	trueBits := Bits(trueD)

	prefix := []uint{1}
	for focusBit := 1; focusBit < ctx.K; focusBit++ {
		data := make(Dataset, 0, 100)
		for m := int64(2); m < 102; m++ {
			msg := big.NewInt(m)
			sig, _ := ctx.Exp(msg, trueD)

			duration := 10.0
			if trueBits[focusBit] == 1 {
				// The extra reduction at the focus multiply is the only
				// timing contribution in this synthetic set.
				_, subtracted, err := ctx.SimulateFocusBit(msg, prefix, focusBit)
				if err != nil {
					t.Fatal(err)
				}
				if subtracted {
					duration += 5
				}
			}
			data = append(data, &Record{Message: msg, Signature: sig, Duration: duration})
		}

		bit, rs, _, _, err := DecideBit(data, ctx, prefix, focusBit, 2, 1.0)
		if err != nil {
			t.Fatalf("bit %d: %v", focusBit, err)
		}
		if bit != trueBits[focusBit] {
			t.Fatalf("bit %d: decided %d (gap %.3f), want %d", focusBit, bit, rs.Gap, trueBits[focusBit])
		}
		prefix = append(prefix, bit)
	}

	if FromBits(prefix).Cmp(trueD) != 0 {
		t.Errorf("recovered %s, want %s", FromBits(prefix), trueD)
	}
}

func TestDecideBitThresholdIsStrict(t *testing.T) {
	ctx, err := NewContext(big.NewInt(2773))
	if err != nil {
		t.Fatal(err)
	}
	prefix := []uint{1}

	// Find one message per predicted outcome, then pin the gap to exactly
	// the threshold.
	var subMsg, cleanMsg *big.Int
	for m := int64(2); m < 200 && (subMsg == nil || cleanMsg == nil); m++ {
		msg := big.NewInt(m)
		_, subtracted, err := ctx.SimulateFocusBit(msg, prefix, 1)
		if err != nil {
			t.Fatal(err)
		}
		if subtracted && subMsg == nil {
			subMsg = msg
		}
		if !subtracted && cleanMsg == nil {
			cleanMsg = msg
		}
	}
	if subMsg == nil || cleanMsg == nil {
		t.Skip("no split at this focus bit for the probe messages")
	}

	data := Dataset{
		{Message: subMsg, Signature: big.NewInt(0), Duration: 11},
		{Message: cleanMsg, Signature: big.NewInt(0), Duration: 10},
	}

	bit, rs, _, _, err := DecideBit(data, ctx, prefix, 1, 1, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	if rs.Gap != 1.0 {
		t.Fatalf("gap = %v, want exactly 1.0", rs.Gap)
	}
	if bit != 0 {
		t.Errorf("gap equal to threshold decided %d, want 0", bit)
	}

	bit, _, _, _, err = DecideBit(data, ctx, prefix, 1, 1, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if bit != 1 {
		t.Errorf("gap above threshold decided %d, want 1", bit)
	}
}

func TestEngineEmptyBucket(t *testing.T) {
	ctx, err := NewContext(big.NewInt(14351))
	if err != nil {
		t.Fatal(err)
	}

	for _, count := range []int{0, 1} {
		data := buildTestDataset(t, ctx, big.NewInt(10015), count)

		result, err := NewEngine(data, ctx, 13.5).Run()
		if err == nil {
			t.Fatalf("%d records: expected empty bucket failure", count)
		}
		if !errors.Is(err, ErrEmptyBucket) {
			t.Errorf("%d records: expected ErrEmptyBucket, got %v", count, err)
		}
		if result == nil || !result.Inconclusive {
			t.Errorf("%d records: expected an inconclusive result", count)
		}
		if result != nil && result.Exponent != nil {
			t.Errorf("%d records: inconclusive result carries an exponent", count)
		}
	}
}

func TestResultVerify(t *testing.T) {
	ctx, err := NewContext(big.NewInt(2773))
	if err != nil {
		t.Fatal(err)
	}
	trueD := big.NewInt(2629)
	data := buildTestDataset(t, ctx, trueD, 10)

	good := &Result{Exponent: trueD}
	if !good.Verify(ctx, data, 0) {
		t.Error("true exponent failed verification")
	}

	bad := &Result{Exponent: big.NewInt(2627)}
	if bad.Verify(ctx, data, 0) {
		t.Error("wrong exponent passed verification")
	}

	none := &Result{}
	if none.Verify(ctx, data, 0) {
		t.Error("nil exponent passed verification")
	}
}
