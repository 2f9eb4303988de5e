package timingattack

import (
	"math/big"

	"github.com/pkg/errors"
)

// expBits is the single square-and-multiply core shared by the real
// exponentiator and the oracle simulator, so the two can never drift apart.
// It processes the exponent bits most significant first, squaring the running
// value every step and multiplying by the message when the bit is set.
//
// Returns the plain (non-Montgomery) result, the total number of extra
// reductions across every product step including the final conversion, and
// the per-bit reduction flag of each multiply step (false where the bit is 0).
func (c *Context) expBits(msg *big.Int, bits []uint) (*big.Int, int, []bool) {
	mBar := c.toMont(msg)
	xBar := new(big.Int).Mod(c.R, c.N)

	total := 0
	mulFlags := make([]bool, len(bits))
	var subtracted bool

	for i, b := range bits {
		xBar, subtracted = c.Product(xBar, xBar)
		if subtracted {
			total++
		}
		if b == 1 {
			xBar, subtracted = c.Product(mBar, xBar)
			if subtracted {
				total++
			}
			mulFlags[i] = subtracted
		}
	}

	// Convert back out of Montgomery form.
	xBar, subtracted = c.Product(xBar, bigOne)
	if subtracted {
		total++
	}
	return xBar, total, mulFlags
}

// Exp computes msg^exp mod N by Montgomery square-and-multiply and returns
// the result together with the total number of extra reductions performed.
// The reduction count is the ground-truth timing signal of a real signer.
func (c *Context) Exp(msg, exp *big.Int) (*big.Int, int) {
	result, total, _ := c.expBits(msg, Bits(exp))
	return result, total
}

// ExpTrace is Exp with the reduction flag of every multiply step exposed,
// indexed by exponent bit position. Entries at 0 bits are always false since
// no multiply takes place there.
func (c *Context) ExpTrace(msg, exp *big.Int) (*big.Int, int, []bool) {
	return c.expBits(msg, Bits(exp))
}

// SimulateFocusBit runs the exponentiation over prefix with a hypothesized 1
// bit appended and reports whether the multiply step at focusBit triggered
// the extra reduction for this message.
//
// The prediction answers: "if the secret exponent's leading bits equal
// prefix + 1, would signing msg have taken the subtraction at focusBit?"
// It is only meaningful while the prefix matches the true exponent; after a
// wrong guess the predictions decay into noise, which is exactly how a dead
// end shows up in the recovery statistics.
//
// Returns ErrFocusBitRange when focusBit lies outside the extended prefix.
func (c *Context) SimulateFocusBit(msg *big.Int, prefix []uint, focusBit int) (*big.Int, bool, error) {
	if focusBit < 0 || focusBit > len(prefix) {
		return nil, false, errors.Wrapf(ErrFocusBitRange,
			"focus bit %d with prefix of %d bits", focusBit, len(prefix))
	}

	extended := make([]uint, len(prefix)+1)
	copy(extended, prefix)
	extended[len(prefix)] = 1

	result, _, mulFlags := c.expBits(msg, extended)
	return result, mulFlags[focusBit], nil
}
