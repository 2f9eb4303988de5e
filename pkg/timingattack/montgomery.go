package timingattack

import (
	"math/big"

	"github.com/pkg/errors"
)

var bigOne = big.NewInt(1)

// ModInverse calculates the multiplicative inverse of a modulo n using the
// iterative extended Euclidean algorithm. The result is normalized into
// [0, n). Returns ErrNotInvertible when gcd(a, n) != 1.
func ModInverse(a, n *big.Int) (*big.Int, error) {
	t := new(big.Int)
	newT := big.NewInt(1)
	r := new(big.Int).Set(n)
	newR := new(big.Int).Set(a)

	for newR.Sign() != 0 {
		quotient := new(big.Int).Div(r, newR)
		t, newT = newT, new(big.Int).Sub(t, new(big.Int).Mul(quotient, newT))
		r, newR = newR, new(big.Int).Sub(r, new(big.Int).Mul(quotient, newR))
	}

	if r.Cmp(bigOne) > 0 {
		return nil, errors.Wrapf(ErrNotInvertible, "%s modulo %s", a, n)
	}
	if t.Sign() < 0 {
		t.Add(t, n)
	}
	return t, nil
}

// Bits returns the binary representation of x, most significant bit first.
// The slice has length x.BitLen().
func Bits(x *big.Int) []uint {
	k := x.BitLen()
	bits := make([]uint, k)
	for i := 0; i < k; i++ {
		bits[i] = x.Bit(k - 1 - i)
	}
	return bits
}

// FromBits assembles an integer from bits ordered most significant first.
func FromBits(bits []uint) *big.Int {
	x := new(big.Int)
	for _, b := range bits {
		x.Lsh(x, 1)
		if b == 1 {
			x.Or(x, bigOne)
		}
	}
	return x
}

// Context holds the Montgomery parameters derived from an odd modulus N:
// the radix R = 2^K (the smallest power of two exceeding N) and the constant
// NPrime satisfying R*Rinv - N*NPrime == 1. A Context is immutable; derive a
// new one whenever the modulus changes.
type Context struct {
	N      *big.Int
	R      *big.Int
	NPrime *big.Int
	K      int // bit length of N, and the number of exponent bits to recover
}

// NewContext derives the Montgomery parameters for modulus n.
//
// Returns ErrInvalidModulus if n is even or not greater than one, and
// propagates ErrNotInvertible if the radix has no inverse modulo n.
func NewContext(n *big.Int) (*Context, error) {
	if n == nil || n.Cmp(bigOne) <= 0 || n.Bit(0) == 0 {
		return nil, errors.Wrapf(ErrInvalidModulus, "modulus %s", n)
	}

	k := n.BitLen()
	r := new(big.Int).Lsh(bigOne, uint(k))

	rInv, err := ModInverse(r, n)
	if err != nil {
		return nil, err
	}

	// nPrime = (r*rInv - 1) / n. The division is exact by construction.
	nPrime := new(big.Int).Mul(r, rInv)
	nPrime.Sub(nPrime, bigOne)
	nPrime.Div(nPrime, n)

	return &Context{
		N:      new(big.Int).Set(n),
		R:      r,
		NPrime: nPrime,
		K:      k,
	}, nil
}

// Product computes the Montgomery product of a and b and reports whether the
// final conditional subtraction fired. Both operands must already be in
// Montgomery form; the caller is responsible for that invariant.
//
// The subtraction branch is the single timing-observable step the whole
// attack is built around, so its firing pattern must match a real
// variable-time implementation bit for bit.
func (c *Context) Product(a, b *big.Int) (*big.Int, bool) {
	t := new(big.Int).Mul(a, b)

	m := new(big.Int).Mul(t, c.NPrime)
	m.Mod(m, c.R)

	u := new(big.Int).Mul(m, c.N)
	u.Add(u, t)
	u.Rsh(u, uint(c.K)) // exact division by R = 2^K

	if u.Cmp(c.N) >= 0 {
		return u.Sub(u, c.N), true
	}
	return u, false
}

// toMont converts x into Montgomery form, x*R mod N.
func (c *Context) toMont(x *big.Int) *big.Int {
	xBar := new(big.Int).Mul(x, c.R)
	return xBar.Mod(xBar, c.N)
}
