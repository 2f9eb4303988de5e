// Package oracle simulates an RSA signing device whose Montgomery
// exponentiation leaks through its duration. It exists to produce datasets
// for calibrating and exercising the recovery engine without probing real
// hardware.
package oracle

import (
	"crypto/rand"
	"math/big"
	mrand "math/rand"

	"github.com/pkg/errors"

	"github.com/cryptolite/rsa-timing/pkg/timingattack"
)

// Key is RSA key material for the demonstration signer.
type Key struct {
	N *big.Int // modulus, public
	E *big.Int // public exponent
	D *big.Int // private exponent
	P *big.Int // prime factor, private
	Q *big.Int // prime factor, private
}

// Demonstration primes, hardcoded for repeatability.
var (
	demoP, _ = new(big.Int).SetString("72921395523034486567525736371230370633973787029153043254895253767587177948354404505015843041682240089", 10)
	demoQ, _ = new(big.Int).SetString("27028138044587582353904781804159356623304801440906159575368078211171173680092726609842044176970728203", 10)
)

// NewKeyFromPrimes builds a key from two distinct odd primes and a public
// exponent. The private exponent is e^-1 modulo (p-1)(q-1).
func NewKeyFromPrimes(p, q, e *big.Int) (*Key, error) {
	if p.Cmp(q) == 0 {
		return nil, errors.New("prime factors must be distinct")
	}

	totient := new(big.Int).Sub(p, big.NewInt(1))
	totient.Mul(totient, new(big.Int).Sub(q, big.NewInt(1)))

	d, err := timingattack.ModInverse(e, totient)
	if err != nil {
		return nil, errors.Wrap(err, "public exponent shares a factor with the totient")
	}

	return &Key{
		N: new(big.Int).Mul(p, q),
		E: new(big.Int).Set(e),
		D: d,
		P: new(big.Int).Set(p),
		Q: new(big.Int).Set(q),
	}, nil
}

// DemoKey returns the fixed demonstration key (e = 65537).
func DemoKey() *Key {
	key, err := NewKeyFromPrimes(demoP, demoQ, big.NewInt(65537))
	if err != nil {
		// The demo primes are constants; this cannot fail.
		panic(err)
	}
	return key
}

// GenerateKey creates a fresh key with prime factors of the given bit size
// and e = 65537.
func GenerateKey(bits int) (*Key, error) {
	if bits < 8 {
		return nil, errors.Errorf("prime size too small: %d bits", bits)
	}
	for {
		p, err := rand.Prime(rand.Reader, bits)
		if err != nil {
			return nil, errors.Wrap(err, "failed to generate prime")
		}
		q, err := rand.Prime(rand.Reader, bits)
		if err != nil {
			return nil, errors.Wrap(err, "failed to generate prime")
		}

		key, err := NewKeyFromPrimes(p, q, big.NewInt(65537))
		if err != nil {
			continue
		}
		return key, nil
	}
}

// Verify checks that sig is the textbook RSA signature of m under the key's
// public half.
func (k *Key) Verify(m, sig *big.Int) bool {
	return new(big.Int).Exp(sig, k.E, k.N).Cmp(m) == 0
}

// Signer simulates a signing device. Each signature costs BaseDuration plus
// PerReduction for every extra Montgomery reduction taken during the
// exponentiation, plus optional gaussian measurement noise. This mirrors a
// slow embedded device whose per-operation timing dominates measurement
// jitter.
type Signer struct {
	BaseDuration float64
	PerReduction float64
	NoiseSigma   float64

	key *Key
	ctx *timingattack.Context
	rng *mrand.Rand
}

// NewSigner builds a signer for the key. seed feeds the noise generator so
// collected datasets are reproducible.
func NewSigner(key *Key, base, perReduction, noiseSigma float64, seed int64) (*Signer, error) {
	ctx, err := timingattack.NewContext(key.N)
	if err != nil {
		return nil, err
	}
	return &Signer{
		BaseDuration: base,
		PerReduction: perReduction,
		NoiseSigma:   noiseSigma,
		key:          key,
		ctx:          ctx,
		rng:          mrand.New(mrand.NewSource(seed)),
	}, nil
}

// Context exposes the signer's Montgomery context; the attacker derives the
// same one from the public modulus.
func (s *Signer) Context() *timingattack.Context {
	return s.ctx
}

// Sign produces the RSA signature of m along with its simulated duration.
func (s *Signer) Sign(m *big.Int) *timingattack.Record {
	sig, reductions := s.ctx.Exp(m, s.key.D)

	duration := s.BaseDuration + s.PerReduction*float64(reductions)
	if s.NoiseSigma > 0 {
		duration += s.rng.NormFloat64() * s.NoiseSigma
	}

	return &timingattack.Record{
		Message:   new(big.Int).Set(m),
		Signature: sig,
		Duration:  duration,
	}
}

// Collect signs every message and returns the observations as a dataset.
func (s *Signer) Collect(messages []*big.Int) timingattack.Dataset {
	data := make(timingattack.Dataset, 0, len(messages))
	for _, m := range messages {
		data = append(data, s.Sign(m))
	}
	return data
}

// RandomMessages draws count uniform messages in [2, n).
func RandomMessages(n *big.Int, count int) ([]*big.Int, error) {
	two := big.NewInt(2)
	limit := new(big.Int).Sub(n, two)
	if limit.Sign() <= 0 {
		return nil, errors.Errorf("modulus too small for messages: %s", n)
	}

	messages := make([]*big.Int, 0, count)
	for len(messages) < count {
		m, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return nil, errors.Wrap(err, "failed to draw message")
		}
		messages = append(messages, m.Add(m, two))
	}
	return messages, nil
}
