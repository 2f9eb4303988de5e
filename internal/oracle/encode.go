package oracle

import (
	"math/big"

	"github.com/pkg/errors"
)

// blockSize returns how many message bytes fit one block strictly below n.
func blockSize(n *big.Int) int {
	return (n.BitLen() - 1) / 8
}

// EncodeBlocks packs a message string into big-endian integer blocks that
// each fit the modulus, for feeding demonstration text through the signer.
// The encoding is the naive one of a textbook RSA demo; bytes are not
// padded, so blocks beginning with a NUL byte will not round-trip.
func EncodeBlocks(message string, n *big.Int) ([]*big.Int, error) {
	size := blockSize(n)
	if size < 1 {
		return nil, errors.Errorf("modulus too small to encode text: %d bits", n.BitLen())
	}

	raw := []byte(message)
	blocks := make([]*big.Int, 0, (len(raw)+size-1)/size)
	for start := 0; start < len(raw); start += size {
		end := start + size
		if end > len(raw) {
			end = len(raw)
		}
		blocks = append(blocks, new(big.Int).SetBytes(raw[start:end]))
	}
	return blocks, nil
}

// DecodeBlocks reassembles the string encoded by EncodeBlocks.
func DecodeBlocks(blocks []*big.Int) string {
	var raw []byte
	for _, block := range blocks {
		raw = append(raw, block.Bytes()...)
	}
	return string(raw)
}
