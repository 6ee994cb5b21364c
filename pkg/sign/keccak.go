package sign

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// HashData returns the keccak256 digest of data. It accepts input of any
// length, including empty, and has no failure mode.
func HashData(data []byte) common.Hash {
	return ethcrypto.Keccak256Hash(data)
}

// VerifyDataHash recomputes the keccak256 digest of data and compares it to
// expected for byte equality. It returns ErrInvalidDigestLength when expected
// is not exactly 32 bytes; a mismatch is not an error, just a false result.
func VerifyDataHash(data, expected []byte) (bool, error) {
	if len(expected) != DigestLength {
		return false, ErrInvalidDigestLength
	}
	return bytes.Equal(ethcrypto.Keccak256(data), expected), nil
}
