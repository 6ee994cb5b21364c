package sign

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// Recover returns the 64-byte uncompressed public key that produced sig over
// digest.
//
// Shape validation happens before any curve computation: a digest that is
// not 32 bytes fails with ErrInvalidDigestLength, and a signature with the
// wrong length, a recovery id outside {0, 1}, or out-of-range r/s fails with
// ErrMalformedSignature. A shape-valid signature that resolves to no curve
// point fails with ErrRecoveryFailed.
func Recover(digest []byte, sig Signature) ([]byte, error) {
	if len(digest) != DigestLength {
		return nil, ErrInvalidDigestLength
	}
	if err := validateSignatureShape(sig); err != nil {
		return nil, err
	}

	pub, err := ethcrypto.Ecrecover(digest, sig)
	if err != nil {
		return nil, errors.Wrap(ErrRecoveryFailed, err.Error())
	}
	// Ecrecover returns the 65-byte form with the 0x04 prefix.
	return pub[1:], nil
}

// RecoverAddress recovers the signer's address from a digest and signature.
// It is a convenience composition of Recover and PubkeyToAddress.
func RecoverAddress(digest []byte, sig Signature) (common.Address, error) {
	pub, err := Recover(digest, sig)
	if err != nil {
		return common.Address{}, err
	}
	return PubkeyToAddress(pub)
}

// PubkeyToAddress derives the 20-byte address for a public key: the last
// 20 bytes of keccak256 over the 64-byte x ‖ y representation. It accepts
// either the 64-byte stripped form or the 65-byte form with the 0x04 prefix.
func PubkeyToAddress(pub []byte) (common.Address, error) {
	switch len(pub) {
	case PublicKeyLength:
	case PublicKeyLength + 1:
		if pub[0] != 0x04 {
			return common.Address{}, errors.Errorf("invalid public key prefix 0x%02x", pub[0])
		}
		pub = pub[1:]
	default:
		return common.Address{}, errors.Errorf("invalid public key length %d", len(pub))
	}

	return common.BytesToAddress(ethcrypto.Keccak256(pub)[DigestLength-AddressLength:]), nil
}

// validateSignatureShape rejects signatures that could never recover to a
// public key, without touching the curve.
func validateSignatureShape(sig Signature) error {
	if len(sig) != SignatureLength {
		return errors.Wrapf(ErrMalformedSignature, "got %d bytes, want %d", len(sig), SignatureLength)
	}

	v := sig[SignatureLength-1]
	if v > 1 {
		return errors.Wrapf(ErrMalformedSignature, "recovery id must be 0 or 1, got %d", v)
	}

	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	if !ethcrypto.ValidateSignatureValues(v, r, s, false) {
		return errors.Wrap(ErrMalformedSignature, "r or s out of range")
	}
	return nil
}
