package sign

import (
	"crypto/ecdsa"
	"encoding/hex"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// Signer holds the node's signing identity: the validated private scalar,
// the derived 64-byte public key, and the derived address, together with the
// secp256k1 curve machinery they were built on. All fields are set once by
// NewSigner and never mutated, so a single Signer may be shared by any
// number of concurrent callers without locking.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	publicKey  []byte
	address    common.Address
}

// NewSigner validates raw as a big-endian secp256k1 scalar and derives the
// signing identity from it.
//
// It returns ErrInvalidKeyLength when raw is not exactly 32 bytes and
// ErrInvalidKeyValue when the scalar is zero or not less than the curve
// order. The caller should treat any error as fatal: a node must not start
// serving without valid key material.
func NewSigner(raw []byte) (*Signer, error) {
	if len(raw) != PrivateKeyLength {
		return nil, errors.Wrapf(ErrInvalidKeyLength, "got %d bytes", len(raw))
	}

	key, err := ethcrypto.ToECDSA(raw)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidKeyValue, err.Error())
	}

	return &Signer{
		privateKey: key,
		publicKey:  ethcrypto.FromECDSAPub(&key.PublicKey)[1:],
		address:    ethcrypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// LoadSigner reads key material from path and constructs a Signer from it.
// The file may contain either the raw 32 key bytes or their hex encoding,
// optionally 0x-prefixed and with trailing whitespace.
func LoadSigner(path string) (*Signer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read private key file")
	}

	keyBytes, err := decodeKeyFile(raw)
	if err != nil {
		return nil, err
	}
	return NewSigner(keyBytes)
}

// decodeKeyFile interprets the contents of a key file. A file of exactly
// 32 bytes is taken as the raw scalar; anything else must be hex.
func decodeKeyFile(raw []byte) ([]byte, error) {
	if len(raw) == PrivateKeyLength {
		return raw, nil
	}

	hexStr := strings.TrimSpace(string(raw))
	hexStr = strings.TrimPrefix(hexStr, "0x")
	decoded, err := hex.DecodeString(hexStr)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidKeyLength, "key file is neither 32 raw bytes nor hex")
	}
	return decoded, nil
}

// Sign produces a deterministic recoverable signature over a 32-byte digest
// using the loaded private scalar. The nonce is derived per RFC 6979, so the
// same digest always yields a bit-identical signature; no randomness is
// consulted. The returned signature is r ‖ s ‖ v with v in {0, 1}.
func (s *Signer) Sign(digest []byte) (Signature, error) {
	if len(digest) != DigestLength {
		return nil, ErrInvalidDigestLength
	}

	sig, err := ethcrypto.Sign(digest, s.privateKey)
	if err != nil {
		// Not attributable to caller input: the digest shape was already
		// checked and the key was validated at startup.
		return nil, errors.Wrap(err, "secp256k1 signing failed")
	}
	return Signature(sig), nil
}

// PublicKeyBytes returns a copy of the 64-byte uncompressed public key
// (x ‖ y, format prefix stripped).
func (s *Signer) PublicKeyBytes() []byte {
	pub := make([]byte, PublicKeyLength)
	copy(pub, s.publicKey)
	return pub
}

// Address returns the 20-byte address derived from the public key.
func (s *Signer) Address() common.Address {
	return s.address
}
