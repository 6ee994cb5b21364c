package sign

import "github.com/pkg/errors"

// Sentinel errors for every caller-attributable failure mode of the engine.
// Callers match them with errors.Is; wrapped variants carry extra context.
var (
	// ErrInvalidKeyLength is returned when key material is not exactly 32 bytes.
	ErrInvalidKeyLength = errors.New("private key must be exactly 32 bytes")

	// ErrInvalidKeyValue is returned when the key scalar is zero or not less
	// than the secp256k1 curve order.
	ErrInvalidKeyValue = errors.New("private key scalar is out of range for secp256k1")

	// ErrInvalidDigestLength is returned when a digest passed to Sign, Recover
	// or VerifyDataHash is not exactly 32 bytes.
	ErrInvalidDigestLength = errors.New("digest must be exactly 32 bytes")

	// ErrMalformedSignature is returned when a signature has the wrong length,
	// a recovery id outside {0, 1}, or r/s values outside the valid range.
	ErrMalformedSignature = errors.New("malformed signature")

	// ErrRecoveryFailed is returned when a shape-valid signature does not
	// resolve to any point on the curve for the given digest.
	ErrRecoveryFailed = errors.New("public key recovery failed")
)
