// Package sign implements the node's cryptographic engine: keccak256
// hashing, deterministic recoverable secp256k1 signing, and public-key
// and address recovery.
//
// The engine follows the Ethereum algorithm family: digests are 32-byte
// keccak256 outputs (legacy keccak padding, not the standardized SHA3-256),
// signatures are 65 bytes (r ‖ s ‖ recovery id with recovery id in {0, 1}),
// public keys are 64-byte uncompressed curve points with the format prefix
// stripped, and addresses are the last 20 bytes of keccak256(public key).
//
// A Signer is constructed exactly once at startup from the node's 32-byte
// private scalar. Construction validates the scalar against the curve order
// and precomputes the public key and address; after that the Signer is
// immutable and safe for unbounded concurrent use. The private scalar is
// never exposed through the API, never logged, and never serialized.
//
// Signing is deterministic (RFC 6979 nonce derivation): the same digest
// signed with the same key yields a bit-identical signature on every call.
// No randomness is consulted.
//
// All input-shape validation happens before any curve computation, and each
// failure mode has a dedicated sentinel error so callers can map failures
// onto their own wire contracts.
package sign
