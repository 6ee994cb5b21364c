package sign

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

const (
	// PrivateKeyLength is the required length of raw key material in bytes.
	PrivateKeyLength = 32
	// DigestLength is the length of a keccak256 digest in bytes.
	DigestLength = 32
	// PublicKeyLength is the length of an uncompressed public key with the
	// format prefix stripped (x ‖ y).
	PublicKeyLength = 64
	// SignatureLength is the length of a recoverable signature
	// (r ‖ s ‖ recovery id).
	SignatureLength = 65
	// AddressLength is the length of a derived address in bytes.
	AddressLength = 20
)

// Signature is a 65-byte recoverable secp256k1 signature in r ‖ s ‖ v form,
// with the recovery id v in {0, 1}. It marshals to and from 0x-prefixed hex
// in JSON.
type Signature []byte

// String implements the fmt.Stringer interface.
func (s Signature) String() string {
	return hexutil.Encode(s)
}

// MarshalJSON implements the json.Marshaler interface, encoding the
// signature as a hex string.
func (s Signature) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (s *Signature) UnmarshalJSON(data []byte) error {
	var hexStr string
	if err := json.Unmarshal(data, &hexStr); err != nil {
		return err
	}
	decoded, err := hexutil.Decode(hexStr)
	if err != nil {
		return err
	}
	*s = decoded
	return nil
}
