package rpc

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/omniledger/signet/pkg/sign"
)

// Request is an inbound RPC message: a payload plus any signatures the
// caller attached. This node serves unauthenticated primitives, so request
// signatures are carried but not required.
type Request struct {
	Req Payload          `json:"req"`
	Sig []sign.Signature `json:"sig"`
}

// NewRequest creates a Request with the given payload and optional
// signatures.
func NewRequest(payload Payload, sig ...sign.Signature) Request {
	return Request{Req: payload, Sig: sig}
}

// Response is an outbound RPC message. The node signs every response
// payload so callers can verify its origin.
type Response struct {
	Res Payload          `json:"res"`
	Sig []sign.Signature `json:"sig"`
}

// NewResponse creates a Response with the given payload and signatures.
func NewResponse(payload Payload, sig ...sign.Signature) Response {
	return Response{Res: payload, Sig: sig}
}

// NewErrorResponse creates a Response carrying an error message for the
// given request ID.
func NewErrorResponse(requestID uint64, errMsg string, sig ...sign.Signature) Response {
	payload := NewPayload(requestID, ErrorMethod.String(), NewErrorParams(errMsg))
	return NewResponse(payload, sig...)
}

// Error returns the error carried by the response, or nil for a successful
// one.
func (r Response) Error() error {
	if r.Res.Method != ErrorMethod.String() {
		return nil
	}
	return r.Res.Params.Error()
}

// SignerAddress recovers the address that signed this response. It returns
// an error when the response carries no signature or the signature does not
// recover.
func (r Response) SignerAddress() (common.Address, error) {
	if len(r.Sig) == 0 {
		return common.Address{}, errors.New("response carries no signature")
	}

	digest, err := payloadDigest(r.Res)
	if err != nil {
		return common.Address{}, err
	}
	return sign.RecoverAddress(digest, r.Sig[0])
}

// payloadDigest computes the digest a payload is signed over: keccak256 of
// its compact JSON encoding.
func payloadDigest(p Payload) ([]byte, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal payload")
	}
	return sign.HashData(raw).Bytes(), nil
}

// signPayload signs a payload with the node key.
func signPayload(signer *sign.Signer, p Payload) (sign.Signature, error) {
	digest, err := payloadDigest(p)
	if err != nil {
		return nil, err
	}
	return signer.Sign(digest)
}
