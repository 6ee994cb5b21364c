package main

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/omniledger/signet/pkg/log"
	"github.com/omniledger/signet/pkg/rpc"
	"github.com/omniledger/signet/pkg/sign"
)

// RPC method names exposed by the service.
const (
	hashDataMethod       = "hash_data"
	signDigestMethod     = "sign_digest"
	recoverSignerMethod  = "recover_signer"
	verifyDataHashMethod = "verify_data_hash"
	getIdentityMethod    = "get_identity"
	batchVerifyMethod    = "batch_verify"
)

var validate = validator.New()

type HashDataParams struct {
	Data hexutil.Bytes `json:"data"`
}

type HashDataResponse struct {
	Digest common.Hash `json:"digest"`
}

type SignDigestParams struct {
	Digest hexutil.Bytes `json:"digest" validate:"required,len=32"`
}

type SignDigestResponse struct {
	Signature sign.Signature `json:"signature"`
}

type RecoverSignerParams struct {
	Digest    hexutil.Bytes `json:"digest"    validate:"required,len=32"`
	Signature hexutil.Bytes `json:"signature" validate:"required,len=65"`
}

type RecoverSignerResponse struct {
	PublicKey hexutil.Bytes  `json:"public_key"`
	Address   common.Address `json:"address"`
}

type VerifyDataHashParams struct {
	Data   hexutil.Bytes `json:"data"`
	Digest hexutil.Bytes `json:"digest" validate:"required,len=32"`
}

type VerifyDataHashResponse struct {
	Valid bool `json:"valid"`
}

type IdentityResponse struct {
	PublicKey hexutil.Bytes  `json:"public_key"`
	Address   common.Address `json:"address"`
}

// BatchVerifyItem shape problems are reported in the item's own result slot,
// not as a request-level error, so the item fields carry no validate tags.
type BatchVerifyItem struct {
	Digest    hexutil.Bytes   `json:"digest"`
	Signature hexutil.Bytes   `json:"signature"`
	Address   *common.Address `json:"address,omitempty"`
}

type BatchVerifyParams struct {
	Items []BatchVerifyItem `json:"items" validate:"required,min=1"`
}

type BatchVerifyResult struct {
	Valid   bool            `json:"valid"`
	Address *common.Address `json:"address,omitempty"`
	Error   string          `json:"error,omitempty"`
}

type BatchVerifyResponse struct {
	Results []BatchVerifyResult `json:"results"`
}

// CryptoService is the RPC façade over the signing engine: it translates and
// validates request parameters, delegates to pkg/sign or the verify pool,
// and shapes the responses.
type CryptoService struct {
	signer  *sign.Signer
	pool    *VerifyPool
	metrics *Metrics
	lg      log.Logger
}

func NewCryptoService(signer *sign.Signer, pool *VerifyPool, metrics *Metrics, logger log.Logger) *CryptoService {
	return &CryptoService{
		signer:  signer,
		pool:    pool,
		metrics: metrics,
		lg:      logger.WithName("crypto-service"),
	}
}

// Register wires the service's middleware and method handlers into the node.
func (s *CryptoService) Register(node *rpc.WebsocketNode) {
	node.Use(s.LoggerMiddleware)
	node.Use(s.MetricsMiddleware)

	node.Handle(hashDataMethod, s.HandleHashData)
	node.Handle(signDigestMethod, s.HandleSignDigest)
	node.Handle(recoverSignerMethod, s.HandleRecoverSigner)
	node.Handle(verifyDataHashMethod, s.HandleVerifyDataHash)
	node.Handle(getIdentityMethod, s.HandleGetIdentity)
	node.Handle(batchVerifyMethod, s.HandleBatchVerify)
}

// LoggerMiddleware attaches a request-scoped logger to the context and logs
// failed requests after the chain completes.
func (s *CryptoService) LoggerMiddleware(c *rpc.Context) {
	logger := s.lg.WithKV("requestID", c.Request.Req.RequestID)
	c.Context = log.WithContext(c.Context, logger)

	c.Next()

	if c.Response.Res.Method == rpc.ErrorMethod.String() {
		logger.Warn("failed to handle RPC request",
			"method", c.Request.Req.Method,
			"error", c.Response.Res.Params.Error(),
		)
	}
}

// MetricsMiddleware counts requests per method with a success/failure status
// label.
func (s *CryptoService) MetricsMiddleware(c *rpc.Context) {
	s.metrics.MessageReceived.Inc()

	reqMethod := c.Request.Req.Method
	c.Next()

	status := "success"
	if c.Response.Res.Method == rpc.ErrorMethod.String() {
		status = "failure"
	}
	s.metrics.RPCRequests.WithLabelValues(reqMethod, status).Inc()
}

// HandleHashData computes the keccak256 digest of arbitrary data. Empty data
// is legal and hashes to the well-known empty-input digest.
func (s *CryptoService) HandleHashData(c *rpc.Context) {
	var params HashDataParams
	if !s.translateParams(c, &params) {
		return
	}

	s.succeed(c, HashDataResponse{Digest: sign.HashData(params.Data)})
}

// HandleSignDigest signs a 32-byte digest with the node key.
func (s *CryptoService) HandleSignDigest(c *rpc.Context) {
	var params SignDigestParams
	if !s.translateParams(c, &params) {
		return
	}

	signature, err := s.signer.Sign(params.Digest)
	if err != nil {
		c.Fail(asClientError(err), "failed to sign digest")
		return
	}

	s.succeed(c, SignDigestResponse{Signature: signature})
}

// HandleRecoverSigner recovers the public key and address that produced a
// signature over a digest.
func (s *CryptoService) HandleRecoverSigner(c *rpc.Context) {
	var params RecoverSignerParams
	if !s.translateParams(c, &params) {
		return
	}

	pubKey, err := sign.Recover(params.Digest, sign.Signature(params.Signature))
	if err != nil {
		c.Fail(asClientError(err), "failed to recover signer")
		return
	}
	address, err := sign.PubkeyToAddress(pubKey)
	if err != nil {
		c.Fail(asClientError(err), "failed to derive address")
		return
	}

	s.succeed(c, RecoverSignerResponse{PublicKey: pubKey, Address: address})
}

// HandleVerifyDataHash recomputes the digest of data and compares it to the
// expected value.
func (s *CryptoService) HandleVerifyDataHash(c *rpc.Context) {
	var params VerifyDataHashParams
	if !s.translateParams(c, &params) {
		return
	}

	valid, err := sign.VerifyDataHash(params.Data, params.Digest)
	if err != nil {
		c.Fail(asClientError(err), "failed to verify data hash")
		return
	}

	s.succeed(c, VerifyDataHashResponse{Valid: valid})
}

// HandleGetIdentity returns the node's public key and address. The private
// scalar has no representation anywhere in the RPC surface.
func (s *CryptoService) HandleGetIdentity(c *rpc.Context) {
	s.succeed(c, IdentityResponse{
		PublicKey: s.signer.PublicKeyBytes(),
		Address:   s.signer.Address(),
	})
}

// HandleBatchVerify checks a batch of signatures on the shared worker pool
// and returns one result per item, in input order.
func (s *CryptoService) HandleBatchVerify(c *rpc.Context) {
	var params BatchVerifyParams
	if !s.translateParams(c, &params) {
		return
	}
	s.metrics.BatchVerifySize.Observe(float64(len(params.Items)))

	items := make([]VerifyRequest, len(params.Items))
	for i, item := range params.Items {
		items[i] = VerifyRequest{
			Digest:    item.Digest,
			Signature: item.Signature,
			Address:   item.Address,
		}
	}

	results := s.pool.VerifyBatch(c.Context, items)
	if err := c.Context.Err(); err != nil {
		c.Fail(errors.Wrap(err, "batch cancelled"), "request cancelled")
		return
	}

	response := BatchVerifyResponse{Results: make([]BatchVerifyResult, len(results))}
	for i, res := range results {
		out := BatchVerifyResult{Valid: res.Valid, Error: res.Error}
		if res.Error == "" {
			address := res.Address
			out.Address = &address
		}
		response.Results[i] = out
	}

	s.succeed(c, response)
}

// translateParams decodes and validates the request parameters into dst. On
// failure it fails the request with a client-visible error and returns false.
func (s *CryptoService) translateParams(c *rpc.Context, dst any) bool {
	if err := c.Request.Req.Params.Translate(dst); err != nil {
		c.Fail(rpc.Errorf("invalid parameters: %s", err), "")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		c.Fail(rpc.Errorf("invalid parameters: %s", err), "")
		return false
	}
	return true
}

// succeed marshals the response payload and completes the request.
func (s *CryptoService) succeed(c *rpc.Context, response any) {
	params, err := rpc.NewParams(response)
	if err != nil {
		c.Fail(errors.Wrap(err, "failed to marshal response params"), "")
		return
	}
	c.Succeed(c.Request.Req.Method, params)
}

// asClientError exposes the engine's caller-attributable errors verbatim;
// anything else stays internal and is replaced by the handler's fallback.
func asClientError(err error) error {
	switch {
	case errors.Is(err, sign.ErrInvalidDigestLength),
		errors.Is(err, sign.ErrMalformedSignature),
		errors.Is(err, sign.ErrRecoveryFailed):
		return rpc.Errorf("%s", err)
	}
	return err
}
