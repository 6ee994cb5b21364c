package main

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omniledger/signet/pkg/log"
	"github.com/omniledger/signet/pkg/rpc"
	"github.com/omniledger/signet/pkg/sign"
)

const emptyKeccakHex = "0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"

func newTestService(t *testing.T) *CryptoService {
	t.Helper()

	raw := make([]byte, sign.PrivateKeyLength)
	raw[sign.PrivateKeyLength-1] = 0x2a
	signer, err := sign.NewSigner(raw)
	require.NoError(t, err)

	metrics := NewMetricsWithRegistry(prometheus.NewRegistry())
	pool := NewVerifyPool(2, metrics, log.NewNoopLogger())
	t.Cleanup(pool.Stop)

	return NewCryptoService(signer, pool, metrics, log.NewNoopLogger())
}

// newServiceContext builds a handler context the way the node does, minus
// the transport.
func newServiceContext(t *testing.T, method string, params any) *rpc.Context {
	t.Helper()

	var p rpc.Params
	if params != nil {
		var err error
		p, err = rpc.NewParams(params)
		require.NoError(t, err)
	}

	return &rpc.Context{
		Context: context.Background(),
		Request: rpc.NewRequest(rpc.NewPayload(1, method, p)),
	}
}

// translateResponse decodes a successful response's params into dst.
func translateResponse(t *testing.T, c *rpc.Context, dst any) {
	t.Helper()
	require.NoError(t, c.Response.Error())
	require.NoError(t, c.Response.Res.Params.Translate(dst))
}

func TestHandleHashData(t *testing.T) {
	t.Parallel()
	service := newTestService(t)

	t.Run("empty input", func(t *testing.T) {
		c := newServiceContext(t, hashDataMethod, HashDataParams{})
		service.HandleHashData(c)

		var res HashDataResponse
		translateResponse(t, c, &res)
		assert.Equal(t, common.HexToHash(emptyKeccakHex), res.Digest)
	})

	t.Run("matches engine", func(t *testing.T) {
		data := []byte("some payload")
		c := newServiceContext(t, hashDataMethod, HashDataParams{Data: data})
		service.HandleHashData(c)

		var res HashDataResponse
		translateResponse(t, c, &res)
		assert.Equal(t, sign.HashData(data), res.Digest)
	})
}

func TestHandleSignDigest(t *testing.T) {
	t.Parallel()
	service := newTestService(t)
	digest := sign.HashData([]byte("tx")).Bytes()

	t.Run("signs and recovers", func(t *testing.T) {
		c := newServiceContext(t, signDigestMethod, SignDigestParams{Digest: digest})
		service.HandleSignDigest(c)

		var res SignDigestResponse
		translateResponse(t, c, &res)
		require.Len(t, []byte(res.Signature), sign.SignatureLength)

		addr, err := sign.RecoverAddress(digest, res.Signature)
		require.NoError(t, err)
		assert.Equal(t, service.signer.Address(), addr)
	})

	t.Run("deterministic", func(t *testing.T) {
		c1 := newServiceContext(t, signDigestMethod, SignDigestParams{Digest: digest})
		c2 := newServiceContext(t, signDigestMethod, SignDigestParams{Digest: digest})
		service.HandleSignDigest(c1)
		service.HandleSignDigest(c2)

		var res1, res2 SignDigestResponse
		translateResponse(t, c1, &res1)
		translateResponse(t, c2, &res2)
		assert.Equal(t, res1.Signature, res2.Signature)
	})

	t.Run("rejects short digest", func(t *testing.T) {
		c := newServiceContext(t, signDigestMethod, SignDigestParams{Digest: []byte{0x01}})
		service.HandleSignDigest(c)

		require.Error(t, c.Response.Error())
		assert.Contains(t, c.Response.Error().Error(), "invalid parameters")
	})

	t.Run("rejects missing digest", func(t *testing.T) {
		c := newServiceContext(t, signDigestMethod, SignDigestParams{})
		service.HandleSignDigest(c)
		require.Error(t, c.Response.Error())
	})
}

func TestHandleRecoverSigner(t *testing.T) {
	t.Parallel()
	service := newTestService(t)

	digest := sign.HashData([]byte("tx")).Bytes()
	signature, err := service.signer.Sign(digest)
	require.NoError(t, err)

	t.Run("recovers identity", func(t *testing.T) {
		c := newServiceContext(t, recoverSignerMethod, RecoverSignerParams{
			Digest:    digest,
			Signature: []byte(signature),
		})
		service.HandleRecoverSigner(c)

		var res RecoverSignerResponse
		translateResponse(t, c, &res)
		assert.Equal(t, service.signer.PublicKeyBytes(), []byte(res.PublicKey))
		assert.Equal(t, service.signer.Address(), res.Address)
	})

	t.Run("malformed signature reaches the caller verbatim", func(t *testing.T) {
		bad := make([]byte, sign.SignatureLength)
		copy(bad, signature)
		bad[sign.SignatureLength-1] = 0x02 // recovery id out of range

		c := newServiceContext(t, recoverSignerMethod, RecoverSignerParams{
			Digest:    digest,
			Signature: bad,
		})
		service.HandleRecoverSigner(c)

		require.Error(t, c.Response.Error())
		assert.Contains(t, c.Response.Error().Error(), sign.ErrMalformedSignature.Error())
	})
}

func TestHandleVerifyDataHash(t *testing.T) {
	t.Parallel()
	service := newTestService(t)
	data := []byte("block body")

	t.Run("valid", func(t *testing.T) {
		c := newServiceContext(t, verifyDataHashMethod, VerifyDataHashParams{
			Data:   data,
			Digest: sign.HashData(data).Bytes(),
		})
		service.HandleVerifyDataHash(c)

		var res VerifyDataHashResponse
		translateResponse(t, c, &res)
		assert.True(t, res.Valid)
	})

	t.Run("mismatch is false, not an error", func(t *testing.T) {
		c := newServiceContext(t, verifyDataHashMethod, VerifyDataHashParams{
			Data:   data,
			Digest: sign.HashData([]byte("other")).Bytes(),
		})
		service.HandleVerifyDataHash(c)

		var res VerifyDataHashResponse
		translateResponse(t, c, &res)
		assert.False(t, res.Valid)
	})

	t.Run("rejects wrong digest length", func(t *testing.T) {
		c := newServiceContext(t, verifyDataHashMethod, VerifyDataHashParams{
			Data:   data,
			Digest: []byte{0x01, 0x02},
		})
		service.HandleVerifyDataHash(c)
		require.Error(t, c.Response.Error())
	})
}

func TestHandleGetIdentity(t *testing.T) {
	t.Parallel()
	service := newTestService(t)

	c := newServiceContext(t, getIdentityMethod, nil)
	service.HandleGetIdentity(c)

	var res IdentityResponse
	translateResponse(t, c, &res)
	assert.Equal(t, service.signer.PublicKeyBytes(), []byte(res.PublicKey))
	assert.Equal(t, service.signer.Address(), res.Address)
	assert.Len(t, []byte(res.PublicKey), sign.PublicKeyLength)
}

func TestHandleBatchVerify(t *testing.T) {
	t.Parallel()
	service := newTestService(t)

	digest := sign.HashData([]byte("tx")).Bytes()
	signature, err := service.signer.Sign(digest)
	require.NoError(t, err)
	signerAddr := service.signer.Address()
	otherAddr := common.HexToAddress("0x00000000000000000000000000000000deadbeef")

	c := newServiceContext(t, batchVerifyMethod, BatchVerifyParams{
		Items: []BatchVerifyItem{
			{Digest: digest, Signature: []byte(signature)},
			{Digest: digest, Signature: []byte(signature), Address: &signerAddr},
			{Digest: digest, Signature: []byte(signature), Address: &otherAddr},
			{Digest: digest, Signature: []byte{0x01}},
		},
	})
	service.HandleBatchVerify(c)

	var res BatchVerifyResponse
	translateResponse(t, c, &res)
	require.Len(t, res.Results, 4)

	assert.True(t, res.Results[0].Valid)
	require.NotNil(t, res.Results[0].Address)
	assert.Equal(t, signerAddr, *res.Results[0].Address)

	assert.True(t, res.Results[1].Valid)

	assert.False(t, res.Results[2].Valid)
	assert.Empty(t, res.Results[2].Error)
	require.NotNil(t, res.Results[2].Address)
	assert.Equal(t, signerAddr, *res.Results[2].Address)

	assert.False(t, res.Results[3].Valid)
	assert.Nil(t, res.Results[3].Address)
	assert.Contains(t, res.Results[3].Error, sign.ErrMalformedSignature.Error())
}

func TestHandleBatchVerify_EmptyItems(t *testing.T) {
	t.Parallel()
	service := newTestService(t)

	c := newServiceContext(t, batchVerifyMethod, BatchVerifyParams{})
	service.HandleBatchVerify(c)

	require.Error(t, c.Response.Error())
	assert.Contains(t, c.Response.Error().Error(), "invalid parameters")
}

func TestServiceMiddleware(t *testing.T) {
	t.Parallel()
	service := newTestService(t)

	t.Run("metrics counts success and failure", func(t *testing.T) {
		ok := newServiceContext(t, getIdentityMethod, nil)
		ok.Response = rpc.NewResponse(rpc.NewPayload(1, getIdentityMethod, nil))
		service.MetricsMiddleware(ok)

		failed := newServiceContext(t, signDigestMethod, nil)
		failed.Response = rpc.NewErrorResponse(2, "bad digest")
		service.MetricsMiddleware(failed)

		assert.Equal(t, float64(1), testutil.ToFloat64(service.metrics.RPCRequests.WithLabelValues(getIdentityMethod, "success")))
		assert.Equal(t, float64(1), testutil.ToFloat64(service.metrics.RPCRequests.WithLabelValues(signDigestMethod, "failure")))
		assert.Equal(t, float64(2), testutil.ToFloat64(service.metrics.MessageReceived))
	})

	t.Run("logger middleware attaches request logger", func(t *testing.T) {
		c := newServiceContext(t, getIdentityMethod, nil)
		c.Response = rpc.NewResponse(rpc.NewPayload(1, getIdentityMethod, nil))

		service.LoggerMiddleware(c)
		assert.NotNil(t, log.FromContext(c.Context))
	})
}
