package sign_test

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omniledger/signet/pkg/sign"
)

func newTestSigner(t *testing.T) *sign.Signer {
	t.Helper()
	signer, err := sign.NewSigner(mustTestKeyBytes(t))
	require.NoError(t, err)
	return signer
}

func TestSign(t *testing.T) {
	t.Parallel()

	signer := newTestSigner(t)
	digest := sign.HashData([]byte("message"))

	t.Run("shape", func(t *testing.T) {
		sig, err := signer.Sign(digest.Bytes())
		require.NoError(t, err)
		assert.Len(t, []byte(sig), sign.SignatureLength)
		assert.LessOrEqual(t, sig[sign.SignatureLength-1], byte(1), "recovery id must be 0 or 1")
	})

	t.Run("deterministic", func(t *testing.T) {
		first, err := signer.Sign(digest.Bytes())
		require.NoError(t, err)
		second, err := signer.Sign(digest.Bytes())
		require.NoError(t, err)
		assert.Equal(t, first, second, "same digest and key must yield bit-identical signatures")
	})

	t.Run("wrong digest length", func(t *testing.T) {
		for _, n := range []int{0, 16, 31, 33} {
			_, err := signer.Sign(make([]byte, n))
			assert.ErrorIs(t, err, sign.ErrInvalidDigestLength, "length %d", n)
		}
	})
}

func TestRecover(t *testing.T) {
	t.Parallel()

	signer := newTestSigner(t)
	digest := sign.HashData([]byte("recover me"))
	sig, err := signer.Sign(digest.Bytes())
	require.NoError(t, err)

	t.Run("round trip", func(t *testing.T) {
		pub, err := sign.Recover(digest.Bytes(), sig)
		require.NoError(t, err)
		assert.Equal(t, signer.PublicKeyBytes(), pub)

		addr, err := sign.RecoverAddress(digest.Bytes(), sig)
		require.NoError(t, err)
		assert.Equal(t, signer.Address(), addr)
	})

	t.Run("wrong digest length", func(t *testing.T) {
		_, err := sign.Recover(digest.Bytes()[:16], sig)
		assert.ErrorIs(t, err, sign.ErrInvalidDigestLength)
	})

	t.Run("malformed signatures", func(t *testing.T) {
		badRecoveryID := make(sign.Signature, sign.SignatureLength)
		copy(badRecoveryID, sig)
		badRecoveryID[sign.SignatureLength-1] = 2

		zeroRS := make(sign.Signature, sign.SignatureLength)

		tcs := []struct {
			name string
			sig  sign.Signature
		}{
			{"too short", sig[:64]},
			{"too long", append(append(sign.Signature{}, sig...), 0x00)},
			{"recovery id 2", badRecoveryID},
			{"zero r and s", zeroRS},
		}
		for _, tc := range tcs {
			t.Run(tc.name, func(t *testing.T) {
				_, err := sign.Recover(digest.Bytes(), tc.sig)
				assert.ErrorIs(t, err, sign.ErrMalformedSignature)
			})
		}
	})

	t.Run("shape-valid signature with no curve point", func(t *testing.T) {
		// Roughly half of all x coordinates are not on the curve, so some
		// small r values must fail recovery. Every such failure has to be
		// reported as ErrRecoveryFailed, never as a panic or a wrong class.
		failed := false
		for r := byte(1); r <= 20; r++ {
			candidate := make(sign.Signature, sign.SignatureLength)
			candidate[31] = r // small r
			candidate[63] = 1 // s = 1
			candidate[64] = 0 // recovery id

			if _, err := sign.Recover(digest.Bytes(), candidate); err != nil {
				assert.ErrorIs(t, err, sign.ErrRecoveryFailed)
				failed = true
			}
		}
		assert.True(t, failed, "expected at least one candidate to fail recovery")
	})
}

func TestSignConcurrent(t *testing.T) {
	t.Parallel()

	signer := newTestSigner(t)

	const n = 128

	// Sequential reference results for n distinct digests.
	digests := make([][]byte, n)
	want := make([]sign.Signature, n)
	for i := 0; i < n; i++ {
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], uint64(i))
		digests[i] = sign.HashData(buf[:]).Bytes()

		sig, err := signer.Sign(digests[i])
		require.NoError(t, err)
		want[i] = sig
	}

	got := make([]sign.Signature, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i], errs[i] = signer.Sign(digests[i])
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, want[i], got[i], "digest %d", i)
	}
}

func TestPubkeyToAddress(t *testing.T) {
	t.Parallel()

	signer := newTestSigner(t)
	pub := signer.PublicKeyBytes()

	t.Run("64-byte form", func(t *testing.T) {
		addr, err := sign.PubkeyToAddress(pub)
		require.NoError(t, err)
		assert.Equal(t, signer.Address(), addr)
	})

	t.Run("65-byte form with prefix", func(t *testing.T) {
		addr, err := sign.PubkeyToAddress(append([]byte{0x04}, pub...))
		require.NoError(t, err)
		assert.Equal(t, signer.Address(), addr)
	})

	t.Run("bad prefix", func(t *testing.T) {
		_, err := sign.PubkeyToAddress(append([]byte{0x02}, pub...))
		assert.Error(t, err)
	})

	t.Run("bad length", func(t *testing.T) {
		_, err := sign.PubkeyToAddress(pub[:32])
		assert.Error(t, err)
	})
}

func TestSignatureJSON(t *testing.T) {
	t.Parallel()

	sig := sign.Signature{0x01, 0x02, 0x03}

	data, err := json.Marshal(sig)
	require.NoError(t, err)
	assert.Equal(t, `"0x010203"`, string(data))

	var back sign.Signature
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, sig, back)

	assert.Error(t, json.Unmarshal([]byte(`"0xzz"`), &back))
	assert.Error(t, json.Unmarshal([]byte(`123`), &back))
}

func BenchmarkSign(b *testing.B) {
	signer, err := sign.NewSigner(mustBenchKeyBytes(b))
	if err != nil {
		b.Fatal(err)
	}
	digest := sign.HashData([]byte("bench")).Bytes()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := signer.Sign(digest); err != nil {
			b.Fatal(err)
		}
	}
}

func mustBenchKeyBytes(b *testing.B) []byte {
	b.Helper()
	raw := make([]byte, sign.PrivateKeyLength)
	raw[sign.PrivateKeyLength-1] = 1
	return raw
}

func ExampleSigner_Sign() {
	signer, err := sign.NewSigner(mustExampleKey())
	if err != nil {
		panic(err)
	}

	digest := sign.HashData([]byte("hello world"))
	sig, err := signer.Sign(digest.Bytes())
	if err != nil {
		panic(err)
	}

	addr, _ := sign.RecoverAddress(digest.Bytes(), sig)
	fmt.Println("signature length:", len(sig))
	fmt.Println("recovered:", addr == signer.Address())
	// Output:
	// signature length: 65
	// recovered: true
}

func mustExampleKey() []byte {
	raw := make([]byte, sign.PrivateKeyLength)
	raw[sign.PrivateKeyLength-1] = 0x42
	return raw
}
