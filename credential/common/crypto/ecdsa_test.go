package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndVerify(t *testing.T) {
	tests := []struct {
		name    string
		alg     string
		sigSize int
	}{
		{name: "ES256 raw signature", alg: AlgES256, sigSize: 64},
		{name: "ES384 raw signature", alg: AlgES384, sigSize: 96},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := GenerateKey(tt.alg)
			require.NoError(t, err)

			data := []byte("header.payload")

			sig, err := key.Sign(data)
			require.NoError(t, err)
			assert.Len(t, sig, tt.sigSize)

			pub, err := key.Public()
			require.NoError(t, err)
			assert.True(t, pub.Verify(data, sig))
		})
	}
}

func TestVerifyRejectsTamperedInput(t *testing.T) {
	key, err := GenerateKey(AlgES256)
	require.NoError(t, err)
	pub, err := key.Public()
	require.NoError(t, err)

	data := []byte("header.payload")
	sig, err := key.Sign(data)
	require.NoError(t, err)

	t.Run("modified data", func(t *testing.T) {
		assert.False(t, pub.Verify([]byte("header.payloaX"), sig))
	})

	t.Run("modified signature", func(t *testing.T) {
		tampered := append([]byte(nil), sig...)
		tampered[10] ^= 0x01
		assert.False(t, pub.Verify(data, tampered))
	})

	t.Run("truncated signature", func(t *testing.T) {
		assert.False(t, pub.Verify(data, sig[:63]))
	})

	t.Run("empty signature", func(t *testing.T) {
		assert.False(t, pub.Verify(data, nil))
	})

	t.Run("wrong key", func(t *testing.T) {
		other, err := GenerateKey(AlgES256)
		require.NoError(t, err)
		otherPub, err := other.Public()
		require.NoError(t, err)
		assert.False(t, otherPub.Verify(data, sig))
	})
}

func TestVerifyRejectsWrongCurveWidth(t *testing.T) {
	key, err := ParsePrivateJWK(testP256)
	require.NoError(t, err)

	data := []byte("payload")
	sig, err := key.Sign(data)
	require.NoError(t, err)

	// A P-384 key expects 96-byte signatures; a 64-byte one must not pass.
	pub384, err := ParsePublicJWK(testP384)
	require.NoError(t, err)
	assert.False(t, pub384.Verify(data, sig))
}

func TestVerifySignatureJWKForm(t *testing.T) {
	key, err := ParsePrivateJWK(testP256)
	require.NoError(t, err)

	data := []byte("signing input")
	sig, err := key.Sign(data)
	require.NoError(t, err)

	pub := testP256
	pub.D = ""

	ok, err := VerifySignature(pub, data, sig)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifySignature(pub, []byte("other input"), sig)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifySignatureMalformedKey(t *testing.T) {
	bad := JWK{Kty: "EC", Crv: "P-256", X: "!!!", Y: "???"}

	_, err := VerifySignature(bad, []byte("data"), make([]byte, 64))
	assert.Error(t, err)
}

func TestProofValueRoundTrip(t *testing.T) {
	key, err := ParsePrivateJWK(testP256)
	require.NoError(t, err)

	canonical := []byte("<urn:a> <urn:b> \"c\" .\n")

	proofValue, err := SignProofValue(key, canonical)
	require.NoError(t, err)

	pub := testP256
	pub.D = ""

	ok, err := VerifyProofValue(pub, proofValue, canonical)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyProofValue(pub, proofValue, []byte("<urn:a> <urn:b> \"x\" .\n"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyProofValueRejectsNonHex(t *testing.T) {
	pub := testP256
	pub.D = ""

	_, err := VerifyProofValue(pub, "zz-not-hex", []byte("data"))
	assert.Error(t, err)
}
