package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"math/big"
)

// digest hashes data with the hash bound to alg.
func digest(alg string, data []byte) ([]byte, error) {
	switch alg {
	case AlgES256:
		sum := sha256.Sum256(data)
		return sum[:], nil
	case AlgES384:
		sum := sha512.Sum384(data)
		return sum[:], nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}
}

// curveByteSize returns the byte width of a curve coordinate; both signature
// halves are padded to this width.
func curveByteSize(curve elliptic.Curve) int {
	bits := curve.Params().BitSize

	size := bits / 8
	if bits%8 > 0 {
		size++
	}

	return size
}

func signRaw(key *ecdsa.PrivateKey, alg string, data []byte) ([]byte, error) {
	hashed, err := digest(alg, data)
	if err != nil {
		return nil, err
	}

	r, s, err := ecdsa.Sign(rand.Reader, key, hashed)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}

	size := curveByteSize(key.Curve)

	// Left-pad r and s so the halves always sit at fixed offsets.
	sig := make([]byte, 2*size)
	rBytes := r.Bytes()
	sBytes := s.Bytes()
	copy(sig[size-len(rBytes):size], rBytes)
	copy(sig[2*size-len(sBytes):], sBytes)

	return sig, nil
}

func verifyRaw(key *ecdsa.PublicKey, alg string, data, sig []byte) bool {
	hashed, err := digest(alg, data)
	if err != nil {
		return false
	}

	size := curveByteSize(key.Curve)
	if len(sig) != 2*size {
		return false
	}

	r := new(big.Int).SetBytes(sig[:size])
	s := new(big.Int).SetBytes(sig[size:])

	return ecdsa.Verify(key, hashed, r, s)
}
