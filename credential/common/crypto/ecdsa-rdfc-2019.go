package crypto

import (
	"encoding/hex"
	"fmt"
)

// Identifiers for embedded data-integrity proofs.
const (
	ProofTypeDataIntegrity   = "DataIntegrityProof"
	CryptosuiteECDSARDFC2019 = "ecdsa-rdfc-2019"
)

// SignProofValue signs a canonical document digest with the key and encodes
// the raw (r || s) signature as the hex proofValue of an embedded proof.
func SignProofValue(key *PrivateKey, digest []byte) (string, error) {
	sig, err := key.Sign(digest)
	if err != nil {
		return "", fmt.Errorf("failed to sign canonical document digest: %w", err)
	}

	return hex.EncodeToString(sig), nil
}

// VerifyProofValue checks a hex proofValue against a canonical document
// digest using a verification key in JWK form.
func VerifyProofValue(jwk JWK, proofValue string, digest []byte) (bool, error) {
	sig, err := hex.DecodeString(proofValue)
	if err != nil {
		return false, fmt.Errorf("proofValue is not valid hex: %w", err)
	}

	return VerifySignature(jwk, digest, sig)
}
