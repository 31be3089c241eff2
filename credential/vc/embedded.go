package vc

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/veritrail/go-attestation-sdk/credential/common/crypto"
	"github.com/veritrail/go-attestation-sdk/credential/common/jsonmap"
	"github.com/veritrail/go-attestation-sdk/credential/common/model"
	"github.com/veritrail/go-attestation-sdk/credential/common/schema"
)

// AddProof attaches an embedded data-integrity proof to a credential
// document, replacing any existing proof member. The document minus its
// proof is canonicalized, digested and signed under the ecdsa-rdfc-2019
// cryptosuite.
func AddProof(credential jsonmap.JSONMap, key *crypto.PrivateKey, verificationMethod string, opts ...schema.ProcessorOpt) error {
	if len(credential) == 0 {
		return fmt.Errorf("credential is empty")
	}
	if key == nil {
		return fmt.Errorf("signing key is required")
	}
	if verificationMethod == "" {
		return fmt.Errorf("verification method is required")
	}

	canonical, err := credential.Canonicalize(opts...)
	if err != nil {
		return fmt.Errorf("failed to canonicalize credential: %w", err)
	}

	proofValue, err := crypto.SignProofValue(key, canonical)
	if err != nil {
		return fmt.Errorf("failed to sign credential: %w", err)
	}

	proof := model.Proof{
		Type:               crypto.ProofTypeDataIntegrity,
		Created:            time.Now().UTC().Format(time.RFC3339),
		VerificationMethod: verificationMethod,
		ProofPurpose:       model.ProofPurposeAssertionMethod,
		Cryptosuite:        crypto.CryptosuiteECDSARDFC2019,
		ProofValue:         proofValue,
	}

	proofMap, err := proofToMap(proof)
	if err != nil {
		return err
	}
	credential["proof"] = proofMap

	return nil
}

// VerifyProof checks a credential's embedded data-integrity proof against a
// public JWK. The proof member is excluded from canonicalization, so the
// check covers exactly what was signed.
func VerifyProof(credential jsonmap.JSONMap, jwk crypto.JWK, opts ...schema.ProcessorOpt) error {
	proofMap, ok := credential.Map("proof")
	if !ok {
		return fmt.Errorf("credential has no proof")
	}

	proof, err := proofFromMap(proofMap)
	if err != nil {
		return err
	}

	if proof.Type != crypto.ProofTypeDataIntegrity {
		return fmt.Errorf("unsupported proof type %q", proof.Type)
	}
	if proof.Cryptosuite != crypto.CryptosuiteECDSARDFC2019 {
		return fmt.Errorf("unsupported cryptosuite %q", proof.Cryptosuite)
	}
	if proof.ProofValue == "" {
		return fmt.Errorf("proof has no proof value")
	}

	canonical, err := credential.Canonicalize(opts...)
	if err != nil {
		return fmt.Errorf("failed to canonicalize credential: %w", err)
	}

	valid, err := crypto.VerifyProofValue(jwk, proof.ProofValue, canonical)
	if err != nil {
		return fmt.Errorf("failed to verify proof: %w", err)
	}
	if !valid {
		return fmt.Errorf("invalid proof value")
	}

	return nil
}

func proofToMap(proof model.Proof) (jsonmap.JSONMap, error) {
	data, err := json.Marshal(proof)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal proof: %w", err)
	}

	return jsonmap.FromJSON(data)
}

func proofFromMap(m jsonmap.JSONMap) (model.Proof, error) {
	data, err := m.ToJSON()
	if err != nil {
		return model.Proof{}, err
	}

	var proof model.Proof
	if err := json.Unmarshal(data, &proof); err != nil {
		return model.Proof{}, fmt.Errorf("failed to unmarshal proof: %w", err)
	}

	return proof, nil
}
