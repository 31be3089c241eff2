package jwt

import (
	"fmt"

	"github.com/veritrail/go-attestation-sdk/credential/common/crypto"
	"github.com/veritrail/go-attestation-sdk/credential/common/model"
)

// CheckType verifies that the envelope declares the expected typ.
func CheckType(env *Envelope, expected string) error {
	if env.Header.Type != expected {
		return &TypeMismatchError{Expected: expected, Actual: env.Header.Type}
	}

	return nil
}

// VerifyWithKey checks an envelope in direct-key mode: the declared
// algorithm must be supported and equal the key's, the kid must name the
// supplied key and the signature must verify. Key ids are compared by bare
// fragment so a controller-qualified kid matches its unqualified form.
func VerifyWithKey(env *Envelope, key *crypto.PublicKey) error {
	if err := checkAlgorithm(env, key); err != nil {
		return err
	}

	if model.BareFragment(env.Header.KeyID) != model.BareFragment(key.Kid()) {
		return &KeyIDMismatchError{HeaderKid: env.Header.KeyID, KeyKid: key.Kid()}
	}

	return checkSignature(env, key)
}

// VerifyWithResolvedKey checks an envelope against a key that was already
// selected by the envelope's kid. The kid equality check is skipped;
// algorithm consistency and the signature are still enforced.
func VerifyWithResolvedKey(env *Envelope, key *crypto.PublicKey) error {
	if err := checkAlgorithm(env, key); err != nil {
		return err
	}

	return checkSignature(env, key)
}

func checkAlgorithm(env *Envelope, key *crypto.PublicKey) error {
	alg := env.Header.Algorithm

	if alg != crypto.AlgES256 && alg != crypto.AlgES384 {
		return fmt.Errorf("%w: %q", crypto.ErrUnsupportedAlgorithm, alg)
	}

	if alg != key.Alg() {
		return &AlgorithmMismatchError{HeaderAlg: alg, KeyAlg: key.Alg()}
	}

	return nil
}

func checkSignature(env *Envelope, key *crypto.PublicKey) error {
	if !key.Verify(env.SigningInput(), env.Signature) {
		return ErrInvalidSignature
	}

	return nil
}
