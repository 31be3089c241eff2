package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	jose "github.com/go-jose/go-jose/v3"
)

// Signing algorithms supported by the envelope protocol.
const (
	AlgES256 = "ES256"
	AlgES384 = "ES384"
)

// Key operations recorded in the key_ops field of exported JWKs.
const (
	KeyOpSign   = "sign"
	KeyOpVerify = "verify"
)

// ecThumbprintTemplate is the canonical RFC 7638 thumbprint input for an EC
// key: required members only, lexicographic member order, no whitespace.
const ecThumbprintTemplate = `{"crv":"%s","kty":"EC","x":"%s","y":"%s"}`

var (
	// ErrUnsupportedAlgorithm is returned for any signing algorithm outside
	// the ES256/ES384 subset the protocol speaks.
	ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")

	// ErrUnsupportedKeyType is returned when a thumbprint is requested for a
	// non-EC key.
	ErrUnsupportedKeyType = errors.New("unsupported key type for thumbprint")
)

// JWK is the JSON Web Key subset consumed and produced by the protocol.
type JWK struct {
	Kty    string   `json:"kty"`
	Crv    string   `json:"crv"`
	X      string   `json:"x"`
	Y      string   `json:"y"`
	D      string   `json:"d,omitempty"`
	Alg    string   `json:"alg,omitempty"`
	Kid    string   `json:"kid,omitempty"`
	KeyOps []string `json:"key_ops,omitempty"`
}

// PrivateKey is a signing key together with its JWK form. The JWK carries d
// and key_ops=["sign"]; its kid is always the RFC 7638 thumbprint of the
// public part.
type PrivateKey struct {
	JWK JWK

	ec *ecdsa.PrivateKey
}

// PublicKey is a verification key together with its JWK form (no d,
// key_ops=["verify"]).
type PublicKey struct {
	JWK JWK

	ec *ecdsa.PublicKey
}

// Alg returns the signing algorithm bound to the key.
func (k *PrivateKey) Alg() string { return k.JWK.Alg }

// Kid returns the derived key identifier (RFC 7638 thumbprint).
func (k *PrivateKey) Kid() string { return k.JWK.Kid }

// Alg returns the signing algorithm bound to the key.
func (k *PublicKey) Alg() string { return k.JWK.Alg }

// Kid returns the derived key identifier (RFC 7638 thumbprint).
func (k *PublicKey) Kid() string { return k.JWK.Kid }

// GenerateKey generates a fresh EC key pair on the curve matching alg
// (ES256 -> P-256, ES384 -> P-384), exports it to JWK form and derives its
// kid thumbprint.
func GenerateKey(alg string) (*PrivateKey, error) {
	curve, err := curveForAlg(alg)
	if err != nil {
		return nil, err
	}

	ec, err := ecdsa.GenerateKey(curve, rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate %s key: %w", alg, err)
	}

	return newPrivateKey(ec, alg)
}

// Public derives the verification key for a signing key. The key material is
// round-tripped through JWK marshalling so a malformed key can never escape:
// the re-import checks that the point is on the declared curve, d is stripped
// and the kid is recomputed from (crv, x, y).
func (k *PrivateKey) Public() (*PublicKey, error) {
	return newPublicKey(&k.ec.PublicKey, k.JWK.Alg)
}

// Sign signs data with ECDSA over the algorithm's digest (SHA-256 for ES256,
// SHA-384 for ES384). The signature is the raw big-endian (r || s)
// concatenation, each half zero-padded to the curve byte size; it is not DER.
func (k *PrivateKey) Sign(data []byte) ([]byte, error) {
	return signRaw(k.ec, k.JWK.Alg, data)
}

// Verify reports whether sig is a valid raw (r || s) signature over data. A
// mismatched or malformed signature yields false, never an error.
func (k *PublicKey) Verify(data, sig []byte) bool {
	return verifyRaw(k.ec, k.JWK.Alg, data, sig)
}

// Thumbprint computes the RFC 7638 thumbprint of an EC JWK: base64url of the
// SHA-256 digest over the canonical {"crv","kty","x","y"} JSON. Two JWKs with
// identical (kty, crv, x, y) always produce the same thumbprint.
func Thumbprint(jwk JWK) (string, error) {
	if jwk.Kty != "EC" {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedKeyType, jwk.Kty)
	}
	if jwk.Crv == "" || jwk.X == "" || jwk.Y == "" {
		return "", errors.New("incomplete EC key: crv, x and y are required")
	}

	input := fmt.Sprintf(ecThumbprintTemplate, jwk.Crv, jwk.X, jwk.Y)
	sum := sha256.Sum256([]byte(input))

	return base64.RawURLEncoding.EncodeToString(sum[:]), nil
}

// ParsePrivateJWK imports a private JWK. The key material is validated on
// import and the kid is rederived; a caller-supplied kid is never trusted.
func ParsePrivateJWK(jwk JWK) (*PrivateKey, error) {
	parsed, err := importJWK(jwk)
	if err != nil {
		return nil, err
	}

	ec, ok := parsed.Key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, errors.New("JWK does not contain an EC private key")
	}

	alg, err := resolveAlg(jwk.Alg, jwk.Crv)
	if err != nil {
		return nil, err
	}

	return newPrivateKey(ec, alg)
}

// ParsePublicJWK imports a public JWK, validating the key material and
// rederiving the kid. A private JWK is accepted; its d is dropped.
func ParsePublicJWK(jwk JWK) (*PublicKey, error) {
	jwk.D = ""

	parsed, err := importJWK(jwk)
	if err != nil {
		return nil, err
	}

	ec, ok := parsed.Key.(*ecdsa.PublicKey)
	if !ok {
		return nil, errors.New("JWK does not contain an EC public key")
	}

	alg, err := resolveAlg(jwk.Alg, jwk.Crv)
	if err != nil {
		return nil, err
	}

	return newPublicKey(ec, alg)
}

// VerifySignature verifies a raw (r || s) signature using a public key given
// in JWK form. It errors only on malformed key material; a signature that
// simply does not match yields (false, nil).
func VerifySignature(jwk JWK, data, sig []byte) (bool, error) {
	pub, err := ParsePublicJWK(jwk)
	if err != nil {
		return false, fmt.Errorf("failed to import verification key: %w", err)
	}

	return pub.Verify(data, sig), nil
}

func newPrivateKey(ec *ecdsa.PrivateKey, alg string) (*PrivateKey, error) {
	jwk, err := exportJWK(&jose.JSONWebKey{Key: ec, Algorithm: alg})
	if err != nil {
		return nil, err
	}
	jwk.KeyOps = []string{KeyOpSign}

	jwk.Kid, err = Thumbprint(jwk)
	if err != nil {
		return nil, err
	}

	return &PrivateKey{JWK: jwk, ec: ec}, nil
}

func newPublicKey(ec *ecdsa.PublicKey, alg string) (*PublicKey, error) {
	jwk, err := exportJWK(&jose.JSONWebKey{Key: ec, Algorithm: alg})
	if err != nil {
		return nil, err
	}
	jwk.KeyOps = []string{KeyOpVerify}

	jwk.Kid, err = Thumbprint(jwk)
	if err != nil {
		return nil, err
	}

	return &PublicKey{JWK: jwk, ec: ec}, nil
}

// exportJWK serializes key material through go-jose and re-imports it, so
// that any structural defect surfaces here rather than at signing time.
func exportJWK(key *jose.JSONWebKey) (JWK, error) {
	raw, err := key.MarshalJSON()
	if err != nil {
		return JWK{}, fmt.Errorf("failed to export JWK: %w", err)
	}

	var check jose.JSONWebKey
	if err := check.UnmarshalJSON(raw); err != nil {
		return JWK{}, fmt.Errorf("exported JWK failed validation: %w", err)
	}

	var jwk JWK
	if err := json.Unmarshal(raw, &jwk); err != nil {
		return JWK{}, fmt.Errorf("failed to decode exported JWK: %w", err)
	}

	return jwk, nil
}

// importJWK parses a JWK through go-jose, which rejects coordinates that are
// not on the declared curve.
func importJWK(jwk JWK) (*jose.JSONWebKey, error) {
	raw, err := json.Marshal(jwk)
	if err != nil {
		return nil, fmt.Errorf("failed to encode JWK: %w", err)
	}

	var parsed jose.JSONWebKey
	if err := parsed.UnmarshalJSON(raw); err != nil {
		return nil, fmt.Errorf("malformed JWK: %w", err)
	}

	return &parsed, nil
}

func curveForAlg(alg string) (elliptic.Curve, error) {
	switch alg {
	case AlgES256:
		return elliptic.P256(), nil
	case AlgES384:
		return elliptic.P384(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}
}

func algForCurve(crv string) (string, error) {
	switch crv {
	case "P-256":
		return AlgES256, nil
	case "P-384":
		return AlgES384, nil
	default:
		return "", fmt.Errorf("%w: no algorithm for curve %q", ErrUnsupportedAlgorithm, crv)
	}
}

// resolveAlg picks the effective algorithm for an imported key: the declared
// alg when present (it must agree with the curve), otherwise the curve's
// algorithm.
func resolveAlg(alg, crv string) (string, error) {
	fromCurve, err := algForCurve(crv)
	if err != nil {
		return "", err
	}

	if alg == "" {
		return fromCurve, nil
	}
	if alg != fromCurve {
		return "", fmt.Errorf("algorithm %q does not match curve %q", alg, crv)
	}

	return alg, nil
}
