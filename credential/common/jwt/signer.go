package jwt

import (
	"fmt"

	"github.com/veritrail/go-attestation-sdk/credential/common/crypto"
	"github.com/veritrail/go-attestation-sdk/credential/common/jsonmap"
)

// Signer produces compact envelopes under one signing key. The kid written
// into every header defaults to the key's thumbprint and may be overridden
// with a verification method label at construction.
type Signer struct {
	key *crypto.PrivateKey
	kid string
}

// NewSigner creates a signer for the key. An empty kid selects the key's
// derived thumbprint.
func NewSigner(key *crypto.PrivateKey, kid string) (*Signer, error) {
	if key == nil {
		return nil, fmt.Errorf("signing key is required")
	}
	if kid == "" {
		kid = key.Kid()
	}

	return &Signer{key: key, kid: kid}, nil
}

// KeyID returns the kid the signer stamps into headers.
func (s *Signer) KeyID() string { return s.kid }

// Algorithm returns the signing algorithm of the underlying key.
func (s *Signer) Algorithm() string { return s.key.Alg() }

// SignClaims envelopes a claim payload: the header {typ, alg, kid} and the
// payload are serialized as unpadded base64url and signed as
// header || '.' || payload.
func (s *Signer) SignClaims(typ string, payload jsonmap.JSONMap) (string, error) {
	if typ == "" {
		return "", fmt.Errorf("envelope type is required")
	}
	if payload == nil {
		return "", fmt.Errorf("payload is required")
	}

	header := Header{
		Type:      typ,
		Algorithm: s.key.Alg(),
		KeyID:     s.kid,
	}

	return serializeParts(header, payload, s.key.Sign)
}
