// Package attestation is the convenience surface over the core packages:
// a process-local wallet of signing actors that publish their keys into a
// shared trust registry, and a verifier bound to that registry.
//
// The wallet is for tests, tools and single-process services. Anything
// larger should use credential/vc, credential/vp and the resolver registry
// directly.
package attestation

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/veritrail/go-attestation-sdk/credential/common/crypto"
	"github.com/veritrail/go-attestation-sdk/credential/common/jsonmap"
	"github.com/veritrail/go-attestation-sdk/credential/common/jwt"
	"github.com/veritrail/go-attestation-sdk/credential/common/model"
	"github.com/veritrail/go-attestation-sdk/credential/common/resolver"
	"github.com/veritrail/go-attestation-sdk/credential/vc"
	"github.com/veritrail/go-attestation-sdk/credential/vp"
)

// Issuer signs credentials under a controller id with a generated key.
type Issuer struct {
	id    string
	key   *crypto.PrivateKey
	keyID string
}

// ID returns the issuer's controller id.
func (i *Issuer) ID() string { return i.id }

// KeyID returns the qualified id the issuer signs under.
func (i *Issuer) KeyID() string { return i.keyID }

// Issue signs a credential. The signing key id defaults to the issuer's;
// a credential without an issuer member gets the issuer's id, one without
// an id gets a generated urn:uuid. The given map is not modified.
func (i *Issuer) Issue(credential jsonmap.JSONMap, opts vc.SignOptions) (string, error) {
	if opts.KeyID == "" {
		opts.KeyID = i.keyID
	}

	if !credential.Has("issuer") || !credential.Has("id") {
		copied, err := credential.Copy()
		if err != nil {
			return "", fmt.Errorf("failed to copy credential: %w", err)
		}
		if !copied.Has("issuer") {
			copied["issuer"] = i.id
		}
		if !copied.Has("id") {
			copied["id"] = "urn:uuid:" + uuid.NewString()
		}
		credential = copied
	}

	return vc.Sign(credential, i.key, opts)
}

// Holder presents credentials under a controller id with a generated key.
type Holder struct {
	id    string
	key   *crypto.PrivateKey
	keyID string
}

// ID returns the holder's controller id.
func (h *Holder) ID() string { return h.id }

// KeyID returns the qualified id the holder signs under.
func (h *Holder) KeyID() string { return h.keyID }

// Confirmation names the holder's key for an issuer to bind a credential
// to. A credential signed with this confirmation verifies only inside
// presentations this holder signed.
func (h *Holder) Confirmation() *jwt.Confirmation {
	return &jwt.Confirmation{Kid: h.key.Kid()}
}

// Present wraps the given credential envelopes into a presentation and
// signs it. The signing key id defaults to the holder's.
func (h *Holder) Present(credentialEnvelopes []string, opts vp.SignOptions) (string, error) {
	if opts.KeyID == "" {
		opts.KeyID = h.keyID
	}

	return vp.Sign(vp.NewPresentation(h.id, credentialEnvelopes...), h.key, opts)
}

// Verifier checks envelopes against a trust registry.
type Verifier struct {
	registry *resolver.Registry
}

// NewVerifier binds a verifier to a registry.
func NewVerifier(registry *resolver.Registry) *Verifier {
	return &Verifier{registry: registry}
}

// Credential verifies a credential envelope against the registry.
func (v *Verifier) Credential(envelope string, opts vc.VerifyOptions) (jsonmap.JSONMap, error) {
	return vc.VerifyWithResolver(envelope, v.registry, opts)
}

// Presentation verifies a presentation envelope against the registry.
func (v *Verifier) Presentation(envelope string, opts vp.VerifyOptions) (jsonmap.JSONMap, error) {
	return vp.VerifyWithResolver(envelope, v.registry, opts)
}

// Wallet holds the signing actors a process controls. Creating an actor
// generates its key and registers its controller document in the wallet's
// registry; removing it withdraws the document again.
type Wallet struct {
	mu       sync.RWMutex
	registry *resolver.Registry
	issuers  map[string]*Issuer
	holders  map[string]*Holder
}

// NewWallet creates an empty wallet with a fresh trust registry.
func NewWallet() *Wallet {
	return &Wallet{
		registry: resolver.NewRegistry(),
		issuers:  make(map[string]*Issuer),
		holders:  make(map[string]*Holder),
	}
}

// Registry returns the wallet's trust registry, for schema registration
// and for handing to external verifiers.
func (w *Wallet) Registry() *resolver.Registry {
	return w.registry
}

// Verifier returns a verifier bound to the wallet's registry.
func (w *Wallet) Verifier() *Verifier {
	return NewVerifier(w.registry)
}

// NewIssuer creates an issuer under the given controller id. An empty alg
// defaults to ES256. Creating an issuer with an id again replaces the
// previous one, keys included.
func (w *Wallet) NewIssuer(id, alg string) (*Issuer, error) {
	key, keyID, err := w.register(id, alg, model.RoleAssertion)
	if err != nil {
		return nil, err
	}

	issuer := &Issuer{id: id, key: key, keyID: keyID}

	w.mu.Lock()
	w.issuers[id] = issuer
	w.mu.Unlock()

	return issuer, nil
}

// Issuer returns a previously created issuer.
func (w *Wallet) Issuer(id string) (*Issuer, error) {
	w.mu.RLock()
	issuer, ok := w.issuers[id]
	w.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("issuer %q is not in the wallet", id)
	}

	return issuer, nil
}

// RemoveIssuer drops an issuer and withdraws its controller document.
func (w *Wallet) RemoveIssuer(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.issuers[id]; !ok {
		return fmt.Errorf("issuer %q is not in the wallet", id)
	}
	delete(w.issuers, id)

	return w.registry.RemoveController(id)
}

// NewHolder creates a holder under the given controller id. An empty alg
// defaults to ES256. Creating a holder with an id again replaces the
// previous one, keys included.
func (w *Wallet) NewHolder(id, alg string) (*Holder, error) {
	key, keyID, err := w.register(id, alg, model.RoleAuthentication)
	if err != nil {
		return nil, err
	}

	holder := &Holder{id: id, key: key, keyID: keyID}

	w.mu.Lock()
	w.holders[id] = holder
	w.mu.Unlock()

	return holder, nil
}

// Holder returns a previously created holder.
func (w *Wallet) Holder(id string) (*Holder, error) {
	w.mu.RLock()
	holder, ok := w.holders[id]
	w.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("holder %q is not in the wallet", id)
	}

	return holder, nil
}

// RemoveHolder drops a holder and withdraws its controller document.
func (w *Wallet) RemoveHolder(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.holders[id]; !ok {
		return fmt.Errorf("holder %q is not in the wallet", id)
	}
	delete(w.holders, id)

	return w.registry.RemoveController(id)
}

// register generates a key for a new actor and publishes its controller
// document with the key under the given role.
func (w *Wallet) register(id, alg string, role model.Role) (*crypto.PrivateKey, string, error) {
	if id == "" {
		return nil, "", fmt.Errorf("controller id is required")
	}
	if alg == "" {
		alg = crypto.AlgES256
	}

	key, err := crypto.GenerateKey(alg)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate key for %q: %w", id, err)
	}

	pub, err := key.Public()
	if err != nil {
		return nil, "", fmt.Errorf("failed to derive public key for %q: %w", id, err)
	}

	keyID := id + "#" + pub.Kid()
	doc := model.ControllerDocument{
		ID: id,
		VerificationMethod: []model.VerificationMethod{{
			ID:           keyID,
			Type:         model.VerificationMethodTypeJSONWebKey,
			Controller:   id,
			PublicKeyJwk: &pub.JWK,
		}},
	}

	switch role {
	case model.RoleAuthentication:
		doc.Authentication = []string{keyID}
	default:
		doc.AssertionMethod = []string{keyID}
	}

	if err := w.registry.AddController(doc); err != nil {
		return nil, "", fmt.Errorf("failed to register %q: %w", id, err)
	}

	return key, keyID, nil
}
