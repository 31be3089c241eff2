package model

import (
	"fmt"
	"strings"

	"github.com/veritrail/go-attestation-sdk/credential/common/crypto"
)

// VerificationMethodTypeJSONWebKey is the verification method type carrying
// key material as a publicKeyJwk.
const VerificationMethodTypeJSONWebKey = "JsonWebKey"

// Role names the relationship class a verification method is authorized for.
type Role string

const (
	// RoleAssertion authorizes a key to sign credentials.
	RoleAssertion Role = "assertionMethod"

	// RoleAuthentication authorizes a key to sign presentations.
	RoleAuthentication Role = "authentication"
)

// ControllerDocument describes a protocol participant: its identifier, the
// verification methods it controls and the relationship lists that authorize
// each key for signing credentials or presentations. Domain metadata carried
// alongside is preserved but never interpreted.
type ControllerDocument struct {
	Context            []string               `json:"@context,omitempty"`
	ID                 string                 `json:"id"`
	AlsoKnownAs        []string               `json:"alsoKnownAs,omitempty"`
	VerificationMethod []VerificationMethod   `json:"verificationMethod,omitempty"`
	AssertionMethod    []string               `json:"assertionMethod,omitempty"`
	Authentication     []string               `json:"authentication,omitempty"`
	Metadata           map[string]interface{} `json:"metadata,omitempty"`
}

// VerificationMethod binds a public key to a controller under a stable
// identifier.
type VerificationMethod struct {
	ID           string      `json:"id"`
	Type         string      `json:"type"`
	Controller   string      `json:"controller"`
	PublicKeyJwk *crypto.JWK `json:"publicKeyJwk,omitempty"`
}

// Validate checks the structural invariants of a controller document:
// a non-empty id, unique verification method ids, EC key material on every
// method, and relationship entries that reference declared methods only.
func (d *ControllerDocument) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("controller document has no id")
	}

	seen := make(map[string]struct{}, len(d.VerificationMethod))
	for i, vm := range d.VerificationMethod {
		if vm.ID == "" {
			return fmt.Errorf("verification method %d has no id", i)
		}

		id := ExpandReference(d.ID, vm.ID)
		if _, dup := seen[id]; dup {
			return fmt.Errorf("duplicate verification method id %q", vm.ID)
		}
		seen[id] = struct{}{}

		if vm.PublicKeyJwk == nil {
			return fmt.Errorf("verification method %q carries no publicKeyJwk", vm.ID)
		}
		if vm.PublicKeyJwk.Kty != "EC" {
			return fmt.Errorf("verification method %q: unsupported key type %q", vm.ID, vm.PublicKeyJwk.Kty)
		}
	}

	for _, role := range []Role{RoleAssertion, RoleAuthentication} {
		for _, ref := range d.RoleReferences(role) {
			if _, ok := seen[ExpandReference(d.ID, ref)]; !ok {
				return fmt.Errorf("%s references unknown verification method %q", role, ref)
			}
		}
	}

	return nil
}

// RoleReferences returns the raw relationship entries for a role.
func (d *ControllerDocument) RoleReferences(role Role) []string {
	switch role {
	case RoleAssertion:
		return d.AssertionMethod
	case RoleAuthentication:
		return d.Authentication
	default:
		return nil
	}
}

// FindVerificationMethod looks up a verification method by id, accepting the
// full id, a #fragment reference or a bare fragment.
func (d *ControllerDocument) FindVerificationMethod(ref string) (*VerificationMethod, bool) {
	want := ExpandReference(d.ID, ref)

	for i := range d.VerificationMethod {
		if ExpandReference(d.ID, d.VerificationMethod[i].ID) == want {
			return &d.VerificationMethod[i], true
		}
	}

	return nil, false
}

// ExpandReference resolves a possibly-relative verification method reference
// against its controller id: "#key-1" and "key-1" both expand to
// "<controller>#key-1", full identifiers pass through unchanged.
func ExpandReference(controllerID, ref string) string {
	if ref == "" {
		return ""
	}
	if strings.Contains(ref, "#") && !strings.HasPrefix(ref, "#") {
		return ref
	}

	return controllerID + "#" + BareFragment(ref)
}

// BareFragment strips everything up to and including the last '#', leaving
// the bare key label.
func BareFragment(id string) string {
	if idx := strings.LastIndex(id, "#"); idx >= 0 {
		return id[idx+1:]
	}

	return id
}
