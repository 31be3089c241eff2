// Package vc issues and verifies credentials secured as compact vc+jwt
// envelopes. A credential document is an open JSON bag; signing maps its
// validity fields onto registered claims and verification checks the
// signature, the issuer's key authorization and the temporal claims.
package vc

import (
	"errors"
	"fmt"
	"time"

	"github.com/veritrail/go-attestation-sdk/credential/common/crypto"
	"github.com/veritrail/go-attestation-sdk/credential/common/jsonmap"
	"github.com/veritrail/go-attestation-sdk/credential/common/jwt"
	"github.com/veritrail/go-attestation-sdk/credential/common/model"
	"github.com/veritrail/go-attestation-sdk/credential/common/resolver"
	"github.com/veritrail/go-attestation-sdk/credential/common/schema"
)

// IssuerKeyMismatchError reports an envelope signed with a key the issuer's
// controller document knows but does not authorize for assertion.
type IssuerKeyMismatchError struct {
	Issuer string
	KeyID  string
}

func (e *IssuerKeyMismatchError) Error() string {
	return fmt.Sprintf("key %q is not an assertion method of issuer %q", e.KeyID, e.Issuer)
}

// SignOptions configures credential signing. An explicit option always wins
// over a value derived from the credential, which wins over the default.
type SignOptions struct {
	// KeyID is written into the envelope header. It is required and
	// deliberately not inferred from the key, so an issuer can rotate keys
	// under a stable verification method id.
	KeyID string

	// IssuedAt overrides the iat claim. Defaults to the signing time.
	IssuedAt *time.Time

	// NotBefore overrides the nbf claim derived from validFrom.
	NotBefore *time.Time

	// ExpiresAt overrides the exp claim derived from validUntil.
	ExpiresAt *time.Time

	// Confirmation binds the credential to a holder key via the cnf claim.
	// Overrides a cnf member already present on the credential.
	Confirmation *jwt.Confirmation
}

// VerifyOptions configures credential verification.
type VerifyOptions struct {
	// At is the instant temporal claims are checked against. Zero means now.
	At time.Time

	// ClockSkew is the tolerance granted to the iat claim for issuer clocks
	// running ahead of the verifier. nbf and exp are hard bounds and take no
	// skew. Nil selects jwt.DefaultClockSkew; point at zero for a strict iat
	// check.
	ClockSkew *time.Duration

	// ValidateSchema enforces the credential's credentialSchema references.
	// Only effective with a resolver, which supplies the schemas.
	ValidateSchema bool

	// SchemaPolicy decides how unresolvable schema references are treated.
	// The zero value fails closed.
	SchemaPolicy schema.Policy
}

func (o VerifyOptions) skew() time.Duration {
	if o.ClockSkew != nil {
		return *o.ClockSkew
	}

	return jwt.DefaultClockSkew
}

// Sign issues a credential as a compact vc+jwt envelope.
//
// The payload is a copy of the credential document with the registered
// claims filled in: iss from the issuer, sub from the credential subject id
// when present, iat from the options or the current time, and nbf/exp
// translated from validFrom/validUntil as epoch seconds with the ISO fields
// removed. The source document is not modified.
func Sign(credential jsonmap.JSONMap, key *crypto.PrivateKey, opts SignOptions) (string, error) {
	if len(credential) == 0 {
		return "", fmt.Errorf("credential is empty")
	}
	if key == nil {
		return "", fmt.Errorf("signing key is required")
	}
	if opts.KeyID == "" {
		return "", fmt.Errorf("signing key id is required")
	}

	payload, err := credential.Copy()
	if err != nil {
		return "", fmt.Errorf("failed to copy credential: %w", err)
	}

	issuer := issuerOf(payload)
	if issuer == "" {
		return "", fmt.Errorf("credential issuer is required")
	}
	payload[jwt.ClaimIssuer] = issuer

	if sub := subjectOf(payload); sub != "" {
		payload[jwt.ClaimSubject] = sub
	}

	issuedAt := time.Now()
	if opts.IssuedAt != nil {
		issuedAt = *opts.IssuedAt
	}
	payload[jwt.ClaimIssuedAt] = int64(jwt.NewNumericDate(issuedAt))

	if err := mapValidityClaim(payload, "validFrom", jwt.ClaimNotBefore, opts.NotBefore); err != nil {
		return "", err
	}
	if err := mapValidityClaim(payload, "validUntil", jwt.ClaimExpiry, opts.ExpiresAt); err != nil {
		return "", err
	}

	if opts.Confirmation != nil {
		payload[jwt.ClaimConfirmation] = jsonmap.JSONMap{"kid": opts.Confirmation.Kid}
	}

	signer, err := jwt.NewSigner(key, opts.KeyID)
	if err != nil {
		return "", err
	}

	return signer.SignClaims(jwt.TypeCredential, payload)
}

// Verify checks a credential envelope against a known public key and returns
// the decoded payload. The envelope's kid must name the key; use
// VerifyWithResolver when the key is not known up front.
func Verify(envelope string, key *crypto.PublicKey, opts VerifyOptions) (jsonmap.JSONMap, error) {
	if key == nil {
		return nil, fmt.Errorf("verification key is required")
	}

	env, err := jwt.ParseEnvelope(envelope)
	if err != nil {
		return nil, err
	}

	if err := jwt.CheckType(env, jwt.TypeCredential); err != nil {
		return nil, err
	}

	if err := jwt.VerifyWithKey(env, key); err != nil {
		return nil, err
	}

	claims, err := jwt.DecodeClaims(env.Payload)
	if err != nil {
		return nil, err
	}

	if err := claims.ValidateTemporal(opts.At, opts.skew()); err != nil {
		return nil, err
	}

	return env.Payload, nil
}

// VerifyWithResolver checks a credential envelope against the issuer's
// registered controller document. The envelope's kid must resolve to a
// verification method the issuer authorizes for assertion. When schema
// validation is requested, every credentialSchema reference is enforced
// according to the schema policy.
func VerifyWithResolver(envelope string, registry *resolver.Registry, opts VerifyOptions) (jsonmap.JSONMap, error) {
	if registry == nil {
		return nil, fmt.Errorf("resolver registry is required")
	}

	env, err := jwt.ParseEnvelope(envelope)
	if err != nil {
		return nil, err
	}

	if err := jwt.CheckType(env, jwt.TypeCredential); err != nil {
		return nil, err
	}

	claims, err := jwt.DecodeClaims(env.Payload)
	if err != nil {
		return nil, err
	}

	issuer := claims.Issuer
	if issuer == "" {
		issuer = issuerOf(env.Payload)
	}
	if issuer == "" {
		return nil, fmt.Errorf("credential has no issuer to resolve")
	}

	key, err := resolveAssertionKey(registry, issuer, env.Header.KeyID)
	if err != nil {
		return nil, err
	}

	if err := jwt.VerifyWithResolvedKey(env, key); err != nil {
		return nil, err
	}

	if err := claims.ValidateTemporal(opts.At, opts.skew()); err != nil {
		return nil, err
	}

	if opts.ValidateSchema {
		if err := validateSchemas(env.Payload, registry, opts.SchemaPolicy); err != nil {
			return nil, err
		}
	}

	return env.Payload, nil
}

// resolveAssertionKey resolves the signing key through the issuer's
// controller document under the assertion role. A kid the document carries
// outside that role is reported as an issuer key mismatch rather than an
// unknown key.
func resolveAssertionKey(registry *resolver.Registry, issuer, kid string) (*crypto.PublicKey, error) {
	entry, err := registry.Controller(issuer)
	if err != nil {
		return nil, err
	}

	key, err := entry.Keys(model.RoleAssertion).Resolve(kid)
	if err != nil {
		var notFound *resolver.KeyNotFoundError
		if errors.As(err, &notFound) && entry.HasKey(kid) {
			return nil, &IssuerKeyMismatchError{Issuer: issuer, KeyID: kid}
		}

		return nil, err
	}

	return key, nil
}

// validateSchemas enforces the credentialSchema references of a payload.
// Resolvable schemas are always enforced; references that cannot be resolved
// fail under the strict policy and are skipped under the permissive one.
func validateSchemas(payload jsonmap.JSONMap, registry *resolver.Registry, policy schema.Policy) error {
	refs, ok := payload.Slice("credentialSchema")
	if !ok {
		return nil
	}

	for _, ref := range refs {
		id := schemaRefID(ref)
		if id == "" {
			if policy == schema.PolicyPermissive {
				continue
			}
			return fmt.Errorf("credentialSchema entry has no id")
		}

		compiled, err := registry.Schema(id)
		if err != nil {
			var notFound *resolver.SchemaNotFoundError
			if errors.As(err, &notFound) && policy == schema.PolicyPermissive {
				continue
			}
			return err
		}

		if err := compiled.Validate(map[string]interface{}(payload)); err != nil {
			return err
		}
	}

	return nil
}

// schemaRefID extracts the schema identifier from a credentialSchema entry,
// which may be a bare id string or an {id, type} object.
func schemaRefID(ref interface{}) string {
	switch v := ref.(type) {
	case string:
		return v
	case jsonmap.JSONMap:
		if id, ok := v.String("id"); ok {
			return id
		}
	case map[string]interface{}:
		if id, ok := v["id"].(string); ok {
			return id
		}
	}

	return ""
}

// issuerOf extracts the issuer identifier. The issuer member may be a plain
// string or an object carrying an id.
func issuerOf(doc jsonmap.JSONMap) string {
	switch v := doc["issuer"].(type) {
	case string:
		return v
	case jsonmap.JSONMap:
		if id, ok := v.String("id"); ok {
			return id
		}
	case map[string]interface{}:
		if id, ok := v["id"].(string); ok {
			return id
		}
	}

	return ""
}

// subjectOf extracts the subject identifier: the id of the credential
// subject, or of the first subject when the credential names several.
func subjectOf(doc jsonmap.JSONMap) string {
	subjects, ok := doc.Slice("credentialSubject")
	if !ok || len(subjects) == 0 {
		return ""
	}

	switch v := subjects[0].(type) {
	case string:
		return v
	case jsonmap.JSONMap:
		if id, ok := v.String("id"); ok {
			return id
		}
	case map[string]interface{}:
		if id, ok := v["id"].(string); ok {
			return id
		}
	}

	return ""
}

// mapValidityClaim translates an ISO validity bound into its epoch claim,
// flooring sub-second precision and removing the ISO member. An explicit
// option wins over the derived value.
func mapValidityClaim(payload jsonmap.JSONMap, field, claim string, option *time.Time) error {
	if raw, ok := payload[field]; ok {
		iso, ok := raw.(string)
		if !ok {
			return fmt.Errorf("%s must be an RFC 3339 string, got %T", field, raw)
		}

		t, err := time.Parse(time.RFC3339, iso)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", field, err)
		}

		payload[claim] = int64(jwt.NewNumericDate(t))
		delete(payload, field)
	}

	if option != nil {
		payload[claim] = int64(jwt.NewNumericDate(*option))
	}

	return nil
}
