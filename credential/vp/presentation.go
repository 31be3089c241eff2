// Package vp builds, signs and verifies presentations secured as compact
// vp+jwt envelopes. A presentation carries credentials in their enveloped
// form; verification enforces the challenge the verifier issued and the
// holder binding of every embedded credential.
package vp

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/veritrail/go-attestation-sdk/credential/common/crypto"
	"github.com/veritrail/go-attestation-sdk/credential/common/jsonmap"
	"github.com/veritrail/go-attestation-sdk/credential/common/jwt"
	"github.com/veritrail/go-attestation-sdk/credential/common/model"
	"github.com/veritrail/go-attestation-sdk/credential/common/resolver"
	"github.com/veritrail/go-attestation-sdk/credential/vc"
)

// DefaultTTL bounds a presentation's lifetime when the holder supplies no
// explicit expiry. Presentations answer a single challenge and should not
// outlive it by much.
const DefaultTTL = 2 * time.Minute

// innerVerifyLimit caps how many embedded credentials are verified
// concurrently.
const innerVerifyLimit = 4

// HolderBindingError reports a presentation signed by a key other than the
// one an embedded credential's cnf claim requires.
type HolderBindingError struct {
	Required string
	Actual   string
}

func (e *HolderBindingError) Error() string {
	return fmt.Sprintf("presentation signed with key %q but credential requires holder key %q", e.Actual, e.Required)
}

// SignOptions configures presentation signing. An explicit option always
// wins over a value derived from the presentation, which wins over the
// default.
type SignOptions struct {
	// KeyID is written into the envelope header. It is required and
	// deliberately not inferred from the key.
	KeyID string

	// Nonce is copied verbatim into the nonce claim, echoing the verifier's
	// challenge.
	Nonce string

	// Audience is copied into the aud claim: a single audience as a string,
	// several as an array.
	Audience []string

	// IssuedAt overrides the iat claim. Defaults to the signing time.
	IssuedAt *time.Time

	// ExpiresAt overrides the exp claim. Defaults to IssuedAt plus the TTL.
	ExpiresAt *time.Time

	// TTL bounds the default expiry. Zero selects DefaultTTL.
	TTL time.Duration
}

// VerifyOptions configures presentation verification.
type VerifyOptions struct {
	// At is the instant temporal claims are checked against. Zero means now.
	At time.Time

	// ClockSkew is the tolerance granted to the iat claim for holder clocks
	// running ahead of the verifier. nbf and exp are hard bounds and take no
	// skew. Nil selects jwt.DefaultClockSkew; point at zero for a strict iat
	// check.
	ClockSkew *time.Duration

	// ExpectedNonce, when set, requires the presentation to echo it.
	ExpectedNonce string

	// ExpectedAudience, when set, must intersect the presentation's aud
	// claim.
	ExpectedAudience []string

	// Resolver verifies embedded credentials when the outer envelope is
	// checked against a direct key. Resolver-driven verification uses its
	// own registry and ignores this field.
	Resolver *resolver.Registry
}

func (o VerifyOptions) skew() time.Duration {
	if o.ClockSkew != nil {
		return *o.ClockSkew
	}

	return jwt.DefaultClockSkew
}

// NewNonce returns a fresh challenge for a verifier to bind a presentation
// to.
func NewNonce() string {
	return uuid.NewString()
}

// NewPresentation builds a presentation document for the holder, embedding
// the given credential envelopes in their enveloped form.
func NewPresentation(holder string, credentialEnvelopes ...string) jsonmap.JSONMap {
	pres := jsonmap.JSONMap{
		"@context": []interface{}{vc.ContextV2},
		"id":       "urn:uuid:" + uuid.NewString(),
		"type":     "VerifiablePresentation",
		"holder":   holder,
	}

	if len(credentialEnvelopes) > 0 {
		wrapped := make([]interface{}, 0, len(credentialEnvelopes))
		for _, envelope := range credentialEnvelopes {
			wrapped = append(wrapped, vc.Wrap(envelope))
		}
		pres["verifiableCredential"] = wrapped
	}

	return pres
}

// Sign issues a presentation as a compact vp+jwt envelope. The holder acts
// as both issuer and subject of the claim set; the expiry defaults to the
// issue time plus the TTL.
func Sign(presentation jsonmap.JSONMap, key *crypto.PrivateKey, opts SignOptions) (string, error) {
	if len(presentation) == 0 {
		return "", fmt.Errorf("presentation is empty")
	}
	if key == nil {
		return "", fmt.Errorf("signing key is required")
	}
	if opts.KeyID == "" {
		return "", fmt.Errorf("signing key id is required")
	}

	payload, err := presentation.Copy()
	if err != nil {
		return "", fmt.Errorf("failed to copy presentation: %w", err)
	}

	holder := holderOf(payload)
	if holder == "" {
		return "", fmt.Errorf("presentation holder is required")
	}
	payload[jwt.ClaimIssuer] = holder
	payload[jwt.ClaimSubject] = holder

	issuedAt := time.Now()
	if opts.IssuedAt != nil {
		issuedAt = *opts.IssuedAt
	}
	payload[jwt.ClaimIssuedAt] = int64(jwt.NewNumericDate(issuedAt))

	ttl := opts.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}
	expires := issuedAt.Add(ttl)
	if opts.ExpiresAt != nil {
		expires = *opts.ExpiresAt
	}
	payload[jwt.ClaimExpiry] = int64(jwt.NewNumericDate(expires))

	if opts.Nonce != "" {
		payload[jwt.ClaimNonce] = opts.Nonce
	}

	switch len(opts.Audience) {
	case 0:
	case 1:
		payload[jwt.ClaimAudience] = opts.Audience[0]
	default:
		payload[jwt.ClaimAudience] = opts.Audience
	}

	signer, err := jwt.NewSigner(key, opts.KeyID)
	if err != nil {
		return "", err
	}

	return signer.SignClaims(jwt.TypePresentation, payload)
}

// Verify checks a presentation envelope against a known public key and
// returns the decoded payload. Embedded credentials are verified through
// opts.Resolver; a presentation that embeds credentials fails when no
// resolver is supplied.
func Verify(envelope string, key *crypto.PublicKey, opts VerifyOptions) (jsonmap.JSONMap, error) {
	if key == nil {
		return nil, fmt.Errorf("verification key is required")
	}

	env, err := jwt.ParseEnvelope(envelope)
	if err != nil {
		return nil, err
	}

	if err := jwt.CheckType(env, jwt.TypePresentation); err != nil {
		return nil, err
	}

	if err := jwt.VerifyWithKey(env, key); err != nil {
		return nil, err
	}

	claims, err := jwt.DecodeClaims(env.Payload)
	if err != nil {
		return nil, err
	}

	return finishVerify(env, claims, opts.Resolver, opts)
}

// VerifyWithResolver checks a presentation envelope against the holder's
// registered controller document. The envelope's kid must resolve to a
// verification method the holder authorizes for authentication; embedded
// credentials are verified against the same registry.
func VerifyWithResolver(envelope string, registry *resolver.Registry, opts VerifyOptions) (jsonmap.JSONMap, error) {
	if registry == nil {
		return nil, fmt.Errorf("resolver registry is required")
	}

	env, err := jwt.ParseEnvelope(envelope)
	if err != nil {
		return nil, err
	}

	if err := jwt.CheckType(env, jwt.TypePresentation); err != nil {
		return nil, err
	}

	claims, err := jwt.DecodeClaims(env.Payload)
	if err != nil {
		return nil, err
	}

	holder := claims.Issuer
	if holder == "" {
		holder = holderOf(env.Payload)
	}
	if holder == "" {
		return nil, fmt.Errorf("presentation has no holder to resolve")
	}

	entry, err := registry.Controller(holder)
	if err != nil {
		return nil, err
	}

	key, err := entry.Keys(model.RoleAuthentication).Resolve(env.Header.KeyID)
	if err != nil {
		return nil, err
	}

	if err := jwt.VerifyWithResolvedKey(env, key); err != nil {
		return nil, err
	}

	return finishVerify(env, claims, registry, opts)
}

// finishVerify runs the checks shared by both verification modes: temporal
// claims, the verifier's challenge and the embedded credentials.
func finishVerify(env *jwt.Envelope, claims *jwt.Claims, registry *resolver.Registry, opts VerifyOptions) (jsonmap.JSONMap, error) {
	if err := claims.ValidateTemporal(opts.At, opts.skew()); err != nil {
		return nil, err
	}

	if err := checkChallenge(claims, opts); err != nil {
		return nil, err
	}

	if entries, ok := env.Payload.Slice("verifiableCredential"); ok && len(entries) > 0 {
		if registry == nil {
			return nil, fmt.Errorf("a resolver is required to verify embedded credentials")
		}
		if err := verifyEmbedded(entries, env.Header.KeyID, registry, opts); err != nil {
			return nil, err
		}
	}

	return env.Payload, nil
}

// checkChallenge enforces the nonce and audience the verifier expects.
func checkChallenge(claims *jwt.Claims, opts VerifyOptions) error {
	if opts.ExpectedNonce != "" {
		if claims.Nonce == "" {
			return jwt.ErrNonceMissing
		}
		if claims.Nonce != opts.ExpectedNonce {
			return &jwt.NonceMismatchError{Expected: opts.ExpectedNonce, Actual: claims.Nonce}
		}
	}

	if len(opts.ExpectedAudience) > 0 {
		if len(claims.Audience) == 0 {
			return jwt.ErrAudienceMissing
		}

		matched := false
		for _, audience := range opts.ExpectedAudience {
			if claims.HasAudience(audience) {
				matched = true
				break
			}
		}
		if !matched {
			return &jwt.AudienceMismatchError{Expected: opts.ExpectedAudience, Actual: claims.Audience}
		}
	}

	return nil
}

// verifyEmbedded fans the embedded credentials out for verification. Each
// credential is independent, so they run concurrently; errors are collected
// per index and the lowest failing index is reported, keeping the outcome
// deterministic regardless of scheduling.
func verifyEmbedded(entries []interface{}, presentationKid string, registry *resolver.Registry, opts VerifyOptions) error {
	errs := make([]error, len(entries))

	var g errgroup.Group
	g.SetLimit(innerVerifyLimit)

	for i, entry := range entries {
		i, entry := i, entry
		g.Go(func() error {
			errs[i] = verifyEmbeddedCredential(entry, presentationKid, registry, opts)
			return nil
		})
	}
	_ = g.Wait()

	for i, err := range errs {
		if err != nil {
			return fmt.Errorf("failed to verify credential at index %d: %w", i, err)
		}
	}

	return nil
}

// verifyEmbeddedCredential unwraps and verifies one embedded credential and
// enforces its holder binding: a credential carrying cnf.kid may only be
// presented under that key, comparing bare fragments on both sides.
func verifyEmbeddedCredential(entry interface{}, presentationKid string, registry *resolver.Registry, opts VerifyOptions) error {
	innerEnvelope, err := vc.EnvelopeFrom(entry)
	if err != nil {
		return err
	}

	payload, err := vc.VerifyWithResolver(innerEnvelope, registry, vc.VerifyOptions{
		At:        opts.At,
		ClockSkew: opts.ClockSkew,
	})
	if err != nil {
		return err
	}

	claims, err := jwt.DecodeClaims(payload)
	if err != nil {
		return err
	}

	if claims.Confirmation == nil || claims.Confirmation.Kid == "" {
		return nil
	}

	required := claims.Confirmation.Kid
	if model.BareFragment(required) != model.BareFragment(presentationKid) {
		return &HolderBindingError{Required: required, Actual: presentationKid}
	}

	return nil
}

// holderOf extracts the holder identifier. The holder member may be a plain
// string or an object carrying an id.
func holderOf(doc jsonmap.JSONMap) string {
	switch v := doc["holder"].(type) {
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
