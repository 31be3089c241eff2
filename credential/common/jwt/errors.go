package jwt

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidSignature is returned when an envelope signature does not
	// verify under the selected key.
	ErrInvalidSignature = errors.New("invalid envelope signature")

	// ErrNonceMissing is returned when a nonce was expected but the
	// presentation carries none.
	ErrNonceMissing = errors.New("presentation carries no nonce")

	// ErrAudienceMissing is returned when an audience was expected but the
	// presentation carries none.
	ErrAudienceMissing = errors.New("presentation carries no audience")
)

// MalformedEnvelopeError reports an envelope that fails structural parsing:
// wrong segment count, invalid base64url, invalid JSON or missing mandatory
// header fields.
type MalformedEnvelopeError struct {
	Reason string
}

func (e *MalformedEnvelopeError) Error() string {
	return fmt.Sprintf("malformed envelope: %s", e.Reason)
}

// MalformedClaimError reports a registered claim that cannot be interpreted,
// such as a non-numeric exp.
type MalformedClaimError struct {
	Reason string
}

func (e *MalformedClaimError) Error() string {
	return fmt.Sprintf("malformed claim: %s", e.Reason)
}

// TypeMismatchError reports an envelope of the wrong kind, such as a
// presentation envelope handed to credential verification.
type TypeMismatchError struct {
	Expected string
	Actual   string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("envelope type %q, expected %q", e.Actual, e.Expected)
}

// AlgorithmMismatchError reports an envelope whose declared algorithm is not
// the algorithm of the verification key.
type AlgorithmMismatchError struct {
	HeaderAlg string
	KeyAlg    string
}

func (e *AlgorithmMismatchError) Error() string {
	return fmt.Sprintf("envelope algorithm %q does not match key algorithm %q", e.HeaderAlg, e.KeyAlg)
}

// KeyIDMismatchError reports an envelope signed under a different key id
// than the one the verifier supplied.
type KeyIDMismatchError struct {
	HeaderKid string
	KeyKid    string
}

func (e *KeyIDMismatchError) Error() string {
	return fmt.Sprintf("envelope key id %q does not match verification key id %q", e.HeaderKid, e.KeyKid)
}

// NotYetValidError reports verification before the document's nbf.
type NotYetValidError struct {
	NotBefore time.Time
	Now       time.Time
}

func (e *NotYetValidError) Error() string {
	return fmt.Sprintf("document not valid before %s (checked at %s)", e.NotBefore.UTC().Format(time.RFC3339), e.Now.UTC().Format(time.RFC3339))
}

// ExpiredError reports verification after the document's exp.
type ExpiredError struct {
	ExpiredAt time.Time
	Now       time.Time
}

func (e *ExpiredError) Error() string {
	return fmt.Sprintf("document expired at %s (checked at %s)", e.ExpiredAt.UTC().Format(time.RFC3339), e.Now.UTC().Format(time.RFC3339))
}

// IssuedInFutureError reports an iat beyond the verifier's clock plus skew.
type IssuedInFutureError struct {
	IssuedAt time.Time
	Now      time.Time
}

func (e *IssuedInFutureError) Error() string {
	return fmt.Sprintf("document issued at %s, in the future of %s", e.IssuedAt.UTC().Format(time.RFC3339), e.Now.UTC().Format(time.RFC3339))
}

// NonceMismatchError reports a presentation nonce different from the one the
// verifier challenged with.
type NonceMismatchError struct {
	Expected string
	Actual   string
}

func (e *NonceMismatchError) Error() string {
	return fmt.Sprintf("presentation nonce %q does not match expected %q", e.Actual, e.Expected)
}

// AudienceMismatchError reports a presentation whose aud does not intersect
// the expected audience set.
type AudienceMismatchError struct {
	Expected []string
	Actual   []string
}

func (e *AudienceMismatchError) Error() string {
	return fmt.Sprintf("presentation audience %v does not intersect expected %v", e.Actual, e.Expected)
}
