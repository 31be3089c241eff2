package jwt

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/veritrail/go-attestation-sdk/credential/common/jsonmap"
)

// Registered claim names used by the protocol.
const (
	ClaimIssuer       = "iss"
	ClaimSubject      = "sub"
	ClaimIssuedAt     = "iat"
	ClaimNotBefore    = "nbf"
	ClaimExpiry       = "exp"
	ClaimConfirmation = "cnf"
	ClaimNonce        = "nonce"
	ClaimAudience     = "aud"
)

// DefaultClockSkew is the issuance-drift tolerance granted to the iat claim
// when verification options leave the skew unset. It never loosens nbf or
// exp, which are hard bounds.
const DefaultClockSkew = 60 * time.Second

// NumericDate is a JWT timestamp: integer seconds since the Unix epoch.
type NumericDate int64

// NewNumericDate converts a time to epoch seconds, flooring sub-second
// precision.
func NewNumericDate(t time.Time) NumericDate {
	return NumericDate(t.Unix())
}

// Time returns the instant the timestamp names.
func (n NumericDate) Time() time.Time {
	return time.Unix(int64(n), 0)
}

// Confirmation is the cnf claim binding a credential to a holder key.
type Confirmation struct {
	Kid string `json:"kid" mapstructure:"kid"`
}

// Claims is a typed view over the registered claims of an envelope payload.
// The payload itself stays the source of truth; decoding never strips or
// rewrites it.
type Claims struct {
	Issuer       string        `mapstructure:"iss"`
	Subject      string        `mapstructure:"sub"`
	IssuedAt     *NumericDate  `mapstructure:"iat"`
	NotBefore    *NumericDate  `mapstructure:"nbf"`
	Expiry       *NumericDate  `mapstructure:"exp"`
	Confirmation *Confirmation `mapstructure:"cnf"`
	Nonce        string        `mapstructure:"nonce"`
	Audience     []string      `mapstructure:"aud"`
}

// DecodeClaims extracts the registered claims from a payload. A claim whose
// shape cannot be interpreted, such as a non-numeric exp, yields a
// *MalformedClaimError.
func DecodeClaims(payload jsonmap.JSONMap) (*Claims, error) {
	var claims Claims

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(numericDateHook, audienceHook),
		Result:     &claims,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build claims decoder: %w", err)
	}

	if err := decoder.Decode(map[string]interface{}(payload)); err != nil {
		return nil, &MalformedClaimError{Reason: err.Error()}
	}

	return &claims, nil
}

// ValidateTemporal checks nbf, exp and iat against the verification instant.
// A zero instant means now. nbf and exp are hard bounds; skew is applied as
// given and only to iat, tolerating issuer clocks running ahead of the
// verifier. Callers wanting a default pass DefaultClockSkew. Absent claims
// are not checked.
func (c *Claims) ValidateTemporal(at time.Time, skew time.Duration) error {
	if at.IsZero() {
		at = time.Now()
	}

	if c.NotBefore != nil && at.Before(c.NotBefore.Time()) {
		return &NotYetValidError{NotBefore: c.NotBefore.Time(), Now: at}
	}

	if c.Expiry != nil && at.After(c.Expiry.Time()) {
		return &ExpiredError{ExpiredAt: c.Expiry.Time(), Now: at}
	}

	if c.IssuedAt != nil && c.IssuedAt.Time().After(at.Add(skew)) {
		return &IssuedInFutureError{IssuedAt: c.IssuedAt.Time(), Now: at}
	}

	return nil
}

// HasAudience reports whether the aud claim includes the given audience.
func (c *Claims) HasAudience(audience string) bool {
	for _, a := range c.Audience {
		if a == audience {
			return true
		}
	}

	return false
}

// numericDateHook converts JSON numbers into NumericDate values. Payloads
// are decoded with UseNumber, so timestamps arrive as json.Number and large
// epochs stay exact.
func numericDateHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != reflect.TypeOf(NumericDate(0)) {
		return data, nil
	}

	switch v := data.(type) {
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			f, ferr := v.Float64()
			if ferr != nil {
				return nil, fmt.Errorf("timestamp %q is not numeric", v.String())
			}
			return NumericDate(int64(f)), nil
		}
		return NumericDate(n), nil
	case float64:
		return NumericDate(int64(v)), nil
	case int64:
		return NumericDate(v), nil
	case int:
		return NumericDate(v), nil
	default:
		return nil, fmt.Errorf("timestamp has non-numeric type %T", data)
	}
}

// audienceHook accepts the aud claim in both of its JWT forms: a single
// string or an array of strings.
func audienceHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != reflect.TypeOf([]string(nil)) || from.Kind() != reflect.String {
		return data, nil
	}

	if s, ok := data.(string); ok {
		return []string{s}, nil
	}

	return data, nil
}
