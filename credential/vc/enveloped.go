package vc

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/veritrail/go-attestation-sdk/credential/common/jsonmap"
)

const (
	// ContextV2 is the base context of the credential data model.
	ContextV2 = "https://www.w3.org/ns/credentials/v2"

	// EnvelopedType marks a credential secured as a compact envelope.
	EnvelopedType = "EnvelopedVerifiableCredential"

	// EnvelopedPrefix is the data-URI prefix carrying a vc+jwt envelope.
	EnvelopedPrefix = "data:application/vc+jwt,"
)

// Wrap renders a signed envelope as an enveloped-credential object, the form
// a presentation embeds in its verifiableCredential member.
func Wrap(envelope string) jsonmap.JSONMap {
	return jsonmap.JSONMap{
		"@context": ContextV2,
		"id":       EnvelopedPrefix + envelope,
		"type":     EnvelopedType,
	}
}

// Unwrap extracts the compact envelope from an enveloped-credential id. The
// literal media-type prefix is required.
func Unwrap(id string) (string, error) {
	envelope, found := strings.CutPrefix(id, EnvelopedPrefix)
	if !found {
		return "", fmt.Errorf("enveloped credential id must start with %q", EnvelopedPrefix)
	}
	if envelope == "" {
		return "", fmt.Errorf("enveloped credential carries no envelope")
	}

	return envelope, nil
}

// EnvelopeFrom extracts the compact envelope from a verifiableCredential
// entry, which may be the data-URI string itself or an enveloped-credential
// object.
func EnvelopeFrom(entry interface{}) (string, error) {
	switch v := entry.(type) {
	case string:
		return Unwrap(v)
	case jsonmap.JSONMap:
		return envelopeFromObject(v)
	case map[string]interface{}:
		return envelopeFromObject(jsonmap.JSONMap(v))
	default:
		return "", fmt.Errorf("unsupported verifiableCredential entry of type %T", entry)
	}
}

func envelopeFromObject(obj jsonmap.JSONMap) (string, error) {
	types, _ := obj.StringSlice("type")
	if !slices.Contains(types, EnvelopedType) {
		return "", fmt.Errorf("credential object is not an %s", EnvelopedType)
	}

	id, ok := obj.String("id")
	if !ok {
		return "", fmt.Errorf("enveloped credential has no id")
	}

	return Unwrap(id)
}
