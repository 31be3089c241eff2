package vp

import (
	"fmt"
	"strings"

	"github.com/veritrail/go-attestation-sdk/credential/common/jsonmap"
	"github.com/veritrail/go-attestation-sdk/credential/vc"
)

const (
	// EnvelopedType marks a presentation secured as a compact envelope.
	EnvelopedType = "EnvelopedVerifiablePresentation"

	// EnvelopedPrefix is the data-URI prefix carrying a vp+jwt envelope.
	EnvelopedPrefix = "data:application/vp+jwt,"
)

// Wrap renders a signed envelope as an enveloped-presentation object.
func Wrap(envelope string) jsonmap.JSONMap {
	return jsonmap.JSONMap{
		"@context": vc.ContextV2,
		"id":       EnvelopedPrefix + envelope,
		"type":     EnvelopedType,
	}
}

// Unwrap extracts the compact envelope from an enveloped-presentation id.
// The literal media-type prefix is required.
func Unwrap(id string) (string, error) {
	envelope, found := strings.CutPrefix(id, EnvelopedPrefix)
	if !found {
		return "", fmt.Errorf("enveloped presentation id must start with %q", EnvelopedPrefix)
	}
	if envelope == "" {
		return "", fmt.Errorf("enveloped presentation carries no envelope")
	}

	return envelope, nil
}
