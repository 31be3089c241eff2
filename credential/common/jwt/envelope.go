package jwt

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/veritrail/go-attestation-sdk/credential/common/jsonmap"
)

// Envelope types carried in the typ header.
const (
	TypeCredential   = "vc+jwt"
	TypePresentation = "vp+jwt"
)

// Header is the protected header of a compact envelope. All three fields
// are mandatory.
type Header struct {
	Type      string `json:"typ"`
	Algorithm string `json:"alg"`
	KeyID     string `json:"kid"`
}

// Envelope is a parsed compact envelope: three base64url segments over a
// JSON header and payload and a raw (r || s) signature. The original encoded
// segments are retained so the signing input and serialization are always
// byte-exact, whatever fields the header carried.
type Envelope struct {
	Header    Header
	Payload   jsonmap.JSONMap
	Signature []byte

	headerB64  string
	payloadB64 string
}

// ParseEnvelope parses the compact serialization. Any structural defect is
// reported as a *MalformedEnvelopeError: the envelope must have exactly
// three dot-separated segments of unpadded base64url, the header and payload
// must decode to JSON objects and typ, alg and kid must all be present.
func ParseEnvelope(serialized string) (*Envelope, error) {
	parts := strings.Split(serialized, ".")
	if len(parts) != 3 {
		return nil, &MalformedEnvelopeError{Reason: fmt.Sprintf("expected 3 segments, got %d", len(parts))}
	}

	headerBytes, err := decodeSegment(parts[0])
	if err != nil {
		return nil, &MalformedEnvelopeError{Reason: fmt.Sprintf("header segment: %v", err)}
	}

	var header Header
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, &MalformedEnvelopeError{Reason: fmt.Sprintf("header is not a JSON object: %v", err)}
	}

	switch {
	case header.Type == "":
		return nil, &MalformedEnvelopeError{Reason: "header is missing typ"}
	case header.Algorithm == "":
		return nil, &MalformedEnvelopeError{Reason: "header is missing alg"}
	case header.KeyID == "":
		return nil, &MalformedEnvelopeError{Reason: "header is missing kid"}
	}

	payloadBytes, err := decodeSegment(parts[1])
	if err != nil {
		return nil, &MalformedEnvelopeError{Reason: fmt.Sprintf("payload segment: %v", err)}
	}

	payload, err := jsonmap.FromJSON(payloadBytes)
	if err != nil {
		return nil, &MalformedEnvelopeError{Reason: fmt.Sprintf("payload is not a JSON object: %v", err)}
	}

	signature, err := decodeSegment(parts[2])
	if err != nil {
		return nil, &MalformedEnvelopeError{Reason: fmt.Sprintf("signature segment: %v", err)}
	}

	return &Envelope{
		Header:     header,
		Payload:    payload,
		Signature:  signature,
		headerB64:  parts[0],
		payloadB64: parts[1],
	}, nil
}

// SigningInput returns the bytes the signature covers:
// base64url(header) || '.' || base64url(payload).
func (e *Envelope) SigningInput() []byte {
	return []byte(e.headerB64 + "." + e.payloadB64)
}

// Serialize returns the compact serialization, reusing the original encoded
// segments.
func (e *Envelope) Serialize() string {
	return e.headerB64 + "." + e.payloadB64 + "." + encodeSegment(e.Signature)
}

// serializeParts builds the compact serialization for freshly produced
// header and payload documents, signing with the supplied function.
func serializeParts(header Header, payload jsonmap.JSONMap, sign func([]byte) ([]byte, error)) (string, error) {
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return "", fmt.Errorf("failed to marshal header: %w", err)
	}

	payloadJSON, err := payload.ToJSON()
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	signingInput := encodeSegment(headerJSON) + "." + encodeSegment(payloadJSON)

	signature, err := sign([]byte(signingInput))
	if err != nil {
		return "", err
	}

	return signingInput + "." + encodeSegment(signature), nil
}

func encodeSegment(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// decodeSegment decodes one unpadded base64url segment. Padded or otherwise
// non-canonical segments are rejected.
func decodeSegment(segment string) ([]byte, error) {
	if segment == "" {
		return nil, fmt.Errorf("segment is empty")
	}

	return base64.RawURLEncoding.Strict().DecodeString(segment)
}
