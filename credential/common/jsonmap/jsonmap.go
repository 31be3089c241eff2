package jsonmap

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/veritrail/go-attestation-sdk/credential/common/schema"
)

// JSONMap represents a JSON object as a map. Documents and claim sets are
// open bags: members the protocol does not know are preserved untouched.
type JSONMap map[string]interface{}

// FromJSON decodes a JSON object. Numbers are kept as json.Number so large
// epoch values survive a decode/encode cycle without float drift.
func FromJSON(data []byte) (JSONMap, error) {
	var m JSONMap

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to decode JSON object: %w", err)
	}

	return m, nil
}

// ToJSON serializes the map to JSON.
func (m JSONMap) ToJSON() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON object: %w", err)
	}

	return data, nil
}

// Copy returns a deep copy produced by a marshal round trip, so later edits
// to the copy never leak into the source document.
func (m JSONMap) Copy() (JSONMap, error) {
	if m == nil {
		return nil, nil
	}

	data, err := m.ToJSON()
	if err != nil {
		return nil, err
	}

	return FromJSON(data)
}

// CopyWithout returns a deep copy with the given top-level keys removed.
func (m JSONMap) CopyWithout(keys ...string) (JSONMap, error) {
	cp, err := m.Copy()
	if err != nil {
		return nil, err
	}

	for _, k := range keys {
		delete(cp, k)
	}

	return cp, nil
}

// Has reports whether the top-level key is present.
func (m JSONMap) Has(key string) bool {
	_, ok := m[key]
	return ok
}

// String returns a top-level string member.
func (m JSONMap) String(key string) (string, bool) {
	s, ok := m[key].(string)
	return s, ok
}

// Map returns a top-level object member.
func (m JSONMap) Map(key string) (JSONMap, bool) {
	switch v := m[key].(type) {
	case JSONMap:
		return v, true
	case map[string]interface{}:
		return JSONMap(v), true
	default:
		return nil, false
	}
}

// Slice returns a top-level array member. A scalar member is wrapped into a
// single-element slice, matching the JSON-LD set/value duality used across
// credential documents.
func (m JSONMap) Slice(key string) ([]interface{}, bool) {
	switch v := m[key].(type) {
	case []interface{}:
		return v, true
	case nil:
		return nil, false
	default:
		return []interface{}{v}, true
	}
}

// StringSlice returns a top-level member as a string slice, accepting both a
// single string and an array of strings.
func (m JSONMap) StringSlice(key string) ([]string, bool) {
	items, ok := m.Slice(key)
	if !ok {
		return nil, false
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}

	return out, true
}

// Canonicalize produces the signing digest for an embedded proof: the
// document minus its proof member is normalized to canonical N-Quads and
// hashed. The source map is never modified.
func (m JSONMap) Canonicalize(opts ...schema.ProcessorOpt) ([]byte, error) {
	doc, err := m.CopyWithout("proof")
	if err != nil {
		return nil, err
	}

	canonical, err := schema.CanonicalizeDocument(doc, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize document: %w", err)
	}

	return schema.ComputeDigest(canonical)
}
