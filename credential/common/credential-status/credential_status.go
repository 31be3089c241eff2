// Package credentialstatus checks credentials against bitstring status
// lists. A credential's credentialStatus member points at a published
// status list credential; the bit at statusListIndex in the list's
// gzip+base64url encodedList carries the status.
//
// Resolution of the list document is the caller's business: fetch it with
// Client, or supply an already-obtained document to Check for offline use.
package credentialstatus

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/veritrail/go-attestation-sdk/credential/common/jsonmap"
	"github.com/veritrail/go-attestation-sdk/credential/common/util"
)

const (
	// TypeEntry is the credentialStatus type this package understands.
	TypeEntry = "BitstringStatusListEntry"
	// TypeList is the credentialSubject type of a status list credential.
	TypeList = "BitstringStatusList"

	PurposeRevocation = "revocation"
	PurposeSuspension = "suspension"

	// minEntries is the smallest list a builder allocates. Padding short
	// lists up keeps individual holders from being identifiable by list
	// size.
	minEntries = 131072
)

// ErrNoStatus reports a credential without a credentialStatus member.
var ErrNoStatus = fmt.Errorf("credential has no credentialStatus")

// Entries extracts the status entries of a credential payload. The
// credentialStatus member may be a single object or an array of them;
// a credential without one yields ErrNoStatus.
func Entries(credential jsonmap.JSONMap) ([]*Entry, error) {
	raw, ok := credential["credentialStatus"]
	if !ok {
		return nil, ErrNoStatus
	}

	var members []interface{}
	switch v := raw.(type) {
	case []interface{}:
		members = v
	default:
		members = []interface{}{raw}
	}
	if len(members) == 0 {
		return nil, ErrNoStatus
	}

	entries := make([]*Entry, 0, len(members))
	for i, member := range members {
		entry, err := parseEntry(member)
		if err != nil {
			return nil, fmt.Errorf("failed to parse credentialStatus entry at index %d: %w", i, err)
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

func parseEntry(member interface{}) (*Entry, error) {
	var obj jsonmap.JSONMap
	switch v := member.(type) {
	case jsonmap.JSONMap:
		obj = v
	case map[string]interface{}:
		obj = jsonmap.JSONMap(v)
	default:
		return nil, fmt.Errorf("entry must be an object, got %T", member)
	}

	entry := &Entry{}
	entry.ID, _ = obj.String("id")

	entry.Type, _ = obj.String("type")
	if entry.Type != TypeEntry {
		return nil, fmt.Errorf("unsupported credentialStatus type %q", entry.Type)
	}

	purpose, ok := obj.String("statusPurpose")
	if !ok || purpose == "" {
		return nil, fmt.Errorf("entry has no statusPurpose")
	}
	entry.StatusPurpose = purpose

	index, err := parseIndex(obj["statusListIndex"])
	if err != nil {
		return nil, err
	}
	entry.StatusListIndex = index

	list, ok := obj.String("statusListCredential")
	if !ok || list == "" {
		return nil, fmt.Errorf("entry has no statusListCredential")
	}
	entry.StatusListCredential = list

	return entry, nil
}

// parseIndex tolerates the number forms JSON decoding produces alongside
// the string form the data model prescribes.
func parseIndex(raw interface{}) (int, error) {
	var index int
	switch v := raw.(type) {
	case string:
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid statusListIndex %q", v)
		}
		index = parsed
	case float64:
		index = int(v)
	case int:
		index = v
	case json.Number:
		parsed, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("invalid statusListIndex %q", v.String())
		}
		index = int(parsed)
	case nil:
		return 0, fmt.Errorf("entry has no statusListIndex")
	default:
		return 0, fmt.Errorf("invalid statusListIndex type %T", raw)
	}

	if index < 0 {
		return 0, fmt.Errorf("statusListIndex must not be negative, got %d", index)
	}

	return index, nil
}

// Check reports whether the entry's bit is set in the given list. The
// entry and the list must agree on the status purpose.
func Check(entry *Entry, list *StatusListCredential) (bool, error) {
	if entry == nil {
		return false, fmt.Errorf("status entry is nil")
	}
	if list == nil {
		return false, fmt.Errorf("status list is nil")
	}
	if list.CredentialSubject.StatusPurpose != entry.StatusPurpose {
		return false, fmt.Errorf("status purpose %q does not match list purpose %q",
			entry.StatusPurpose, list.CredentialSubject.StatusPurpose)
	}

	bits, err := util.DecompressFromBase64URL(list.CredentialSubject.EncodedList)
	if err != nil {
		return false, fmt.Errorf("failed to decode status list: %w", err)
	}

	byteIndex := entry.StatusListIndex / 8
	if byteIndex >= len(bits) {
		return false, fmt.Errorf("statusListIndex %d is out of range for a list of %d entries",
			entry.StatusListIndex, len(bits)*8)
	}
	bitIndex := entry.StatusListIndex % 8

	return (bits[byteIndex]>>bitIndex)&1 == 1, nil
}

// StatusList accumulates per-index statuses on the issuer side. The zero
// index is valid; bits start unset.
type StatusList struct {
	purpose string
	bits    []byte
}

// NewStatusList allocates a list for the given purpose with room for at
// least the requested number of entries.
func NewStatusList(purpose string, entries int) (*StatusList, error) {
	if purpose == "" {
		return nil, fmt.Errorf("status purpose is empty")
	}
	if entries < 1 {
		return nil, fmt.Errorf("status list needs at least one entry, got %d", entries)
	}
	if entries < minEntries {
		entries = minEntries
	}

	return &StatusList{
		purpose: purpose,
		bits:    make([]byte, (entries+7)/8),
	}, nil
}

// Set flips the status bit at the given index.
func (l *StatusList) Set(index int, value bool) error {
	if index < 0 || index >= len(l.bits)*8 {
		return fmt.Errorf("status index %d is out of range for a list of %d entries", index, len(l.bits)*8)
	}

	mask := byte(1) << (index % 8)
	if value {
		l.bits[index/8] |= mask
	} else {
		l.bits[index/8] &^= mask
	}

	return nil
}

// Get reads the status bit at the given index.
func (l *StatusList) Get(index int) (bool, error) {
	if index < 0 || index >= len(l.bits)*8 {
		return false, fmt.Errorf("status index %d is out of range for a list of %d entries", index, len(l.bits)*8)
	}

	return (l.bits[index/8]>>(index%8))&1 == 1, nil
}

// Encode compresses the bitstring into the encodedList wire form.
func (l *StatusList) Encode() (string, error) {
	return util.CompressToBase64URL(l.bits)
}

// Credential assembles the publishable status list credential around the
// current bitstring.
func (l *StatusList) Credential(id, issuer string) (*StatusListCredential, error) {
	encoded, err := l.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode status list: %w", err)
	}

	return &StatusListCredential{
		Context: []string{"https://www.w3.org/ns/credentials/v2"},
		ID:      id,
		Type:    []string{"VerifiableCredential", "BitstringStatusListCredential"},
		Issuer:  issuer,
		CredentialSubject: StatusListSubject{
			ID:            id + "#list",
			Type:          TypeList,
			StatusPurpose: l.purpose,
			EncodedList:   encoded,
		},
	}, nil
}
