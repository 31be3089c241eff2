package credentialstatus

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritrail/go-attestation-sdk/credential/common/jsonmap"
	"github.com/veritrail/go-attestation-sdk/credential/common/util"
)

func quietClient(opts ...ClientOpt) *Client {
	opts = append(opts, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	return NewClient(opts...)
}

func entryAt(index int, purpose, listURL string) *Entry {
	return &Entry{
		Type:                 TypeEntry,
		StatusPurpose:        purpose,
		StatusListIndex:      index,
		StatusListCredential: listURL,
	}
}

func TestStatusListRoundTrip(t *testing.T) {
	list, err := NewStatusList(PurposeRevocation, 16)
	require.NoError(t, err)

	require.NoError(t, list.Set(0, true))
	require.NoError(t, list.Set(9, true))

	set, err := list.Get(0)
	require.NoError(t, err)
	assert.True(t, set)

	set, err = list.Get(1)
	require.NoError(t, err)
	assert.False(t, set)

	cred, err := list.Credential("https://status.example/1", "did:example:issuer")
	require.NoError(t, err)
	assert.Equal(t, TypeList, cred.CredentialSubject.Type)
	assert.Equal(t, PurposeRevocation, cred.CredentialSubject.StatusPurpose)
	assert.Equal(t, "did:example:issuer", cred.Issuer)

	for index, want := range map[int]bool{0: true, 1: false, 9: true} {
		got, err := Check(entryAt(index, PurposeRevocation, cred.ID), cred)
		require.NoError(t, err)
		assert.Equal(t, want, got, "index %d", index)
	}
}

func TestStatusListClearBit(t *testing.T) {
	list, err := NewStatusList(PurposeSuspension, 8)
	require.NoError(t, err)

	require.NoError(t, list.Set(3, true))
	require.NoError(t, list.Set(3, false))

	set, err := list.Get(3)
	require.NoError(t, err)
	assert.False(t, set)
}

func TestStatusListBounds(t *testing.T) {
	_, err := NewStatusList("", 8)
	assert.Error(t, err)

	_, err = NewStatusList(PurposeRevocation, 0)
	assert.Error(t, err)

	list, err := NewStatusList(PurposeRevocation, 8)
	require.NoError(t, err)

	// Short lists are padded up, so the real bound is the padded size.
	assert.Error(t, list.Set(-1, true))
	assert.Error(t, list.Set(minEntries, true))

	_, err = list.Get(minEntries)
	assert.Error(t, err)

	set, err := list.Get(minEntries - 1)
	require.NoError(t, err)
	assert.False(t, set)
}

func TestCheck(t *testing.T) {
	// Bit pattern 0x01 -> index 0 set, everything else clear (LSB-first).
	encoded, err := util.CompressToBase64URL([]byte{0x01})
	require.NoError(t, err)

	list := &StatusListCredential{
		CredentialSubject: StatusListSubject{
			Type:          TypeList,
			StatusPurpose: PurposeRevocation,
			EncodedList:   encoded,
		},
	}

	set, err := Check(entryAt(0, PurposeRevocation, "https://status.example/1"), list)
	require.NoError(t, err)
	assert.True(t, set)

	set, err = Check(entryAt(1, PurposeRevocation, "https://status.example/1"), list)
	require.NoError(t, err)
	assert.False(t, set)

	t.Run("purpose mismatch", func(t *testing.T) {
		_, err := Check(entryAt(0, PurposeSuspension, "https://status.example/1"), list)
		assert.ErrorContains(t, err, "purpose")
	})

	t.Run("index out of range", func(t *testing.T) {
		_, err := Check(entryAt(8, PurposeRevocation, "https://status.example/1"), list)
		assert.ErrorContains(t, err, "out of range")
	})

	t.Run("bad encoded list", func(t *testing.T) {
		broken := &StatusListCredential{
			CredentialSubject: StatusListSubject{
				StatusPurpose: PurposeRevocation,
				EncodedList:   "not-base64url!",
			},
		}

		_, err := Check(entryAt(0, PurposeRevocation, "https://status.example/1"), broken)
		assert.Error(t, err)
	})
}

func TestEntries(t *testing.T) {
	t.Run("single object", func(t *testing.T) {
		credential, err := jsonmap.FromJSON([]byte(`{
			"credentialStatus": {
				"id": "https://status.example/1#42",
				"type": "BitstringStatusListEntry",
				"statusPurpose": "revocation",
				"statusListIndex": "42",
				"statusListCredential": "https://status.example/1"
			}
		}`))
		require.NoError(t, err)

		entries, err := Entries(credential)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, 42, entries[0].StatusListIndex)
		assert.Equal(t, PurposeRevocation, entries[0].StatusPurpose)
		assert.Equal(t, "https://status.example/1", entries[0].StatusListCredential)
	})

	t.Run("array of entries", func(t *testing.T) {
		credential, err := jsonmap.FromJSON([]byte(`{
			"credentialStatus": [
				{
					"type": "BitstringStatusListEntry",
					"statusPurpose": "revocation",
					"statusListIndex": "7",
					"statusListCredential": "https://status.example/1"
				},
				{
					"type": "BitstringStatusListEntry",
					"statusPurpose": "suspension",
					"statusListIndex": 9,
					"statusListCredential": "https://status.example/2"
				}
			]
		}`))
		require.NoError(t, err)

		entries, err := Entries(credential)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, 7, entries[0].StatusListIndex)
		assert.Equal(t, 9, entries[1].StatusListIndex)
		assert.Equal(t, PurposeSuspension, entries[1].StatusPurpose)
	})

	t.Run("no status member", func(t *testing.T) {
		_, err := Entries(jsonmap.JSONMap{"issuer": "did:example:issuer"})
		assert.ErrorIs(t, err, ErrNoStatus)
	})

	t.Run("index from in-memory int", func(t *testing.T) {
		credential := jsonmap.JSONMap{
			"credentialStatus": jsonmap.JSONMap{
				"type":                 TypeEntry,
				"statusPurpose":        PurposeRevocation,
				"statusListIndex":      5,
				"statusListCredential": "https://status.example/1",
			},
		}

		entries, err := Entries(credential)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, 5, entries[0].StatusListIndex)
	})
}

func TestEntriesRejectsBadEntry(t *testing.T) {
	base := func() jsonmap.JSONMap {
		return jsonmap.JSONMap{
			"type":                 TypeEntry,
			"statusPurpose":        PurposeRevocation,
			"statusListIndex":      "42",
			"statusListCredential": "https://status.example/1",
		}
	}

	tests := []struct {
		name   string
		mutate func(jsonmap.JSONMap)
	}{
		{
			name:   "wrong type",
			mutate: func(m jsonmap.JSONMap) { m["type"] = "RevocationList2020Status" },
		},
		{
			name:   "missing purpose",
			mutate: func(m jsonmap.JSONMap) { delete(m, "statusPurpose") },
		},
		{
			name:   "missing index",
			mutate: func(m jsonmap.JSONMap) { delete(m, "statusListIndex") },
		},
		{
			name:   "negative index",
			mutate: func(m jsonmap.JSONMap) { m["statusListIndex"] = "-1" },
		},
		{
			name:   "unparseable index",
			mutate: func(m jsonmap.JSONMap) { m["statusListIndex"] = "soon" },
		},
		{
			name:   "missing list URL",
			mutate: func(m jsonmap.JSONMap) { delete(m, "statusListCredential") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := base()
			tt.mutate(entry)

			_, err := Entries(jsonmap.JSONMap{"credentialStatus": entry})
			assert.Error(t, err)
		})
	}
}

func TestClientRevoked(t *testing.T) {
	list, err := NewStatusList(PurposeRevocation, 8)
	require.NoError(t, err)
	require.NoError(t, list.Set(0, true))

	cred, err := list.Credential("https://status.example/1", "did:example:issuer")
	require.NoError(t, err)
	body, err := json.Marshal(cred)
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	defer server.Close()

	client := quietClient(WithHTTPClient(server.Client()))

	statusCredential := func(index int) jsonmap.JSONMap {
		return jsonmap.JSONMap{
			"issuer": "did:example:issuer",
			"credentialStatus": jsonmap.JSONMap{
				"type":                 TypeEntry,
				"statusPurpose":        PurposeRevocation,
				"statusListIndex":      index,
				"statusListCredential": server.URL,
			},
		}
	}

	revoked, err := client.Revoked(context.Background(), statusCredential(0))
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = client.Revoked(context.Background(), statusCredential(1))
	require.NoError(t, err)
	assert.False(t, revoked)

	t.Run("non-revocation entries are ignored", func(t *testing.T) {
		credential := jsonmap.JSONMap{
			"credentialStatus": jsonmap.JSONMap{
				"type":                 TypeEntry,
				"statusPurpose":        PurposeSuspension,
				"statusListIndex":      0,
				"statusListCredential": server.URL,
			},
		}

		revoked, err := client.Revoked(context.Background(), credential)
		require.NoError(t, err)
		assert.False(t, revoked)
	})

	t.Run("no status member", func(t *testing.T) {
		_, err := client.Revoked(context.Background(), jsonmap.JSONMap{"issuer": "did:example:issuer"})
		assert.ErrorIs(t, err, ErrNoStatus)
	})
}

func TestClientFetchErrors(t *testing.T) {
	t.Run("empty URL", func(t *testing.T) {
		_, err := quietClient().FetchStatusList(context.Background(), "")
		assert.Error(t, err)
	})

	t.Run("non-200 response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "gone", http.StatusNotFound)
		}))
		defer server.Close()

		_, err := quietClient(WithHTTPClient(server.Client())).FetchStatusList(context.Background(), server.URL)
		assert.ErrorContains(t, err, "404")
	})

	t.Run("malformed body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{not json`))
		}))
		defer server.Close()

		_, err := quietClient(WithHTTPClient(server.Client())).FetchStatusList(context.Background(), server.URL)
		assert.ErrorContains(t, err, "decode")
	})

	t.Run("missing encodedList", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"credentialSubject": {"statusPurpose": "revocation"}}`))
		}))
		defer server.Close()

		_, err := quietClient(WithHTTPClient(server.Client())).FetchStatusList(context.Background(), server.URL)
		assert.ErrorContains(t, err, "encodedList")
	})
}
