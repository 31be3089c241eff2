package credentialstatus

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/veritrail/go-attestation-sdk/credential/common/jsonmap"
)

// Client fetches status list credentials over HTTP and checks credentials
// against them.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientOpt adjusts a Client.
type ClientOpt func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOpt {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger replaces the default logger.
func WithLogger(logger *slog.Logger) ClientOpt {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient builds a status list client with a traced transport and a
// 10 second timeout.
func NewClient(opts ...ClientOpt) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// FetchStatusList retrieves and decodes the status list credential at the
// given URL.
func (c *Client) FetchStatusList(ctx context.Context, url string) (*StatusListCredential, error) {
	if url == "" {
		return nil, fmt.Errorf("status list URL is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build status list request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to fetch status list", "url", url, "error", err)
		return nil, fmt.Errorf("failed to fetch status list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.ErrorContext(ctx, "status list endpoint returned an error", "url", url, "status", resp.Status)
		return nil, fmt.Errorf("status list endpoint returned %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read status list response: %w", err)
	}

	var list StatusListCredential
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("failed to decode status list credential: %w", err)
	}
	if list.CredentialSubject.EncodedList == "" {
		return nil, fmt.Errorf("status list credential has no encodedList")
	}

	return &list, nil
}

// Revoked reports whether any revocation entry of the credential payload
// has its bit set in the list it points at. Entries with other purposes
// are ignored; a credential without revocation entries is not revoked.
func (c *Client) Revoked(ctx context.Context, credential jsonmap.JSONMap) (bool, error) {
	entries, err := Entries(credential)
	if err != nil {
		return false, err
	}

	for _, entry := range entries {
		if entry.StatusPurpose != PurposeRevocation {
			continue
		}

		list, err := c.FetchStatusList(ctx, entry.StatusListCredential)
		if err != nil {
			return false, err
		}

		set, err := Check(entry, list)
		if err != nil {
			return false, err
		}
		if set {
			return true, nil
		}
	}

	return false, nil
}
