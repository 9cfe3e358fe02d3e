package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hivestreaming/partner-keytool/internal/expiry"
)

const maxBodyBytes = 1 << 20

type Endpoint string

const (
	EndpointProd Endpoint = "prod"
	EndpointTest Endpoint = "test"
)

var baseURLs = map[Endpoint]string{
	EndpointProd: "https://keymanager.hivestreaming.com",
	EndpointTest: "https://keymanager-test.hivestreaming.com",
}

// PublicKeyRecord is one published key's lifecycle state. List responses
// are redacted: exponent and modulus are empty there.
type PublicKeyRecord struct {
	PartnerID  string     `json:"partnerId"`
	KeyID      string     `json:"keyId"`
	Exponent   string     `json:"exponent,omitempty"`
	Modulus    string     `json:"modulus,omitempty"`
	Expiration int64      `json:"expiration"`
	CreatedAt  time.Time  `json:"createdAt"`
	DeletedAt  *time.Time `json:"deletedAt,omitempty"`
}

type createRequest struct {
	PartnerID  string `json:"partnerId"`
	KeyID      string `json:"keyId"`
	Exponent   string `json:"exponent"`
	Modulus    string `json:"modulus"`
	Expiration int64  `json:"expiration"`
}

// Client talks to the public-key registry on behalf of one partner. It
// holds only immutable configuration and is safe for concurrent use.
type Client struct {
	logger       *slog.Logger
	baseURL      string
	partnerID    string
	partnerToken string
	httpClient   *http.Client
	now          func() time.Time
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func NewClient(logger *slog.Logger, endpoint Endpoint, partnerID, partnerToken string, opts ...Option) (*Client, error) {
	baseURL, ok := baseURLs[endpoint]
	if !ok {
		return nil, fmt.Errorf("unknown registry endpoint %q, expected prod or test", endpoint)
	}
	c := &Client{
		logger:       logger,
		baseURL:      baseURL,
		partnerID:    partnerID,
		partnerToken: partnerToken,
		httpClient:   http.DefaultClient,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Create publishes a key. expiration is either an absolute Unix timestamp
// or a duration string resolved against the wall clock before transmission.
func (c *Client) Create(ctx context.Context, keyID, exponent, modulus, expiration string) error {
	expiresAt, err := expiry.Absolute(expiration, c.now())
	if err != nil {
		return err
	}
	body := createRequest{
		PartnerID:  c.partnerID,
		KeyID:      keyID,
		Exponent:   exponent,
		Modulus:    modulus,
		Expiration: expiresAt,
	}
	return c.do(ctx, http.MethodPost, "/publickey", body, nil, keyID)
}

func (c *Client) Get(ctx context.Context, keyID string) (*PublicKeyRecord, error) {
	var record PublicKeyRecord
	path := fmt.Sprintf("/publickey/%s/%s", url.PathEscape(c.partnerID), url.PathEscape(keyID))
	if err := c.do(ctx, http.MethodGet, path, nil, &record, keyID); err != nil {
		return nil, err
	}
	return &record, nil
}

// List returns the partner's key records without key material.
func (c *Client) List(ctx context.Context, includeDeleted bool) ([]PublicKeyRecord, error) {
	var records []PublicKeyRecord
	path := fmt.Sprintf("/publickey/%s?includeDeleted=%s",
		url.PathEscape(c.partnerID), strconv.FormatBool(includeDeleted))
	if err := c.do(ctx, http.MethodGet, path, nil, &records, ""); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *Client) Delete(ctx context.Context, keyID string) error {
	path := fmt.Sprintf("/publickey/%s/%s", url.PathEscape(c.partnerID), url.PathEscape(keyID))
	return c.do(ctx, http.MethodDelete, path, nil, nil, keyID)
}

// do runs one request and applies the registry's uniform status mapping.
// Transport failures are returned as-is; no retries here.
func (c *Client) do(ctx context.Context, method, path string, body, out any, keyID string) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.partnerToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("registry request", slog.String("method", method), slog.String("path", path))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode registry response: %w", err)
		}
		return nil
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return &AuthorizationError{}
	case resp.StatusCode == http.StatusBadRequest:
		return &ValidationError{Messages: validationMessages(data)}
	case resp.StatusCode == http.StatusNotFound:
		return &NotFoundError{PartnerID: c.partnerID, KeyID: keyID}
	case resp.StatusCode == http.StatusGone:
		return &DeletedError{PartnerID: c.partnerID, KeyID: keyID}
	default:
		return fmt.Errorf("registry returned %s: %s", resp.Status, snippet(data))
	}
}

func validationMessages(data []byte) []string {
	var multi struct {
		Errors []string `json:"errors"`
	}
	if err := json.Unmarshal(data, &multi); err == nil && len(multi.Errors) > 0 {
		return multi.Errors
	}
	var single struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &single); err == nil && single.Error != "" {
		return []string{single.Error}
	}
	if s := snippet(data); s != "" {
		return []string{s}
	}
	return []string{"validation failed"}
}

func snippet(data []byte) string {
	const max = 256
	if len(data) > max {
		data = data[:max]
	}
	return string(bytes.TrimSpace(data))
}
