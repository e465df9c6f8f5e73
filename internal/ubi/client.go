package ubi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"siege-market-lab/internal/observability"
)

// Default configuration values.
const (
	DefaultEndpoint = "https://public-ubiservices.ubi.com/v1/profiles/me/uplay/graphql"
	DefaultTimeout  = 60 * time.Second
	DefaultLocale   = "en-US"
)

// ErrUnauthorized is the fatal credential failure: the remote rejected the
// session token. Retrying cannot succeed without new credentials, so callers
// must abort instead of retrying.
var ErrUnauthorized = errors.New("unauthorized: marketplace session token rejected")

// TransportError is a transient, whole-call failure: a non-2xx status other
// than 401, an unreadable body, or a batch whose response count does not
// match the request count. Callers may retry the call.
type TransportError struct {
	Status int
	Msg    string
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("transport: status %d: %s", e.Status, e.Msg)
	}
	return "transport: " + e.Msg
}

// Credentials carries the session identity for every request. Acquiring the
// token is outside this package's scope.
type Credentials struct {
	Token     string // Authorization header value
	SessionID string // Ubi-SessionId header
	AppID     string // Ubi-AppId header
}

// HTTPClient sends GraphQL batches over HTTP.
type HTTPClient struct {
	endpoint string
	locale   string
	creds    Credentials
	client   *http.Client
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithEndpoint overrides the API endpoint (used by tests).
func WithEndpoint(url string) ClientOption {
	return func(c *HTTPClient) {
		c.endpoint = url
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithLocale sets the Ubi-LocaleCode header.
func WithLocale(locale string) ClientOption {
	return func(c *HTTPClient) {
		c.locale = locale
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a marketplace GraphQL client.
func NewHTTPClient(creds Credentials, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint: DefaultEndpoint,
		locale:   DefaultLocale,
		creds:    creds,
		client:   &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send posts the ordered batch and returns the same-length ordered response
// slice. Request/response pairing is strictly positional. A 401 returns
// ErrUnauthorized; every other whole-call failure returns *TransportError.
// Per-operation GraphQL errors do not fail the call: they arrive inside the
// corresponding Response's Errors field.
func (c *HTTPClient) Send(ctx context.Context, requests []Request) ([]Response, error) {
	if len(requests) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(requests)
	if err != nil {
		return nil, fmt.Errorf("marshal batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.creds.Token)
	req.Header.Set("Ubi-AppId", c.creds.AppID)
	req.Header.Set("Ubi-SessionId", c.creds.SessionID)
	req.Header.Set("Ubi-LocaleCode", c.locale)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		observability.RecordTransportError("http")
		return nil, &TransportError{Msg: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		observability.RecordTransportError("read")
		return nil, &TransportError{Status: resp.StatusCode, Msg: "read body: " + err.Error()}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		observability.RecordTransportError("unauthorized")
		return nil, ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		observability.RecordTransportError("status")
		return nil, &TransportError{Status: resp.StatusCode, Msg: string(respBody)}
	}

	var responses []Response
	if err := json.Unmarshal(respBody, &responses); err != nil {
		// Some single-operation responses arrive as a bare object.
		var single Response
		if len(requests) == 1 && json.Unmarshal(respBody, &single) == nil {
			observability.RecordBatchSent(1, time.Since(start).Seconds())
			return []Response{single}, nil
		}
		observability.RecordTransportError("decode")
		return nil, &TransportError{Status: resp.StatusCode, Msg: "unmarshal batch: " + err.Error()}
	}

	if len(responses) != len(requests) {
		observability.RecordTransportError("mismatch")
		return nil, &TransportError{
			Status: resp.StatusCode,
			Msg:    fmt.Sprintf("batch size mismatch: sent %d, received %d", len(requests), len(responses)),
		}
	}

	observability.RecordBatchSent(len(requests), time.Since(start).Seconds())
	return responses, nil
}
