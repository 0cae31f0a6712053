// Package rudder sends track calls to a RudderStack data plane over its HTTP API.
package rudder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"taiga-telemetry/internal/telemetry/domain"
)

// LibraryName identifies this client in context.library of every call.
const LibraryName = "taiga-telemetry"

const trackPath = "/v1/track"

// maxErrorBody caps how much of a non-2xx response is quoted in the returned error.
const maxErrorBody = 512

// trackRequest is the body of POST /v1/track.
type trackRequest struct {
	UserID     string            `json:"userId"`
	Event      string            `json:"event"`
	Properties domain.Properties `json:"properties"`
	Timestamp  string            `json:"timestamp"`
	SentAt     string            `json:"sentAt"`
	MessageID  string            `json:"messageId"`
	Type       string            `json:"type"`
	Context    trackContext      `json:"context"`
}

type trackContext struct {
	Library library `json:"library"`
}

type library struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Client posts track calls to one data plane.
type Client struct {
	endpoint string
	writeKey string
	version  string
	http     *http.Client
	now      func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client (10s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithVersion sets context.library.version.
func WithVersion(v string) Option {
	return func(c *Client) { c.version = v }
}

// NewClient returns a Client for the data plane at dataPlaneURL authenticated with writeKey.
func NewClient(dataPlaneURL, writeKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(writeKey) == "" {
		return nil, errors.New("rudder: write key is empty")
	}
	u, err := url.Parse(strings.TrimSpace(dataPlaneURL))
	if err != nil {
		return nil, fmt.Errorf("rudder: data plane URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("rudder: data plane URL %q must be an absolute http(s) URL", dataPlaneURL)
	}
	c := &Client{
		endpoint: strings.TrimSuffix(u.String(), "/") + trackPath,
		writeKey: writeKey,
		version:  "dev",
		http:     &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Emit sends msg as a single track call. Any transport failure or non-2xx status is an error.
func (c *Client) Emit(ctx context.Context, msg *domain.TrackMessage) error {
	if msg == nil {
		return errors.New("rudder: nil message")
	}
	body := trackRequest{
		UserID:     msg.UserID,
		Event:      msg.Event,
		Properties: msg.Properties,
		Timestamp:  msg.Timestamp.UTC().Format(time.RFC3339Nano),
		SentAt:     c.now().UTC().Format(time.RFC3339Nano),
		MessageID:  msg.MessageID,
		Type:       "track",
		Context:    trackContext{Library: library{Name: LibraryName, Version: c.version}},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("rudder: encode: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("rudder: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.writeKey, "")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("rudder: track: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(detail))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// StatusError is returned when the data plane answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("rudder: track returned %d", e.StatusCode)
	}
	return fmt.Sprintf("rudder: track returned %d: %s", e.StatusCode, e.Body)
}
