// Package freteclick talks to the Frete Click REST API: freight quotes and
// the purchasing calls that turn a chosen quote into a shipping tag.
package freteclick

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vitorrgg/app-freteclick/internal/resilience"
)

const (
	defaultBaseURL      = "https://api.freteclick.com.br"
	defaultTimeout      = 8 * time.Second
	defaultQuoteTimeout = 10 * time.Second
	responseReadLimit   = 4 << 20
	errorBodyLimit      = 2048
)

// Doer sends a request under ctx. resilience.HTTPClient satisfies it.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

type httpDoer struct {
	client *http.Client
}

func (d httpDoer) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	return d.client.Do(req.WithContext(ctx))
}

// Client is safe for concurrent use. Tokens are passed per call since every
// merchant (and warehouse) carries its own.
type Client struct {
	doer         Doer
	baseURL      string
	timeout      time.Duration
	quoteTimeout time.Duration
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the transport used for every call.
func WithHTTPClient(d Doer) Option {
	return func(c *Client) {
		if d != nil {
			c.doer = d
		}
	}
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/"); trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithTimeout bounds the purchasing and people calls.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithQuoteTimeout bounds the quote call, which runs inside checkout.
func WithQuoteTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.quoteTimeout = d
		}
	}
}

// NewClient builds a client with the production base URL and timeouts.
func NewClient(opts ...Option) *Client {
	c := &Client{
		doer:         httpDoer{client: http.DefaultClient},
		baseURL:      defaultBaseURL,
		timeout:      defaultTimeout,
		quoteTimeout: defaultQuoteTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// APIError reports an unexpected status or payload from a purchasing call.
type APIError struct {
	Operation string
	Status    int
	Body      []byte
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(string(e.Body))
	if len(body) > errorBodyLimit {
		body = body[:errorBodyLimit]
	}
	return fmt.Sprintf("freteclick %s: status %d: %s", e.Operation, e.Status, body)
}

type call struct {
	op          string
	method      string
	path        string
	tokenHeader string
	token       string
	body        any
	timeout     time.Duration
}

// send performs one call and returns the status and the fully read body.
func (c *Client) send(ctx context.Context, cl call) (int, []byte, error) {
	var payload io.Reader
	if cl.body != nil {
		raw, err := json.Marshal(cl.body)
		if err != nil {
			return 0, nil, fmt.Errorf("freteclick %s: encode request: %w", cl.op, err)
		}
		payload = bytes.NewReader(raw)
	}

	ctx = resilience.WithOperation(ctx, cl.op)
	if cl.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cl.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, payload)
	if err != nil {
		return 0, nil, fmt.Errorf("freteclick %s: build request: %w", cl.op, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(cl.tokenHeader, cl.token)

	resp, err := c.doer.Do(ctx, req)
	if err != nil {
		return 0, nil, fmt.Errorf("freteclick %s: %w", cl.op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, responseReadLimit))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("freteclick %s: read response: %w", cl.op, err)
	}
	return resp.StatusCode, raw, nil
}

func ok(status int) bool {
	return status >= http.StatusOK && status < http.StatusMultipleChoices
}
