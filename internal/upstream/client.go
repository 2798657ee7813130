package upstream

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/byfnoel/collie/internal/logger"
	"github.com/byfnoel/collie/internal/telemetry"
	"github.com/byfnoel/collie/pkg/httpclient"
)

// Config identifies an upstream server and the identity used against it.
type Config struct {
	BaseURL     string
	Credentials Credentials
}

// Client issues bearer-authenticated requests against an upstream server and
// refreshes the shared token once when a request comes back 401.
type Client struct {
	baseURL   string
	creds     Credentials
	transport httpclient.Client
	tokens    *TokenCache
	log       logger.Logger
	metrics   *telemetry.Metrics
}

// Option configures optional Client collaborators.
type Option func(*Client)

func WithLogger(log logger.Logger) Option {
	return func(c *Client) { c.log = logger.Ensure(log) }
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New builds a Client. transport defaults to a resty client without timeout.
func New(cfg Config, transport httpclient.Client, tokens *TokenCache, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" || cfg.Credentials.empty() {
		return nil, ErrConfigurationMissing
	}
	if tokens == nil {
		return nil, errors.New("token cache must not be nil")
	}
	if transport == nil {
		transport = httpclient.NewRestyClient(0)
	}

	c := &Client{
		baseURL:   base,
		creds:     cfg.Credentials,
		transport: transport,
		tokens:    tokens,
		log:       logger.NopLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

func (c *Client) Get(ctx context.Context, path string) (httpclient.Response, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// GetWithBody issues a GET whose JSON body carries read filters.
func (c *Client) GetWithBody(ctx context.Context, path string, query any) (httpclient.Response, error) {
	return c.do(ctx, http.MethodGet, path, query)
}

func (c *Client) Post(ctx context.Context, path string, body any) (httpclient.Response, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

func (c *Client) Patch(ctx context.Context, path string, body any) (httpclient.Response, error) {
	return c.do(ctx, http.MethodPatch, path, body)
}

func (c *Client) Delete(ctx context.Context, path string) (httpclient.Response, error) {
	return c.do(ctx, http.MethodDelete, path, nil)
}

// do sends the request with the cached token and re-sends it at most once after a 401.
// A second 401 is returned to the caller untouched.
func (c *Client) do(ctx context.Context, method, path string, body any) (httpclient.Response, error) {
	token, err := c.tokens.GetOrFetch(ctx, c.transport, c.baseURL, c.creds)
	if err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, method, path, body, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusUnauthorized {
		return resp, nil
	}

	c.metrics.RecordUnauthorizedRetry()
	c.log.DebugObj("upstream token rejected; refreshing", "upstream_request", map[string]any{
		"method": method,
		"path":   path,
	})
	c.tokens.Invalidate()

	token, err = c.tokens.GetOrFetch(ctx, c.transport, c.baseURL, c.creds)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, method, path, body, token)
}

func (c *Client) send(ctx context.Context, method, path string, body any, token string) (httpclient.Response, error) {
	resp, err := c.transport.Do(ctx, httpclient.Request{
		Method:  method,
		URL:     c.baseURL + path,
		Headers: map[string]string{"Authorization": "Bearer " + token},
		Body:    body,
	})
	if err != nil {
		return nil, &TransportError{Op: method + " " + path, Err: err}
	}
	return resp, nil
}
