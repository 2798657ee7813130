package httpclient

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// RestyClient adapts resty.Client to the httpclient.Client interface.
type RestyClient struct {
	client *resty.Client
}

// Option tweaks the underlying resty client.
type Option func(*resty.Client)

// WithProxy routes every request through the given proxy URL. Blank values are ignored.
func WithProxy(proxyURL string) Option {
	return func(c *resty.Client) {
		if p := strings.TrimSpace(proxyURL); p != "" {
			c.SetProxy(p)
		}
	}
}

// WithUserAgent sets a default User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *resty.Client) {
		if ua = strings.TrimSpace(ua); ua != "" {
			c.SetHeader("User-Agent", ua)
		}
	}
}

// NewRestyClient creates a new RestyClient with the specified timeout. A zero timeout
// leaves the transport defaults in place.
func NewRestyClient(timeout time.Duration, opts ...Option) *RestyClient {
	c := newRestyBaseClient(timeout)
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return &RestyClient{client: c}
}

// NewRestyHTTPClient exposes a configured resty.Client for callers needing custom verbs.
func NewRestyHTTPClient(timeout time.Duration) *resty.Client {
	return newRestyBaseClient(timeout)
}

// newRestyBaseClient creates a new resty.Client with the specified timeout.
// Upstream item reads send their filters as a GET body, so GET payloads are allowed.
func newRestyBaseClient(timeout time.Duration) *resty.Client {
	c := resty.New()
	if timeout > 0 {
		c.SetTimeout(timeout)
	}
	c.SetAllowGetMethodPayload(true)
	return c
}

// Get performs an HTTP GET request with the specified context, URL, and headers.
func (r *RestyClient) Get(ctx context.Context, url string, headers map[string]string) (Response, error) {
	return r.Do(ctx, Request{Method: http.MethodGet, URL: url, Headers: headers})
}

// Do executes an arbitrary request.
func (r *RestyClient) Do(ctx context.Context, in Request) (Response, error) {
	req := r.client.R().SetContext(ctx)
	if len(in.Headers) > 0 {
		req.SetHeaders(in.Headers)
	}
	if in.BasicAuth != nil {
		req.SetBasicAuth(in.BasicAuth.Username, in.BasicAuth.Password)
	}
	if in.Body != nil {
		req.SetHeader("Content-Type", "application/json")
		req.SetBody(in.Body)
	}

	method := in.Method
	if method == "" {
		method = http.MethodGet
	}
	resp, err := req.Execute(method, in.URL)
	if err != nil {
		return nil, err
	}
	return &restyResponseAdapter{resp: resp}, nil
}

// restyResponseAdapter adapts resty.Response to the httpclient.Response interface.
type restyResponseAdapter struct {
	resp *resty.Response
}

func (r *restyResponseAdapter) Body() []byte    { return r.resp.Body() }
func (r *restyResponseAdapter) StatusCode() int { return r.resp.StatusCode() }
