package httpclient

import "context"

// Response is a minimal HTTP response contract.
type Response interface {
	Body() []byte
	StatusCode() int
}

// BasicAuth is an HTTP Basic credential pair.
type BasicAuth struct {
	Username string
	Password string
}

// Request describes a single HTTP exchange. Body, when non-nil, is sent as JSON
// regardless of method.
type Request struct {
	Method    string
	URL       string
	Headers   map[string]string
	Body      any
	BasicAuth *BasicAuth
}

// Client abstracts HTTP calls so callers can inject mocks or different transports.
type Client interface {
	Get(ctx context.Context, url string, headers map[string]string) (Response, error)
	Do(ctx context.Context, req Request) (Response, error)
}
