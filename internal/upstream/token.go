package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/byfnoel/collie/internal/telemetry"
	"github.com/byfnoel/collie/pkg/httpclient"
	"golang.org/x/sync/singleflight"
)

const authPath = "/auth"

// Credentials is the access/secret pair presented to the /auth endpoint.
type Credentials struct {
	AccessKey string
	SecretKey string
}

func (c Credentials) empty() bool {
	return strings.TrimSpace(c.AccessKey) == "" || strings.TrimSpace(c.SecretKey) == ""
}

// TokenCache holds at most one bearer token shared by every Client built with it.
// The mutex guards the in-memory value only; it is never held during the /auth exchange.
type TokenCache struct {
	mu      sync.RWMutex
	token   string
	group   singleflight.Group
	metrics *telemetry.Metrics
}

// NewTokenCache builds an empty cache. Construct one per process and share it.
func NewTokenCache(metrics *telemetry.Metrics) *TokenCache {
	return &TokenCache{metrics: metrics}
}

// Cached returns the current token, if any.
func (c *TokenCache) Cached() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token, c.token != ""
}

// GetOrFetch returns the cached token or performs an authentication exchange and caches its result.
// Concurrent cold fetches for the same upstream and access key share one exchange.
func (c *TokenCache) GetOrFetch(ctx context.Context, transport httpclient.Client, baseURL string, creds Credentials) (string, error) {
	if token, ok := c.Cached(); ok {
		return token, nil
	}

	key := baseURL + "\x00" + creds.AccessKey
	// The exchange outlives any single caller; each caller only observes its own cancellation.
	exchange := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		token, err := authenticate(exchange, transport, baseURL, creds)
		c.metrics.RecordAuthExchange(err == nil)
		if err != nil {
			return "", err
		}
		c.set(token)
		return token, nil
	})
	select {
	case <-ctx.Done():
		return "", &TransportError{Op: "authenticate", Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// Invalidate drops the cached token unconditionally.
func (c *TokenCache) Invalidate() {
	c.set("")
}

func (c *TokenCache) set(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// authenticate exchanges HTTP Basic credentials for a bearer token. It never retries.
func authenticate(ctx context.Context, transport httpclient.Client, baseURL string, creds Credentials) (string, error) {
	resp, err := transport.Do(ctx, httpclient.Request{
		Method: http.MethodGet,
		URL:    baseURL + authPath,
		BasicAuth: &httpclient.BasicAuth{
			Username: creds.AccessKey,
			Password: creds.SecretKey,
		},
	})
	if err != nil {
		return "", &TransportError{Op: "authenticate", Err: err}
	}
	if !isSuccess(resp.StatusCode()) {
		return "", &AuthenticationError{Status: resp.StatusCode()}
	}

	token, err := decodeToken(resp.Body())
	if err != nil {
		return "", &MalformedResponseError{Op: "authenticate", Err: err}
	}
	return token, nil
}

// decodeToken accepts a JSON string body ("abc") and falls back to the bare body text.
func decodeToken(body []byte) (string, error) {
	var token string
	if err := json.Unmarshal(body, &token); err != nil {
		token = string(body)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errors.New("empty token")
	}
	return token, nil
}
