package api

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"syscall"
	"time"

	"github.com/djarekg/tampa-taffy/internal/errors"
)

const (
	// DefaultRetries is how many times a refused connection is retried.
	DefaultRetries = 3

	// DefaultBackoff is the wait before the first retry. Each further retry
	// doubles it.
	DefaultBackoff = 3 * time.Second
)

// TokenSource returns the bearer token for a request. An empty token sends
// no Authorization header.
type TokenSource func(ctx context.Context) (string, error)

// Client issues requests against a base URL.
type Client struct {
	baseURL string
	http    *http.Client
	token   TokenSource
	headers http.Header
	retries int
	backoff time.Duration
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithToken sets the bearer token source.
func WithToken(ts TokenSource) Option {
	return func(c *Client) {
		c.token = ts
	}
}

// WithStaticToken sends the same bearer token on every request.
func WithStaticToken(token string) Option {
	return WithToken(func(context.Context) (string, error) { return token, nil })
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Set(key, value)
	}
}

// WithRetries sets the default retry budget for refused connections.
func WithRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.retries = n
		}
	}
}

// WithBackoff sets the initial retry wait.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.backoff = d
	}
}

// WithLogger sets the logger used for retry notices.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a client. The base URL is required; a trailing slash is
// trimmed so paths can start with one.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New(errors.CodeConfigInvalid).
			WithDetail("API base URL not provided").
			WithSuggestion("Set API_URL or pass --api-url")
	}
	c := &Client{
		baseURL: baseURL,
		http:    http.DefaultClient,
		headers: make(http.Header),
		retries: DefaultRetries,
		backoff: DefaultBackoff,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Query holds query parameters. Nil values are omitted.
type Query map[string]any

// Encode returns the sorted query string without the leading '?'.
func (q Query) Encode() string {
	vals := make(url.Values, len(q))
	for k, v := range q {
		if isNil(v) {
			continue
		}
		if p := reflect.ValueOf(v); p.Kind() == reflect.Pointer {
			v = p.Elem().Interface()
		}
		vals.Set(k, fmt.Sprint(v))
	}
	return vals.Encode()
}

type requestConfig struct {
	query   Query
	headers map[string]string
	retries int
}

// RequestOption configures a single request.
type RequestOption func(*requestConfig)

// WithQuery merges query parameters into the request URL.
func WithQuery(q Query) RequestOption {
	return func(rc *requestConfig) {
		if rc.query == nil {
			rc.query = make(Query, len(q))
		}
		for k, v := range q {
			rc.query[k] = v
		}
	}
}

// WithRequestHeader sets a header on one request. An empty value removes a
// header the client would otherwise send, including Content-Type.
func WithRequestHeader(key, value string) RequestOption {
	return func(rc *requestConfig) {
		if rc.headers == nil {
			rc.headers = make(map[string]string)
		}
		rc.headers[key] = value
	}
}

// WithRetry overrides the retry budget for one request.
func WithRetry(n int) RequestOption {
	return func(rc *requestConfig) {
		if n >= 0 {
			rc.retries = n
		}
	}
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, path string, opts ...RequestOption) (Payload, error) {
	return c.Do(ctx, http.MethodGet, path, nil, opts...)
}

// Post issues a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any, opts ...RequestOption) (Payload, error) {
	return c.Do(ctx, http.MethodPost, path, body, opts...)
}

// Put issues a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body any, opts ...RequestOption) (Payload, error) {
	return c.Do(ctx, http.MethodPut, path, body, opts...)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, opts ...RequestOption) (Payload, error) {
	return c.Do(ctx, http.MethodDelete, path, nil, opts...)
}

// Do issues a request. Bodies are ignored for GET and HEAD. A []byte or
// string body is sent as is; anything else is JSON encoded when the
// Content-Type is JSON.
func (c *Client) Do(ctx context.Context, method, path string, body any, opts ...RequestOption) (Payload, error) {
	rc := requestConfig{retries: c.retries}
	for _, opt := range opts {
		opt(&rc)
	}

	target := c.baseURL + path
	if qs := rc.query.Encode(); qs != "" {
		target += "?" + qs
	}

	header := http.Header{
		"Content-Type": {"application/json"},
		"Accept":       {"application/json"},
	}
	for k, v := range c.headers {
		header[k] = v
	}
	for k, v := range rc.headers {
		if v == "" {
			header.Del(k)
		} else {
			header.Set(k, v)
		}
	}
	if c.token != nil {
		tok, err := c.token(ctx)
		if err != nil {
			return Payload{}, errors.New(errors.CodeRequestFailed).
				WithDetail("Failed to obtain bearer token").
				Wrap(err)
		}
		if tok != "" {
			header.Set("Authorization", "Bearer "+tok)
		}
	}

	data, err := encodeBody(method, header.Get("Content-Type"), body)
	if err != nil {
		return Payload{}, err
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return Payload{}, err
		}

		p, err := c.send(ctx, method, target, header, data)
		if err == nil {
			return p, nil
		}
		if !isConnectionRefused(err) || attempt > rc.retries {
			return Payload{}, err
		}

		wait := c.backoff << (attempt - 1)
		c.logger.Debug("api: connection refused, retrying",
			"method", method, "url", target, "attempt", attempt, "wait", wait)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Payload{}, ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *Client) send(ctx context.Context, method, target string, header http.Header, data []byte) (Payload, error) {
	var body io.Reader
	if data != nil {
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return Payload{}, errors.New(errors.CodeRequestFailed).Wrap(err)
	}
	req.Header = header.Clone()

	resp, err := c.http.Do(req)
	if err != nil {
		return Payload{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Payload{}, errors.New(errors.CodeRequestFailed).
			WithDetail("Failed to read response body").
			Wrap(err)
	}

	p := Payload{raw: raw}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Payload{}, newError(resp.StatusCode, p)
	}
	return p, nil
}

func encodeBody(method, contentType string, body any) ([]byte, error) {
	if isNil(body) || method == http.MethodGet || method == http.MethodHead {
		return nil, nil
	}
	switch b := body.(type) {
	case []byte:
		return b, nil
	case string:
		if !strings.Contains(contentType, "application/json") {
			return []byte(b), nil
		}
	}
	if !strings.Contains(contentType, "application/json") {
		return nil, errors.New(errors.CodeBadArguments).
			WithDetailf("Cannot send %T as %q", body, contentType)
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, errors.New(errors.CodeBadArguments).
			WithDetail("Request body is not JSON encodable").
			Wrap(err)
	}
	return data, nil
}

// isConnectionRefused reports whether err means nothing was listening.
func isConnectionRefused(err error) bool {
	if stderrors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "connection refused")
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
