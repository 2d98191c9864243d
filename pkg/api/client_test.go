package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	terrors "github.com/djarekg/tampa-taffy/internal/errors"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// refusingTransport refuses the first n requests, then delegates.
func refusingTransport(n int32, calls *atomic.Int32) http.RoundTripper {
	return roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if calls.Add(1) <= n {
			return nil, &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}
		}
		return http.DefaultTransport.RoundTrip(r)
	})
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New("  ")
	require.Error(t, err)
	assert.Equal(t, terrors.CodeConfigInvalid, terrors.CodeOf(err))

	c, err := New("http://example.test/")
	require.NoError(t, err)
	assert.Equal(t, "http://example.test", c.BaseURL())
}

func TestQueryEncodeOmitsNil(t *testing.T) {
	n := 2
	var missing *int
	q := Query{"page": &n, "q": "a b", "skip": nil, "none": missing, "on": true}
	assert.Equal(t, "on=true&page=2&q=a+b", q.Encode())
	assert.Equal(t, "", Query(nil).Encode())
}

func TestGetSendsHeadersAndQuery(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		_, _ = io.WriteString(w, `[{"id":"u1","email":"a@b.c"},{"id":"u2"}]`)
	}))
	defer srv.Close()

	c, err := New(srv.URL, WithStaticToken("tok"), WithHeader("X-Client", "tampa"))
	require.NoError(t, err)

	p, err := c.Get(context.Background(), "/users", WithQuery(Query{"active": true, "page": nil}))
	require.NoError(t, err)

	assert.Equal(t, "/users", got.URL.Path)
	assert.Equal(t, "active=true", got.URL.RawQuery)
	assert.Equal(t, "Bearer tok", got.Header.Get("Authorization"))
	assert.Equal(t, "tampa", got.Header.Get("X-Client"))
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))

	assert.True(t, p.IsJSON())
	assert.Equal(t, "a@b.c", p.Get("0.email").String())
	assert.Equal(t, []string{"u1", "u2"}, func() []string {
		var ids []string
		for _, r := range p.Get("#.id").Array() {
			ids = append(ids, r.String())
		}
		return ids
	}())
}

func TestPostEncodesJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var creds Credentials
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		fmt.Fprintf(w, `{"success":true,"userId":"u1","role":"ADMIN","token":"%s-token"}`, creds.Email)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	res, err := c.SignIn(context.Background(), "ann", "pw")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, RoleAdmin, res.Role)
	assert.Equal(t, "ann-token", res.Token)
}

func TestRemovingContentType(t *testing.T) {
	var ct string
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ct = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		body = string(b)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	_, err = c.Post(context.Background(), "/raw", "plain text", WithRequestHeader("Content-Type", ""))
	require.NoError(t, err)
	assert.Empty(t, ct)
	assert.Equal(t, "plain text", body)
}

func TestNonSuccessReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":"User not found","status":404,"data":{"id":"x"}}`)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	_, err = c.User(context.Background(), "x")
	require.Error(t, err)

	var ae *Error
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, http.StatusNotFound, ae.Status)
	assert.Equal(t, "User not found", ae.Message)
	assert.Equal(t, "x", ae.Data.Get("id").String())
	assert.True(t, IsNotFound(err))
	assert.Equal(t, terrors.CodeRequestFailed, terrors.CodeOf(err))
}

func TestErrorFallsBackToStatusText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "upstream down")
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "/")
	var ae *Error
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "Bad Gateway", ae.Message)
	assert.Equal(t, "upstream down", ae.Data.String())
	assert.False(t, ae.Data.IsJSON())
}

func TestRetriesConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "true")
	}))
	defer srv.Close()

	var calls atomic.Int32
	c, err := New(srv.URL,
		WithHTTPClient(&http.Client{Transport: refusingTransport(2, &calls)}),
		WithBackoff(time.Millisecond))
	require.NoError(t, err)

	ok, err := c.Authenticated(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetryBudgetExhausted(t *testing.T) {
	var calls atomic.Int32
	c, err := New("http://127.0.0.1:1",
		WithHTTPClient(&http.Client{Transport: refusingTransport(100, &calls)}),
		WithBackoff(time.Millisecond))
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "/", WithRetry(1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, syscall.ECONNREFUSED))
	assert.Equal(t, int32(2), calls.Load())
}

func TestOtherFailuresAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	c, err := New("http://example.test", WithHTTPClient(&http.Client{
		Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
			calls.Add(1)
			return nil, errors.New("tls handshake timeout")
		}),
	}), WithBackoff(time.Millisecond))
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "/")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCancelWhileWaiting(t *testing.T) {
	var calls atomic.Int32
	c, err := New("http://example.test",
		WithHTTPClient(&http.Client{Transport: refusingTransport(100, &calls)}),
		WithBackoff(time.Hour))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Get(ctx, "/")
		done <- err
	}()

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("request did not stop after cancel")
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestTokenSourceError(t *testing.T) {
	c, err := New("http://example.test", WithToken(func(context.Context) (string, error) {
		return "", errors.New("expired")
	}))
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "/")
	require.Error(t, err)
	assert.Equal(t, terrors.CodeRequestFailed, terrors.CodeOf(err))
}

func TestSearchEscapesQuery(t *testing.T) {
	var path, limit string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.EscapedPath()
		limit = r.URL.Query().Get("limit")
		_, _ = io.WriteString(w, `[{"id":"u1","kind":"user","title":"Ann Lee"}]`)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	res, err := c.Search(context.Background(), "ann lee/x", 5)
	require.NoError(t, err)
	assert.Equal(t, "/search/ann%20lee%2Fx", path)
	assert.Equal(t, "5", limit)
	require.Len(t, res, 1)
	assert.Equal(t, "Ann Lee", res[0].Title)
}

func TestPayloadMarshalJSON(t *testing.T) {
	b, err := json.Marshal(map[string]Payload{
		"json":  NewPayload([]byte(`{"a":1}`)),
		"text":  NewPayload([]byte("hi")),
		"empty": {},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"json":{"a":1},"text":"hi","empty":null}`, string(b))
}
