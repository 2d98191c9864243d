package live

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/djarekg/tampa-taffy/pkg/api"
	"github.com/djarekg/tampa-taffy/pkg/resource"
)

type searchCall struct {
	ctx   context.Context
	query string
	limit int
	reply chan searchReply
}

type searchReply struct {
	results []api.SearchResult
	err     error
}

// gatedSearch blocks every search until the test replies.
type gatedSearch struct {
	calls chan *searchCall
}

func newGatedSearch() *gatedSearch {
	return &gatedSearch{calls: make(chan *searchCall, 16)}
}

func (g *gatedSearch) fn(ctx context.Context, query string, limit int) ([]api.SearchResult, error) {
	c := &searchCall{ctx: ctx, query: query, limit: limit, reply: make(chan searchReply, 1)}
	g.calls <- c
	select {
	case r := <-c.reply:
		return r.results, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *gatedSearch) next(t *testing.T) *searchCall {
	t.Helper()
	select {
	case c := <-g.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no search started")
		return nil
	}
}

type countingHooks struct {
	open atomic.Int32
}

func (h *countingHooks) SessionOpened() { h.open.Add(1) }
func (h *countingHooks) SessionClosed() { h.open.Add(-1) }

func dial(t *testing.T, h *Handler) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads snapshots until pred matches.
func readUntil(t *testing.T, conn *websocket.Conn, pred func(Snapshot) bool) Snapshot {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var snap Snapshot
		require.NoError(t, conn.ReadJSON(&snap))
		if snap.Type == "snapshot" && pred(snap) {
			return snap
		}
	}
}

func status(s resource.Status) func(Snapshot) bool {
	return func(snap Snapshot) bool { return snap.Status == s }
}

func TestSessionSearchFlow(t *testing.T) {
	search := newGatedSearch()
	hooks := &countingHooks{}
	h := NewHandler(search.fn, WithSessionHooks(hooks), WithDefaultLimit(5))
	conn := dial(t, h)

	first := readUntil(t, conn, func(Snapshot) bool { return true })
	assert.Equal(t, resource.Idle, first.Status)
	assert.Equal(t, 5, first.Limit)
	assert.Empty(t, first.Value)
	assert.Equal(t, int32(1), hooks.open.Load())

	require.NoError(t, conn.WriteJSON(frame{Type: "attr", Name: "query", Value: "ada"}))

	call := search.next(t)
	assert.Equal(t, "ada", call.query)
	assert.Equal(t, 5, call.limit)

	loading := readUntil(t, conn, status(resource.Loading))
	assert.Equal(t, "ada", loading.Query)
	assert.Equal(t, "ada", loading.Attributes["query"])

	call.reply <- searchReply{results: []api.SearchResult{{ID: "u1", Kind: "user", Title: "Ada Lovelace"}}}
	done := readUntil(t, conn, status(resource.Resolved))
	require.Len(t, done.Value, 1)
	assert.Equal(t, "Ada Lovelace", done.Value[0].Title)
	assert.Contains(t, done.Changed, "search")

	require.NoError(t, conn.WriteJSON(frame{Type: "limit", Limit: 2}))
	call = search.next(t)
	assert.Equal(t, 2, call.limit)
	call.reply <- searchReply{err: errors.New("index offline")}
	failed := readUntil(t, conn, status(resource.Error))
	assert.Equal(t, "index offline", failed.Error)
	assert.Equal(t, 2, failed.Limit)

	require.NoError(t, conn.WriteJSON(frame{Type: "reload"}))
	call = search.next(t)
	readUntil(t, conn, status(resource.Reloading))
	call.reply <- searchReply{results: []api.SearchResult{}}
	readUntil(t, conn, status(resource.Resolved))

	require.NoError(t, conn.WriteJSON(frame{Type: "remove", Name: "query"}))
	idle := readUntil(t, conn, status(resource.Idle))
	assert.Empty(t, idle.Query)
}

func TestCloseCancelsInFlightSearch(t *testing.T) {
	search := newGatedSearch()
	hooks := &countingHooks{}
	h := NewHandler(search.fn, WithSessionHooks(hooks))
	conn := dial(t, h)

	readUntil(t, conn, func(Snapshot) bool { return true })
	require.NoError(t, conn.WriteJSON(frame{Type: "attr", Name: "query", Value: "grace"}))
	call := search.next(t)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()

	select {
	case <-call.ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("search context was not cancelled")
	}
	require.Eventually(t, func() bool {
		return h.SessionCount() == 0 && hooks.open.Load() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestInvalidFrames(t *testing.T) {
	h := NewHandler(newGatedSearch().fn)
	conn := dial(t, h)
	readUntil(t, conn, func(Snapshot) bool { return true })

	for _, msg := range []string{`not json`, `{"type":"dance"}`, `{"type":"limit","limit":0}`, `{"type":"attr"}`} {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(msg)))
		var ef errorFrame
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		require.NoError(t, conn.ReadJSON(&ef))
		assert.Equal(t, "error", ef.Type, msg)
		assert.NotEmpty(t, ef.Message, msg)
	}
}

func TestSearchViewWithoutSocket(t *testing.T) {
	search := newGatedSearch()
	v, err := NewSearchView(search.fn, ViewOptions{})
	require.NoError(t, err)
	defer v.Dispose()

	assert.Equal(t, DefaultLimit, v.Limit())
	v.Query.Set("  alan ")
	select {
	case <-search.calls:
		t.Fatal("disconnected view must not search")
	case <-time.After(20 * time.Millisecond):
	}

	assert.Equal(t, "alan", v.Term())

	v.ConnectedCallback()
	call := search.next(t)
	assert.Equal(t, "alan", call.query)

	attr, ok := v.Attribute("query")
	assert.True(t, ok)
	assert.Equal(t, "  alan ", attr)

	v.DisconnectedCallback()
	<-call.ctx.Done()
	assert.Equal(t, resource.Idle, v.Results().PeekStatus())
}

func TestAttributeFramesAreDebounced(t *testing.T) {
	search := newGatedSearch()
	h := NewHandler(search.fn, WithAttributeDebounce(50*time.Millisecond))
	conn := dial(t, h)
	readUntil(t, conn, func(Snapshot) bool { return true })

	for _, q := range []string{"a", "ad", "ada"} {
		require.NoError(t, conn.WriteJSON(frame{Type: "attr", Name: "query", Value: q}))
	}

	call := search.next(t)
	assert.Equal(t, "ada", call.query)
	select {
	case extra := <-search.calls:
		t.Fatalf("unexpected search for %q", extra.query)
	case <-time.After(150 * time.Millisecond):
	}

	require.NoError(t, conn.WriteJSON(frame{Type: "remove", Name: "query"}))
	require.NoError(t, conn.WriteJSON(frame{Type: "attr", Name: "query", Value: "grace"}))

	call = search.next(t)
	assert.Equal(t, "grace", call.query)
	call.reply <- searchReply{results: []api.SearchResult{}}
	done := readUntil(t, conn, status(resource.Resolved))
	assert.Equal(t, "grace", done.Query)
}
