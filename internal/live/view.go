package live

import (
	"context"
	"log/slog"
	"strings"

	"github.com/djarekg/tampa-taffy/pkg/api"
	"github.com/djarekg/tampa-taffy/pkg/element"
	"github.com/djarekg/tampa-taffy/pkg/reactive"
	"github.com/djarekg/tampa-taffy/pkg/resource"
)

// DefaultLimit is the result limit a new view starts with.
const DefaultLimit = 10

// SearchFunc runs a search.
type SearchFunc func(ctx context.Context, query string, limit int) ([]api.SearchResult, error)

// SearchParams are the search resource inputs.
type SearchParams struct {
	Query string
	Limit int
}

// ViewOptions configures NewSearchView.
type ViewOptions struct {
	Limit    int
	Context  context.Context
	Observer resource.Observer
	Logger   *slog.Logger
}

// SearchView is a host with a reflected query property and an internal limit.
// The results resource reloads whenever either changes.
type SearchView struct {
	element.Base

	Query *element.Field[string]
	limit *element.Field[int]
	term  *reactive.Memo[string]

	results *resource.Resource[*SearchParams, []api.SearchResult]
}

// NewSearchView binds the view and creates its resource. The view starts
// disconnected; call ConnectedCallback to start searching.
func NewSearchView(search SearchFunc, opts ViewOptions) (*SearchView, error) {
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	v := &SearchView{
		Query: element.Property("", element.Reflect()),
		limit: element.State(opts.Limit),
	}
	if opts.Logger != nil {
		v.SetLogger(opts.Logger)
	}
	if err := element.Init(v); err != nil {
		return nil, err
	}

	v.term = reactive.NewMemo(func() string {
		return strings.TrimSpace(v.Query.Get())
	})

	var err error
	reactive.WithOwner(v.Owner(), func() {
		v.results, err = resource.New(resource.Options[*SearchParams, []api.SearchResult]{
			Name:     "search",
			Host:     v,
			Context:  opts.Context,
			Observer: opts.Observer,
			Logger:   opts.Logger,
			Params: func() *SearchParams {
				q := v.term.Get()
				if q == "" {
					return nil
				}
				return &SearchParams{Query: q, Limit: v.limit.Get()}
			},
			Loader: func(ctx context.Context, req resource.Request[*SearchParams, []api.SearchResult]) ([]api.SearchResult, error) {
				return search(ctx, req.Params.Query, req.Params.Limit)
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Term returns the query as searched: trimmed, empty meaning no search.
func (v *SearchView) Term() string {
	return v.term.Peek()
}

// Limit returns the current result limit.
func (v *SearchView) Limit() int {
	return v.limit.Peek()
}

// SetLimit changes the result limit. Values below one are ignored.
func (v *SearchView) SetLimit(n int) {
	if n > 0 {
		v.limit.Set(n)
	}
}

// Reload re-runs the current search.
func (v *SearchView) Reload() bool {
	return v.results.Reload()
}

// Results returns the search resource.
func (v *SearchView) Results() *resource.Resource[*SearchParams, []api.SearchResult] {
	return v.results
}

// Snapshot is the state pushed to the client.
type Snapshot struct {
	Type       string             `json:"type"`
	Status     resource.Status    `json:"status"`
	Query      string             `json:"query"`
	Limit      int                `json:"limit"`
	Attributes map[string]string  `json:"attributes"`
	Value      []api.SearchResult `json:"value"`
	Error      string             `json:"error,omitempty"`
	Changed    []string           `json:"changed,omitempty"`
}

// Snapshot reads the view without tracking.
func (v *SearchView) Snapshot() Snapshot {
	s := Snapshot{
		Type:       "snapshot",
		Status:     v.results.PeekStatus(),
		Query:      v.Query.Peek(),
		Limit:      v.limit.Peek(),
		Attributes: v.Attributes(),
		Value:      v.results.PeekValue(),
	}
	if err := v.results.PeekErr(); err != nil {
		s.Error = err.Error()
	}
	if s.Value == nil {
		s.Value = []api.SearchResult{}
	}
	return s
}
