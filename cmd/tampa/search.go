package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/djarekg/tampa-taffy/pkg/api"
	"github.com/djarekg/tampa-taffy/pkg/reactive"
	"github.com/djarekg/tampa-taffy/pkg/resource"
)

func searchCmd(g *globals) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search users interactively",
		Long: `Search reads queries from stdin, one per line. Each line replaces the
current query; a search still in flight for the previous query is
cancelled. Status transitions and results are printed as they happen.

Commands:
  :reload   run the current query again
  (empty)   clear the query

Examples:
  tampa search
  printf 'ada\ngrace\n' | tampa search --limit=3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.config()
			if err != nil {
				return err
			}
			g.logger(cfg, cmd.ErrOrStderr())
			client, err := g.client(cfg)
			if err != nil {
				return err
			}
			return runSearch(cmd.Context(), client.Search, limit, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum results per query")

	return cmd
}

type searchFunc func(ctx context.Context, query string, limit int) ([]api.SearchResult, error)

// runSearch drives a search resource from input lines until EOF, then waits
// for the last query's outcome to be printed.
func runSearch(ctx context.Context, search searchFunc, limit int, in io.Reader, out io.Writer) error {
	query := reactive.NewSignal("")

	res, err := resource.New(resource.Options[*string, []api.SearchResult]{
		Name:    "search",
		Context: ctx,
		Params: func() *string {
			q := strings.TrimSpace(query.Get())
			if q == "" {
				return nil
			}
			return &q
		},
		Loader: func(ctx context.Context, req resource.Request[*string, []api.SearchResult]) ([]api.SearchResult, error) {
			return search(ctx, *req.Params, limit)
		},
	})
	if err != nil {
		return err
	}
	defer res.Destroy()

	var (
		mu      sync.Mutex
		printed resource.Status
		changed = make(chan struct{}, 1)
	)
	printf := func(format string, args ...any) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(out, format, args...)
	}

	watcher := reactive.CreateEffect(func() reactive.Cleanup {
		status := res.Status()
		reactive.Untracked(func() {
			defer func() {
				mu.Lock()
				printed = status
				mu.Unlock()
				select {
				case changed <- struct{}{}:
				default:
				}
			}()
			q := query.Peek()
			switch status {
			case resource.Resolved:
				results := res.PeekValue()
				printf("[%s] %q: %d result(s)\n", status, q, len(results))
				for _, r := range results {
					printf("  %s\t%s\t%s\n", r.ID, r.Title, r.Subtitle)
				}
			case resource.Error:
				printf("[%s] %q: %v\n", status, q, res.PeekErr())
			default:
				printf("[%s] %q\n", status, q)
			}
		})
		return nil
	})
	defer watcher.Dispose()

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == ":reload" {
			res.Reload()
			continue
		}
		query.Set(line)
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	// Wait until the last query's outcome has been printed.
	for {
		mu.Lock()
		last := printed
		mu.Unlock()
		if !last.Pending() && !res.PeekStatus().Pending() {
			return nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
