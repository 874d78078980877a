package extraction

import (
	"context"
	"fmt"
	"time"

	"extraction-api/internal/source"
)

const (
	defaultPageSize  = 100
	defaultMaxPages  = 10
	defaultPageDelay = 100 * time.Millisecond
)

// Fetcher drives the remote source client across pages and accumulates the
// records in fetch order. One failed page aborts the whole fetch; nothing is
// retried and nothing partial is returned.
type Fetcher struct {
	client    source.Client
	pageSize  int
	maxPages  int
	pageDelay time.Duration
}

func NewFetcher(client source.Client, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:    client,
		pageSize:  defaultPageSize,
		maxPages:  defaultMaxPages,
		pageDelay: defaultPageDelay,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

type FetcherOption func(*Fetcher)

func WithPageSize(n int) FetcherOption {
	return func(f *Fetcher) { f.pageSize = n }
}

// WithMaxPages bounds worst-case work against a source that never stops
// paginating. Hitting the ceiling is not an error, the loop just stops.
func WithMaxPages(n int) FetcherOption {
	return func(f *Fetcher) { f.maxPages = n }
}

func WithPageDelay(d time.Duration) FetcherOption {
	return func(f *Fetcher) { f.pageDelay = d }
}

// FetchAll authenticates and then pages through the source starting at page 1
// until it reports no more data or the page ceiling is reached. Source errors
// pass through wrapped, so callers can classify them with errors.Is against
// the source sentinels.
func (f *Fetcher) FetchAll(ctx context.Context, token, recordType string) ([]source.Record, error) {
	if err := f.client.Authenticate(ctx, token); err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}

	var all []source.Record
	for page := 1; page <= f.maxPages; page++ {
		p, err := f.client.FetchPage(ctx, token, recordType, page, f.pageSize)
		if err != nil {
			return nil, fmt.Errorf("fetch page %d: %w", page, err)
		}
		all = append(all, p.Records...)

		if !p.HasMore {
			break
		}

		// Brief pause between pages so sequential fetching does not hammer
		// the source; doubles as the cancellation point for CancelScan.
		if err := sleep(ctx, f.pageDelay); err != nil {
			return nil, err
		}
	}
	return all, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
