package mock

import (
	"context"

	"github.com/fwojciec/subgrab"
)

var _ subgrab.Fetcher = (*Fetcher)(nil)

// Fetcher is a mock implementation of subgrab.Fetcher.
type Fetcher struct {
	FetchFn         func(ctx context.Context, url string) (string, error)
	FetchScrolledFn func(ctx context.Context, url string, passes int) (string, error)
	CloseFn         func() error
}

func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	return f.FetchFn(ctx, url)
}

func (f *Fetcher) FetchScrolled(ctx context.Context, url string, passes int) (string, error) {
	return f.FetchScrolledFn(ctx, url, passes)
}

func (f *Fetcher) Close() error {
	if f.CloseFn == nil {
		return nil
	}
	return f.CloseFn()
}
