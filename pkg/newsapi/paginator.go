package newsapi

import (
	"context"
	"errors"
	"fmt"
	"iter"
)

// PageFunc fetches one page (1-based) of an already validated query.
type PageFunc[T any] func(ctx context.Context, page int) (Page[T], error)

// Paginator flattens successive pages of one query into a single ordered sequence.
type Paginator[T any] struct {
	endpoint Endpoint
	pageSize int
	fetch    PageFunc[T]
	obs      Observer
}

// NewPaginator builds a paginator; pageSize is the size requested per page.
func NewPaginator[T any](endpoint Endpoint, pageSize int, fetch PageFunc[T], obs Observer) *Paginator[T] {
	return &Paginator[T]{
		endpoint: endpoint,
		pageSize: effectivePageSize(pageSize),
		fetch:    fetch,
		obs:      ensureObserver(obs),
	}
}

// All returns the lazy item sequence. Nothing is requested until the first pull, and
// the next page is requested only after every item of the current one was consumed.
// Paging stops on an empty page, once totalResults items were delivered, or on a 426,
// which ends the sequence without an error. Any other failure is yielded once as the
// final element.
func (p *Paginator[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T

		first, err := p.fetch(ctx, 1)
		if err != nil {
			if IsPaginationLimit(err) {
				p.obs.PaginationLimitReached(p.endpoint, 1)
				return
			}
			yield(zero, err)
			return
		}
		for _, item := range first.Items {
			if !yield(item, nil) {
				return
			}
		}
		if first.TotalResults <= p.pageSize || len(first.Items) == 0 {
			return
		}
		total, delivered := first.TotalResults, len(first.Items)

		for page := 2; delivered < total; page++ {
			if err := ctx.Err(); err != nil {
				if errors.Is(err, context.DeadlineExceeded) {
					err = timeoutError(fmt.Sprintf("%s page %d", p.endpoint.Name(), page), err)
				}
				yield(zero, err)
				return
			}
			next, err := p.fetch(ctx, page)
			if err != nil {
				if IsPaginationLimit(err) {
					p.obs.PaginationLimitReached(p.endpoint, page)
					return
				}
				yield(zero, err)
				return
			}
			if len(next.Items) == 0 {
				return
			}
			for _, item := range next.Items {
				if !yield(item, nil) {
					return
				}
			}
			delivered += len(next.Items)
			if next.TotalResults > 0 {
				total = next.TotalResults
			}
		}
	}
}

// Collect drains a sequence, returning the items gathered before any error.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var out []T
	for item, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, item)
	}
	return out, nil
}
