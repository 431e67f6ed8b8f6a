// Package paginate drives page-numbered retrieval from list endpoints.
package paginate

import (
	"context"
	"errors"
	"iter"
)

// ErrInvalidPageSize is returned when a page size below 1 is requested.
var ErrInvalidPageSize = errors.New("paginate: page size must be positive")

// PageFunc fetches a single 1-based page holding at most perPage items.
type PageFunc[T any] func(ctx context.Context, page, perPage int) ([]T, error)

// Pages returns a lazy sequence of pages. Every iteration starts again at page 1.
// It keeps going while the last page was full and stops on the first short or
// empty page. A fetch error is yielded once and ends the sequence; nothing is retried.
func Pages[T any](ctx context.Context, perPage int, fetch PageFunc[T]) iter.Seq2[[]T, error] {
	return func(yield func([]T, error) bool) {
		if perPage < 1 {
			yield(nil, ErrInvalidPageSize)
			return
		}
		for page := 1; ; page++ {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			items, err := fetch(ctx, page, perPage)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(items, nil) {
				return
			}
			if len(items) < perPage {
				return
			}
		}
	}
}

// All drains Pages into a single slice.
func All[T any](ctx context.Context, perPage int, fetch PageFunc[T]) ([]T, error) {
	var all []T
	for items, err := range Pages(ctx, perPage, fetch) {
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
	}
	return all, nil
}
