// Package pagination walks page-numbered list endpoints lazily.
package pagination

import (
	"context"
	"fmt"
	"iter"
)

// PageFunc fetches a single 1-based page.
type PageFunc[T any] func(ctx context.Context, page int) ([]T, error)

// Pages yields pages starting at first and stops after the first empty page. The next
// page is only requested once the consumer has handled the current one. A fetch error is
// yielded once and ends the sequence.
func Pages[T any](ctx context.Context, first int, fetch PageFunc[T]) iter.Seq2[[]T, error] {
	return func(yield func([]T, error) bool) {
		for page := first; ; page++ {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			items, err := fetch(ctx, page)
			if err != nil {
				yield(nil, fmt.Errorf("failed to fetch page %d: %w", page, err))
				return
			}
			if len(items) == 0 {
				return
			}
			if !yield(items, nil) {
				return
			}
		}
	}
}

// All drains Pages into a single slice.
func All[T any](ctx context.Context, first int, fetch PageFunc[T]) ([]T, error) {
	var all []T
	for items, err := range Pages(ctx, first, fetch) {
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
	}
	return all, nil
}
