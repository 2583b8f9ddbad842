package pagination

import (
	"context"
	"errors"
	"fmt"
)

// MaxPages bounds a single FetchAll run
const MaxPages = 100

var (
	// ErrTooManyPages is returned when a listing does not terminate within MaxPages
	ErrTooManyPages = errors.New("pagination did not terminate")

	// ErrRepeatedCursor is returned when the server hands out a cursor it already returned
	ErrRepeatedCursor = errors.New("server repeated a pagination cursor")
)

// FetchFunc fetches the page at cursor. An empty cursor requests the first
// page; an empty nextCursor marks the last page.
type FetchFunc[T any] func(ctx context.Context, cursor string) (items []T, nextCursor string, err error)

// Collector tracks cursor progress across pages
type Collector struct {
	// NextCursor holds the pagination cursor for the next page
	NextCursor string
	// HasMore indicates if there are more pages to fetch
	HasMore bool
	// Pages is the number of pages consumed so far
	Pages int
	// TotalItems is the total number of items collected so far
	TotalItems int

	seen map[string]struct{}
}

// NewCollector creates a new pagination collector
func NewCollector() *Collector {
	return &Collector{
		HasMore: true,
		seen:    make(map[string]struct{}),
	}
}

// Update records one page. It fails when the cursor sequence loops or the
// page budget is exhausted.
func (c *Collector) Update(items int, nextCursor string) error {
	c.Pages++
	c.TotalItems += items
	c.NextCursor = nextCursor
	c.HasMore = nextCursor != ""

	if !c.HasMore {
		return nil
	}
	if _, ok := c.seen[nextCursor]; ok {
		return fmt.Errorf("%w: %q", ErrRepeatedCursor, nextCursor)
	}
	c.seen[nextCursor] = struct{}{}
	if c.Pages >= MaxPages {
		return fmt.Errorf("%w after %d pages", ErrTooManyPages, c.Pages)
	}
	return nil
}

// FetchAll follows nextCursor until the last page and returns every item in
// server order.
func FetchAll[T any](ctx context.Context, fetch FetchFunc[T]) ([]T, error) {
	collector := NewCollector()
	all := make([]T, 0)

	for collector.HasMore {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		items, next, err := fetch(ctx, collector.NextCursor)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)

		if err := collector.Update(len(items), next); err != nil {
			return nil, err
		}
	}

	return all, nil
}
