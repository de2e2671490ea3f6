package pagination

import (
	"context"
	"fmt"

	"github.com/samber/lo"
)

// Page is a single window of results plus the cursors around it.
// Items are always in ascending sort key order.
type Page[Q Query, T any] struct {
	First Cursor[Q]
	Prev  *Cursor[Q]
	Next  *Cursor[Q]
	Last  Cursor[Q]
	Query Q
	Items []T
}

// Fetcher loads at most limit rows matching q past the boundary, ordered by b.Order.
type Fetcher[Q Query, T any] func(ctx context.Context, q Q, b Boundary, limit int) ([]T, error)

// Paginate loads the page addressed by cur.
//
// One extra row is requested to learn whether more rows exist in the travel direction.
// Rows fetched in descending order are reversed before being returned. key extracts the
// sort key of an item and is used to position the prev and next cursors.
func Paginate[Q Query, T any](ctx context.Context, cur Cursor[Q], fetch Fetcher[Q, T], key func(T) string) (*Page[Q, T], error) {
	boundary, err := cur.Boundary()
	if err != nil {
		return nil, err
	}
	limit := cur.Query.PageLimit()
	if limit <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLimit, limit)
	}

	rows, err := fetch(ctx, cur.Query, boundary, limit+1)
	if err != nil {
		return nil, err
	}
	more := len(rows) > limit
	if more {
		rows = rows[:limit]
	}
	if boundary.Order == Descending {
		rows = lo.Reverse(rows)
	}
	if rows == nil {
		rows = []T{}
	}

	page := &Page[Q, T]{
		First: First(cur.Query),
		Last:  Last(cur.Query),
		Query: cur.Query,
		Items: rows,
	}

	forward := cur.Direction == Ascending
	positioned := cur.Position != ""
	hasNext := lo.Ternary(forward, more, positioned)
	hasPrev := lo.Ternary(forward, positioned, more)

	if hasNext {
		position := cur.Position
		if len(rows) > 0 {
			position = key(rows[len(rows)-1])
		}
		next := Next(cur.Query, position)
		page.Next = &next
	}
	if hasPrev {
		position := cur.Position
		if len(rows) > 0 {
			position = key(rows[0])
		}
		prev := Prev(cur.Query, position)
		page.Prev = &prev
	}
	return page, nil
}
