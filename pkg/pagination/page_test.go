package pagination

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testQuery struct {
	Name  *string  `json:"name,omitempty"`
	Tags  []string `json:"tags,omitempty"`
	Limit int      `json:"limit"`
}

func (q testQuery) PageLimit() int { return q.Limit }

type memoryStore struct {
	keys  []string
	calls int
	limit int
}

func newMemoryStore(keys ...string) *memoryStore {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	return &memoryStore{keys: sorted}
}

func (s *memoryStore) fetch(_ context.Context, _ testQuery, b Boundary, limit int) ([]string, error) {
	s.calls++
	s.limit = limit
	var matched []string
	for _, k := range s.keys {
		if (b.Operator == GreaterThan && k > b.Value) || (b.Operator == LessThan && k < b.Value) {
			matched = append(matched, k)
		}
	}
	if b.Order == Descending {
		for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
			matched[i], matched[j] = matched[j], matched[i]
		}
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func identity(s string) string { return s }

func TestCursorBoundary(t *testing.T) {
	q := testQuery{Limit: 2}
	cases := []struct {
		name   string
		cursor Cursor[testQuery]
		want   Boundary
	}{
		{"first", First(q), Boundary{Operator: GreaterThan, Value: "", Order: Ascending}},
		{"previous", Prev(q, "m"), Boundary{Operator: LessThan, Value: "m", Order: Descending}},
		{"next", Next(q, "m"), Boundary{Operator: GreaterThan, Value: "m", Order: Ascending}},
		{"last", Last(q), Boundary{Operator: GreaterThan, Value: "", Order: Descending}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.cursor.Boundary()
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := Cursor[testQuery]{Position: "m", Direction: "SIDEWAYS", Query: q}.Boundary()
	assert.ErrorIs(t, err, ErrInvalidDirection)
}

func TestPaginateFirstPage(t *testing.T) {
	store := newMemoryStore("Alpha", "Beta", "Gamma", "Delta")
	q := testQuery{Limit: 2}

	page, err := Paginate(context.Background(), First(q), store.fetch, identity)
	require.NoError(t, err)

	assert.Equal(t, 3, store.limit)
	assert.Equal(t, []string{"Alpha", "Beta"}, page.Items)
	require.NotNil(t, page.Next)
	assert.Equal(t, "Beta", page.Next.Position)
	assert.Equal(t, Ascending, page.Next.Direction)
	assert.Nil(t, page.Prev)
	assert.Equal(t, First(q), page.First)
	assert.Equal(t, Last(q), page.Last)
	assert.Equal(t, q, page.Query)
}

func TestPaginateLastPageIsAscending(t *testing.T) {
	store := newMemoryStore("Alpha", "Beta", "Gamma", "Delta", "Epsilon")
	q := testQuery{Limit: 2}

	page, err := Paginate(context.Background(), Last(q), store.fetch, identity)
	require.NoError(t, err)

	assert.Equal(t, []string{"Epsilon", "Gamma"}, page.Items)
	assert.Nil(t, page.Next)
	require.NotNil(t, page.Prev)
	assert.Equal(t, "Epsilon", page.Prev.Position)
	assert.Equal(t, Descending, page.Prev.Direction)
}

func TestPaginateWalkForwardAndBack(t *testing.T) {
	store := newMemoryStore("a", "b", "c", "d", "e", "f", "g")
	q := testQuery{Limit: 3}
	ctx := context.Background()

	first, err := Paginate(ctx, First(q), store.fetch, identity)
	require.NoError(t, err)
	require.NotNil(t, first.Next)

	second, err := Paginate(ctx, *first.Next, store.fetch, identity)
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "e", "f"}, second.Items)
	require.NotNil(t, second.Prev)
	require.NotNil(t, second.Next)

	third, err := Paginate(ctx, *second.Next, store.fetch, identity)
	require.NoError(t, err)
	assert.Equal(t, []string{"g"}, third.Items)
	assert.Nil(t, third.Next)
	require.NotNil(t, third.Prev)

	back, err := Paginate(ctx, *third.Prev, store.fetch, identity)
	require.NoError(t, err)
	assert.Equal(t, second.Items, back.Items)
	require.NotNil(t, back.Next)
	assert.Equal(t, "f", back.Next.Position)
	require.NotNil(t, back.Prev)

	start, err := Paginate(ctx, *back.Prev, store.fetch, identity)
	require.NoError(t, err)
	assert.Equal(t, first.Items, start.Items)
	assert.Nil(t, start.Prev)
	require.NotNil(t, start.Next)
	assert.Equal(t, "c", start.Next.Position)
}

func TestPaginateNeverExceedsLimit(t *testing.T) {
	store := newMemoryStore("a", "b", "c", "d", "e", "f", "g", "h", "i", "j")
	ctx := context.Background()

	for limit := 1; limit <= 11; limit++ {
		q := testQuery{Limit: limit}
		cur := First(q)
		seen := 0
		for {
			page, err := Paginate(ctx, cur, store.fetch, identity)
			require.NoError(t, err)
			assert.LessOrEqual(t, len(page.Items), limit)
			seen += len(page.Items)
			if page.Next == nil {
				break
			}
			assert.Equal(t, page.Items[len(page.Items)-1], page.Next.Position)
			cur = *page.Next
		}
		assert.Equal(t, 10, seen, "limit %d", limit)
	}
}

func TestPaginateEmptyResult(t *testing.T) {
	store := newMemoryStore()
	q := testQuery{Limit: 5}

	page, err := Paginate(context.Background(), First(q), store.fetch, identity)
	require.NoError(t, err)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
	assert.Nil(t, page.Next)
	assert.Nil(t, page.Prev)

	past, err := Paginate(context.Background(), Next(q, "zzz"), store.fetch, identity)
	require.NoError(t, err)
	assert.Empty(t, past.Items)
	assert.Nil(t, past.Next)
	require.NotNil(t, past.Prev)
	assert.Equal(t, "zzz", past.Prev.Position)
}

func TestPaginateRejectsNonPositiveLimit(t *testing.T) {
	store := newMemoryStore("a")

	_, err := Paginate(context.Background(), First(testQuery{Limit: 0}), store.fetch, identity)
	assert.ErrorIs(t, err, ErrInvalidLimit)
	assert.Zero(t, store.calls)
}

func TestPaginatePropagatesFetchError(t *testing.T) {
	boom := errors.New("boom")
	fetch := func(context.Context, testQuery, Boundary, int) ([]string, error) { return nil, boom }

	_, err := Paginate(context.Background(), First(testQuery{Limit: 1}), fetch, identity)
	assert.ErrorIs(t, err, boom)
}
