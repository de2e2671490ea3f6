// Package pagination implements keyset pagination over a single string sort key.
//
// A Cursor marks a page boundary: the sort key of the row it was built from, the travel
// direction and the query that produced the page. Cursors are exchanged with clients as
// signed opaque tokens (see Codec) and turned back into SQL predicates with Boundary.
package pagination

import (
	"errors"
	"fmt"
)

// Direction is the travel direction of a cursor.
type Direction string

const (
	Ascending  Direction = "ASC"
	Descending Direction = "DESC"
)

// Valid reports whether d is one of the known directions.
func (d Direction) Valid() bool {
	return d == Ascending || d == Descending
}

// Operator is the comparison applied to the sort key.
type Operator string

const (
	GreaterThan Operator = ">"
	LessThan    Operator = "<"
)

var (
	ErrInvalidDirection = errors.New("invalid cursor direction")
	ErrInvalidLimit     = errors.New("page limit must be positive")
)

// Query is the filter context carried by every cursor.
type Query interface {
	PageLimit() int
}

// Cursor is an immutable page boundary.
type Cursor[Q Query] struct {
	Position  string    `json:"position"`
	Direction Direction `json:"direction"`
	Query     Q         `json:"query"`
}

// First points at the beginning of the result set.
func First[Q Query](q Q) Cursor[Q] {
	return Cursor[Q]{Direction: Ascending, Query: q}
}

// Last points at the end of the result set.
func Last[Q Query](q Q) Cursor[Q] {
	return Cursor[Q]{Direction: Descending, Query: q}
}

// Next resumes after position.
func Next[Q Query](q Q, position string) Cursor[Q] {
	return Cursor[Q]{Position: position, Direction: Ascending, Query: q}
}

// Prev resumes before position.
func Prev[Q Query](q Q, position string) Cursor[Q] {
	return Cursor[Q]{Position: position, Direction: Descending, Query: q}
}

// Boundary is the predicate and ordering a cursor translates to.
type Boundary struct {
	Operator Operator
	Value    string
	Order    Direction
}

// Boundary resolves the cursor into a sort key predicate.
//
//	position   direction  predicate        order
//	""         ASC        key > ""         ASC   (first page)
//	"k"        DESC       key < "k"        DESC  (previous page)
//	"k"        ASC        key > "k"        ASC   (next page)
//	""         DESC       key > ""         DESC  (last page)
func (c Cursor[Q]) Boundary() (Boundary, error) {
	switch {
	case c.Position == "" && c.Direction == Ascending:
		return Boundary{Operator: GreaterThan, Value: "", Order: Ascending}, nil
	case c.Position != "" && c.Direction == Descending:
		return Boundary{Operator: LessThan, Value: c.Position, Order: Descending}, nil
	case c.Position != "" && c.Direction == Ascending:
		return Boundary{Operator: GreaterThan, Value: c.Position, Order: Ascending}, nil
	case c.Position == "" && c.Direction == Descending:
		return Boundary{Operator: GreaterThan, Value: "", Order: Descending}, nil
	default:
		return Boundary{}, fmt.Errorf("%w: %q", ErrInvalidDirection, c.Direction)
	}
}
