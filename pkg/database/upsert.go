package database

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/samber/lo"
)

// maxBindParams is the postgres limit on bind parameters per statement.
const maxBindParams = 65535

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// UpsertSpec declares how rows of a table are merged on conflict.
type UpsertSpec struct {
	Table string
	// ConflictColumns name the unique constraint that turns an insert into an update.
	ConflictColumns []string
	// ExcludedFromUpdate are never overwritten on conflict, e.g. created_at.
	ExcludedFromUpdate []string
}

// Record is an ordered set of column values for one row.
type Record struct {
	columns []string
	values  map[string]interface{}
}

// NewRecord returns an empty record.
func NewRecord() *Record {
	return &Record{values: make(map[string]interface{})}
}

// Set assigns value to column, keeping the position of the first assignment.
func (r *Record) Set(column string, value interface{}) *Record {
	if _, ok := r.values[column]; !ok {
		r.columns = append(r.columns, column)
	}
	r.values[column] = value
	return r
}

// Columns lists the columns set on the record.
func (r *Record) Columns() []string {
	return append([]string(nil), r.columns...)
}

// Statement is a single SQL statement with its positional arguments.
type Statement struct {
	Query string
	Args  []interface{}
}

// BuildUpsert renders records into INSERT ... ON CONFLICT statements.
//
// Columns are taken from the first record; every other record must set the same columns,
// in any order. The update clause covers the inserted columns minus the conflict and excluded
// columns; when nothing is left the statement uses DO NOTHING. Large batches are split so no
// statement exceeds the bind parameter limit. No statement is produced for zero records.
func BuildUpsert(spec UpsertSpec, records []*Record, returning ...string) ([]Statement, error) {
	if len(records) == 0 {
		return nil, nil
	}
	table, err := quoteQualified(spec.Table)
	if err != nil {
		return nil, err
	}
	if len(spec.ConflictColumns) == 0 {
		return nil, fmt.Errorf("upsert %s: conflict columns required", spec.Table)
	}

	columns := records[0].Columns()
	if len(columns) == 0 {
		return nil, fmt.Errorf("upsert %s: record has no columns", spec.Table)
	}
	for i, rec := range records[1:] {
		if len(rec.columns) != len(columns) || !lo.Every(columns, rec.columns) {
			return nil, fmt.Errorf("upsert %s: record %d columns %v differ from %v", spec.Table, i+1, rec.columns, columns)
		}
	}
	if missing, _ := lo.Difference(spec.ConflictColumns, columns); len(missing) > 0 {
		return nil, fmt.Errorf("upsert %s: conflict columns %v not inserted", spec.Table, missing)
	}

	quotedColumns, err := quoteAll(columns)
	if err != nil {
		return nil, fmt.Errorf("upsert %s: %w", spec.Table, err)
	}
	quotedConflict, err := quoteAll(spec.ConflictColumns)
	if err != nil {
		return nil, fmt.Errorf("upsert %s: %w", spec.Table, err)
	}
	quotedReturning, err := quoteAll(returning)
	if err != nil {
		return nil, fmt.Errorf("upsert %s: %w", spec.Table, err)
	}

	skip := append(append([]string(nil), spec.ConflictColumns...), spec.ExcludedFromUpdate...)
	updates := lo.Without(columns, skip...)

	var tail strings.Builder
	tail.WriteString(" ON CONFLICT (")
	tail.WriteString(strings.Join(quotedConflict, ", "))
	tail.WriteString(")")
	if len(updates) == 0 {
		tail.WriteString(" DO NOTHING")
	} else {
		assignments := lo.Map(updates, func(col string, _ int) string {
			quoted := pq.QuoteIdentifier(col)
			return quoted + " = EXCLUDED." + quoted
		})
		tail.WriteString(" DO UPDATE SET ")
		tail.WriteString(strings.Join(assignments, ", "))
	}
	if len(quotedReturning) > 0 {
		tail.WriteString(" RETURNING ")
		tail.WriteString(strings.Join(quotedReturning, ", "))
	}

	head := fmt.Sprintf("INSERT INTO %s (%s) VALUES ", table, strings.Join(quotedColumns, ", "))
	chunkSize := maxBindParams / len(columns)

	statements := make([]Statement, 0, len(records)/chunkSize+1)
	for _, chunk := range lo.Chunk(records, chunkSize) {
		args := make([]interface{}, 0, len(chunk)*len(columns))
		tuples := make([]string, 0, len(chunk))
		for _, rec := range chunk {
			placeholders := make([]string, len(columns))
			for i, col := range columns {
				args = append(args, rec.values[col])
				placeholders[i] = fmt.Sprintf("$%d", len(args))
			}
			tuples = append(tuples, "("+strings.Join(placeholders, ", ")+")")
		}
		statements = append(statements, Statement{
			Query: head + strings.Join(tuples, ", ") + tail.String(),
			Args:  args,
		})
	}
	return statements, nil
}

// Upsert writes records and returns the number of rows inserted or updated.
func Upsert(ctx context.Context, exec sqlx.ExtContext, spec UpsertSpec, records []*Record) (int64, error) {
	statements, err := BuildUpsert(spec, records)
	if err != nil {
		return 0, err
	}
	var affected int64
	for _, stmt := range statements {
		res, err := exec.ExecContext(ctx, stmt.Query, stmt.Args...)
		if err != nil {
			return affected, fmt.Errorf("upsert %s: %w", spec.Table, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			affected += n
		}
	}
	return affected, nil
}

// UpsertReturning writes records and scans the returning columns of every written row into T.
// Rows skipped by DO NOTHING are not returned.
func UpsertReturning[T any](ctx context.Context, exec sqlx.ExtContext, spec UpsertSpec, records []*Record, returning ...string) ([]T, error) {
	if len(returning) == 0 {
		return nil, fmt.Errorf("upsert %s: returning columns required", spec.Table)
	}
	statements, err := BuildUpsert(spec, records, returning...)
	if err != nil {
		return nil, err
	}
	var out []T
	for _, stmt := range statements {
		var rows []T
		if err := sqlx.SelectContext(ctx, exec, &rows, stmt.Query, stmt.Args...); err != nil {
			return out, fmt.Errorf("upsert %s: %w", spec.Table, err)
		}
		out = append(out, rows...)
	}
	return out, nil
}

func quoteAll(names []string) ([]string, error) {
	quoted := make([]string, 0, len(names))
	for _, name := range names {
		if !identifierPattern.MatchString(name) {
			return nil, fmt.Errorf("invalid identifier %q", name)
		}
		quoted = append(quoted, pq.QuoteIdentifier(name))
	}
	return quoted, nil
}

func quoteQualified(name string) (string, error) {
	parts, err := quoteAll(strings.Split(name, "."))
	if err != nil {
		return "", fmt.Errorf("upsert: %w", err)
	}
	return strings.Join(parts, "."), nil
}
