// Copyright (C) 2025 Convolake, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package rowfetch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/convolake/convolake/internal/duckdbx"
	"github.com/convolake/convolake/internal/hubfs"
	"github.com/convolake/convolake/internal/telemetry"
	"github.com/convolake/convolake/pipeline"
)

// ColumnarFetcher queries partition files directly with DuckDB's
// read_parquet over httpfs. One logical query unions all partitions; the
// source filter and row limit are pushed down to the query.
type ColumnarFetcher struct {
	db *duckdbx.DB
}

// NewColumnar creates the columnar transport. The DB should have been
// created with duckdbx.WithHTTPFS.
func NewColumnar(db *duckdbx.DB) *ColumnarFetcher {
	return &ColumnarFetcher{db: db}
}

// Fetch issues a single query over all located partitions.
func (f *ColumnarFetcher) Fetch(ctx context.Context, partitions []hubfs.Partition, opts Options) ([]pipeline.Row, error) {
	if len(partitions) == 0 {
		return nil, &FetchError{Transport: "columnar", Err: errors.New("no partitions to query")}
	}
	urls := make([]string, len(partitions))
	for i, p := range partitions {
		urls[i] = p.URL
	}
	rows, err := f.query(ctx, buildParquetQuery(urls, opts))
	if err != nil {
		telemetry.FetchErrors.WithLabelValues("columnar", "fatal").Inc()
		return nil, &FetchError{Transport: "columnar", Err: err}
	}
	telemetry.RowsFetched.WithLabelValues("columnar").Add(float64(len(rows)))
	return rows, nil
}

// FetchPartition retrieves every row of a single partition, unbounded.
// Used by the migration pipeline, which walks partitions one at a time.
func (f *ColumnarFetcher) FetchPartition(ctx context.Context, p hubfs.Partition) ([]pipeline.Row, error) {
	rows, err := f.query(ctx, buildParquetQuery([]string{p.URL}, Options{}))
	if err != nil {
		telemetry.FetchErrors.WithLabelValues("columnar", "fatal").Inc()
		return nil, &FetchError{Transport: "columnar", Err: err}
	}
	telemetry.RowsFetched.WithLabelValues("columnar").Add(float64(len(rows)))
	return rows, nil
}

func (f *ColumnarFetcher) query(ctx context.Context, query string) ([]pipeline.Row, error) {
	conn, release, err := f.db.GetConnection(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire duckdb connection: %w", err)
	}
	defer release()

	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query partitions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanRows(rows)
}

func buildParquetQuery(urls []string, opts Options) string {
	var b strings.Builder
	b.WriteString("SELECT * FROM read_parquet([")
	for i, u := range urls {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "'%s'", escapeSingle(u))
	}
	b.WriteString("])")

	if len(opts.Sources) > 0 {
		quoted := make([]string, len(opts.Sources))
		for i, s := range opts.Sources {
			quoted[i] = "'" + escapeSingle(s) + "'"
		}
		fmt.Fprintf(&b, " WHERE source IN (%s)", strings.Join(quoted, ", "))
	}
	if opts.MaxRows > 0 {
		fmt.Fprintf(&b, " LIMIT %d", opts.MaxRows)
	}
	return b.String()
}

func scanRows(rows *sql.Rows) ([]pipeline.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []pipeline.Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(pipeline.Row, len(cols))
		for i, col := range cols {
			row[col] = normalizeSQLValue(vals[i])
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// normalizeSQLValue maps driver values onto the Row's dynamic types.
// DuckDB hands back native Go values for most columns; byte slices become
// strings so downstream accessors behave like the JSON transport's.
func normalizeSQLValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	default:
		return v
	}
}

func escapeSingle(s string) string { return strings.ReplaceAll(s, `'`, `''`) }
