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

// Package rowfetch retrieves dataset rows through interchangeable
// transports: the paginated rows API and a columnar DuckDB query over the
// partition files themselves.
package rowfetch

import (
	"context"
	"fmt"

	"github.com/convolake/convolake/internal/hubfs"
	"github.com/convolake/convolake/pipeline"
)

// Options bound one fetch call.
type Options struct {
	// MaxRows caps the result size. Zero means the transport default
	// (rows API) or unbounded (columnar).
	MaxRows int
	// Sources restricts rows to these source labels. Pushed down to the
	// query when the transport supports it, applied after retrieval
	// otherwise. Date filters are never pushed down: the timestamp field
	// name is not known statically and is resolved per batch.
	Sources []string
}

// Fetcher retrieves rows from the dataset. Transports that discover their
// own rows (the paginated API) ignore the partitions argument.
type Fetcher interface {
	Fetch(ctx context.Context, partitions []hubfs.Partition, opts Options) ([]pipeline.Row, error)
}

// FetchError marks a fetch that failed before producing any rows. Failures
// after the first page or partition degrade to a partial result instead.
type FetchError struct {
	Transport string
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s fetch: %v", e.Transport, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// filterSources drops rows whose source label is not in the allow list.
// An empty list keeps everything.
func filterSources(rows []pipeline.Row, sources []string) []pipeline.Row {
	if len(sources) == 0 {
		return rows
	}
	allowed := make(map[string]struct{}, len(sources))
	for _, s := range sources {
		allowed[s] = struct{}{}
	}
	out := rows[:0]
	for _, row := range rows {
		label := row.GetString("source")
		if label == "" {
			label = pipeline.UnknownSource
		}
		if _, ok := allowed[label]; ok {
			out = append(out, row)
		}
	}
	return out
}
