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

// Package aggregate condenses a batch of rows into per-source and per-date
// counts for the dashboard.
package aggregate

import (
	"maps"
	"slices"

	"github.com/convolake/convolake/pipeline"
)

// Result holds one aggregation pass over a batch.
//
// SourceCounts and DateCounts are computed at different stages: the source
// count includes every row that passes the source filter, while the date
// count additionally requires a parseable timestamp inside the date
// bounds. Their totals therefore need not agree.
type Result struct {
	SourceCounts map[string]int `json:"source_counts"`
	DateCounts   map[string]int `json:"date_counts"`

	// Sources is the filter that was effectively applied: the requested
	// one, or the observed distinct sources when none was requested.
	Sources []string `json:"sources"`

	// RowsIn is the batch size before filtering, RowsCounted the number
	// of rows that reached the source counts.
	RowsIn      int `json:"rows_in"`
	RowsCounted int `json:"rows_counted"`
}

// SortedDates returns the date keys in ascending order. Keys are
// zero-padded ISO dates, so lexicographic order is chronological order.
func (r *Result) SortedDates() []string {
	return slices.Sorted(maps.Keys(r.DateCounts))
}

// Total is the number of rows counted into the source buckets.
func (r *Result) Total() int {
	total := 0
	for _, n := range r.SourceCounts {
		total += n
	}
	return total
}

// Aggregate counts rows by source and by day. Rows outside the requested
// sources are dropped entirely. minDate and maxDate are inclusive ISO date
// bounds; empty means unbounded. A row whose timestamp is missing,
// unparseable, or out of bounds still counts toward its source.
func Aggregate(rows []pipeline.Row, sources []string, minDate, maxDate string) *Result {
	res := &Result{
		SourceCounts: make(map[string]int),
		DateCounts:   make(map[string]int),
		RowsIn:       len(rows),
	}

	requested := make(map[string]struct{}, len(sources))
	for _, s := range sources {
		requested[s] = struct{}{}
	}

	var norm pipeline.Normalizer
	for _, row := range rows {
		n := norm.Normalize(row)
		if len(requested) > 0 {
			if _, ok := requested[n.Source]; !ok {
				continue
			}
		}

		res.SourceCounts[n.Source]++
		res.RowsCounted++

		if !n.HasDate {
			continue
		}
		key := n.DateKey()
		if minDate != "" && key < minDate {
			continue
		}
		if maxDate != "" && key > maxDate {
			continue
		}
		res.DateCounts[key]++
	}

	if len(sources) > 0 {
		res.Sources = slices.Clone(sources)
		slices.Sort(res.Sources)
	} else {
		res.Sources = slices.Sorted(maps.Keys(res.SourceCounts))
	}
	return res
}
