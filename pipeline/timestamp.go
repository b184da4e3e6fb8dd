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

package pipeline

import (
	"maps"
	"slices"
	"strings"
	"time"
)

// DateKeyFormat is the grouping key format for calendar dates.
const DateKeyFormat = "2006-01-02"

// UnknownSource is the sentinel source label for rows without one.
const UnknownSource = "unknown"

// Canonical timestamp field names, tried in priority order before any
// substring heuristic. Downstream grouping depends on this tie-break order.
var canonicalTimestampFields = []string{
	"timestamp", "date", "created_at", "time", "created", "ts", "datetime",
}

var timestampSubstrings = []string{"time", "date", "created"}

// FindTimestampField picks the field of a row most likely to hold a
// timestamp: exact canonical names first, then the first field (in sorted
// key order, Go maps have no stable iteration order) whose name contains
// "time", "date", or "created".
func FindTimestampField(row Row) (string, bool) {
	for _, name := range canonicalTimestampFields {
		if _, ok := row[name]; ok {
			return name, true
		}
	}
	for _, key := range slices.Sorted(maps.Keys(row)) {
		lower := strings.ToLower(key)
		for _, sub := range timestampSubstrings {
			if strings.Contains(lower, sub) {
				return key, true
			}
		}
	}
	return "", false
}

// ParseTimestamp parses a timestamp value into a wall-clock time. Textual
// values are tried as ISO 8601 with a "T" separator, then as a
// space-separated date time, then as a bare date. Fractional seconds (and
// anything after them, including a zone suffix) are dropped before parsing.
// A value that matches none of the formats is not an error; the row simply
// has no resolvable date.
func ParseTimestamp(v any) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		return val, true
	case string:
		return parseTimestampString(val)
	}
	return time.Time{}, false
}

var timestampLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestampString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Normalized is a Row annotated with its canonical source label and, when
// one of its fields parsed as a timestamp, the derived calendar date.
type Normalized struct {
	Row     Row
	Source  string
	Date    time.Time
	HasDate bool
}

// DateKey returns the ISO calendar date grouping key.
func (n Normalized) DateKey() string {
	return n.Date.Format(DateKeyFormat)
}

// Normalizer resolves sources and calendar dates for a batch of rows. The
// timestamp field is chosen once, from the first row that offers a
// candidate, and then applied uniformly to the rest of the batch so one
// batch never mixes date fields.
type Normalizer struct {
	field  string
	chosen bool
}

// Normalize annotates one row. Absence of a resolvable date is a valid
// outcome, never an error.
func (n *Normalizer) Normalize(row Row) Normalized {
	out := Normalized{Row: row, Source: UnknownSource}
	if s := row.GetString("source"); s != "" {
		out.Source = s
	}
	if !n.chosen {
		if field, ok := FindTimestampField(row); ok {
			n.field = field
			n.chosen = true
		}
	}
	if n.chosen {
		if v, ok := row[n.field]; ok {
			if t, ok := ParseTimestamp(v); ok {
				out.Date = t
				out.HasDate = true
			}
		}
	}
	return out
}

// Field reports the timestamp field the normalizer locked onto, if any.
func (n *Normalizer) Field() (string, bool) {
	return n.field, n.chosen
}
