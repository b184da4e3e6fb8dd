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

package docstore

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/convolake/convolake/pipeline"
)

// ToDocument converts a fetched row into a BSON document. Values are
// coerced into types the driver encodes cleanly: json.Number becomes a
// native numeric, NaN and Inf become null, and datetime-looking strings
// become time.Time so the timestamp indexes sort chronologically.
func ToDocument(row pipeline.Row, importedAt time.Time) bson.M {
	doc := make(bson.M, len(row)+1)
	for k, v := range row {
		doc[k] = convertValue(v)
	}
	doc["_imported_at"] = importedAt.UTC()
	return doc
}

func convertValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return sanitizeFloat(f)
		}
		return val.String()
	case float64:
		return sanitizeFloat(val)
	case float32:
		return sanitizeFloat(float64(val))
	case string:
		if looksLikeDatetime(val) {
			if ts, ok := pipeline.ParseTimestamp(val); ok {
				return ts
			}
		}
		return val
	case time.Time:
		return val
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = convertValue(elem)
		}
		return out
	case map[string]any:
		out := make(bson.M, len(val))
		for k, elem := range val {
			out[k] = convertValue(elem)
		}
		return out
	case pipeline.Row:
		out := make(bson.M, len(val))
		for k, elem := range val {
			out[k] = convertValue(elem)
		}
		return out
	default:
		return v
	}
}

// sanitizeFloat nulls out values BSON cannot round-trip through JSON
// consumers.
func sanitizeFloat(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}

// looksLikeDatetime is a cheap pre-filter before attempting a parse:
// either an ISO datetime with a 'T' separator, or a dashed date of at
// least yyyy-mm-dd length.
func looksLikeDatetime(s string) bool {
	if len(s) < 10 {
		return false
	}
	if strings.ContainsRune(s, 'T') && strings.Contains(s, ":") {
		return true
	}
	return strings.Count(s, "-") >= 2 && s[4] == '-'
}
