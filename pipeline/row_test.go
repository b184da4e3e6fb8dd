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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRow_GetString(t *testing.T) {
	row := Row{"source": "chatbot_arena", "count": 3}

	assert.Equal(t, "chatbot_arena", row.GetString("source"))
	assert.Equal(t, "", row.GetString("missing"))
	assert.Equal(t, "", row.GetString("count"), "non-string values read as empty")
}

func TestRow_GetInt64(t *testing.T) {
	row := Row{
		"i":   int64(42),
		"f":   float64(7),
		"n":   json.Number("123"),
		"bad": json.Number("not-a-number"),
		"s":   "42",
	}

	v, ok := row.GetInt64("i")
	require.True(t, ok)
	assert.Equal(t, int64(42), v)

	v, ok = row.GetInt64("f")
	require.True(t, ok)
	assert.Equal(t, int64(7), v)

	v, ok = row.GetInt64("n")
	require.True(t, ok)
	assert.Equal(t, int64(123), v)

	_, ok = row.GetInt64("bad")
	assert.False(t, ok)
	_, ok = row.GetInt64("s")
	assert.False(t, ok)
	_, ok = row.GetInt64("missing")
	assert.False(t, ok)
}

func TestRow_GetFloat64(t *testing.T) {
	row := Row{"f": 1.5, "n": json.Number("2.25"), "i": int64(3)}

	v, ok := row.GetFloat64("f")
	require.True(t, ok)
	assert.Equal(t, 1.5, v)

	v, ok = row.GetFloat64("n")
	require.True(t, ok)
	assert.Equal(t, 2.25, v)

	v, ok = row.GetFloat64("i")
	require.True(t, ok)
	assert.Equal(t, 3.0, v)
}

func TestCopyRow(t *testing.T) {
	orig := Row{"source": "a", "n": 1}
	cp := CopyRow(orig)
	cp["source"] = "b"

	assert.Equal(t, "a", orig.GetString("source"))
	assert.Equal(t, "b", cp.GetString("source"))
}
