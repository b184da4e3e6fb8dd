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

package hubfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchGlob_SingleStarStaysInSegment(t *testing.T) {
	paths := []string{
		"data/train/part-0.parquet",
		"data/test/part-0.parquet",
		"data/train/nested/part-1.parquet",
		"README.md",
	}
	got, err := matchGlob(paths, "*/train/*.parquet")
	require.NoError(t, err)
	assert.Equal(t, []string{"data/train/part-0.parquet"}, got)
}

func TestMatchGlob_DoubleStarSpansSegments(t *testing.T) {
	paths := []string{
		"a.parquet",
		"data/a.parquet",
		"data/train/deep/b.parquet",
		"data/train/b.json",
	}
	got, err := matchGlob(paths, "**/*.parquet")
	require.NoError(t, err)
	assert.Equal(t, []string{"data/a.parquet", "data/train/deep/b.parquet"}, got)

	got, err = matchGlob(paths, "**/train/deep/*.parquet")
	require.NoError(t, err)
	assert.Equal(t, []string{"data/train/deep/b.parquet"}, got)
}

func TestMatchGlob_QuestionMark(t *testing.T) {
	paths := []string{"part-1.parquet", "part-10.parquet"}
	got, err := matchGlob(paths, "part-?.parquet")
	require.NoError(t, err)
	assert.Equal(t, []string{"part-1.parquet"}, got)
}

func TestMatchGlob_LiteralDotsAreEscaped(t *testing.T) {
	got, err := matchGlob([]string{"aXparquet"}, "a.parquet")
	require.NoError(t, err)
	assert.Empty(t, got)
}
