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

package duckdbx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDB_QueryRoundTrip(t *testing.T) {
	ctx := context.Background()

	db, err := New()
	require.NoError(t, err)
	defer func() {
		require.NoError(t, db.Close())
	}()

	conn, release, err := db.GetConnection(ctx)
	require.NoError(t, err)
	defer release()

	_, err = conn.ExecContext(ctx, `CREATE TABLE convos (source VARCHAR, n INTEGER)`)
	require.NoError(t, err)
	_, err = conn.ExecContext(ctx, `INSERT INTO convos VALUES ('arena', 1), ('wildchat', 2)`)
	require.NoError(t, err)

	rows, err := conn.QueryContext(ctx, `SELECT source, n FROM convos ORDER BY n`)
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	var got []string
	for rows.Next() {
		var source string
		var n int
		require.NoError(t, rows.Scan(&source, &n))
		got = append(got, source)
	}
	require.NoError(t, rows.Err())
	require.Equal(t, []string{"arena", "wildchat"}, got)
}

func TestDB_ReleaseReusesConnection(t *testing.T) {
	ctx := context.Background()

	db, err := New(WithPoolSize(1))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	conn1, release1, err := db.GetConnection(ctx)
	require.NoError(t, err)
	_, err = conn1.ExecContext(ctx, `CREATE TABLE t (id INTEGER)`)
	require.NoError(t, err)
	release1()

	// Pool size 1: the second acquire must hand back the same instance,
	// so the table created above is still visible.
	conn2, release2, err := db.GetConnection(ctx)
	require.NoError(t, err)
	defer release2()

	var count int
	err = conn2.QueryRowContext(ctx, `SELECT count(*) FROM t`).Scan(&count)
	require.NoError(t, err)
	require.Equal(t, 0, count)
}
