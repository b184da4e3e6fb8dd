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

package migration

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convolake/convolake/internal/docstore"
	"github.com/convolake/convolake/internal/hubfs"
	"github.com/convolake/convolake/pipeline"
)

type fakeLocator struct {
	parts []hubfs.Partition
	err   error
}

func (f *fakeLocator) Locate(context.Context) ([]hubfs.Partition, error) {
	return f.parts, f.err
}

type fakeFetcher struct {
	rows    map[string][]pipeline.Row
	errs    map[string]error
	fetched []string
}

func (f *fakeFetcher) FetchPartition(_ context.Context, p hubfs.Partition) ([]pipeline.Row, error) {
	f.fetched = append(f.fetched, p.Path)
	if err := f.errs[p.Path]; err != nil {
		return nil, err
	}
	return f.rows[p.Path], nil
}

type fakeStore struct {
	done     map[string]struct{}
	count    int64
	indexErr error

	// insertFn overrides the default all-inserted behavior.
	insertFn func(docs []any) (docstore.BatchResult, error)

	indexed bool
	batches [][]any
	marked  []string
}

func (f *fakeStore) EnsureIndexes(context.Context) error {
	f.indexed = true
	return f.indexErr
}

func (f *fakeStore) InsertBatch(_ context.Context, docs []any) (docstore.BatchResult, error) {
	f.batches = append(f.batches, docs)
	if f.insertFn != nil {
		return f.insertFn(docs)
	}
	f.count += int64(len(docs))
	return docstore.BatchResult{Inserted: len(docs)}, nil
}

func (f *fakeStore) Count(context.Context) (int64, error) { return f.count, nil }

func (f *fakeStore) DoneSet(context.Context) (map[string]struct{}, error) {
	if f.done == nil {
		return map[string]struct{}{}, nil
	}
	return f.done, nil
}

func (f *fakeStore) MarkDone(_ context.Context, path string) error {
	f.marked = append(f.marked, path)
	return nil
}

func nRows(n int) []pipeline.Row {
	rows := make([]pipeline.Row, n)
	for i := range rows {
		rows[i] = pipeline.Row{"source": "a"}
	}
	return rows
}

func part(path string) hubfs.Partition {
	return hubfs.Partition{Path: path, URL: "https://hub/datasets/d/resolve/main/" + path}
}

func TestRun_MigratesAllPartitions(t *testing.T) {
	loc := &fakeLocator{parts: []hubfs.Partition{part("a.parquet"), part("b.parquet")}}
	fetcher := &fakeFetcher{rows: map[string][]pipeline.Row{
		"a.parquet": nRows(3),
		"b.parquet": nRows(2),
	}}
	store := &fakeStore{}

	sum, err := New(loc, fetcher, store, Config{Resume: true}).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, store.indexed)
	assert.Equal(t, []string{"a.parquet", "b.parquet"}, fetcher.fetched)
	assert.Equal(t, []string{"a.parquet", "b.parquet"}, store.marked)
	assert.Equal(t, 2, sum.Located)
	assert.Equal(t, 2, sum.Attempted)
	assert.Equal(t, 5, sum.Inserted)
	assert.Equal(t, int64(5), sum.StoreCount)
	assert.NoError(t, sum.Failures)
	assert.NotEmpty(t, sum.RunID)
}

func TestRun_ResumeSkipsLedgeredPartitions(t *testing.T) {
	loc := &fakeLocator{parts: []hubfs.Partition{part("a.parquet"), part("b.parquet")}}
	fetcher := &fakeFetcher{}
	store := &fakeStore{
		done:  map[string]struct{}{"a.parquet": {}, "b.parquet": {}},
		count: 42,
	}

	sum, err := New(loc, fetcher, store, Config{Resume: true}).Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, fetcher.fetched, "nothing should be fetched when all partitions are done")
	assert.Empty(t, store.batches)
	assert.Equal(t, 2, sum.AlreadyDone)
	assert.Equal(t, 0, sum.Attempted)
	assert.Equal(t, int64(42), sum.StoreCount)
}

func TestRun_NoResumeIgnoresLedger(t *testing.T) {
	loc := &fakeLocator{parts: []hubfs.Partition{part("a.parquet")}}
	fetcher := &fakeFetcher{rows: map[string][]pipeline.Row{"a.parquet": nRows(1)}}
	store := &fakeStore{done: map[string]struct{}{"a.parquet": {}}}

	sum, err := New(loc, fetcher, store, Config{Resume: false}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"a.parquet"}, fetcher.fetched)
	assert.Equal(t, 0, sum.AlreadyDone)
	assert.Equal(t, 1, sum.Attempted)
}

func TestRun_FetchFailureSkipsMarkAndContinues(t *testing.T) {
	loc := &fakeLocator{parts: []hubfs.Partition{part("bad.parquet"), part("ok.parquet")}}
	fetcher := &fakeFetcher{
		rows: map[string][]pipeline.Row{"ok.parquet": nRows(2)},
		errs: map[string]error{"bad.parquet": errors.New("http 503")},
	}
	store := &fakeStore{}

	sum, err := New(loc, fetcher, store, Config{Resume: true}).Run(context.Background())
	require.NoError(t, err, "a partition failure must not fail the run")

	assert.Equal(t, []string{"ok.parquet"}, store.marked,
		"failed partition stays out of the ledger so the next run retries it")
	assert.Equal(t, 1, sum.Attempted)
	require.Error(t, sum.Failures)
	assert.Contains(t, sum.Failures.Error(), "bad.parquet")
}

func TestRun_PartialBatchStillMarksDone(t *testing.T) {
	loc := &fakeLocator{parts: []hubfs.Partition{part("a.parquet")}}
	fetcher := &fakeFetcher{rows: map[string][]pipeline.Row{"a.parquet": nRows(1000)}}
	store := &fakeStore{
		insertFn: func(docs []any) (docstore.BatchResult, error) {
			return docstore.BatchResult{Inserted: len(docs) - 3, Skipped: 3}, nil
		},
	}

	sum, err := New(loc, fetcher, store, Config{Resume: true}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 997, sum.Inserted)
	assert.Equal(t, 3, sum.Skipped)
	assert.Equal(t, []string{"a.parquet"}, store.marked,
		"skipped documents do not block the ledger entry")
	assert.NoError(t, sum.Failures)
}

func TestRun_RejectedBatchDoesNotAbortPartition(t *testing.T) {
	loc := &fakeLocator{parts: []hubfs.Partition{part("a.parquet")}}
	fetcher := &fakeFetcher{rows: map[string][]pipeline.Row{"a.parquet": nRows(3000)}}
	calls := 0
	store := &fakeStore{
		insertFn: func(docs []any) (docstore.BatchResult, error) {
			calls++
			if calls == 1 {
				return docstore.BatchResult{Skipped: len(docs)}, errors.New("socket reset")
			}
			return docstore.BatchResult{Inserted: len(docs)}, nil
		},
	}

	sum, err := New(loc, fetcher, store, Config{BatchSize: 1000, Resume: true}).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, store.batches, 3, "batches after the failed one still get their attempt")
	assert.Equal(t, 2000, sum.Inserted)
	assert.Equal(t, 1000, sum.Skipped)
	assert.Equal(t, []string{"a.parquet"}, store.marked,
		"a rejected batch does not keep the partition out of the ledger")
	assert.Equal(t, 1, sum.Attempted)
	assert.NoError(t, sum.Failures)
}

func TestRun_BatchSlicing(t *testing.T) {
	loc := &fakeLocator{parts: []hubfs.Partition{part("a.parquet")}}
	fetcher := &fakeFetcher{rows: map[string][]pipeline.Row{"a.parquet": nRows(2500)}}
	store := &fakeStore{}

	sum, err := New(loc, fetcher, store, Config{BatchSize: 1000, Resume: true}).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, store.batches, 3)
	assert.Len(t, store.batches[0], 1000)
	assert.Len(t, store.batches[1], 1000)
	assert.Len(t, store.batches[2], 500)
	assert.Equal(t, 2500, sum.Inserted)
}

func TestRun_MaxPartitionsCapsRun(t *testing.T) {
	loc := &fakeLocator{parts: []hubfs.Partition{part("a.parquet"), part("b.parquet"), part("c.parquet")}}
	fetcher := &fakeFetcher{rows: map[string][]pipeline.Row{"a.parquet": nRows(1)}}
	store := &fakeStore{}

	sum, err := New(loc, fetcher, store, Config{MaxPartitions: 1, Resume: true}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"a.parquet"}, fetcher.fetched)
	assert.Equal(t, 3, sum.Located)
	assert.Equal(t, 1, sum.Attempted)
}

func TestRun_EmptyPartitionStillMarkedDone(t *testing.T) {
	loc := &fakeLocator{parts: []hubfs.Partition{part("empty.parquet")}}
	fetcher := &fakeFetcher{}
	store := &fakeStore{}

	sum, err := New(loc, fetcher, store, Config{Resume: true}).Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, store.batches)
	assert.Equal(t, []string{"empty.parquet"}, store.marked)
	assert.Equal(t, 1, sum.Attempted)
}

func TestRun_IndexFailureAborts(t *testing.T) {
	store := &fakeStore{indexErr: errors.New("unauthorized")}
	_, err := New(&fakeLocator{}, &fakeFetcher{}, store, Config{}).Run(context.Background())
	require.Error(t, err)
}

func TestRun_LocateFailureAborts(t *testing.T) {
	loc := &fakeLocator{err: errors.New("hub unreachable")}
	_, err := New(loc, &fakeFetcher{}, &fakeStore{}, Config{}).Run(context.Background())
	require.Error(t, err)
}

func TestSummaryRender(t *testing.T) {
	sum := &Summary{
		RunID:      "test-run",
		Located:    4,
		Attempted:  3,
		Inserted:   2999,
		Skipped:    1,
		StoreCount: 5000,
		Failures:   errors.New("partition x.parquet: boom"),
	}

	var b strings.Builder
	sum.Render(&b)
	out := b.String()

	assert.Contains(t, out, "test-run")
	assert.Contains(t, out, "2999")
	assert.Contains(t, out, "x.parquet")
}
