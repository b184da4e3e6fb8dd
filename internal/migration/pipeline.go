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

// Package migration walks dataset partitions and copies their rows into
// the document store, partition by partition, with a resumable ledger.
package migration

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/jonboulle/clockwork"

	"github.com/convolake/convolake/internal/docstore"
	"github.com/convolake/convolake/internal/hubfs"
	"github.com/convolake/convolake/internal/telemetry"
	"github.com/convolake/convolake/pipeline"
)

// DefaultBatchSize is the insert batch size.
const DefaultBatchSize = 1000

// PartitionFetcher retrieves every row of one partition.
type PartitionFetcher interface {
	FetchPartition(ctx context.Context, p hubfs.Partition) ([]pipeline.Row, error)
}

// Locator discovers the partitions to migrate.
type Locator interface {
	Locate(ctx context.Context) ([]hubfs.Partition, error)
}

// Store is the slice of the document store the pipeline needs.
type Store interface {
	EnsureIndexes(ctx context.Context) error
	InsertBatch(ctx context.Context, docs []any) (docstore.BatchResult, error)
	Count(ctx context.Context) (int64, error)
	DoneSet(ctx context.Context) (map[string]struct{}, error)
	MarkDone(ctx context.Context, path string) error
}

// Config tunes one migration run.
type Config struct {
	// BatchSize is the number of documents per insert. Defaults to
	// DefaultBatchSize.
	BatchSize int
	// MaxPartitions caps how many pending partitions are attempted.
	// Zero means all of them.
	MaxPartitions int
	// Resume skips partitions already recorded in the ledger.
	Resume bool
}

// Summary reports what one run did.
type Summary struct {
	RunID       string
	Located     int
	AlreadyDone int
	Attempted   int
	Inserted    int
	Skipped     int
	StoreCount  int64

	// Failures aggregates per-partition fetch errors. The run keeps
	// going past them; a non-nil value means some partitions were left
	// unmigrated and will be retried next run.
	Failures error
}

// Pipeline copies partitions into the store sequentially.
type Pipeline struct {
	locator Locator
	fetcher PartitionFetcher
	store   Store
	cfg     Config
	clock   clockwork.Clock
}

func New(locator Locator, fetcher PartitionFetcher, store Store, cfg Config) *Pipeline {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &Pipeline{
		locator: locator,
		fetcher: fetcher,
		store:   store,
		cfg:     cfg,
		clock:   clockwork.NewRealClock(),
	}
}

// Run executes the migration. Index creation and partition discovery
// failures abort the run; a single partition's fetch failure is recorded
// and the run moves on without marking that partition done, so the next
// run retries it.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	sum := &Summary{RunID: uuid.NewString()}
	log := slog.With(slog.String("run_id", sum.RunID))

	if err := p.store.EnsureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}

	partitions, err := p.locator.Locate(ctx)
	if err != nil {
		return nil, fmt.Errorf("locate partitions: %w", err)
	}
	sum.Located = len(partitions)

	pending := partitions
	if p.cfg.Resume {
		done, err := p.store.DoneSet(ctx)
		if err != nil {
			return nil, err
		}
		pending = pending[:0:0]
		for _, part := range partitions {
			if _, ok := done[part.Path]; ok {
				sum.AlreadyDone++
				continue
			}
			pending = append(pending, part)
		}
	}
	if p.cfg.MaxPartitions > 0 && len(pending) > p.cfg.MaxPartitions {
		pending = pending[:p.cfg.MaxPartitions]
	}

	if len(pending) == 0 {
		log.Info("nothing to migrate, all partitions already processed",
			slog.Int("located", sum.Located))
		sum.StoreCount, _ = p.store.Count(ctx)
		return sum, nil
	}

	log.Info("starting migration",
		slog.Int("located", sum.Located),
		slog.Int("already_done", sum.AlreadyDone),
		slog.Int("pending", len(pending)),
		slog.Int("batch_size", p.cfg.BatchSize))

	var failures *multierror.Error
	for i, part := range pending {
		if err := ctx.Err(); err != nil {
			failures = multierror.Append(failures, err)
			break
		}

		log.Info("migrating partition",
			slog.String("path", part.Path),
			slog.Int("n", i+1),
			slog.Int("of", len(pending)))

		rows, err := p.fetcher.FetchPartition(ctx, part)
		if err != nil {
			telemetry.PartitionsMigrated.WithLabelValues("fetch_failed").Inc()
			log.Error("partition fetch failed, will retry next run",
				slog.String("path", part.Path), slog.Any("error", err))
			failures = multierror.Append(failures, fmt.Errorf("partition %s: %w", part.Path, err))
			continue
		}

		inserted, skipped := p.writeRows(ctx, rows)
		sum.Inserted += inserted
		sum.Skipped += skipped

		// Marked done even when documents were skipped: every batch got
		// its attempt, and replaying the partition would not recover
		// what the store rejected.
		if err := p.store.MarkDone(ctx, part.Path); err != nil {
			failures = multierror.Append(failures, err)
			continue
		}
		telemetry.PartitionsMigrated.WithLabelValues("done").Inc()
		sum.Attempted++

		log.Info("partition done",
			slog.String("path", part.Path),
			slog.Int("rows", len(rows)),
			slog.Int("inserted", inserted),
			slog.Int("skipped", skipped))
	}

	sum.Failures = failures.ErrorOrNil()
	if n, err := p.store.Count(ctx); err == nil {
		sum.StoreCount = n
	} else {
		log.Warn("could not count documents", slog.Any("error", err))
	}
	return sum, nil
}

// writeRows inserts the partition's rows in fixed-size batches. All
// batches share one import timestamp. A batch the store rejects outright
// is counted as skipped and the remaining batches still get their
// attempt; aborting here would leave the partition out of the ledger and
// replay its inserted documents on the next run.
func (p *Pipeline) writeRows(ctx context.Context, rows []pipeline.Row) (inserted, skipped int) {
	importedAt := p.clock.Now()

	for start := 0; start < len(rows); start += p.cfg.BatchSize {
		end := min(start+p.cfg.BatchSize, len(rows))
		docs := make([]any, 0, end-start)
		for _, row := range rows[start:end] {
			docs = append(docs, docstore.ToDocument(row, importedAt))
		}

		timer := p.clock.Now()
		res, err := p.store.InsertBatch(ctx, docs)
		telemetry.BatchWriteSeconds.Observe(p.clock.Since(timer).Seconds())
		if err != nil {
			slog.Error("batch write failed, documents skipped",
				slog.Int("offset", start),
				slog.Int("size", len(docs)),
				slog.Any("error", err))
		}

		inserted += res.Inserted
		skipped += res.Skipped
		telemetry.DocumentsInserted.Add(float64(res.Inserted))
		telemetry.DocumentsSkipped.Add(float64(res.Skipped))
	}
	return inserted, skipped
}
