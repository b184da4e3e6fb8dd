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

// Package docstore is the MongoDB persistence layer for migrated
// conversations, including the ledger that makes migration runs
// resumable.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	metadataCollection = "_migration_metadata"
	ledgerID           = "processed_files"

	connectTimeout = 10 * time.Second
)

// Config locates the target database and collection.
type Config struct {
	URI        string
	Database   string
	Collection string
}

// Store wraps the conversation collection and the migration ledger.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
	meta   *mongo.Collection
}

// Connect dials MongoDB and verifies the connection with a ping.
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	db := client.Database(cfg.Database)
	return &Store{
		client: client,
		coll:   db.Collection(cfg.Collection),
		meta:   db.Collection(metadataCollection),
	}, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// EnsureIndexes creates the query indexes the dashboard and migration
// rely on. Creation is idempotent.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	fields := []string{"source", "timestamp", "date", "created_at", "_imported_at"}
	models := make([]mongo.IndexModel, 0, len(fields))
	for _, f := range fields {
		models = append(models, mongo.IndexModel{Keys: bson.D{{Key: f, Value: 1}}})
	}
	if _, err := s.coll.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	return nil
}

// BatchResult reports one unordered insert. Skipped documents are ones
// the server rejected (duplicate keys, oversized documents); they are an
// expected outcome per batch, not a failure of the batch.
type BatchResult struct {
	Inserted int
	Skipped  int
}

// InsertBatch writes docs with an unordered insert so one bad document
// does not sink its batch mates.
func (s *Store) InsertBatch(ctx context.Context, docs []any) (BatchResult, error) {
	if len(docs) == 0 {
		return BatchResult{}, nil
	}

	res, err := s.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	inserted := 0
	if res != nil {
		inserted = len(res.InsertedIDs)
	}
	if err != nil {
		var bwe mongo.BulkWriteException
		if errors.As(err, &bwe) {
			skipped := len(docs) - inserted
			slog.Warn("batch partially inserted",
				slog.Int("inserted", inserted),
				slog.Int("skipped", skipped))
			return BatchResult{Inserted: inserted, Skipped: skipped}, nil
		}
		return BatchResult{Inserted: inserted, Skipped: len(docs) - inserted},
			fmt.Errorf("insert batch: %w", err)
	}
	return BatchResult{Inserted: inserted}, nil
}

// Count returns the number of documents in the conversation collection.
func (s *Store) Count(ctx context.Context) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// DoneSet loads the set of partition paths already migrated. A missing
// ledger document means a fresh database.
func (s *Store) DoneSet(ctx context.Context) (map[string]struct{}, error) {
	var doc struct {
		Files []string `bson:"files"`
	}
	err := s.meta.FindOne(ctx, bson.D{{Key: "_id", Value: ledgerID}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return map[string]struct{}{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load migration ledger: %w", err)
	}

	done := make(map[string]struct{}, len(doc.Files))
	for _, f := range doc.Files {
		done[f] = struct{}{}
	}
	return done, nil
}

// MarkDone records a partition path in the ledger. $addToSet keeps the
// ledger idempotent under re-runs.
func (s *Store) MarkDone(ctx context.Context, path string) error {
	_, err := s.meta.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: ledgerID}},
		bson.D{{Key: "$addToSet", Value: bson.D{{Key: "files", Value: path}}}},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mark partition done: %w", err)
	}
	return nil
}
