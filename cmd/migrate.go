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

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/convolake/convolake/internal/docstore"
	"github.com/convolake/convolake/internal/duckdbx"
	"github.com/convolake/convolake/internal/hubfs"
	"github.com/convolake/convolake/internal/migration"
	"github.com/convolake/convolake/internal/rowfetch"
)

var (
	migrateMaxPartitions int
	migrateBatchSize     int
	migrateNoResume      bool
)

func init() {
	migrateCmd.Flags().IntVar(&migrateMaxPartitions, "max-partitions", 0, "Migrate at most this many partitions (0 = all)")
	migrateCmd.Flags().IntVar(&migrateBatchSize, "batch-size", 0, "Documents per insert batch (overrides configuration)")
	migrateCmd.Flags().BoolVar(&migrateNoResume, "no-resume", false, "Ignore the ledger and reprocess every partition")
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate the dataset into MongoDB",
	Long:  "Copy every partition file of the dataset into MongoDB, resuming where the previous run stopped.",
	RunE:  migrate,
}

func migrate(_ *cobra.Command, _ []string) error {
	ctx, cancel, err := setup("migrate")
	if err != nil {
		return err
	}
	defer cancel()

	batchSize := cfg.Migrate.BatchSize
	if migrateBatchSize > 0 {
		batchSize = migrateBatchSize
	}

	db, err := duckdbx.New(duckdbx.WithHTTPFS())
	if err != nil {
		return fmt.Errorf("open duckdb: %w", err)
	}
	defer func() { _ = db.Close() }()

	store, err := docstore.Connect(ctx, docstore.Config{
		URI:        cfg.Mongo.URI,
		Database:   cfg.Mongo.Database,
		Collection: cfg.Mongo.Collection,
	})
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		_ = store.Close(closeCtx)
	}()

	pipe := migration.New(
		hubfs.NewLocator(cfg.Dataset.HubBase, cfg.Dataset.ID),
		rowfetch.NewColumnar(db),
		store,
		migration.Config{
			BatchSize:     batchSize,
			MaxPartitions: migrateMaxPartitions,
			Resume:        !migrateNoResume,
		})

	sum, err := pipe.Run(ctx)
	if err != nil {
		return err
	}
	sum.Render(os.Stdout)

	if sum.Failures != nil {
		slog.Warn("migration finished with failures", slog.Any("error", sum.Failures))
	}
	return nil
}
