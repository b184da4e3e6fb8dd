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

// Package telemetry holds the process-wide Prometheus instruments.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PagesFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "convolake_pages_fetched_total",
			Help: "Total pages fetched from the rows API",
		},
	)

	RowsFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "convolake_rows_fetched_total",
			Help: "Total rows fetched by transport",
		},
		[]string{"transport"},
	)

	FetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "convolake_fetch_errors_total",
			Help: "Total fetch failures by transport and severity",
		},
		[]string{"transport", "kind"}, // kind=fatal/partial
	)

	DocumentsInserted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "convolake_documents_inserted_total",
			Help: "Total documents inserted into the store",
		},
	)

	DocumentsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "convolake_documents_skipped_total",
			Help: "Total documents the store rejected (duplicates or write errors)",
		},
	)

	PartitionsMigrated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "convolake_partitions_migrated_total",
			Help: "Total partitions attempted by the migration pipeline",
		},
		[]string{"status"}, // status=done/fetch_failed
	)

	BatchWriteSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "convolake_batch_write_seconds",
			Help:    "Duration of one batched store write",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)
)
