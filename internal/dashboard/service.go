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

// Package dashboard serves the analysis UI and its JSON API.
package dashboard

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/convolake/convolake/internal/aggregate"
	"github.com/convolake/convolake/internal/hubfs"
	"github.com/convolake/convolake/internal/rowfetch"
	"github.com/convolake/convolake/pipeline"
)

//go:embed index.html
var indexHTML []byte

// maxDashboardPartitions bounds how many partition files one analyze
// call will touch. The dashboard is a sampling view, not a full scan.
const maxDashboardPartitions = 10

// Locator discovers partitions for transports that query files directly.
type Locator interface {
	Locate(ctx context.Context) ([]hubfs.Partition, error)
}

// Service is the HTTP front end.
type Service struct {
	addr    string
	locator Locator
	fetcher rowfetch.Fetcher
	maxRows int
}

// New creates the service. locator may be nil for transports that do not
// need partition URLs.
func New(addr string, locator Locator, fetcher rowfetch.Fetcher, defaultMaxRows int) *Service {
	return &Service{
		addr:    addr,
		locator: locator,
		fetcher: fetcher,
		maxRows: defaultMaxRows,
	}
}

// Run serves until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/v1/analyze", s.handleAnalyze)

	srv := &http.Server{Addr: s.addr, Handler: mux}
	go func() {
		slog.Info("dashboard listening", slog.String("addr", s.addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("dashboard server failed", slog.Any("error", err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Service) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}

type dateCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type analyzeResponse struct {
	Status       string         `json:"status"`
	SourceCounts map[string]int `json:"source_counts"`
	Dates        []dateCount    `json:"dates"`
	Sources      []string       `json:"sources"`
	Stats        string         `json:"stats"`
}

// handleAnalyze fetches a sample of rows and aggregates them. Fetch and
// parameter problems are reported inside the payload with empty counts,
// so the UI renders the message instead of breaking on a bad status.
func (s *Service) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	maxRows := s.maxRows
	if v := q.Get("max_rows"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.respondStatus(w, fmt.Sprintf("invalid max_rows %q", v))
			return
		}
		maxRows = n
	}

	minDate, maxDate := q.Get("min_date"), q.Get("max_date")
	for _, d := range []string{minDate, maxDate} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(pipeline.DateKeyFormat, d); err != nil {
			s.respondStatus(w, fmt.Sprintf("invalid date %q, want YYYY-MM-DD", d))
			return
		}
	}

	var sources []string
	if v := q.Get("sources"); v != "" {
		for _, src := range strings.Split(v, ",") {
			if src = strings.TrimSpace(src); src != "" {
				sources = append(sources, src)
			}
		}
	}

	var partitions []hubfs.Partition
	if s.locator != nil {
		var err error
		partitions, err = s.locator.Locate(ctx)
		if err != nil {
			slog.Warn("partition discovery failed", slog.Any("error", err))
			s.respondStatus(w, fmt.Sprintf("could not locate dataset partitions: %v", err))
			return
		}
		if len(partitions) > maxDashboardPartitions {
			partitions = partitions[:maxDashboardPartitions]
		}
	}

	rows, err := s.fetcher.Fetch(ctx, partitions, rowfetch.Options{MaxRows: maxRows, Sources: sources})
	if err != nil {
		slog.Warn("row fetch failed", slog.Any("error", err))
		s.respondStatus(w, fmt.Sprintf("could not fetch rows: %v", err))
		return
	}

	res := aggregate.Aggregate(rows, sources, minDate, maxDate)
	dates := make([]dateCount, 0, len(res.DateCounts))
	for _, d := range res.SortedDates() {
		dates = append(dates, dateCount{Date: d, Count: res.DateCounts[d]})
	}

	s.respondJSON(w, analyzeResponse{
		Status:       "ok",
		SourceCounts: res.SourceCounts,
		Dates:        dates,
		Sources:      res.Sources,
		Stats: fmt.Sprintf("Fetched %d rows, counted %d across %d sources. Total conversations: %d. Time points: %d.",
			res.RowsIn, res.RowsCounted, len(res.Sources), res.Total(), len(res.DateCounts)),
	})
}

// respondStatus writes a degraded payload. Always 200: the dashboard
// treats these as content, not transport failures.
func (s *Service) respondStatus(w http.ResponseWriter, status string) {
	s.respondJSON(w, analyzeResponse{
		Status:       status,
		SourceCounts: map[string]int{},
		Dates:        []dateCount{},
		Sources:      []string{},
	})
}

func (s *Service) respondJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", slog.Any("error", err))
	}
}
