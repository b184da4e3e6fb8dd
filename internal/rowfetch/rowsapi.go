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

package rowfetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jonboulle/clockwork"

	"github.com/convolake/convolake/internal/hubfs"
	"github.com/convolake/convolake/internal/telemetry"
	"github.com/convolake/convolake/pipeline"
)

// DefaultAPIBase is the public datasets-server endpoint.
const DefaultAPIBase = "https://datasets-server.huggingface.co"

const (
	// DefaultPageSize is the rows API's maximum page length.
	DefaultPageSize = 100
	// DefaultMaxPages bounds worst-case latency of one fetch call.
	DefaultMaxPages = 10

	defaultPageDelay = 100 * time.Millisecond
	requestTimeout   = 25 * time.Second
	maxRetries       = 3
)

// RowsAPIConfig configures the paginated transport.
type RowsAPIConfig struct {
	APIBase   string
	Dataset   string
	PageSize  int
	MaxPages  int
	PageDelay time.Duration
}

// RowsAPIClient fetches rows through the datasets-server rows API in
// fixed-size pages. It cannot push filters down, so the source filter is
// applied after retrieval.
type RowsAPIClient struct {
	apiBase  string
	dataset  string
	pageSize int
	maxPages int
	delay    time.Duration
	httpc    *http.Client
	clock    clockwork.Clock
}

// NewRowsAPI creates the paginated transport.
func NewRowsAPI(cfg RowsAPIConfig) *RowsAPIClient {
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultAPIBase
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	if cfg.PageDelay <= 0 {
		cfg.PageDelay = defaultPageDelay
	}
	return &RowsAPIClient{
		apiBase:  cfg.APIBase,
		dataset:  cfg.Dataset,
		pageSize: cfg.PageSize,
		maxPages: cfg.MaxPages,
		delay:    cfg.PageDelay,
		httpc:    &http.Client{Timeout: requestTimeout},
		clock:    clockwork.NewRealClock(),
	}
}

// Fetch retrieves up to opts.MaxRows rows. The partitions argument is
// ignored: this transport pages the dataset API directly. A failure on the
// first page fails the whole call; a failure on a later page logs and
// returns what was accumulated so far.
func (c *RowsAPIClient) Fetch(ctx context.Context, _ []hubfs.Partition, opts Options) ([]pipeline.Row, error) {
	maxRows := opts.MaxRows
	if maxRows <= 0 {
		maxRows = c.pageSize * c.maxPages
	}
	batches := (maxRows + c.pageSize - 1) / c.pageSize
	if batches > c.maxPages {
		batches = c.maxPages
	}

	var all []pipeline.Row
	for i := 0; i < batches; i++ {
		offset := i * c.pageSize
		length := min(c.pageSize, maxRows-offset)
		if length <= 0 {
			break
		}

		page, err := c.fetchPage(ctx, offset, length)
		if err != nil {
			if i == 0 {
				telemetry.FetchErrors.WithLabelValues("rowsapi", "fatal").Inc()
				return nil, &FetchError{Transport: "rows-api", Err: err}
			}
			telemetry.FetchErrors.WithLabelValues("rowsapi", "partial").Inc()
			slog.Warn("rows API page failed, returning partial result",
				slog.Int("offset", offset), slog.Any("error", err))
			break
		}
		all = append(all, page...)
		telemetry.PagesFetched.Inc()

		// Fixed pause between pages to stay under the API's rate limits.
		if i < batches-1 {
			c.clock.Sleep(c.delay)
		}
	}

	telemetry.RowsFetched.WithLabelValues("rowsapi").Add(float64(len(all)))
	return filterSources(all, opts.Sources), nil
}

func (c *RowsAPIClient) fetchPage(ctx context.Context, offset, length int) ([]pipeline.Row, error) {
	u := fmt.Sprintf("%s/rows?dataset=%s&config=default&split=train&offset=%d&length=%d",
		c.apiBase, url.QueryEscape(c.dataset), offset, length)

	return backoff.Retry(ctx, func() ([]pipeline.Row, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpc.Do(req)
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			err := fmt.Errorf("rows API returned %d: %s", resp.StatusCode, string(body))
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return decodeRowsPage(resp.Body)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(maxRetries),
	)
}

// decodeRowsPage unwraps the API's envelope. Each element's record sits
// under a "row" key, or is the element itself in older responses.
func decodeRowsPage(r io.Reader) ([]pipeline.Row, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var payload struct {
		Rows []map[string]any `json:"rows"`
	}
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode rows payload: %w", err)
	}

	rows := make([]pipeline.Row, 0, len(payload.Rows))
	for _, elem := range payload.Rows {
		if inner, ok := elem["row"].(map[string]any); ok {
			rows = append(rows, pipeline.Row(inner))
			continue
		}
		rows = append(rows, pipeline.Row(elem))
	}
	return rows, nil
}
