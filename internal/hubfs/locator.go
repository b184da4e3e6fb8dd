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

// Package hubfs discovers the parquet partitions of a Hugging Face dataset
// and resolves each one to a directly fetchable URL.
package hubfs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jellydator/ttlcache/v3"
)

// DefaultHubBase is the public Hugging Face Hub endpoint.
const DefaultHubBase = "https://huggingface.co"

const (
	requestTimeout = 25 * time.Second
	treeCacheTTL   = 5 * time.Minute
)

// ErrNoPartitions means no discovery pattern matched any resolvable
// partition. Fatal to the calling operation.
var ErrNoPartitions = errors.New("no parquet partitions found")

// Discovery patterns, tried in priority order. The first pattern that
// matches at least one file wins; results are never merged across patterns.
var defaultPatterns = []string{
	"*/train/*.parquet",
	"**/*.parquet",
	"**/train/*.parquet",
}

// Partition is one remote parquet shard of the dataset.
type Partition struct {
	Path string // repo-relative path, e.g. "data/train-00000.parquet"
	URL  string // directly fetchable resolve URL
}

// Locator discovers dataset partitions via the Hub tree API. Tree listings
// are cached briefly since dashboard recomputes and migration setup hit the
// same endpoint back to back.
type Locator struct {
	hubBase  string
	dataset  string
	patterns []string
	httpc    *http.Client
	cache    *ttlcache.Cache[string, []string]
}

// NewLocator creates a locator for one dataset, e.g. "shachardon/ShareLM".
func NewLocator(hubBase, dataset string) *Locator {
	if hubBase == "" {
		hubBase = DefaultHubBase
	}
	cache := ttlcache.New(
		ttlcache.WithTTL[string, []string](treeCacheTTL),
		ttlcache.WithDisableTouchOnHit[string, []string](),
	)
	return &Locator{
		hubBase:  strings.TrimSuffix(hubBase, "/"),
		dataset:  dataset,
		patterns: defaultPatterns,
		httpc:    &http.Client{Timeout: requestTimeout},
		cache:    cache,
	}
}

// Locate returns the dataset's partitions in discovery order, deduplicated.
// A path that cannot be resolved to a fetchable URL is skipped with a
// warning; the call fails only when nothing resolves at all.
func (l *Locator) Locate(ctx context.Context) ([]Partition, error) {
	files, err := l.listFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list dataset tree: %w", err)
	}

	var matched []string
	for _, pattern := range l.patterns {
		matched, err = matchGlob(files, pattern)
		if err != nil {
			slog.Warn("bad discovery pattern", slog.String("pattern", pattern), slog.Any("error", err))
			continue
		}
		if len(matched) > 0 {
			break
		}
	}
	if len(matched) == 0 {
		return nil, fmt.Errorf("%w: dataset %s", ErrNoPartitions, l.dataset)
	}

	seen := make(map[string]struct{}, len(matched))
	parts := make([]Partition, 0, len(matched))
	for _, path := range matched {
		if _, dup := seen[path]; dup {
			continue
		}
		seen[path] = struct{}{}
		u, err := l.resolveURL(path)
		if err != nil {
			slog.Warn("skipping unresolvable partition", slog.String("path", path), slog.Any("error", err))
			continue
		}
		parts = append(parts, Partition{Path: path, URL: u})
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: %d matched paths, none resolvable", ErrNoPartitions, len(matched))
	}
	return parts, nil
}

type treeEntry struct {
	Type string `json:"type"`
	Path string `json:"path"`
}

// listFiles fetches the recursive file listing of the dataset repo.
func (l *Locator) listFiles(ctx context.Context) ([]string, error) {
	if item := l.cache.Get(l.dataset); item != nil {
		return item.Value(), nil
	}

	u := fmt.Sprintf("%s/api/datasets/%s/tree/main?recursive=true", l.hubBase, l.dataset)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("hub tree API returned %d: %s", resp.StatusCode, string(body))
	}

	var entries []treeEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode tree listing: %w", err)
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type == "file" {
			files = append(files, e.Path)
		}
	}
	l.cache.Set(l.dataset, files, ttlcache.DefaultTTL)
	return files, nil
}

// resolveURL converts a repo-relative path into a resolve URL.
func (l *Locator) resolveURL(path string) (string, error) {
	if path == "" || strings.HasPrefix(path, "/") || strings.Contains(path, "..") {
		return "", fmt.Errorf("unsafe partition path %q", path)
	}
	if !utf8.ValidString(path) {
		return "", fmt.Errorf("partition path is not valid UTF-8")
	}
	segments := strings.Split(path, "/")
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("%s/datasets/%s/resolve/main/%s", l.hubBase, l.dataset, strings.Join(escaped, "/")), nil
}
