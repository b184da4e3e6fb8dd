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
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/convolake/convolake/internal/dashboard"
	"github.com/convolake/convolake/internal/duckdbx"
	"github.com/convolake/convolake/internal/hubfs"
	"github.com/convolake/convolake/internal/rowfetch"
)

var serveAddr string

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides configuration)")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dataset dashboard",
	Long:  "Serve the analysis dashboard plus its JSON API and Prometheus metrics.",
	RunE:  serve,
}

func serve(_ *cobra.Command, _ []string) error {
	ctx, cancel, err := setup("dashboard")
	if err != nil {
		return err
	}
	defer cancel()

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	var locator dashboard.Locator
	var fetcher rowfetch.Fetcher

	switch cfg.Fetch.Transport {
	case "rowsapi", "":
		fetcher = rowfetch.NewRowsAPI(rowfetch.RowsAPIConfig{
			APIBase:   cfg.Dataset.APIBase,
			Dataset:   cfg.Dataset.ID,
			PageSize:  cfg.Fetch.PageSize,
			MaxPages:  cfg.Fetch.MaxPages,
			PageDelay: cfg.Fetch.PageDelay,
		})
	case "columnar":
		db, err := duckdbx.New(duckdbx.WithHTTPFS())
		if err != nil {
			return fmt.Errorf("open duckdb: %w", err)
		}
		defer func() { _ = db.Close() }()
		locator = hubfs.NewLocator(cfg.Dataset.HubBase, cfg.Dataset.ID)
		fetcher = rowfetch.NewColumnar(db)
	default:
		return fmt.Errorf("unknown fetch transport %q", cfg.Fetch.Transport)
	}

	slog.Info("starting dashboard",
		slog.String("dataset", cfg.Dataset.ID),
		slog.String("transport", cfg.Fetch.Transport),
		slog.String("addr", addr))

	start := time.Now()
	err = dashboard.New(addr, locator, fetcher, cfg.Fetch.MaxRows).Run(ctx)
	slog.Info("dashboard stopped", slog.Duration("uptime", time.Since(start)))
	return err
}
