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
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
)

// setupLogging installs the default slog logger. Output is colorized when
// stderr is a terminal, plain otherwise.
func setupLogging(servicename string) {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" || os.Getenv("CONVOLAKE_DEBUG") != "" {
		level = slog.LevelDebug
	}

	noColor := true
	if fi, err := os.Stderr.Stat(); err == nil {
		noColor = fi.Mode()&os.ModeCharDevice == 0
	}

	handler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:   level,
		NoColor: noColor,
	})
	slog.SetDefault(slog.New(handler).With(slog.String("service", servicename)))
}
