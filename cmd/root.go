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
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/convolake/convolake/config"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "convolake",
	Short: "Explore and migrate a shared-conversation dataset",
	Long:  `Serve a dashboard over a public conversation dataset's parquet shards and migrate them into MongoDB.`,
}

// cfg is populated by setup before any subcommand runs.
var cfg *config.Config

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// setup loads the environment, logging, and configuration common to every
// subcommand, and returns a context cancelled on SIGINT/SIGTERM.
func setup(servicename string) (context.Context, context.CancelFunc, error) {
	_ = godotenv.Load()
	setupLogging(servicename)

	c, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}
	cfg = c

	ctx, cancel := handleSignals(context.Background())
	return ctx, cancel, nil
}
