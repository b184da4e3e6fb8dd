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
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/convolake/convolake/internal/hubfs"
)

func init() {
	rootCmd.AddCommand(partitionsCmd)
}

var partitionsCmd = &cobra.Command{
	Use:   "partitions",
	Short: "List the dataset's partition files",
	RunE:  listPartitions,
}

func listPartitions(_ *cobra.Command, _ []string) error {
	ctx, cancel, err := setup("partitions")
	if err != nil {
		return err
	}
	defer cancel()

	parts, err := hubfs.NewLocator(cfg.Dataset.HubBase, cfg.Dataset.ID).Locate(ctx)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Path", "URL"})
	for _, p := range parts {
		table.Append([]string{p.Path, p.URL})
	}
	table.Render()
	return nil
}
