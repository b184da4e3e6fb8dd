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

package migration

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
)

// Render prints the run summary as a table.
func (s *Summary) Render(w io.Writer) {
	fmt.Fprintf(w, "Migration run %s\n", s.RunID)

	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Metric", "Value"})
	table.Append([]string{"Partitions located", strconv.Itoa(s.Located)})
	table.Append([]string{"Already migrated", strconv.Itoa(s.AlreadyDone)})
	table.Append([]string{"Migrated this run", strconv.Itoa(s.Attempted)})
	table.Append([]string{"Documents inserted", strconv.Itoa(s.Inserted)})
	table.Append([]string{"Documents skipped", strconv.Itoa(s.Skipped)})
	table.Append([]string{"Documents in store", strconv.FormatInt(s.StoreCount, 10)})
	table.Render()

	if s.Failures != nil {
		fmt.Fprintf(w, "Some partitions failed and will be retried next run:\n%v\n", s.Failures)
	}
}
