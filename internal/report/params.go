// Package report holds the auxiliary diagnostics around the calibration
// core: the parameter-count table, k-mer frequency correlation and
// windowed regional correlation summaries.
package report

import (
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/seqlab/mutcal/internal/calib"
)

// ParamTable renders the learned parameter groups of a fitted calibration
// map as a printable table with a total row.
func ParamTable(m *calib.Map) string {
	w := table.NewWriter()
	w.AppendHeader(table.Row{"Group", "Parameters"})
	for _, g := range m.ParamGroups() {
		w.AppendRow(table.Row{g.Name, g.Count})
	}
	w.AppendFooter(table.Row{"Total", m.ParamCount()})
	return w.Render()
}
