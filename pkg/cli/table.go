package cli

import (
	"fmt"
	"io"
	"time"

	"screenlist/pkg/domain"
	"screenlist/pkg/pipeline"

	"github.com/jedib0t/go-pretty/v6/table"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}

func printSummary(w io.Writer, preset string, res *pipeline.Result) {
	t := newTable(w)
	t.SetTitle(fmt.Sprintf("%s run %s", preset, res.RunID))
	t.AppendHeader(table.Row{"Stage", "Count"})
	t.AppendRows([]table.Row{
		{"listed", len(res.Items)},
		{"duplicates", res.EnumerationStats.Duplicates},
		{"from cache", res.FromCache},
		{"resolved", res.ResolveTally.Succeeded},
		{"unresolved", len(res.Unresolved)},
		{"excluded", res.FilterStats.ExcludedTotal()},
		{"in report", len(res.Selected)},
	})
	t.AppendFooter(table.Row{"state", string(res.State)})
	t.Render()

	if res.ReportPath != "" {
		fmt.Fprintf(w, "report: %s\n", res.ReportPath)
	}
}

func printUnresolved(w io.Writer, res *pipeline.Result) {
	if len(res.Unresolved) == 0 {
		return
	}

	t := newTable(w)
	t.SetTitle("Unresolved")
	t.AppendHeader(table.Row{"Title", "Reason", "Detail"})
	for _, u := range res.Unresolved {
		t.AppendRow(table.Row{u.Item.Title, string(u.Reason), u.Detail})
	}
	t.Render()

	fmt.Fprintln(w, "Unknown titles:")
	fmt.Fprintln(w, res.UnresolvedBlock())
}

func printRecords(w io.Writer, records []domain.EnrichmentRecord) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Key", "Name", "Year", "Rating", "Resolved"})
	for _, r := range records {
		rating := "-"
		if r.Rating != nil {
			rating = fmt.Sprintf("%.1f", *r.Rating)
		}
		t.AppendRow(table.Row{string(r.Key), r.DisplayName, r.Year, rating, r.ResolvedAt.Local().Format(time.DateTime)})
	}
	t.AppendFooter(table.Row{"", "", "", "total", len(records)})
	t.Render()
}
