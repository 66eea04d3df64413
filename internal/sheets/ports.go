// Package sheets publishes expense reports to spreadsheets.
package sheets

import (
	"context"
	"fmt"

	"spendmind/internal/report"
)

// Ports for outbound adapters.
type (
	// ReportWriter stores a report as a new sheet and returns a reference to
	// the written range.
	ReportWriter interface {
		WriteReport(ctx context.Context, rep report.Report) (ref string, err error)
	}
)

// SheetTitle names the tab a report is written to.
func SheetTitle(rep report.Report) string {
	return fmt.Sprintf("Report %s", rep.GeneratedAt.Format("2006-01-02 150405"))
}

// Values lays a report out as rows: a header block, the column titles, one
// line per expense and the total.
func Values(rep report.Report) [][]any {
	rows := [][]any{
		{rep.Title},
		{"Filter", rep.FilterLabel},
		{"Category", rep.CategoryLabel},
		{"Currency", rep.Currency.Code},
		{},
		{"Date", "Description", "Category", "Amount"},
	}
	for _, r := range rep.Rows {
		rows = append(rows, []any{r.Date.String(), r.Description, r.Category, r.Amount.StringFixed(2)})
	}
	rows = append(rows, []any{"", "Total", "", rep.Total.StringFixed(2)})
	return rows
}
