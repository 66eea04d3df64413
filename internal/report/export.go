package report

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Format is an export encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatHTML Format = "html"
)

var ErrUnknownFormat = errors.New("unknown report format")

// Exporter renders a report.
type Exporter interface {
	Format() Format
	ContentType() string
	Export(w io.Writer, r Report) error
}

// ExporterFor returns the exporter for f.
func ExporterFor(f Format) (Exporter, error) {
	switch Format(strings.ToLower(string(f))) {
	case FormatCSV, "":
		return csvExporter{}, nil
	case FormatJSON:
		return jsonExporter{}, nil
	case FormatYAML, "yml":
		return yamlExporter{}, nil
	case FormatHTML:
		return htmlExporter{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

// Filename is the attachment name for a report exported on day now.
func Filename(f Format, now time.Time) string {
	return fmt.Sprintf("Expense_Report_%s.%s", now.Format("2006-01-02"), f)
}

type csvExporter struct{}

func (csvExporter) Format() Format      { return FormatCSV }
func (csvExporter) ContentType() string { return "text/csv; charset=utf-8" }

func (csvExporter) Export(w io.Writer, r Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Date", "Description", "Category", "Amount"}); err != nil {
		return err
	}
	for _, row := range r.Rows {
		if err := cw.Write([]string{row.Date.String(), row.Description, row.Category, row.Amount.StringFixed(2)}); err != nil {
			return err
		}
	}
	if err := cw.Write([]string{"", "Total", "", r.Total.StringFixed(2)}); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

type jsonExporter struct{}

func (jsonExporter) Format() Format      { return FormatJSON }
func (jsonExporter) ContentType() string { return "application/json" }

func (jsonExporter) Export(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// yamlDoc flattens amounts to strings; decimals have no YAML encoding.
type yamlDoc struct {
	Title       string            `yaml:"title"`
	GeneratedAt string            `yaml:"generated_at"`
	Filter      string            `yaml:"filter"`
	Category    string            `yaml:"category"`
	Currency    string            `yaml:"currency"`
	Total       string            `yaml:"total"`
	ByCategory  map[string]string `yaml:"by_category,omitempty"`
	Rows        []yamlRow         `yaml:"rows"`
}

type yamlRow struct {
	Date        string `yaml:"date"`
	Description string `yaml:"description"`
	Category    string `yaml:"category"`
	Amount      string `yaml:"amount"`
}

type yamlExporter struct{}

func (yamlExporter) Format() Format      { return FormatYAML }
func (yamlExporter) ContentType() string { return "application/yaml" }

func (yamlExporter) Export(w io.Writer, r Report) error {
	doc := yamlDoc{
		Title:       r.Title,
		GeneratedAt: r.GeneratedAt.Format(time.RFC3339),
		Filter:      r.FilterLabel,
		Category:    r.CategoryLabel,
		Currency:    r.Currency.Code,
		Total:       r.Total.StringFixed(2),
		Rows:        make([]yamlRow, 0, len(r.Rows)),
	}
	if len(r.ByCategory) > 0 {
		doc.ByCategory = make(map[string]string, len(r.ByCategory))
		for _, c := range r.ByCategory {
			doc.ByCategory[c.Name] = c.Amount.StringFixed(2)
		}
	}
	for _, row := range r.Rows {
		doc.Rows = append(doc.Rows, yamlRow{
			Date:        row.Date.String(),
			Description: row.Description,
			Category:    row.Category,
			Amount:      row.Amount.StringFixed(2),
		})
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

var htmlTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
<p>Generated on: {{.GeneratedAt.Format "2006-01-02"}}</p>
<p>Filter: {{.FilterLabel}}</p>
<p>Category: {{.CategoryLabel}}</p>
<p><strong>Total Spending in Period: {{.TotalDisplay}}</strong></p>
<table>
<thead><tr><th>Date</th><th>Description</th><th>Category</th><th>Amount</th></tr></thead>
<tbody>
{{- range .Rows}}
<tr><td>{{.Date}}</td><td>{{.Description}}</td><td>{{.Category}}</td><td>{{.Display}}</td></tr>
{{- else}}
<tr><td colspan="4">No expenses found for the selected filters.</td></tr>
{{- end}}
</tbody>
</table>
</body>
</html>
`))

type htmlExporter struct{}

func (htmlExporter) Format() Format      { return FormatHTML }
func (htmlExporter) ContentType() string { return "text/html; charset=utf-8" }

func (htmlExporter) Export(w io.Writer, r Report) error {
	return htmlTemplate.Execute(w, r)
}
