package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"spendmind/internal/core"
)

var now = time.Date(2025, time.March, 15, 8, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func snapshot() core.Snapshot {
	return core.Snapshot{
		Categories: []core.Category{{ID: "food", Name: "Food"}, {ID: "rent", Name: "Rent"}},
		Expenses: []core.Expense{
			{ID: "1", CategoryID: "food", CategoryName: "Old name", Amount: dec("12.5"), Date: core.NewDate(2025, 3, 10), Description: "Lunch"},
			{ID: "2", CategoryID: "rent", Amount: dec("800"), Date: core.NewDate(2025, 3, 1), Description: " "},
			{ID: "3", CategoryID: "food", Amount: dec("40"), Date: core.NewDate(2025, 1, 20), Description: "Market"},
			{ID: "4", CategoryID: "food", Amount: dec("5"), Date: core.NewDate(2024, 12, 31), Description: "Snack"},
		},
		Settings: core.DefaultSettings("alice"),
	}
}

func TestBuildPeriods(t *testing.T) {
	cases := []struct {
		name   string
		filter Filter
		ids    []string
		total  string
		label  string
	}{
		{"all", Filter{}, []string{"1", "2", "3", "4"}, "857.5", "All Time"},
		{"month", Filter{Period: PeriodMonth}, []string{"1", "2"}, "812.5", "Current Month"},
		{"year", Filter{Period: "YEAR"}, []string{"1", "2", "3"}, "852.5", "Current Year"},
		{"custom", Filter{Period: PeriodCustom, Start: core.NewDate(2025, 1, 1), End: core.NewDate(2025, 3, 1)}, []string{"2", "3"}, "840", "2025-01-01 to 2025-03-01"},
		{"custom open end", Filter{Period: PeriodCustom, Start: core.NewDate(2025, 3, 5)}, []string{"1"}, "12.5", "2025-03-05 to Present"},
		{"category", Filter{CategoryID: "food"}, []string{"1", "3", "4"}, "57.5", "All Time"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rep, err := Build(snapshot(), tc.filter, now)
			require.NoError(t, err)
			var descs []string
			for _, r := range rep.Rows {
				descs = append(descs, r.Description)
			}
			require.Len(t, rep.Rows, len(tc.ids), "rows: %v", descs)
			assert.True(t, rep.Total.Equal(dec(tc.total)), "total = %s", rep.Total)
			assert.Equal(t, tc.label, rep.FilterLabel)
		})
	}
}

func TestBuildRows(t *testing.T) {
	rep, err := Build(snapshot(), Filter{Period: PeriodMonth}, now)
	require.NoError(t, err)
	assert.Equal(t, Title, rep.Title)
	assert.Equal(t, "All Categories", rep.CategoryLabel)
	assert.Equal(t, "Food", rep.Rows[0].Category, "names resolve from the category id")
	assert.Equal(t, "N/A", rep.Rows[1].Description)
	assert.Equal(t, "$800.00", rep.Rows[1].Display)
	assert.Equal(t, "$812.50", rep.TotalDisplay)
	require.Len(t, rep.ByCategory, 2)
	assert.Equal(t, "Rent", rep.ByCategory[0].Name)
}

func TestBuildErrors(t *testing.T) {
	_, err := Build(snapshot(), Filter{Period: "week"}, now)
	assert.True(t, core.IsKind(err, core.KindValidation))
	assert.ErrorIs(t, err, ErrUnknownPeriod)

	_, err = Build(snapshot(), Filter{Period: PeriodCustom, Start: core.NewDate(2025, 3, 2), End: core.NewDate(2025, 3, 1)}, now)
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = Build(snapshot(), Filter{CategoryID: "nope"}, now)
	assert.True(t, core.IsKind(err, core.KindNotFound))
}

func export(t *testing.T, f Format, rep Report) string {
	t.Helper()
	exp, err := ExporterFor(f)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, exp.Export(&buf, rep))
	return buf.String()
}

func TestExporters(t *testing.T) {
	rep, err := Build(snapshot(), Filter{Period: PeriodMonth}, now)
	require.NoError(t, err)

	t.Run("csv", func(t *testing.T) {
		records, err := csv.NewReader(strings.NewReader(export(t, FormatCSV, rep))).ReadAll()
		require.NoError(t, err)
		require.Len(t, records, 4)
		assert.Equal(t, []string{"Date", "Description", "Category", "Amount"}, records[0])
		assert.Equal(t, []string{"2025-03-10", "Lunch", "Food", "12.50"}, records[1])
		assert.Equal(t, []string{"", "Total", "", "812.50"}, records[3])
	})

	t.Run("json", func(t *testing.T) {
		var got struct {
			Title string `json:"title"`
			Rows  []struct {
				Date   string `json:"date"`
				Amount string `json:"amount"`
			} `json:"rows"`
		}
		require.NoError(t, json.Unmarshal([]byte(export(t, FormatJSON, rep)), &got))
		assert.Equal(t, Title, got.Title)
		require.Len(t, got.Rows, 2)
		assert.Equal(t, "2025-03-10", got.Rows[0].Date)
		assert.Equal(t, "12.5", got.Rows[0].Amount)
	})

	t.Run("yaml", func(t *testing.T) {
		var got yamlDoc
		require.NoError(t, yaml.Unmarshal([]byte(export(t, FormatYAML, rep)), &got))
		assert.Equal(t, "812.50", got.Total)
		assert.Equal(t, "800.00", got.ByCategory["Rent"])
		require.Len(t, got.Rows, 2)
		assert.Equal(t, "N/A", got.Rows[1].Description)
	})

	t.Run("html", func(t *testing.T) {
		out := export(t, FormatHTML, rep)
		assert.Contains(t, out, "<h1>SpendMind Expense Report</h1>")
		assert.Contains(t, out, "Total Spending in Period: $812.50")
		assert.Contains(t, out, "<td>2025-03-10</td>")
	})

	t.Run("html escapes", func(t *testing.T) {
		snap := snapshot()
		snap.Expenses[0].Description = "<script>x</script>"
		rep, err := Build(snap, Filter{}, now)
		require.NoError(t, err)
		out := export(t, FormatHTML, rep)
		assert.NotContains(t, out, "<script>")
	})

	_, err = ExporterFor("pdf")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestEmptyReportHTML(t *testing.T) {
	rep, err := Build(core.Snapshot{Settings: core.DefaultSettings("a")}, Filter{}, now)
	require.NoError(t, err)
	assert.Contains(t, export(t, FormatHTML, rep), "No expenses found")
}

func TestDispatch(t *testing.T) {
	rep, err := Build(snapshot(), Filter{Period: PeriodMonth}, now)
	require.NoError(t, err)
	exp, _ := ExporterFor(FormatCSV)

	d, err := NewDispatch(rep, exp, " Alice <alice@example.com> ", "")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", d.Recipient)
	assert.Equal(t, "SpendMind Report: Current Month", d.Subject)
	assert.Equal(t, "Expense_Report_2025-03-15.csv", d.Filename)
	assert.Equal(t, DefaultBody, d.Body)
	assert.NotEmpty(t, d.Payload)

	_, err = NewDispatch(rep, exp, "not an address", "")
	assert.ErrorIs(t, err, ErrInvalidRecipient)

	bare := Dispatch{Recipient: "bob@example.com", Subject: "  ", Payload: []byte("x")}
	require.NoError(t, bare.Validate())
	assert.Equal(t, DefaultSubject, bare.Subject)

	empty := Dispatch{Recipient: "bob@example.com"}
	assert.ErrorIs(t, empty.Validate(), ErrEmptyPayload)
}
