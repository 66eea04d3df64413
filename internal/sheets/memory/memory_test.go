package memory

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"spendmind/internal/core"
	"spendmind/internal/report"
)

func TestWriteReport(t *testing.T) {
	rep := report.Report{
		Title:       report.Title,
		GeneratedAt: time.Date(2025, 3, 15, 10, 4, 5, 0, time.UTC),
		FilterLabel: "All Time",
		Rows: []report.Row{
			{Date: core.NewDate(2025, 3, 1), Description: "Rent", Category: "Home", Amount: decimal.NewFromInt(800)},
		},
		Total: decimal.NewFromInt(800),
	}
	s := New()
	ref, err := s.WriteReport(context.Background(), rep)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(ref, "mem:Report 2025-03-15 100405!") {
		t.Fatalf("ref = %s", ref)
	}
	if _, err := s.WriteReport(context.Background(), rep); err != nil {
		t.Fatal(err)
	}
	tabs := s.Tabs()
	if len(tabs) != 2 || tabs[1] != "Report 2025-03-15 100405 (2)" {
		t.Fatalf("tabs = %v", tabs)
	}
	rows, ok := s.Tab(tabs[0])
	if !ok {
		t.Fatal("tab missing")
	}
	last := rows[len(rows)-1]
	if last[1] != "Total" || last[3] != "800.00" {
		t.Fatalf("total row = %v", last)
	}
}

func TestWriteReportCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().WriteReport(ctx, report.Report{}); err == nil {
		t.Fatal("expected context error")
	}
}
