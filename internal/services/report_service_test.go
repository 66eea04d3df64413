package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"spendmind/internal/amqp"
	"spendmind/internal/core"
	"spendmind/internal/log"
	"spendmind/internal/report"
	sheetmem "spendmind/internal/sheets/memory"
)

type fakePublisher struct {
	jobs []*amqp.ReportEmailJob
	err  error
}

func (p *fakePublisher) PublishReportEmail(_ context.Context, job *amqp.ReportEmailJob) error {
	if p.err != nil {
		return p.err
	}
	p.jobs = append(p.jobs, job)
	return nil
}

type fakeMailer struct{ sent []report.Dispatch }

func (m *fakeMailer) Send(_ context.Context, d report.Dispatch) error {
	m.sent = append(m.sent, d)
	return nil
}

func snapshot() core.Snapshot {
	d := func(s string) decimal.Decimal { return decimal.RequireFromString(s) }
	return core.Snapshot{
		Categories: []core.Category{{ID: "food", Name: "Food"}, {ID: "bus", Name: "Transport"}},
		Expenses: []core.Expense{
			{ID: "2", CategoryID: "bus", CategoryName: "Transport", Amount: d("2.5"), Date: core.NewDate(2025, 3, 10), Description: "Bus"},
			{ID: "1", CategoryID: "food", CategoryName: "Food", Amount: d("12"), Date: core.NewDate(2025, 3, 2), Description: "Lunch"},
			{ID: "0", CategoryID: "food", CategoryName: "Food", Amount: d("40"), Date: core.NewDate(2024, 12, 24), Description: "Dinner"},
		},
		Settings: core.DefaultSettings("owner-1"),
	}
}

func newService(pub JobPublisher, direct report.Mailer) (*ReportService, *sheetmem.Store) {
	sheet := sheetmem.New()
	s := NewReportService(pub, direct, sheet, log.Nop())
	s.now = func() time.Time { return time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC) }
	return s, sheet
}

func TestExport(t *testing.T) {
	s, _ := newService(nil, nil)
	out, err := s.Export(snapshot(), report.Filter{Period: report.PeriodMonth}, report.FormatCSV)
	if err != nil {
		t.Fatal(err)
	}
	if out.Filename != "Expense_Report_2025-03-15.csv" {
		t.Fatalf("filename = %s", out.Filename)
	}
	if len(out.Report.Rows) != 2 || !out.Report.Total.Equal(decimal.RequireFromString("14.5")) {
		t.Fatalf("report = %+v", out.Report)
	}
	if !strings.Contains(string(out.Body), "Lunch") || strings.Contains(string(out.Body), "Dinner") {
		t.Fatalf("body = %s", out.Body)
	}
}

func TestExportErrors(t *testing.T) {
	s, _ := newService(nil, nil)
	if _, err := s.Export(snapshot(), report.Filter{}, "pdf"); !core.IsKind(err, core.KindValidation) {
		t.Fatalf("unknown format: %v", err)
	}
	if _, err := s.Export(snapshot(), report.Filter{CategoryID: "nope"}, report.FormatJSON); !core.IsKind(err, core.KindNotFound) {
		t.Fatalf("unknown category: %v", err)
	}
}

func TestEmailQueuesJob(t *testing.T) {
	pub := &fakePublisher{}
	direct := &fakeMailer{}
	s, _ := newService(pub, direct)

	id, err := s.Email(context.Background(), "owner-1", snapshot(), EmailRequest{
		Filter:    report.Filter{Period: report.PeriodAll},
		Format:    report.FormatHTML,
		Recipient: "ana@example.com",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(pub.jobs) != 1 || pub.jobs[0].ID != id {
		t.Fatalf("jobs = %+v", pub.jobs)
	}
	job := pub.jobs[0]
	if job.Owner != "owner-1" || job.Subject != "SpendMind Report: All Time" || !strings.HasSuffix(job.Filename, ".html") {
		t.Fatalf("job = %+v", job)
	}
	if len(direct.sent) != 0 {
		t.Fatal("queued mail must not be sent inline")
	}
}

func TestEmailSendsInlineWithoutQueue(t *testing.T) {
	direct := &fakeMailer{}
	s, _ := newService(nil, direct)
	if _, err := s.Email(context.Background(), "owner-1", snapshot(), EmailRequest{Recipient: "ana@example.com", Subject: "Mine"}); err != nil {
		t.Fatal(err)
	}
	if len(direct.sent) != 1 || direct.sent[0].Subject != "Mine" {
		t.Fatalf("sent = %+v", direct.sent)
	}
}

func TestEmailErrors(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		s, _ := newService(nil, nil)
		if _, err := s.Email(context.Background(), "o", snapshot(), EmailRequest{Recipient: "a@example.com"}); !errors.Is(err, ErrMailDisabled) {
			t.Fatalf("err = %v", err)
		}
	})
	t.Run("bad recipient", func(t *testing.T) {
		s, _ := newService(&fakePublisher{}, nil)
		_, err := s.Email(context.Background(), "o", snapshot(), EmailRequest{Recipient: "nobody"})
		if !core.IsKind(err, core.KindValidation) || !errors.Is(err, report.ErrInvalidRecipient) {
			t.Fatalf("err = %v", err)
		}
	})
	t.Run("queue failure", func(t *testing.T) {
		s, _ := newService(&fakePublisher{err: amqp.ErrCircuitOpen}, nil)
		_, err := s.Email(context.Background(), "o", snapshot(), EmailRequest{Recipient: "a@example.com"})
		if !core.IsKind(err, core.KindRemote) || !errors.Is(err, amqp.ErrCircuitOpen) {
			t.Fatalf("err = %v", err)
		}
	})
}

func TestWriteSheet(t *testing.T) {
	s, sheet := newService(nil, nil)
	ref, err := s.WriteSheet(context.Background(), snapshot(), report.Filter{Period: report.PeriodYear})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(ref, "mem:Report 2025-03-15 100000") {
		t.Fatalf("ref = %s", ref)
	}
	if len(sheet.Tabs()) != 1 {
		t.Fatalf("tabs = %v", sheet.Tabs())
	}

	disabled := NewReportService(nil, nil, nil, log.Nop())
	if _, err := disabled.WriteSheet(context.Background(), snapshot(), report.Filter{}); !errors.Is(err, ErrSheetsDisabled) {
		t.Fatalf("err = %v", err)
	}
}
