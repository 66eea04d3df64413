// Package services orchestrates report export and delivery across the
// exporters, the spreadsheet writer and the e-mail queue.
package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"spendmind/internal/amqp"
	"spendmind/internal/core"
	"spendmind/internal/log"
	"spendmind/internal/report"
	"spendmind/internal/sheets"
)

var (
	ErrMailDisabled   = errors.New("report e-mail is not configured")
	ErrSheetsDisabled = errors.New("spreadsheet export is not configured")
)

// JobPublisher queues report e-mail jobs.
type JobPublisher interface {
	PublishReportEmail(ctx context.Context, job *amqp.ReportEmailJob) error
}

// Export is a rendered report ready to be served or attached.
type Export struct {
	Report      report.Report
	Filename    string
	ContentType string
	Body        []byte
}

// EmailRequest asks for a report to be rendered and mailed.
type EmailRequest struct {
	Filter    report.Filter
	Format    report.Format
	Recipient string
	Subject   string
}

// ReportService builds reports and hands them to the configured outputs.
// Any of publisher, direct and sheet may be nil.
type ReportService struct {
	publisher JobPublisher
	direct    report.Mailer
	sheet     sheets.ReportWriter
	now       func() time.Time
	logger    *log.Logger
}

func NewReportService(publisher JobPublisher, direct report.Mailer, sheet sheets.ReportWriter, logger *log.Logger) *ReportService {
	if logger == nil {
		logger = log.Default(log.ComponentReport)
	}
	return &ReportService{
		publisher: publisher,
		direct:    direct,
		sheet:     sheet,
		now:       time.Now,
		logger:    logger,
	}
}

// MailEnabled reports whether Email can deliver.
func (s *ReportService) MailEnabled() bool { return s.publisher != nil || s.direct != nil }

// SheetsEnabled reports whether WriteSheet can deliver.
func (s *ReportService) SheetsEnabled() bool { return s.sheet != nil }

// Export renders snap filtered by f in the given format.
func (s *ReportService) Export(snap core.Snapshot, f report.Filter, format report.Format) (Export, error) {
	exp, err := report.ExporterFor(format)
	if err != nil {
		return Export{}, core.Validation("export report", err)
	}
	rep, err := report.Build(snap, f, s.now())
	if err != nil {
		return Export{}, err
	}
	var buf bytes.Buffer
	if err := exp.Export(&buf, rep); err != nil {
		return Export{}, core.Format("export report", err)
	}
	return Export{
		Report:      rep,
		Filename:    report.Filename(exp.Format(), rep.GeneratedAt),
		ContentType: exp.ContentType(),
		Body:        buf.Bytes(),
	}, nil
}

// Email renders the report and queues it for delivery. Without a queue the
// configured mailer sends it inline. The returned id identifies the job.
func (s *ReportService) Email(ctx context.Context, owner string, snap core.Snapshot, req EmailRequest) (string, error) {
	if !s.MailEnabled() {
		return "", ErrMailDisabled
	}
	exp, err := report.ExporterFor(req.Format)
	if err != nil {
		return "", core.Validation("email report", err)
	}
	rep, err := report.Build(snap, req.Filter, s.now())
	if err != nil {
		return "", err
	}
	d, err := report.NewDispatch(rep, exp, req.Recipient, req.Subject)
	if err != nil {
		if errors.Is(err, report.ErrInvalidRecipient) || errors.Is(err, report.ErrEmptyPayload) {
			return "", core.Validation("email report", err)
		}
		return "", core.Format("email report", err)
	}

	job := amqp.NewReportEmailJob(owner, d)
	logger := s.logger.With(log.FieldOwner, owner, log.FieldMessageID, job.ID, log.FieldReportRows, len(rep.Rows))

	if s.publisher != nil {
		if err := s.publisher.PublishReportEmail(ctx, job); err != nil {
			logger.Failure(ctx, "Failed to queue report e-mail", log.OpPublish, log.ErrorTypeNetwork, err)
			return "", core.Remote("email report", err)
		}
		logger.InfoContext(ctx, "Report e-mail queued", log.FieldRecipient, d.Recipient)
		return job.ID, nil
	}

	if err := s.direct.Send(ctx, d); err != nil {
		logger.Failure(ctx, "Failed to send report e-mail", log.OpDispatch, log.ErrorTypeNetwork, err)
		return "", core.Remote("email report", err)
	}
	logger.InfoContext(ctx, "Report e-mail sent", log.FieldRecipient, d.Recipient)
	return job.ID, nil
}

// WriteSheet stores the report as a new spreadsheet tab.
func (s *ReportService) WriteSheet(ctx context.Context, snap core.Snapshot, f report.Filter) (string, error) {
	if s.sheet == nil {
		return "", ErrSheetsDisabled
	}
	rep, err := report.Build(snap, f, s.now())
	if err != nil {
		return "", err
	}
	ref, err := s.sheet.WriteReport(ctx, rep)
	if err != nil {
		s.logger.Failure(ctx, "Failed to write report sheet", log.OpExport, log.ErrorTypeNetwork, err)
		return "", core.Remote("write sheet", fmt.Errorf("spreadsheet: %w", err))
	}
	return ref, nil
}
