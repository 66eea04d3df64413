// Package worker consumes queued report e-mail jobs and delivers them.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"spendmind/internal/amqp"
	"spendmind/internal/cache"
	"spendmind/internal/log"
	"spendmind/internal/report"
)

const (
	sentMemory = 1024
	sentTTL    = 24 * time.Hour
)

// EmailWorker sends report e-mails from AMQP jobs. Jobs already delivered
// are remembered for a day so broker redeliveries do not send twice.
type EmailWorker struct {
	mailer report.Mailer
	sent   *cache.LRUCache[time.Time]
	logger *log.Logger
}

func NewEmailWorker(mailer report.Mailer, logger *log.Logger) *EmailWorker {
	if logger == nil {
		logger = log.Default(log.ComponentWorker)
	}
	return &EmailWorker{
		mailer: mailer,
		sent:   cache.NewLRUCache[time.Time](sentMemory, sentTTL),
		logger: logger,
	}
}

// Sent exposes the delivered-job cache for periodic cleanup.
func (w *EmailWorker) Sent() *cache.LRUCache[time.Time] { return w.sent }

// HandleReportEmail delivers one job. Malformed dispatches are logged and
// dropped; delivery failures are returned so the broker requeues the job.
func (w *EmailWorker) HandleReportEmail(ctx context.Context, job *amqp.ReportEmailJob) error {
	if at, ok := w.sent.Get(job.ID); ok {
		w.logger.InfoContext(ctx, "Skipping already delivered job",
			log.FieldMessageID, job.ID, "sent_at", at.Format(time.RFC3339))
		return nil
	}

	d := job.Dispatch()
	if err := d.Validate(); err != nil {
		if errors.Is(err, report.ErrInvalidRecipient) || errors.Is(err, report.ErrEmptyPayload) {
			w.logger.Failure(ctx, "Dropping undeliverable report job", log.OpDispatch, log.ErrorTypeValidation, err,
				log.FieldMessageID, job.ID)
			return nil
		}
		return err
	}

	if err := w.mailer.Send(ctx, d); err != nil {
		return fmt.Errorf("send report %s: %w", job.ID, err)
	}
	w.sent.Set(job.ID, time.Now())

	w.logger.InfoContext(ctx, "Report e-mail sent",
		log.FieldMessageID, job.ID,
		log.FieldOwner, job.Owner,
		log.FieldRecipient, d.Recipient,
		"filename", d.Filename,
		"bytes", len(d.Payload))
	return nil
}
