package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/dig"

	"spendmind/internal/amqp"
	"spendmind/internal/cache"
	"spendmind/internal/config"
	"spendmind/internal/log"
	"spendmind/internal/worker"
)

// ErrWorkerDisabled is returned by BuildWorker when AMQP or SMTP is not configured.
var ErrWorkerDisabled = errors.New("report worker needs AMQP_URL and SMTP_HOST")

// Worker consumes queued report e-mails and delivers them over SMTP.
type Worker struct {
	Logger *log.Logger
	queue  *amqp.Client
	emails *worker.EmailWorker
	caches *cache.Manager
	cfg    *config.Config
}

// BuildWorker resolves the report worker's components.
func BuildWorker(cfg *config.Config, logger *log.Logger) (*Worker, error) {
	if !cfg.AMQPEnabled() || !cfg.SMTPEnabled() {
		return nil, ErrWorkerDisabled
	}

	c := dig.New()
	providers := []any{
		func() *config.Config { return cfg },
		func() *log.Logger { return logger },
		provideQueue,
		provideMailer,
		func(m *worker.SMTPMailer, l *log.Logger) *worker.EmailWorker {
			return worker.NewEmailWorker(m, l.WithComponent(log.ComponentWorker))
		},
		func(w *worker.EmailWorker, l *log.Logger) *cache.Manager {
			m := cache.NewManager(l.WithComponent(log.ComponentCache))
			m.Register("sent_reports", w.Sent())
			return m
		},
	}
	for _, p := range providers {
		if err := c.Provide(p); err != nil {
			return nil, fmt.Errorf("provide: %w", err)
		}
	}

	w := &Worker{Logger: logger, cfg: cfg}
	err := c.Invoke(func(q *amqp.Client, ew *worker.EmailWorker, cm *cache.Manager) {
		w.queue, w.emails, w.caches = q, ew, cm
	})
	if err != nil {
		return nil, fmt.Errorf("build worker: %w", dig.RootCause(err))
	}
	return w, nil
}

// Run consumes jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.caches.StartCleanup(w.cfg.CacheCleanupInterval)
	w.Logger.Info("Report worker consuming", "queue", w.cfg.AMQPQueue)
	err := w.queue.ConsumeReportEmails(ctx, w.emails.HandleReportEmail)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Close releases the queue connection.
func (w *Worker) Close() error {
	w.caches.Stop()
	return w.queue.Close()
}
