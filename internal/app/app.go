// Package app wires the API process and the report worker from
// configuration using a dig container.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/dig"

	"spendmind/internal/advisor"
	"spendmind/internal/advisor/gemini"
	"spendmind/internal/amqp"
	"spendmind/internal/backend"
	"spendmind/internal/cache"
	"spendmind/internal/config"
	apphttp "spendmind/internal/http"
	"spendmind/internal/log"
	"spendmind/internal/report"
	"spendmind/internal/services"
	"spendmind/internal/session"
	"spendmind/internal/sheets"
	"spendmind/internal/sheets/google"
	"spendmind/internal/store"
	"spendmind/internal/worker"
)

// App is the assembled API process.
type App struct {
	Config  *config.Config
	Logger  *log.Logger
	Server  *apphttp.Server
	Gate    *session.Gate
	Stores  *store.Manager
	Caches  *cache.Manager
	backend *backend.Result
	queue   *amqp.Client
}

// Build resolves every component of the API process. ctx bounds the
// background store loads and outlives Build.
func Build(ctx context.Context, cfg *config.Config, logger *log.Logger) (*App, error) {
	c := dig.New()
	providers := []any{
		func() context.Context { return ctx },
		func() *config.Config { return cfg },
		func() *log.Logger { return logger },
		session.NewGate,
		provideBackend,
		provideLLM,
		provideAdvisorOptions,
		provideAdvisor,
		provideStores,
		provideQueue,
		provideMailer,
		provideSheets,
		provideReports,
		provideCaches,
		provideServer,
	}
	for _, p := range providers {
		if err := c.Provide(p); err != nil {
			return nil, fmt.Errorf("provide: %w", err)
		}
	}

	var a *App
	err := c.Invoke(func(
		srv *apphttp.Server,
		gate *session.Gate,
		stores *store.Manager,
		caches *cache.Manager,
		res *backend.Result,
		queue *amqp.Client,
	) {
		a = &App{
			Config:  cfg,
			Logger:  logger,
			Server:  srv,
			Gate:    gate,
			Stores:  stores,
			Caches:  caches,
			backend: res,
			queue:   queue,
		}
	})
	if err != nil {
		return nil, fmt.Errorf("build app: %w", dig.RootCause(err))
	}
	return a, nil
}

func provideBackend(ctx context.Context, cfg *config.Config, logger *log.Logger) (*backend.Result, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	return backend.NewFactory(logger.WithComponent(log.ComponentBackend)).CreateBackend(ctx, bcfg)
}

// provideLLM returns nil without an API key; the advisor then always falls
// back and chat replies are flagged failed.
func provideLLM(ctx context.Context, cfg *config.Config, logger *log.Logger) (advisor.LLM, error) {
	if !cfg.AdvisorEnabled() {
		logger.Info("Advisor model disabled - no GEMINI_API_KEY provided")
		return nil, nil
	}
	client, err := gemini.New(ctx, gemini.Config{APIKey: cfg.GeminiAPIKey, Model: cfg.GeminiModel},
		logger.WithComponent(log.ComponentAdvisor))
	if err != nil {
		return nil, err
	}
	return client, nil
}

func provideAdvisorOptions(cfg *config.Config, logger *log.Logger) (advisor.Options, error) {
	income, err := decimal.NewFromString(cfg.MonthlyIncome)
	if err != nil || income.IsNegative() {
		return advisor.Options{}, fmt.Errorf("ADVISOR_MONTHLY_INCOME must be a non-negative amount, got %q", cfg.MonthlyIncome)
	}
	return advisor.Options{
		Timeout:       cfg.AdvisorTimeout,
		MonthlyIncome: decimal.NewNullDecimal(income),
		Logger:        logger.WithComponent(log.ComponentAdvisor),
	}, nil
}

func provideAdvisor(llm advisor.LLM, opts advisor.Options) *advisor.Advisor {
	return advisor.New(llm, opts)
}

func provideStores(ctx context.Context, gate *session.Gate, res *backend.Result, cfg *config.Config, logger *log.Logger) *store.Manager {
	return store.NewManager(ctx, gate, res.Remote, store.Options{
		Timeout: cfg.RemoteTimeout,
		Logger:  logger.WithComponent(log.ComponentStore),
	})
}

// provideQueue returns nil when AMQP is not configured.
func provideQueue(cfg *config.Config, logger *log.Logger) (*amqp.Client, error) {
	if !cfg.AMQPEnabled() {
		return nil, nil
	}
	return amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger.WithComponent(log.ComponentAMQP))
}

// provideMailer returns nil when SMTP is not configured.
func provideMailer(cfg *config.Config) (*worker.SMTPMailer, error) {
	if !cfg.SMTPEnabled() {
		return nil, nil
	}
	return worker.NewSMTPMailer(smtpConfig(cfg))
}

func smtpConfig(cfg *config.Config) worker.SMTPConfig {
	return worker.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	}
}

// provideSheets returns nil when no spreadsheet is configured.
func provideSheets(ctx context.Context, cfg *config.Config, logger *log.Logger) (*google.Client, error) {
	if !cfg.SheetsEnabled() {
		return nil, nil
	}
	return google.New(ctx, google.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
	}, logger.WithComponent(log.ComponentSheets))
}

// provideReports turns the optional outputs into nil interfaces rather than
// typed nils, so the service can tell what is configured.
func provideReports(queue *amqp.Client, mailer *worker.SMTPMailer, sheet *google.Client, logger *log.Logger) *services.ReportService {
	var (
		pub    services.JobPublisher
		direct report.Mailer
		writer sheets.ReportWriter
	)
	if queue != nil {
		pub = queue
	}
	if mailer != nil {
		direct = mailer
	}
	if sheet != nil {
		writer = sheet
	}
	return services.NewReportService(pub, direct, writer, logger.WithComponent(log.ComponentReport))
}

func provideCaches(adv *advisor.Advisor, logger *log.Logger) *cache.Manager {
	m := cache.NewManager(logger.WithComponent(log.ComponentCache))
	m.Register("advisor_plans", adv.Cache())
	return m
}

func provideServer(
	cfg *config.Config,
	logger *log.Logger,
	gate *session.Gate,
	stores *store.Manager,
	adv *advisor.Advisor,
	llm advisor.LLM,
	advOpts advisor.Options,
	reports *services.ReportService,
	res *backend.Result,
) *apphttp.Server {
	return apphttp.NewServer(":"+cfg.Port, apphttp.Dependencies{
		Gate:           gate,
		Stores:         stores,
		Advisor:        adv,
		LLM:            llm,
		AdvisorOptions: advOpts,
		Reports:        reports,
		Ready:          res.Ping,
		Logger:         logger,
	}, apphttp.Options{
		RateLimitRPM:    cfg.RateLimitRPM,
		CleanupInterval: cfg.CacheCleanupInterval,
		AllowedOrigins:  cfg.AllowedOrigins,
	})
}

// Run serves until the server is shut down.
func (a *App) Run() error {
	a.Caches.StartCleanup(a.Config.CacheCleanupInterval)
	a.Logger.Info("Starting spendmind server", "port", a.Config.Port, "backend", a.Config.DataBackend,
		"advisor", a.Config.AdvisorEnabled(), "amqp", a.Config.AMQPEnabled(), "sheets", a.Config.SheetsEnabled())
	if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server and releases everything Build opened.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if err := a.Server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http: %w", err))
	}
	a.Stores.Close()
	a.Caches.Stop()
	if a.queue != nil {
		if err := a.queue.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	if err := a.backend.Close(); err != nil {
		errs = append(errs, fmt.Errorf("backend: %w", err))
	}
	return errors.Join(errs...)
}
