// Package http serves the JSON API: sign-in, the owner's expenses,
// categories, goals and settings, the derived figures, the advisor and
// report export.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"spendmind/internal/advisor"
	"spendmind/internal/core"
	"spendmind/internal/log"
	"spendmind/internal/middleware/ratelimit"
	"spendmind/internal/middleware/security"
	"spendmind/internal/middleware/trace"
	"spendmind/internal/services"
	"spendmind/internal/session"
	"spendmind/internal/store"
)

// Dependencies are the collaborators the handlers use. Gate and Stores are
// required; the rest may be nil.
type Dependencies struct {
	Gate    *session.Gate
	Stores  *store.Manager
	Advisor *advisor.Advisor
	// LLM backs the chat assistant and receipt extraction.
	LLM            advisor.LLM
	AdvisorOptions advisor.Options
	Reports        *services.ReportService
	Ready          func(ctx context.Context) error
	Logger         *log.Logger
}

// Options tune the server's middleware.
type Options struct {
	RateLimitRPM    int
	CleanupInterval time.Duration
	AllowedOrigins  []string
	TrustedProxies  []string
}

type Server struct {
	http.Server

	gate      *session.Gate
	stores    *store.Manager
	advisor   *advisor.Advisor
	llm       advisor.LLM
	advOpts   advisor.Options
	reports   *services.ReportService
	ready     func(ctx context.Context) error
	logger    *log.Logger
	limiter   *ratelimit.Limiter
	detector  *security.Detector
	tracer    *trace.Middleware
	now       func() time.Time
	stopWatch func()

	chatMu sync.Mutex
	chats  map[string]*advisor.Chat

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Dependencies, opts Options) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.Default(log.ComponentHTTP)
	}
	if deps.Advisor == nil {
		deps.Advisor = advisor.New(deps.LLM, deps.AdvisorOptions)
	}
	if deps.Reports == nil {
		deps.Reports = services.NewReportService(nil, nil, nil, logger.WithComponent(log.ComponentReport))
	}

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		gate:     deps.Gate,
		stores:   deps.Stores,
		advisor:  deps.Advisor,
		llm:      deps.LLM,
		advOpts:  deps.AdvisorOptions,
		reports:  deps.Reports,
		ready:    deps.Ready,
		logger:   logger.WithComponent(log.ComponentHTTP),
		detector: security.NewDetector(),
		now:      time.Now,
		chats:    make(map[string]*advisor.Chat),
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			s.logger.Warn("Ignoring trusted proxy", log.FieldError, err)
		}
	}
	s.limiter = ratelimit.NewLimiter(ratelimit.Config{
		RequestsPerMinute: opts.RateLimitRPM,
		CleanupInterval:   opts.CleanupInterval,
	})
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)
	s.stopWatch = s.gate.Subscribe(s.onSession)

	mux := http.NewServeMux()
	s.routes(mux)

	var h http.Handler = mux
	h = s.limiter.Middleware(s.detector.ExtractClientIP, isWrite, s.rateLimited)(h)
	h = s.detector.Middleware(logger)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = security.CORS(opts.AllowedOrigins)(h)
	h = s.tracer.Middleware(h)
	s.Handler = h
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /session", s.handleSessionStatus)
	mux.HandleFunc("POST /session", s.handleSignIn)
	mux.HandleFunc("DELETE /session", s.handleSignOut)

	mux.HandleFunc("GET /api/expenses", s.handleListExpenses)
	mux.HandleFunc("POST /api/expenses", s.handleCreateExpense)
	mux.HandleFunc("DELETE /api/expenses/{id}", s.handleDeleteExpense)

	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/categories", s.handleCreateCategory)
	mux.HandleFunc("PATCH /api/categories/{id}", s.handleRenameCategory)
	mux.HandleFunc("DELETE /api/categories/{id}", s.handleDeleteCategory)
	mux.HandleFunc("PUT /api/categories/{id}/limit", s.handleSetCategoryLimit)

	mux.HandleFunc("GET /api/goals", s.handleListGoals)
	mux.HandleFunc("POST /api/goals", s.handleCreateGoal)
	mux.HandleFunc("DELETE /api/goals/{id}", s.handleDeleteGoal)

	mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /api/settings", s.handleUpdateSettings)

	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/budgets", s.handleBudgets)
	mux.HandleFunc("GET /api/trend", s.handleTrend)

	mux.HandleFunc("POST /api/advisor", s.handleAdvise)
	mux.HandleFunc("GET /api/chat", s.handleChatHistory)
	mux.HandleFunc("POST /api/chat", s.handleChatSend)
	mux.HandleFunc("DELETE /api/chat", s.handleChatReset)
	mux.HandleFunc("POST /api/ocr", s.handleOCR)

	mux.HandleFunc("GET /api/reports", s.handleExportReport)
	mux.HandleFunc("POST /api/reports/email", s.handleEmailReport)
	mux.HandleFunc("POST /api/reports/sheet", s.handleSheetReport)
}

func isWrite(r *http.Request) bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "rate_limited", "Rate limit exceeded. Please try again later.").Write(w)
}

// onSession drops the signed-out owner's chat.
func (s *Server) onSession(ev session.Event) {
	if ev.Transition != session.SignedOut {
		return
	}
	s.chatMu.Lock()
	delete(s.chats, ev.Owner)
	s.chatMu.Unlock()
}

// Limiter exposes the rate limiter, for metrics.
func (s *Server) Limiter() *ratelimit.Limiter { return s.limiter }

// TraceMetrics returns the request counters.
func (s *Server) TraceMetrics() trace.Metrics { return s.tracer.GetMetrics() }

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.stopWatch()
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// fail logs err against the request and writes its error response.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, _ := StatusFor(err)
	logger := log.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Failure(r.Context(), "Request failed", op, errorTypeFor(core.KindOf(err)), err,
			log.FieldPath, r.URL.Path)
	} else {
		logger.WarnContext(r.Context(), "Request rejected",
			log.FieldOperation, op,
			log.FieldPath, r.URL.Path,
			log.FieldStatusCode, status,
			log.FieldError, err)
	}
	ErrorFor(err).Write(w)
}

// currentStore returns the signed-in owner's store or answers 401.
func (s *Server) currentStore(w http.ResponseWriter, r *http.Request, op string) (*store.Store, bool) {
	st, ok := s.stores.Current()
	if !ok {
		s.fail(w, r, op, core.Session(op))
		return nil, false
	}
	return st, true
}

// loadedStore is currentStore that also waits for the initial load, so a
// mutation never races the collections it replaces.
func (s *Server) loadedStore(w http.ResponseWriter, r *http.Request, op string) (*store.Store, bool) {
	st, ok := s.currentStore(w, r, op)
	if !ok {
		return nil, false
	}
	select {
	case <-st.Ready():
		return st, true
	case <-r.Context().Done():
		s.fail(w, r, op, core.Remote(op, r.Context().Err()))
		return nil, false
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			log.FromContext(r.Context()).Failure(r.Context(), "Readiness check failed", log.OpRead, log.ErrorTypeDatabase, err)
			ErrorResponse(http.StatusServiceUnavailable, kindUnavailable, "backend unavailable").Write(w)
			return
		}
	}
	NewJSONResponse().Data(map[string]string{"status": "ready"}).Write(w)
}
