package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"billtrack/internal/core"
	"billtrack/internal/log"
	"billtrack/internal/metrics"
	"billtrack/internal/middleware/ratelimit"
	"billtrack/internal/middleware/security"
	"billtrack/internal/middleware/trace"
	"billtrack/internal/parser"
	"billtrack/internal/ports"
	"billtrack/internal/services"
)

// BillAPI is the service surface the handlers use. *services.BillService
// satisfies it.
type BillAPI interface {
	Connect(ctx context.Context, key string, cfg ports.ConnectionConfig) bool
	Connected() (ports.Kind, bool)
	List(ctx context.Context) []core.Bill
	Add(ctx context.Context, f core.Form) (core.Bill, error)
	Update(ctx context.Context, id string, p core.Patch) (core.Bill, error)
	MarkPaid(ctx context.Context, id string) (core.Bill, error)
	Delete(ctx context.Context, id string) (bool, error)
	Export(ctx context.Context) (int, bool, error)
	Summary(ctx context.Context) core.Summary
	Parse(ctx context.Context, text string) (parser.Result, error)
	Reminders(ctx context.Context, settings services.ReminderSettings) []services.Reminder
}

type Server struct {
	http.Server
	bills     BillAPI
	metrics   *metrics.Metrics
	limiter   *ratelimit.Limiter
	detector  *security.Detector
	logger    *log.Logger
	reminders services.ReminderSettings
	rateLimit int

	shutdownOnce sync.Once
}

type Option func(*Server)

// WithMetrics records request durations and serves /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithRateLimit bounds mutating requests per client and minute.
func WithRateLimit(perMinute int) Option {
	return func(s *Server) { s.rateLimit = perMinute }
}

// WithReminderSettings sets the kinds /api/reminders evaluates by default.
func WithReminderSettings(settings services.ReminderSettings) Option {
	return func(s *Server) { s.reminders = settings }
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, bills BillAPI, logger *log.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = log.Discard()
	}
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		bills:     bills,
		logger:    logger.WithComponent(log.ComponentHTTP),
		reminders: services.DefaultReminderSettings(),
		rateLimit: ratelimit.DefaultConfig().RequestsPerMinute,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.detector = security.NewDetector(logger)
	s.limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: s.rateLimit})

	mux := http.NewServeMux()
	s.routes(mux)

	// The trace middleware must see the request the mux routes, so nothing
	// between it and the mux may replace the request.
	tracer := trace.NewMiddleware(logger, s.detector.ExtractClientIP, trace.WithObserver(s.metrics.Request))
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	s.Handler = tracer.Handler(s.detector.Middleware(headers.Middleware(mux)))
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.Handle("GET /readyz", s.handle(s.handleReady))
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	mux.Handle("GET /api/categories", s.handle(s.handleCategories))
	mux.Handle("GET /api/backends", s.handle(s.handleBackends))
	mux.Handle("POST /api/connect", s.limited(s.handleConnect))

	mux.Handle("GET /api/bills", s.handle(s.handleListBills))
	mux.Handle("POST /api/bills", s.limited(s.handleCreateBill))
	mux.Handle("PATCH /api/bills/{id}", s.limited(s.handleUpdateBill))
	mux.Handle("POST /api/bills/{id}/paid", s.limited(s.handleMarkPaid))
	mux.Handle("DELETE /api/bills/{id}", s.limited(s.handleDeleteBill))
	mux.Handle("POST /api/export", s.limited(s.handleExport))

	mux.Handle("POST /api/parse", s.limited(s.handleParse))
	mux.Handle("GET /api/summary", s.handle(s.handleSummary))
	mux.Handle("GET /api/reminders", s.handle(s.handleReminders))
}

func (s *Server) handle(h http.HandlerFunc) http.Handler {
	return withNotices(h)
}

// limited applies the per-client rate limit before h.
func (s *Server) limited(h http.HandlerFunc) http.Handler {
	limit := s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		s.logger.WarnContext(r.Context(), "Rate limit exceeded",
			"client_ip", s.detector.ExtractClientIP(r),
			log.FieldMethod, r.Method,
			"path", r.URL.Path)
		TooManyRequestsError().Write(w)
	})
	return limit(withNotices(h))
}

// Shutdown gracefully shuts down the server and the limiter cleanup.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// Detector exposes the probe detector, e.g. to add trusted proxies.
func (s *Server) Detector() *security.Detector {
	return s.detector
}
