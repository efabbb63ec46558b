package http

import (
	"context"
	"html/template"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"survey/internal/analysis"
	"survey/internal/core"
	"survey/internal/export"
	"survey/internal/log"
	"survey/internal/middleware/ratelimit"
	"survey/internal/middleware/security"
	"survey/internal/middleware/trace"
	appweb "survey/web"
)

// SurveyService is the part of services.SurveyService the web layer uses.
type SurveyService interface {
	SubmitForm(ctx context.Context, form url.Values) (core.Record, error)
	Records(ctx context.Context) ([]core.Record, error)
	Recent(ctx context.Context) ([]core.Record, error)
	Summary(ctx context.Context) (core.Summary, bool, error)
	Analysis(ctx context.Context) (analysis.Report, error)
	ExportRecords(ctx context.Context, sampleFallback bool) ([]core.Record, bool, error)
	Ping(ctx context.Context) error
}

// Config holds the server settings that are not part of the service.
type Config struct {
	Addr string
	// RateLimit applies to form submissions only.
	RateLimit    ratelimit.Config
	ReadyTimeout time.Duration
	Logger       *log.Logger
}

type Server struct {
	http.Server
	svc          SurveyService
	templates    *template.Template
	limiter      *ratelimit.Limiter
	clientIP     *security.ClientIPResolver
	logger       *log.Logger
	readyTimeout time.Duration
	startedAt    time.Time
	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run
// server. Template parse errors are returned rather than deferred to the
// first request.
func NewServer(svc SurveyService, config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = log.FromContext(context.Background())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	templates, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	if config.ReadyTimeout <= 0 {
		config.ReadyTimeout = 5 * time.Second
	}

	s := &Server{
		svc:          svc,
		templates:    templates,
		limiter:      ratelimit.NewLimiter(config.RateLimit),
		clientIP:     security.NewClientIPResolver(),
		logger:       logger,
		readyTimeout: config.ReadyTimeout,
		startedAt:    time.Now(),
	}

	mux := http.NewServeMux()
	limited := s.limiter.Middleware(s.clientIP.ClientIP, nil)

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.Handle("POST /submit", limited(http.HandlerFunc(s.handleSubmit)))
	mux.HandleFunc("GET /dashboard", s.handleDashboard)
	mux.Handle("GET /api/data", security.NoStore(http.HandlerFunc(s.handleData)))
	mux.Handle("GET /api/summary", security.NoStore(http.HandlerFunc(s.handleSummary)))
	mux.Handle("GET /api/analysis", security.NoStore(http.HandlerFunc(s.handleAnalysis)))
	mux.HandleFunc("GET /export.csv", s.handleExportCSV)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())

	var handler http.Handler = mux
	handler = security.Headers(security.DefaultHeadersConfig())(handler)
	handler = log.RequestIDMiddleware(func(r *http.Request) string { return trace.GetRequestID(r.Context()) })(handler)
	handler = log.Middleware(logger)(handler)
	handler = trace.NewMiddleware(logger, s.clientIP.ClientIP).WithRoutes(mux).Middleware(handler)

	s.Server = http.Server{
		Addr:              config.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

// Shutdown gracefully shuts down the server and the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

var templateFuncs = template.FuncMap{
	"money": export.FormatFixed2,
	"rate":  export.FormatRate,
	"date":  func(t time.Time) string { return t.Format(core.TimeLayout) },
}
