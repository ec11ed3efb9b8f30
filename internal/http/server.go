// Package http serves the dashboard page and its JSON API.
package http

import (
	"context"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"finboard/internal/cache"
	"finboard/internal/core"
	"finboard/internal/log"
	"finboard/internal/middleware/ratelimit"
	"finboard/internal/middleware/security"
	"finboard/internal/middleware/trace"
	"finboard/internal/plaid"
	appweb "finboard/web"
)

const (
	overviewCacheKey = "overview"
	overviewCacheTTL = 5 * time.Minute
	upstreamTimeout  = 60 * time.Second
)

// LinkTokenProvider creates link tokens for the browser widget.
type LinkTokenProvider interface {
	CreateLinkToken(ctx context.Context) (string, error)
	CredentialStatus() plaid.CredentialStatus
}

type Syncer interface {
	ExchangeAndSync(ctx context.Context, publicToken string) (core.SyncResult, error)
}

type TransactionService interface {
	Update(ctx context.Context, id int64, edit core.TransactionEdit) (core.Transaction, error)
	Overview(ctx context.Context) (core.Overview, error)
}

// ReadinessCheck is one dependency checked by /readyz.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Dependencies struct {
	LinkTokens   LinkTokenProvider
	Sync         Syncer
	Transactions TransactionService
	Readiness    []ReadinessCheck
}

type Options struct {
	RateLimitPerMinute int
	Logger             *log.Logger
}

type Server struct {
	http.Server

	deps      Dependencies
	logger    *log.Logger
	templates *template.Template
	started   time.Time

	overview     *cache.Loader[core.Overview]
	cacheManager *cache.Manager
	limiter      *ratelimit.Limiter
	tracer       *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates.
func NewServer(addr string, deps Dependencies, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentHTTP)
	}

	overviewCache := cache.NewLRUCache[core.Overview](1, overviewCacheTTL)
	manager := cache.NewManager()
	manager.Register(overviewCache)
	manager.StartCleanup(10 * time.Minute)

	limits := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		limits.RequestsPerMinute = opts.RateLimitPerMinute
	}

	ips := security.NewClientIPResolver()

	s := &Server{
		deps:         deps,
		logger:       logger,
		started:      time.Now(),
		overview:     cache.NewLoader[core.Overview](overviewCache),
		cacheManager: manager,
		limiter:      ratelimit.NewLimiter(limits),
		tracer:       trace.NewMiddleware(log.NewStructuredLogger(logger), ips.ClientIP),
	}

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	mux := http.NewServeMux()
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /link-token", s.handleCreateLinkToken)
	mux.HandleFunc("GET /link-token", s.handleLinkTokenStatus)
	mux.HandleFunc("POST /exchange-token", s.handleExchangeToken)
	mux.HandleFunc("POST /sync", s.handleSync)

	mux.HandleFunc("PUT /transactions/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("PUT /transactions", s.handleUpdateTransaction)
	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /categories", s.handleCategories)

	var handler http.Handler = mux
	handler = s.limiter.Middleware(ips.ClientIP, s.onRateLimit)(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = log.RequestIDMiddleware(trace.RequestID)(handler)
	handler = log.Middleware(logger)(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Exchange and sync make several upstream calls.
		WriteTimeout: upstreamTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Shutdown stops background cleanups and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) invalidateOverview(ctx context.Context) {
	s.overview.Invalidate()
	slog.DebugContext(ctx, "Dashboard cache invalidated")
}

func (s *Server) loadOverview(ctx context.Context) (core.Overview, error) {
	// Joined callers share this load, so it must outlive the first caller.
	detached := context.WithoutCancel(ctx)
	return s.overview.Get(overviewCacheKey, func() (core.Overview, error) {
		return s.deps.Transactions.Overview(detached)
	})
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.", nil)
}
